// Package extract maps free-form transcribed text to candidate field values.
// All functions are pure.
package extract

import (
	"regexp"
	"strings"
)

// Contact status values reported by ContactStatus.
const (
	StatusNotReachable = "not reachable"
	StatusReachable    = "reachable"
	StatusUnknown      = "unknown"
)

var digitWords = map[string]string{
	"zero": "0", "oh": "0",
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
	"six": "6", "seven": "7", "eight": "8", "nine": "9",
}

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)my name is ([A-Za-z ]+)`),
		regexp.MustCompile(`(?i)i am ([A-Za-z ]+)`),
		regexp.MustCompile(`(?i)this is ([A-Za-z ]+)`),
	}
	placePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)from ([A-Za-z ]+)`),
		regexp.MustCompile(`(?i)live in ([A-Za-z ]+)`),
		regexp.MustCompile(`(?i)based in ([A-Za-z ]+)`),
	}

	fromWord = regexp.MustCompile(`(?i)\bfrom\b`)
	wageWord = regexp.MustCompile(`(?i)\bwage\b`)

	negativePhrases = []string{"don't call", "do not call"}
	positivePhrases = []string{"call me back", "please call"}
)

// Fields is the result of running every extractor over one utterance.
type Fields struct {
	Name          *string `json:"name"`
	Place         *string `json:"place"`
	Wage          *int    `json:"wages"`
	ContactNumber *string `json:"contact_number"`
	ContactStatus string  `json:"contact_status"`
}

// All runs every extractor over text.
func All(text string) Fields {
	f := Fields{ContactStatus: ContactStatus(text)}
	if v, ok := Name(text); ok {
		f.Name = &v
	}
	if v, ok := Place(text); ok {
		f.Place = &v
	}
	if v, ok := Wage(text); ok {
		f.Wage = &v
	}
	if v, ok := ContactNumber(text); ok {
		f.ContactNumber = &v
	}
	return f
}

// DigitsFromWords converts spoken digits ("nine", "oh") and literal digit
// tokens into one digit string. Every other token is dropped.
func DigitsFromWords(text string) string {
	var b strings.Builder
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = trimPunct(tok)
		if d, ok := digitWords[tok]; ok {
			b.WriteString(d)
			continue
		}
		if tok != "" && allDigits(tok) {
			b.WriteString(tok)
		}
	}
	return b.String()
}

// ContactNumber returns the normalized digit string when it is a 10-12 digit run.
func ContactNumber(text string) (string, bool) {
	d := DigitsFromWords(text)
	if len(d) < 10 || len(d) > 12 {
		return "", false
	}
	return d, true
}

// Name applies the introduction patterns in order; the first match wins and
// is cut at the word "from".
func Name(text string) (string, bool) {
	return firstMatch(namePatterns, fromWord, text)
}

// Place applies the locative patterns in order; the first match wins and is
// cut at the word "wage".
func Place(text string) (string, bool) {
	return firstMatch(placePatterns, wageWord, text)
}

// Wage returns the normalized digit string as an integer when it is a 2-5
// digit run.
func Wage(text string) (int, bool) {
	d := DigitsFromWords(text)
	if len(d) < 2 || len(d) > 5 {
		return 0, false
	}
	n := 0
	for _, c := range d {
		n = n*10 + int(c-'0')
	}
	return n, true
}

// ContactStatus scans for negative phrases before positive ones.
func ContactStatus(text string) string {
	lower := strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	for _, p := range negativePhrases {
		if strings.Contains(lower, p) {
			return StatusNotReachable
		}
	}
	for _, p := range positivePhrases {
		if strings.Contains(lower, p) {
			return StatusReachable
		}
	}
	return StatusUnknown
}

func firstMatch(patterns []*regexp.Regexp, stop *regexp.Regexp, text string) (string, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v := m[1]
		if loc := stop.FindStringIndex(v); loc != nil {
			v = v[:loc[0]]
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		return v, true
	}
	return "", false
}

func trimPunct(tok string) string {
	return strings.Trim(tok, ".,!?;:\"'()")
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
