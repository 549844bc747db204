package extract

import (
	"strconv"
	"strings"
)

type numKind int

const (
	kindLiteral numKind = iota
	kindUnit
	kindTeen
	kindTens
	kindScale
)

// maxCardinal bounds a spoken cardinal; runs that exceed it are dropped.
const maxCardinal = 1_000_000_000_000

type numToken struct {
	kind  numKind
	value int
	text  string
}

var cardinalWords = map[string]numToken{
	"ten": {kind: kindTeen, value: 10}, "eleven": {kind: kindTeen, value: 11},
	"twelve": {kind: kindTeen, value: 12}, "thirteen": {kind: kindTeen, value: 13},
	"fourteen": {kind: kindTeen, value: 14}, "fifteen": {kind: kindTeen, value: 15},
	"sixteen": {kind: kindTeen, value: 16}, "seventeen": {kind: kindTeen, value: 17},
	"eighteen": {kind: kindTeen, value: 18}, "nineteen": {kind: kindTeen, value: 19},
	"twenty": {kind: kindTens, value: 20}, "thirty": {kind: kindTens, value: 30},
	"forty": {kind: kindTens, value: 40}, "fifty": {kind: kindTens, value: 50},
	"sixty": {kind: kindTens, value: 60}, "seventy": {kind: kindTens, value: 70},
	"eighty": {kind: kindTens, value: 80}, "ninety": {kind: kindTens, value: 90},
	"hundred": {kind: kindScale, value: 100}, "thousand": {kind: kindScale, value: 1000},
	"lakh": {kind: kindScale, value: 100000},
}

// NumberRuns returns one digit string per run of consecutive number tokens.
// A run made only of single digits and digit literals is concatenated
// ("nine eight 7" -> "987"); a run containing teens, tens or scale words is
// read as a cardinal ("twenty five" -> "25", "four thousand five hundred" -> "4500").
func NumberRuns(text string) []string {
	var (
		runs []string
		run  []numToken
	)
	flush := func() {
		if len(run) > 0 {
			if v := evalRun(run); v != "" {
				runs = append(runs, v)
			}
			run = run[:0]
		}
	}

	toks := strings.Fields(strings.ToLower(strings.ReplaceAll(text, "-", " ")))
	for i, raw := range toks {
		tok := trimPunct(raw)
		if nt, ok := lookupNumber(tok); ok {
			run = append(run, nt)
			continue
		}
		// "five hundred and fifty"
		if tok == "and" && len(run) > 0 && i+1 < len(toks) {
			if _, ok := lookupNumber(trimPunct(toks[i+1])); ok {
				continue
			}
		}
		flush()
	}
	flush()
	return runs
}

// SpokenNumber concatenates every number run in text.
func SpokenNumber(text string) string {
	return strings.Join(NumberRuns(text), "")
}

// FirstNumber returns the first number run in text, or "".
func FirstNumber(text string) string {
	runs := NumberRuns(text)
	if len(runs) == 0 {
		return ""
	}
	return runs[0]
}

func lookupNumber(tok string) (numToken, bool) {
	if tok == "" {
		return numToken{}, false
	}
	if d, ok := digitWords[tok]; ok {
		return numToken{kind: kindUnit, value: int(d[0] - '0'), text: d}, true
	}
	if nt, ok := cardinalWords[tok]; ok {
		return nt, true
	}
	digits := OnlyDigits(tok)
	if digits == "" {
		return numToken{}, false
	}
	return numToken{kind: kindLiteral, text: digits}, true
}

func evalRun(run []numToken) string {
	cardinal := false
	for _, t := range run {
		if t.kind == kindTeen || t.kind == kindTens || t.kind == kindScale {
			cardinal = true
			break
		}
	}

	if !cardinal {
		var b strings.Builder
		for _, t := range run {
			b.WriteString(t.text)
		}
		return b.String()
	}

	total, cur := 0, 0
	for _, t := range run {
		switch t.kind {
		case kindLiteral:
			n, err := strconv.Atoi(t.text)
			if err != nil {
				continue
			}
			cur += n
		case kindUnit, kindTeen, kindTens:
			cur += t.value
		case kindScale:
			if cur == 0 {
				cur = 1
			}
			if t.value == 100 {
				cur *= 100
				continue
			}
			total += cur * t.value
			cur = 0
		}
		if cur > maxCardinal || total > maxCardinal {
			return ""
		}
	}
	return strconv.Itoa(total + cur)
}

// OnlyDigits strips every non-digit character from s.
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
