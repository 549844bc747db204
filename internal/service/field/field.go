// Package field defines the ordered table of intake fields: what to ask,
// how to read the answer and when to accept it.
package field

import (
	"fmt"
	"strconv"
	"strings"

	"voice-intake-service/internal/service/extract"
)

// Field names of the default intake.
const (
	Name        = "name"
	Location    = "location"
	Wage        = "wage"
	PhoneNumber = "phone_number"
	Age         = "age"
)

// NormalizeFunc turns a raw transcript into a candidate value.
type NormalizeFunc func(text string) string

// ValidateFunc accepts or rejects a candidate value.
type ValidateFunc func(candidate string) (string, bool)

// Field is one datum collected by the intake dialogue.
type Field struct {
	Name      string
	Label     string // spoken form used in confirm/retry prompts
	Prompt    string
	Normalize NormalizeFunc // optional
	Validate  ValidateFunc  // optional, defaults to AcceptText
}

// Accept runs the normalizer and validator for one answer.
func (f Field) Accept(text string) (string, bool) {
	candidate := strings.TrimSpace(text)
	if f.Normalize != nil {
		candidate = f.Normalize(candidate)
	}
	validate := f.Validate
	if validate == nil {
		validate = AcceptText
	}
	return validate(candidate)
}

// RetryPrompt is emitted when an answer is rejected.
func (f Field) RetryPrompt() string {
	return fmt.Sprintf("Sorry, I didn't catch that. Please repeat your %s.", f.Label)
}

// ConfirmPrompt asks the caller to confirm a captured value.
func (f Field) ConfirmPrompt(value string) string {
	return fmt.Sprintf("Is this your %s: %s? Say yes to confirm, no to repeat.", f.Label, value)
}

// AcceptText accepts any non-empty trimmed text verbatim.
func AcceptText(candidate string) (string, bool) {
	v := strings.TrimSpace(candidate)
	return v, v != ""
}

// AcceptPhone accepts a candidate with at least 10 digits.
func AcceptPhone(candidate string) (string, bool) {
	d := extract.OnlyDigits(candidate)
	return d, len(d) >= 10
}

// AcceptAge accepts an age strictly between 18 and 120.
func AcceptAge(candidate string) (string, bool) {
	d := extract.OnlyDigits(candidate)
	n, err := strconv.Atoi(d)
	if err != nil {
		return "", false
	}
	return d, n > 18 && n < 120
}

// AcceptWage accepts a candidate with at least one digit.
func AcceptWage(candidate string) (string, bool) {
	d := extract.OnlyDigits(candidate)
	return d, d != ""
}

// NameOrText prefers an introduction pattern match, falling back to the text.
func NameOrText(text string) string {
	if v, ok := extract.Name(text); ok {
		return v
	}
	return text
}

// PlaceOrText prefers a locative pattern match, falling back to the text.
func PlaceOrText(text string) string {
	if v, ok := extract.Place(text); ok {
		return v
	}
	return text
}
