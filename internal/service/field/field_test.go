package field

import (
	"reflect"
	"testing"
)

func TestDefault_Order(t *testing.T) {
	c := Default()

	expected := []string{Name, Location, Wage, PhoneNumber, Age}
	if got := c.Names(); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected field order %v, got %v", expected, got)
	}
	if c.First().Name != Name {
		t.Errorf("expected first field %q, got %q", Name, c.First().Name)
	}
}

func TestCatalog_Next(t *testing.T) {
	c := Default()

	names := c.Names()
	for i := 0; i < len(names)-1; i++ {
		next, ok := c.Next(names[i])
		if !ok {
			t.Fatalf("expected a field after %q", names[i])
		}
		if next.Name != names[i+1] {
			t.Errorf("expected %q after %q, got %q", names[i+1], names[i], next.Name)
		}
	}

	if _, ok := c.Next(Age); ok {
		t.Error("expected no field after the last one")
	}
	if _, ok := c.Next("unknown"); ok {
		t.Error("expected no field after an unknown name")
	}
}

func TestNewCatalog_Errors(t *testing.T) {
	if _, err := NewCatalog(); err != ErrEmptyCatalog {
		t.Errorf("expected ErrEmptyCatalog, got %v", err)
	}
	if _, err := NewCatalog(Field{Name: "a"}, Field{Name: "a"}); err == nil {
		t.Error("expected error for duplicate field names")
	}
	if _, err := NewCatalog(Field{}); err == nil {
		t.Error("expected error for unnamed field")
	}
}

func TestNewCatalog_DefaultsLabel(t *testing.T) {
	c, err := NewCatalog(Field{Name: "shift"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, _ := c.Lookup("shift")
	if f.Label != "shift" {
		t.Errorf("expected label to default to name, got %q", f.Label)
	}
}

func TestField_Accept(t *testing.T) {
	c := Default()

	tests := []struct {
		field    string
		input    string
		expected string
		ok       bool
	}{
		{Name, "My name is John", "John", true},
		{Name, "  Lakshmi Devi  ", "Lakshmi Devi", true},
		{Name, "   ", "", false},
		{Location, "I live in Pune", "Pune", true},
		{Location, "Koramangala", "Koramangala", true},
		{Wage, "my wage is 4500 rupees", "4500", true},
		{Wage, "five hundred", "500", true},
		{Wage, "not sure", "", false},
		{PhoneNumber, "nine nine one two three four five six seven eight", "9912345678", true},
		{PhoneNumber, "+91 98765-43210", "919876543210", true},
		{PhoneNumber, "nine eight seven", "987", false},
		{Age, "twenty five", "25", true},
		{Age, "I am 42 years old", "42", true},
		{Age, "fifteen", "15", false},
		{Age, "eighteen", "18", false},
		{Age, "one hundred twenty", "120", false},
		{Age, "old enough", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.input, func(t *testing.T) {
			f, ok := c.Lookup(tt.field)
			if !ok {
				t.Fatalf("unknown field %q", tt.field)
			}
			got, accepted := f.Accept(tt.input)
			if accepted != tt.ok {
				t.Errorf("Accept(%q) accepted = %v, want %v", tt.input, accepted, tt.ok)
			}
			if got != tt.expected {
				t.Errorf("Accept(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestField_Prompts(t *testing.T) {
	f, _ := Default().Lookup(PhoneNumber)

	if got := f.ConfirmPrompt("9912345678"); got != "Is this your phone number: 9912345678? Say yes to confirm, no to repeat." {
		t.Errorf("unexpected confirm prompt: %q", got)
	}
	if got := f.RetryPrompt(); got != "Sorry, I didn't catch that. Please repeat your phone number." {
		t.Errorf("unexpected retry prompt: %q", got)
	}
}
