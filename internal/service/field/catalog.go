package field

import (
	"errors"
	"fmt"

	"voice-intake-service/internal/service/extract"
)

// ErrEmptyCatalog is returned when a catalog has no fields.
var ErrEmptyCatalog = errors.New("field catalog is empty")

// Catalog is the fixed, ordered list of fields. It is not mutated after
// construction.
type Catalog struct {
	fields []Field
	index  map[string]int
}

// NewCatalog builds a catalog, rejecting empty or duplicate names.
func NewCatalog(fields ...Field) (*Catalog, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field %d has no name", i)
		}
		if _, dup := c.index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		c.fields[i] = f
		c.index[f.Name] = i
	}
	return c, nil
}

// Default returns the intake fields: name, location, wage, phone number, age.
func Default() *Catalog {
	c, err := NewCatalog(
		Field{
			Name:      Name,
			Label:     "name",
			Prompt:    "Please state your full name.",
			Normalize: NameOrText,
		},
		Field{
			Name:      Location,
			Label:     "location",
			Prompt:    "What area or city are you located in?",
			Normalize: PlaceOrText,
		},
		Field{
			Name:      Wage,
			Label:     "wage",
			Prompt:    "How much do you expect to be paid per day?",
			Normalize: extract.FirstNumber,
			Validate:  AcceptWage,
		},
		Field{
			Name:      PhoneNumber,
			Label:     "phone number",
			Prompt:    "Please say your phone number, one digit at a time.",
			Normalize: extract.SpokenNumber,
			Validate:  AcceptPhone,
		},
		Field{
			Name:      Age,
			Label:     "age",
			Prompt:    "How old are you?",
			Normalize: extract.FirstNumber,
			Validate:  AcceptAge,
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of fields.
func (c *Catalog) Len() int { return len(c.fields) }

// First returns the first field.
func (c *Catalog) First() Field { return c.fields[0] }

// Fields returns a copy of the ordered field list.
func (c *Catalog) Fields() []Field {
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Names returns the ordered field names.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.fields))
	for i, f := range c.fields {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the field with the given name.
func (c *Catalog) Lookup(name string) (Field, bool) {
	i, ok := c.index[name]
	if !ok {
		return Field{}, false
	}
	return c.fields[i], true
}

// Next returns the field after name; ok is false when name is the last field
// or unknown.
func (c *Catalog) Next(name string) (Field, bool) {
	i, ok := c.index[name]
	if !ok || i+1 >= len(c.fields) {
		return Field{}, false
	}
	return c.fields[i+1], true
}
