// Package schema checks intake events before they leave the service.
package schema

import (
	"errors"
	"fmt"

	"voice-intake-service/internal/models"
)

var (
	ErrMissingField     = errors.New("schema: missing required field")
	ErrUnknownEventType = errors.New("schema: unknown event type")
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate accepts TurnEvent and RecordCompleted values or pointers.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.TurnEvent:
		return validateTurn(&e)
	case *models.TurnEvent:
		return validateTurn(e)
	case models.RecordCompleted:
		return validateRecord(&e)
	case *models.RecordCompleted:
		return validateRecord(e)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEventType, event)
	}
}

func validateTurn(e *models.TurnEvent) error {
	if e.EventType != models.EventTypeTurn {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.EventType)
	}
	if err := require("sessionId", e.SessionID); err != nil {
		return err
	}
	if err := require("state", e.State); err != nil {
		return err
	}
	if e.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp", ErrMissingField)
	}
	return nil
}

func validateRecord(e *models.RecordCompleted) error {
	if e.EventType != models.EventTypeRecordCompleted {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.EventType)
	}
	if err := require("sessionId", e.SessionID); err != nil {
		return err
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("%w: fields", ErrMissingField)
	}
	if e.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp", ErrMissingField)
	}
	return nil
}

func require(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	return nil
}
