package schema

import (
	"errors"
	"testing"

	"voice-intake-service/internal/models"
)

func TestValidate(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		event   any
		wantErr error
	}{
		{
			name:  "valid turn",
			event: models.TurnEvent{EventType: models.EventTypeTurn, SessionID: "s-1", State: "CONFIRMING", Timestamp: 1},
		},
		{
			name:  "valid turn pointer",
			event: &models.TurnEvent{EventType: models.EventTypeTurn, SessionID: "s-1", State: "FINISHED", Timestamp: 1},
		},
		{
			name:    "turn without session",
			event:   models.TurnEvent{EventType: models.EventTypeTurn, State: "COLLECTING", Timestamp: 1},
			wantErr: ErrMissingField,
		},
		{
			name:    "turn with wrong type",
			event:   models.TurnEvent{EventType: "other", SessionID: "s-1", State: "COLLECTING", Timestamp: 1},
			wantErr: ErrUnknownEventType,
		},
		{
			name: "valid record",
			event: models.RecordCompleted{
				EventType: models.EventTypeRecordCompleted,
				SessionID: "s-1",
				Timestamp: 1,
				Fields:    map[string]string{"name": "John"},
			},
		},
		{
			name:    "record without fields",
			event:   &models.RecordCompleted{EventType: models.EventTypeRecordCompleted, SessionID: "s-1", Timestamp: 1},
			wantErr: ErrMissingField,
		},
		{
			name:    "unsupported value",
			event:   map[string]string{"text": "hello"},
			wantErr: ErrUnknownEventType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event)
			if tt.wantErr == nil && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
