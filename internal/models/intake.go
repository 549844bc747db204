// Package models defines the data structures for intake events.
package models

const (
	EventTypeTurn            = "intake.turn"
	EventTypeRecordCompleted = "intake.record.completed"
)

// TurnEvent is emitted once per processed turn.
type TurnEvent struct {
	EventType     string             `json:"eventType"`
	SessionID     string             `json:"sessionId"`
	Principal     string             `json:"principal"`
	Timestamp     int64              `json:"timestamp"`
	Turn          int                `json:"turn"`
	Field         string             `json:"field,omitempty"`
	State         string             `json:"state"`
	Outcome       string             `json:"outcome"`
	UserText      string             `json:"userText"`
	AssistantText string             `json:"assistantText"`
	Finished      bool               `json:"finished"`
	Fields        map[string]*string `json:"fields"`
}

// RecordCompleted is emitted when every field of a session is confirmed.
type RecordCompleted struct {
	EventType     string            `json:"eventType"`
	SessionID     string            `json:"sessionId"`
	Principal     string            `json:"principal"`
	Timestamp     int64             `json:"timestamp"`
	RecordID      string            `json:"recordId,omitempty"`
	Fields        map[string]string `json:"fields"`
	ContactStatus string            `json:"contactStatus"`
	Persisted     bool              `json:"persisted"`
}
