package session

import "time"

// Session is the in-progress state of one caller's intake.
//
// Invariants:
//   - CurrentField is the first field without a confirmed value, or "" once finished.
//   - AwaitingConfirmation implies Fields[CurrentField] holds a provisional value.
type Session struct {
	ID                   string
	Fields               map[string]string
	CurrentField         string
	AwaitingConfirmation bool
	// Transcript keeps every caller utterance in order.
	Transcript []string
	Turns      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// New creates a session positioned at firstField with no values.
func New(id, firstField string, now time.Time) *Session {
	return &Session{
		ID:           id,
		Fields:       make(map[string]string),
		CurrentField: firstField,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// State derives the confirmation-loop state.
func (s *Session) State() State {
	switch {
	case s.CurrentField == "":
		return StateFinished
	case s.AwaitingConfirmation:
		return StateConfirming
	default:
		return StateCollecting
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Fields = make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		c.Fields[k] = v
	}
	c.Transcript = append([]string(nil), s.Transcript...)
	return &c
}

// Snapshot reports every named field; unset fields are nil.
func (s *Session) Snapshot(names []string) map[string]*string {
	out := make(map[string]*string, len(names))
	for _, n := range names {
		if v, ok := s.Fields[n]; ok {
			v := v
			out[n] = &v
		} else {
			out[n] = nil
		}
	}
	return out
}
