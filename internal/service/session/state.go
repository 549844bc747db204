// Package session holds per-caller dialogue state and the process-wide
// session store.
package session

import "fmt"

// State is the position of a session in the confirmation loop.
type State int

const (
	// StateCollecting - waiting for an answer to the current field.
	StateCollecting State = iota
	// StateConfirming - a provisional value was captured, waiting for yes/no.
	StateConfirming
	// StateFinished - every field confirmed. Terminal; the session is removed.
	StateFinished
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCollecting:
		return "COLLECTING"
	case StateConfirming:
		return "CONFIRMING"
	case StateFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for FINISHED.
func (s State) IsTerminal() bool {
	return s == StateFinished
}
