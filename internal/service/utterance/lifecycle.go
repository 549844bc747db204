// Package utterance tracks the lifecycle of one uploaded caller answer.
package utterance

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of an utterance.
type State int

const (
	// StateListening - audio is being streamed, partials may arrive.
	StateListening State = iota
	// StateTranscribed - the final transcript was recorded.
	StateTranscribed
	// StateClosed - the utterance ended normally.
	StateClosed
	// StateDropped - abandoned on error or limit; no transcript is used.
	StateDropped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateListening:
		return "LISTENING"
	case StateTranscribed:
		return "TRANSCRIBED"
	case StateClosed:
		return "CLOSED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for CLOSED and DROPPED.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateDropped
}

var (
	ErrClosed             = errors.New("utterance is closed")
	ErrAlreadyTranscribed = errors.New("final transcript already recorded")
	ErrPartialAfterFinal  = errors.New("partial transcript after final")
)

// Lifecycle is safe for concurrent use; STT callbacks arrive on the
// recognizer's goroutine while the handler reads from its own.
//
//	LISTENING → TRANSCRIBED → CLOSED
//	    │
//	    └── Drop() ──→ DROPPED
type Lifecycle struct {
	mu         sync.RWMutex
	id         string
	state      State
	transcript string
	final      bool
	partials   int
	reason     string
}

// NewLifecycle creates a lifecycle in LISTENING state.
func NewLifecycle(id string) *Lifecycle {
	return &Lifecycle{id: id, state: StateListening}
}

func (l *Lifecycle) ID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.id
}

func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Transcript returns the final transcript and whether one was recorded.
// A dropped utterance never reports a transcript.
func (l *Lifecycle) Transcript() (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state == StateDropped {
		return "", false
	}
	return l.transcript, l.final
}

// Partials returns how many partial transcripts were accepted.
func (l *Lifecycle) Partials() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.partials
}

// DropReason returns why the utterance was dropped, or "".
func (l *Lifecycle) DropReason() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reason
}

// Partial records an interim transcript.
func (l *Lifecycle) Partial() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateListening:
		l.partials++
		return nil
	case StateTranscribed:
		return ErrPartialAfterFinal
	default:
		return ErrClosed
	}
}

// Final records the final transcript. Only the first one is kept.
func (l *Lifecycle) Final(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateListening:
		l.state = StateTranscribed
		l.transcript = text
		l.final = true
		return nil
	case StateTranscribed:
		return ErrAlreadyTranscribed
	default:
		return ErrClosed
	}
}

// Close ends the utterance. Idempotent; a dropped utterance stays dropped.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateDropped {
		l.state = StateClosed
	}
}

// Drop abandons the utterance. Returns false if it was already terminal.
func (l *Lifecycle) Drop(reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDropped
	l.reason = reason
	return true
}
