package dialog

import (
	"context"
	"sync"
)

// Serial runs turns for the same session one at a time. Distinct sessions
// proceed in parallel.
type Serial struct {
	p     *Processor
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewSerial wraps p.
func NewSerial(p *Processor) *Serial {
	return &Serial{p: p, locks: make(map[string]*sessionLock)}
}

// Processor returns the wrapped processor.
func (s *Serial) Processor() *Processor {
	return s.p
}

func (s *Serial) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// Start begins or replaces the session under its lock.
func (s *Serial) Start(ctx context.Context, id string) (*TurnResult, error) {
	if id == "" {
		return s.p.Start(ctx, id)
	}
	defer s.lock(id)()
	return s.p.Start(ctx, id)
}

// ProcessTurn applies one answer while holding the session lock.
func (s *Serial) ProcessTurn(ctx context.Context, id, text string) (*TurnResult, error) {
	defer s.lock(id)()
	return s.p.ProcessTurn(ctx, id, text)
}

// Reset removes the session under its lock.
func (s *Serial) Reset(ctx context.Context, id string) {
	defer s.lock(id)()
	s.p.Reset(ctx, id)
}
