package session

import (
	"sync"
	"time"
)

// Store maps session ids to sessions. Locking is map-level only: turns for
// the same id must be serialized by the caller.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	firstField string
	now        func() time.Time
}

// NewStore creates an empty store whose sessions start at firstField.
func NewStore(firstField string) *Store {
	return &Store{
		sessions:   make(map[string]*Session),
		firstField: firstField,
		now:        time.Now,
	}
}

// GetOrCreate returns the session for id, creating a fresh one at the first
// field when none exists. created reports whether a session was created.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess, false
	}
	sess = New(id, s.firstField, s.now().UTC())
	s.sessions[id] = sess
	return sess, true
}

// Create stores a fresh session for id, replacing any existing one.
func (s *Store) Create(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := New(id, s.firstField, s.now().UTC())
	s.sessions[id] = sess
	return sess
}

// Get returns the session for id.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	return sess, ok
}

// Put stores sess under its id.
func (s *Store) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.UpdatedAt = s.now().UTC()
	s.sessions[sess.ID] = sess
}

// Remove deletes the session for id. It is a no-op when absent and reports
// whether a session was removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
