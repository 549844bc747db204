// Package clips stores synthesized prompt audio so it can be fetched by id.
package clips

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("clip not found")

// Clip is one stored audio object.
type Clip struct {
	ID          string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Store persists clips. Put assigns the id when it is empty.
type Store interface {
	Put(ctx context.Context, c Clip) (string, error)
	Get(ctx context.Context, id string) (*Clip, error)
}

// DefaultMemoryCapacity bounds the in-memory store.
const DefaultMemoryCapacity = 256

// Memory keeps the most recent clips; the oldest is evicted first.
type Memory struct {
	mu       sync.Mutex
	capacity int
	clips    map[string]*Clip
	order    []string
}

// NewMemory creates a store holding at most capacity clips.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{
		capacity: capacity,
		clips:    make(map[string]*Clip),
	}
}

func (m *Memory) Put(_ context.Context, c Clip) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clips[c.ID]; !exists {
		m.order = append(m.order, c.ID)
	}
	m.clips[c.ID] = &c

	for len(m.order) > m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.clips, oldest)
	}
	return c.ID, nil
}

func (m *Memory) Get(_ context.Context, id string) (*Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clips[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Len returns the number of stored clips.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clips)
}
