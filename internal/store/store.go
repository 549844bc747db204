// Package store persists completed intake records.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Record statuses. New records are available.
const (
	StatusAvailable   = "available"
	StatusContacted   = "contacted"
	StatusHired       = "hired"
	StatusUnavailable = "unavailable"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidStatus = errors.New("invalid record status")
)

// DefaultListLimit caps List when Filter.Limit is unset.
const DefaultListLimit = 100

// Record is one completed intake.
type Record struct {
	ID            string            `json:"id"`
	SessionID     string            `json:"session_id"`
	Fields        map[string]string `json:"fields"`
	ContactStatus string            `json:"contact_status"`
	Status        string            `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Filter narrows List. Field matches are case-insensitive equality.
type Filter struct {
	Status string
	Fields map[string]string
	Limit  int
}

// Store is the persistence adapter.
type Store interface {
	// Save stores a completed record, assigning ID, Status and CreatedAt when unset.
	Save(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	// List returns matching records, newest first.
	List(ctx context.Context, f Filter) ([]Record, error)
	UpdateStatus(ctx context.Context, id, status string) (Record, error)
	Close() error
}

// ValidStatus reports whether status is one of the known record statuses.
func ValidStatus(status string) bool {
	switch status {
	case StatusAvailable, StatusContacted, StatusHired, StatusUnavailable:
		return true
	}
	return false
}

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > DefaultListLimit {
		return DefaultListLimit
	}
	return f.Limit
}

func (f Filter) matches(rec Record) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	for k, v := range f.Fields {
		if !strings.EqualFold(rec.Fields[k], v) {
			return false
		}
	}
	return true
}
