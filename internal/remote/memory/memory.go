// Package memory is an in-process remote backup store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/stillsuit/internal/backup"
)

// Store keeps backups in a map keyed by identity.
type Store struct {
	rows map[string]backup.Record
	mu   sync.RWMutex
}

// New creates an empty store.
func New() *Store {
	return &Store{rows: make(map[string]backup.Record)}
}

// Upsert replaces the row for identity.
func (s *Store) Upsert(_ context.Context, identity, payload string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[identity] = backup.Record{Payload: payload, UpdatedAt: updatedAt}
	return nil
}

// Fetch returns the row for identity or backup.ErrNotFound.
func (s *Store) Fetch(_ context.Context, identity string) (*backup.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[identity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", backup.ErrNotFound, identity)
	}
	return &r, nil
}

// Delete removes the row for identity.
func (s *Store) Delete(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, identity)
	return nil
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
