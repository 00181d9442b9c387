// Package memory provides an in-process snapshot store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sync"

	"simcore/pkg/domain"
)

// Store keeps the latest snapshot in memory.
type Store struct {
	mu   sync.Mutex
	snap domain.Snapshot
	ok   bool
}

// NewStore constructs an empty in-memory snapshot store.
func NewStore() *Store {
	return &Store{}
}

// Save implements domain.PersistentStore.
func (s *Store) Save(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	s.snap = snap
	s.ok = true
	s.mu.Unlock()
	return nil
}

// Load implements domain.PersistentStore.
func (s *Store) Load(_ context.Context) (domain.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.ok, nil
}

// Close implements domain.PersistentStore.
func (s *Store) Close() error { return nil }
