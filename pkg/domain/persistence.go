package domain

import "context"

// PersistentStore is a minimal abstraction over durable snapshot backends.
// Implementations persist a whole Snapshot atomically and return the latest
// one on Load; the boolean result is false when no snapshot has been saved.
type PersistentStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, bool, error)
	Close() error
}
