// Package sqlite persists engine snapshots to an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"simcore/pkg/domain"
)

// Store writes each snapshot section to a single table as JSON blobs,
// replacing the previous snapshot on every save.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database file and prepares the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "simcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

type header struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Active  string    `json:"active,omitempty"`
}

// Save implements domain.PersistentStore.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sections := []struct {
		bucket string
		value  any
	}{
		{"header", header{Version: snap.Version, SavedAt: snap.SavedAt, Active: snap.Active}},
		{"pool", snap.Pool},
		{"simulations", snap.Simulations},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, section := range sections {
		data, err := json.Marshal(section.value)
		if err != nil {
			retErr = fmt.Errorf("encode %s: %w", section.bucket, err)
			return retErr
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
			section.bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", section.bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

// Load implements domain.PersistentStore.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snap domain.Snapshot
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("scan: %w", err)
		}
		found = true
		switch bucket {
		case "header":
			var h header
			if err := json.Unmarshal(payload, &h); err != nil {
				return domain.Snapshot{}, false, fmt.Errorf("decode header: %w", err)
			}
			snap.Version, snap.SavedAt, snap.Active = h.Version, h.SavedAt, h.Active
		case "pool":
			if err := json.Unmarshal(payload, &snap.Pool); err != nil {
				return domain.Snapshot{}, false, fmt.Errorf("decode pool: %w", err)
			}
		case "simulations":
			if err := json.Unmarshal(payload, &snap.Simulations); err != nil {
				return domain.Snapshot{}, false, fmt.Errorf("decode simulations: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, false, err
	}
	return snap, found, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
