// Package postgres provides a Postgres-backed snapshot store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"simcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/simcore?sslmode=disable"
)

// Store persists snapshots to a single JSONB-keyed table.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN) and ensures the snapshot table exists.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS engine_state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db}, nil
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
			`INSERT INTO engine_state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
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

	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM engine_state`)
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
