// Package export moves simulation histories between engines through blob
// storage. An archive carries one compacted chain plus exactly the pool
// entries it references, so importing never copies unrelated data and equal
// values dedupe into the target pool.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"simcore/internal/blob"
	"simcore/internal/core"
	"simcore/pkg/domain"
)

// ArchiveVersion identifies the archive schema.
const ArchiveVersion = 1

// Archive is the serialized form of one exported simulation.
type Archive struct {
	Version    int                     `json:"version"`
	ExportedAt time.Time               `json:"exported_at"`
	Simulation domain.SimulationRecord `json:"simulation"`
	Pool       domain.PoolRecord       `json:"pool"`
}

// Exporter reads and writes simulation archives on a blob store.
type Exporter struct {
	store blob.Store
}

// NewExporter constructs an exporter over a blob store.
func NewExporter(store blob.Store) *Exporter {
	return &Exporter{store: store}
}

// Key returns the blob key used for a simulation title.
func Key(title string) string {
	return "exports/" + title + ".json"
}

// Export writes the simulation's archive to the blob store under
// Key(title). Keys are create-only; exporting the same title twice requires
// deleting the previous archive first.
func (e *Exporter) Export(ctx context.Context, svc *core.Service, title string) (blob.Info, error) {
	rec, poolRec, err := svc.ExportSimulationRecord(title)
	if err != nil {
		return blob.Info{}, err
	}
	archive := Archive{
		Version:    ArchiveVersion,
		ExportedAt: time.Now().UTC(),
		Simulation: rec,
		Pool:       poolRec,
	}
	payload, err := json.Marshal(archive)
	if err != nil {
		return blob.Info{}, fmt.Errorf("%w: encode archive: %v", domain.ErrSerialization, err)
	}
	info, err := e.store.Put(ctx, Key(rec.Title), bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"simulation": rec.Title},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store archive: %w", err)
	}
	return info, nil
}

// ArchiveURL returns a time-limited link to the archive previously exported
// for title, suitable for handing to another engine. The archive must exist.
// Stores without URL support (memory) return blob.ErrUnsupported; a zero
// expiry uses the store's default.
func (e *Exporter) ArchiveURL(ctx context.Context, title string, expiry time.Duration) (string, error) {
	key := Key(title)
	if _, err := e.store.Head(ctx, key); err != nil {
		return "", fmt.Errorf("%w: archive %s: %v", domain.ErrNotFound, key, err)
	}
	return e.store.PresignURL(ctx, key, blob.SignedURLOptions{Expiry: expiry})
}

// Import reads the archive at key and grafts its chain into the service
// under newTitle (the archived title when empty). Values already present in
// the target pool are shared, not duplicated.
func (e *Exporter) Import(ctx context.Context, svc *core.Service, key, newTitle string) error {
	_, body, err := e.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: read archive %s: %v", domain.ErrImportFailure, key, err)
	}
	defer func() { _ = body.Close() }()
	payload, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("%w: read archive %s: %v", domain.ErrImportFailure, key, err)
	}
	var archive Archive
	if err := json.Unmarshal(payload, &archive); err != nil {
		return fmt.Errorf("%w: decode archive %s: %v", domain.ErrImportFailure, key, err)
	}
	if archive.Version != ArchiveVersion {
		return fmt.Errorf("%w: archive %s has version %d, want %d",
			domain.ErrImportFailure, key, archive.Version, ArchiveVersion)
	}
	pool, err := domain.RestorePool(archive.Pool, domain.DecodeOptions{})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrImportFailure, err)
	}
	return svc.ImportSimulation(newTitle, archive.Simulation, pool)
}
