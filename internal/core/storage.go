package core

import (
	"fmt"
	"os"

	"simcore/internal/infra/persistence/memory"
	"simcore/internal/infra/persistence/postgres"
	"simcore/internal/infra/persistence/sqlite"
	"simcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a snapshot backend using environment variables.
// Defaults to sqlite when unset.
//
//	SIMCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	SIMCORE_SQLITE_PATH: path to sqlite file (default ./simcore.db)
//	SIMCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore() (domain.PersistentStore, error) {
	driver := os.Getenv("SIMCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	return OpenStore(StorageDriver(driver), "")
}

// OpenStore opens the named backend. An empty dsn falls back to the driver's
// environment variable, then to its default.
func OpenStore(driver StorageDriver, dsn string) (domain.PersistentStore, error) {
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		if dsn == "" {
			dsn = os.Getenv("SIMCORE_SQLITE_PATH")
		}
		return sqlite.NewStore(dsn)
	case StoragePostgres:
		if dsn == "" {
			dsn = os.Getenv("SIMCORE_POSTGRES_DSN")
		}
		return postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
