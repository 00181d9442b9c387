// Package blob is the facade over the concrete blob storage drivers.
package blob

import (
	"context"
	"fmt"
	"os"

	"simcore/internal/blob/core"
	"simcore/internal/infra/blob/fs"
	"simcore/internal/infra/blob/memory"
	infraS3 "simcore/internal/infra/blob/s3"
)

// Re-exported core types so higher layers depend on one package.
type (
	Driver           = core.Driver
	Store            = core.Store
	Info             = core.Info
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// ErrUnsupported mirrors core.ErrUnsupported.
var ErrUnsupported = core.ErrUnsupported

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// NewFilesystem returns a filesystem-backed store rooted at path.
func NewFilesystem(root string) (Store, error) { return fs.NewStore(root) }

// NewMemory returns an in-memory store for tests.
func NewMemory() Store { return memory.NewStore() }

// NewS3 constructs an S3-backed store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// Open selects a Store implementation using environment variables.
//
//	SIMCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	SIMCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("SIMCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("SIMCORE_BLOB_FS_ROOT")
		return fs.NewStore(root)
	case DriverS3:
		return infraS3.OpenFromEnv(ctx)
	case DriverMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
