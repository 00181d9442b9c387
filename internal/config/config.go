// Package config loads engine settings from a TOML file with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the runtime settings of the engine.
type Config struct {
	// Storage selects the snapshot backend: memory, sqlite or postgres.
	Storage struct {
		Driver      string `toml:"driver"`
		SQLitePath  string `toml:"sqlite_path"`
		PostgresDSN string `toml:"postgres_dsn"`
	} `toml:"storage"`

	// Blob selects the archive backend: fs, s3 or memory.
	Blob struct {
		Driver string `toml:"driver"`
		FSRoot string `toml:"fs_root"`
		Bucket string `toml:"s3_bucket"`
		Region string `toml:"s3_region"`
	} `toml:"blob"`

	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	var cfg Config
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.SQLitePath = "simcore.db"
	cfg.Blob.Driver = "fs"
	cfg.Blob.FSRoot = "./blobdata"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads the TOML file at path (skipped when path is empty or the file
// does not exist) and then applies SIMCORE_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("load config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("stat config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"SIMCORE_STORAGE_DRIVER", &cfg.Storage.Driver},
		{"SIMCORE_SQLITE_PATH", &cfg.Storage.SQLitePath},
		{"SIMCORE_POSTGRES_DSN", &cfg.Storage.PostgresDSN},
		{"SIMCORE_BLOB_DRIVER", &cfg.Blob.Driver},
		{"SIMCORE_BLOB_FS_ROOT", &cfg.Blob.FSRoot},
		{"SIMCORE_BLOB_S3_BUCKET", &cfg.Blob.Bucket},
		{"SIMCORE_BLOB_S3_REGION", &cfg.Blob.Region},
		{"SIMCORE_LOG_LEVEL", &cfg.Log.Level},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.key)); v != "" {
			*o.dst = v
		}
	}
}
