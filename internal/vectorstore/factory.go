package vectorstore

import (
	"context"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/hyperjump/vecsync/internal/models"
)

// Backend names a Store implementation.
type Backend string

const (
	// BackendMemory keeps the collection in memory, persisted to a single collection file.
	BackendMemory Backend = "memory"
	// BackendSQLite stores one table per collection in a SQLite file.
	BackendSQLite Backend = "sqlite"
	// BackendBolt stores one bucket per collection in a bbolt file.
	BackendBolt Backend = "bolt"
	// BackendBadger stores the collection under a key prefix in a badger directory.
	BackendBadger Backend = "badger"
	// BackendPgVector stores the collection in a PostgreSQL table with the pgvector extension.
	BackendPgVector Backend = "pgvector"
)

// Backends lists the supported backend names.
var Backends = []Backend{BackendMemory, BackendSQLite, BackendBolt, BackendBadger, BackendPgVector}

// Config selects and locates a store.
type Config struct {
	Backend    Backend
	Path       string // file for memory/sqlite/bolt, directory for badger
	Collection string
	DSN        string
	Dimensions int
	Logger     *zap.Logger
}

// StoragePaths returns the on-disk locations owned by the store, for disk usage reporting.
func (c Config) StoragePaths() []string {
	switch c.Backend {
	case BackendPgVector:
		return nil
	case BackendMemory:
		return []string{c.collectionFile()}
	case BackendSQLite:
		return []string{c.Path, c.Path + "-wal", c.Path + "-shm"}
	default:
		return []string{c.Path}
	}
}

// collectionFile is the memory backend file: Path itself when it names a file, else <Path>/<collection>.vsc.
func (c Config) collectionFile() string {
	if c.Path == "" {
		return ""
	}
	if filepath.Ext(c.Path) != "" {
		return c.Path
	}
	return filepath.Join(c.Path, c.Collection+".vsc")
}

// Open creates the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Collection == "" {
		cfg.Collection = "default"
	}
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(cfg.collectionFile(), cfg.Dimensions)
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, models.NewConfigurationError("storage.path", "required for sqlite backend")
		}
		return NewSQLiteStore(cfg.Path, cfg.Collection, cfg.Dimensions)
	case BackendBolt:
		if cfg.Path == "" {
			return nil, models.NewConfigurationError("storage.path", "required for bolt backend")
		}
		return NewBoltStore(cfg.Path, cfg.Collection, cfg.Dimensions)
	case BackendBadger:
		return NewBadgerStore(cfg.Path, cfg.Collection, cfg.Dimensions, cfg.Logger)
	case BackendPgVector:
		return NewPgVectorStore(ctx, cfg.DSN, cfg.Collection, cfg.Dimensions)
	default:
		return nil, models.NewConfigurationError("storage.backend", "unknown backend %q (supported: %v)", cfg.Backend, Backends)
	}
}

var collectionName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,62}$`)

// validateCollection restricts collection names to identifiers so they can be used as table and bucket names.
func validateCollection(name string) error {
	if !collectionName.MatchString(name) {
		return models.NewConfigurationError("storage.collection", "invalid collection name %q", name)
	}
	return nil
}
