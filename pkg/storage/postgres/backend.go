package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/storage"
)

// Backend bundles the stores selected by storage.Config.Type
type Backend struct {
	Metadata storage.MetadataStore
	Blobs    storage.BlobStore

	// DB and Redis are nil when the backend does not use them
	DB    *sql.DB
	Redis *RedisClient
}

// Open builds the metadata and blob stores for cfg
func Open(ctx context.Context, cfg storage.Config, metrics *observability.Metrics, logger *observability.Logger) (*Backend, error) {
	backend := &Backend{}

	switch cfg.Type {
	case "memory":
		backend.Metadata = storage.NewMemoryStore()
		backend.Blobs = storage.NewMemoryBlobStore()

	case "local":
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := RunMigrations(ctx, db, DialectSQLite); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
		}
		blobs, err := storage.NewFileSystemBlobStore(cfg.FilesystemRoot)
		if err != nil {
			db.Close()
			return nil, err
		}
		backend.DB = db
		backend.Metadata = NewStore(db, DialectSQLite).WithMetrics(metrics)
		backend.Blobs = blobs

	case "postgres":
		db, err := OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := RunMigrations(ctx, db, DialectPostgres); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to migrate postgres: %w", err)
			}
		}
		blobs, err := NewS3BlobStore(ctx, cfg)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create s3 blob store: %w", err)
		}
		backend.DB = db
		backend.Metadata = NewStore(db, DialectPostgres).WithMetrics(metrics)
		backend.Blobs = blobs.WithMetrics(metrics)

	default:
		return nil, fmt.Errorf("invalid storage type: %s", cfg.Type)
	}

	if cfg.CacheEnabled && cfg.RedisURL != "" {
		redisClient, err := NewRedisClient(cfg)
		if err != nil {
			backend.Metadata.Close()
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		backend.Redis = redisClient
		backend.Metadata = NewCachedStore(backend.Metadata, redisClient, metrics, logger)
	}

	return backend, nil
}

// Close releases database and cache connections
func (b *Backend) Close() error {
	return b.Metadata.Close()
}
