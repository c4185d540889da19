package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"time"
)

// ErrNotFound is returned when a row or blob does not exist
var ErrNotFound = errors.New("not found")

// WorkspaceStore persists workspaces. There is no update or delete.
type WorkspaceStore interface {
	// ListWorkspaces returns all workspaces, newest first
	ListWorkspaces(ctx context.Context) ([]*Workspace, error)
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	CreateWorkspace(ctx context.Context, ws *Workspace) error
}

// PermissionStore reads per-workspace grants
type PermissionStore interface {
	ListPermissionsForUser(ctx context.Context, userID string) ([]*WorkspacePermission, error)
}

// FileStore persists file metadata rows
type FileStore interface {
	// ListFiles returns the files of one workspace, newest first
	ListFiles(ctx context.Context, workspaceID string) ([]*File, error)
	GetFile(ctx context.Context, id string) (*File, error)
	CreateFile(ctx context.Context, f *File) error
	DeleteFile(ctx context.Context, id string) error
	// FileExistsByPath reports whether any row references the blob path
	FileExistsByPath(ctx context.Context, path string) (bool, error)
}

// ProfileStore reads and provisions account profiles
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]*Profile, error)
	// UpsertProfile inserts the profile or refreshes its email and name.
	// An existing role is never changed.
	UpsertProfile(ctx context.Context, p *Profile) error
}

// MetadataStore is the relational half of the storage layer
type MetadataStore interface {
	WorkspaceStore
	PermissionStore
	FileStore
	ProfileStore
	HealthCheck(ctx context.Context) error
	Close() error
}

// BlobStore holds file contents keyed by storage path
type BlobStore interface {
	// PutBlob writes the content and returns the number of bytes stored
	PutBlob(ctx context.Context, path string, content io.Reader, contentType string) (int64, error)
	// GetBlob opens the content; ErrNotFound when absent
	GetBlob(ctx context.Context, path string) (io.ReadCloser, error)
	// DeleteBlob removes the content. Deleting a missing blob succeeds.
	DeleteBlob(ctx context.Context, path string) error
	ListBlobs(ctx context.Context, prefix string) ([]BlobInfo, error)
	HealthCheck(ctx context.Context) error
}

// SizedBlob is blob content together with the length the store reported
type SizedBlob struct {
	io.ReadCloser
	Length int64
}

func (b *SizedBlob) Size() int64 { return b.Length }

// BlobSize returns the length of content opened by GetBlob. ok is false
// when the store did not report one.
func BlobSize(content io.Reader) (size int64, ok bool) {
	switch c := content.(type) {
	case interface{ Size() int64 }:
		return c.Size(), true
	case interface{ Stat() (fs.FileInfo, error) }:
		info, err := c.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return 0, false
		}
		return info.Size(), true
	}
	return 0, false
}

// Config for storage backends
type Config struct {
	Type string `yaml:"type"` // "memory", "local", "postgres"

	// Local backend: SQLite database plus blob directory
	FilesystemRoot string `yaml:"filesystem_root"`
	SQLitePath     string `yaml:"sqlite_path"`

	// PostgreSQL config
	PostgresURL      string        `yaml:"postgres_url"`
	PostgresMaxConns int           `yaml:"postgres_max_conns"`
	PostgresMinConns int           `yaml:"postgres_min_conns"`
	PostgresTimeout  time.Duration `yaml:"postgres_timeout"`
	AutoMigrate      bool          `yaml:"auto_migrate"`

	// S3 config
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// Cache config
	CacheEnabled bool                     `yaml:"cache_enabled"`
	CacheTTL     map[string]time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "memory",
		FilesystemRoot:   "/tmp/workbench/blobs",
		SQLitePath:       "/tmp/workbench/workbench.db",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		S3Region:         "us-east-1",
		S3Bucket:         "workspace-files",
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		CacheTTL: map[string]time.Duration{
			"workspace_list": 1 * time.Minute,
			"file_list":      30 * time.Second,
			"permissions":    1 * time.Minute,
		},
	}
}
