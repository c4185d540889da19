// Package storage provides the persistence contracts for workspaces, file
// metadata, per-workspace permissions, account profiles, and file contents.
//
// # Overview
//
// Storage is split in two halves that fail independently:
//
//   - MetadataStore: relational rows (workspaces, workspace_permissions,
//     files, profiles)
//   - BlobStore: binary file contents keyed by storage path
//
// The file service pairs the two. A blob is always written before its
// metadata row and deleted before it, so a failure between the halves
// leaves either an unreferenced blob (swept later by the janitor) or a row
// whose blob can be deleted again on retry. Blob deletion is idempotent.
//
// # Backend Implementations
//
// MemoryStore and MemoryBlobStore keep everything in process. They back the
// "memory" storage type and most unit tests.
//
// FileSystemBlobStore writes blobs under a root directory. The "local"
// storage type pairs it with the SQLite flavour of the SQL store in
// pkg/storage/postgres.
//
// The "postgres" storage type uses PostgreSQL for metadata, an
// S3-compatible bucket for blobs, and an optional Redis cache for list
// reads:
//
//	cfg := storage.DefaultConfig()
//	cfg.Type = "postgres"
//	cfg.PostgresURL = "postgres://localhost/workbench?sslmode=disable"
//	cfg.S3Endpoint = "http://localhost:9000"
//	backend, err := postgres.Open(ctx, cfg)
//
// # Errors
//
// Missing rows and blobs wrap ErrNotFound so callers can use errors.Is.
package storage
