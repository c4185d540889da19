package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect selects the SQL flavour for schema migrations
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         map[Dialect]string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create profiles table",
			SQL: map[Dialect]string{
				DialectPostgres: `
					CREATE TABLE IF NOT EXISTS profiles (
						id TEXT PRIMARY KEY,
						email VARCHAR(320) NOT NULL,
						full_name VARCHAR(255),
						role VARCHAR(32) NOT NULL DEFAULT 'viewer' CHECK (role IN ('admin', 'editor', 'viewer')),
						created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
					);
				`,
				DialectSQLite: `
					CREATE TABLE IF NOT EXISTS profiles (
						id TEXT PRIMARY KEY,
						email TEXT NOT NULL,
						full_name TEXT,
						role TEXT NOT NULL DEFAULT 'viewer' CHECK (role IN ('admin', 'editor', 'viewer')),
						created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
					);
				`,
			},
		},
		{
			Version:     2,
			Description: "Create workspaces table",
			SQL: map[Dialect]string{
				DialectPostgres: `
					CREATE TABLE IF NOT EXISTS workspaces (
						id TEXT PRIMARY KEY,
						name VARCHAR(255) NOT NULL,
						description TEXT NOT NULL DEFAULT '',
						workspace_type VARCHAR(32) NOT NULL,
						created_by TEXT NOT NULL,
						created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
					);

					CREATE INDEX IF NOT EXISTS idx_workspaces_created_at ON workspaces(created_at DESC);
				`,
				DialectSQLite: `
					CREATE TABLE IF NOT EXISTS workspaces (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						description TEXT NOT NULL DEFAULT '',
						workspace_type TEXT NOT NULL,
						created_by TEXT NOT NULL,
						created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
					);

					CREATE INDEX IF NOT EXISTS idx_workspaces_created_at ON workspaces(created_at DESC);
				`,
			},
		},
		{
			Version:     3,
			Description: "Create workspace_permissions table",
			SQL: map[Dialect]string{
				DialectPostgres: `
					CREATE TABLE IF NOT EXISTS workspace_permissions (
						workspace_id TEXT NOT NULL REFERENCES workspaces(id),
						user_id TEXT NOT NULL,
						permission_level VARCHAR(32) NOT NULL,
						PRIMARY KEY (workspace_id, user_id)
					);

					CREATE INDEX IF NOT EXISTS idx_workspace_permissions_user_id ON workspace_permissions(user_id);
				`,
				DialectSQLite: `
					CREATE TABLE IF NOT EXISTS workspace_permissions (
						workspace_id TEXT NOT NULL REFERENCES workspaces(id),
						user_id TEXT NOT NULL,
						permission_level TEXT NOT NULL,
						PRIMARY KEY (workspace_id, user_id)
					);

					CREATE INDEX IF NOT EXISTS idx_workspace_permissions_user_id ON workspace_permissions(user_id);
				`,
			},
		},
		{
			Version:     4,
			Description: "Create files table",
			SQL: map[Dialect]string{
				DialectPostgres: `
					CREATE TABLE IF NOT EXISTS files (
						id TEXT PRIMARY KEY,
						workspace_id TEXT NOT NULL REFERENCES workspaces(id),
						file_name VARCHAR(1024) NOT NULL,
						file_path VARCHAR(1024) NOT NULL UNIQUE,
						file_size BIGINT NOT NULL,
						mime_type VARCHAR(255) NOT NULL,
						uploaded_by TEXT NOT NULL,
						created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
					);

					CREATE INDEX IF NOT EXISTS idx_files_workspace_created ON files(workspace_id, created_at DESC);
				`,
				DialectSQLite: `
					CREATE TABLE IF NOT EXISTS files (
						id TEXT PRIMARY KEY,
						workspace_id TEXT NOT NULL REFERENCES workspaces(id),
						file_name TEXT NOT NULL,
						file_path TEXT NOT NULL UNIQUE,
						file_size INTEGER NOT NULL,
						mime_type TEXT NOT NULL,
						uploaded_by TEXT NOT NULL,
						created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
					);

					CREATE INDEX IF NOT EXISTS idx_files_workspace_created ON files(workspace_id, created_at DESC);
				`,
			},
		},
	}
}

// RunMigrations executes all pending migrations for the dialect
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	// Create migration tracking table
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get applied migrations
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		stmt, ok := migration.SQL[dialect]
		if !ok {
			return fmt.Errorf("migration %d has no %s variant", migration.Version, dialect)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
