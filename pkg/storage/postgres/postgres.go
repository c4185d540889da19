package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.opentelemetry.io/otel"

	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/storage"
)

var tracer = otel.Tracer("github.com/platinummonkey/workbench/pkg/storage/postgres")

// Store implements storage.MetadataStore over database/sql. The same
// queries run against PostgreSQL (lib/pq) and SQLite (go-sqlite3); ids and
// timestamps are assigned by the caller.
type Store struct {
	db      *sql.DB
	dialect Dialect
	metrics *observability.Metrics
}

// NewStore wraps an open database handle
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// WithMetrics records storage operation metrics on m
func (s *Store) WithMetrics(m *observability.Metrics) *Store {
	s.metrics = m
	return s
}

// DB returns the underlying handle for health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.metrics.ObserveStorageOp(op, string(s.dialect), start, err)
}

func (s *Store) ListWorkspaces(ctx context.Context) (_ []*storage.Workspace, err error) {
	defer func(start time.Time) { s.observe("list_workspaces", start, err) }(time.Now())

	query := `
		SELECT id, name, COALESCE(description, ''), workspace_type, created_by, created_at
		FROM workspaces
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []*storage.Workspace
	for rows.Next() {
		var ws storage.Workspace
		var wsType string
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Description, &wsType, &ws.CreatedBy, &ws.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		ws.Type = storage.WorkspaceType(wsType)
		workspaces = append(workspaces, &ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workspaces: %w", err)
	}

	return workspaces, nil
}

func (s *Store) GetWorkspace(ctx context.Context, id string) (_ *storage.Workspace, err error) {
	defer func(start time.Time) { s.observe("get_workspace", start, err) }(time.Now())

	query := `
		SELECT id, name, COALESCE(description, ''), workspace_type, created_by, created_at
		FROM workspaces
		WHERE id = $1
	`

	var ws storage.Workspace
	var wsType string
	err = s.db.QueryRowContext(ctx, query, id).Scan(&ws.ID, &ws.Name, &ws.Description, &wsType, &ws.CreatedBy, &ws.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workspace %s: %w", id, storage.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	ws.Type = storage.WorkspaceType(wsType)

	return &ws, nil
}

func (s *Store) CreateWorkspace(ctx context.Context, ws *storage.Workspace) (err error) {
	defer func(start time.Time) { s.observe("create_workspace", start, err) }(time.Now())

	query := `
		INSERT INTO workspaces (id, name, description, workspace_type, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.db.ExecContext(ctx, query,
		ws.ID,
		ws.Name,
		ws.Description,
		string(ws.Type),
		ws.CreatedBy,
		ws.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	return nil
}

func (s *Store) ListPermissionsForUser(ctx context.Context, userID string) (_ []*storage.WorkspacePermission, err error) {
	defer func(start time.Time) { s.observe("list_permissions", start, err) }(time.Now())

	query := `
		SELECT workspace_id, user_id, permission_level
		FROM workspace_permissions
		WHERE user_id = $1
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []*storage.WorkspacePermission
	for rows.Next() {
		var p storage.WorkspacePermission
		if err := rows.Scan(&p.WorkspaceID, &p.UserID, &p.Level); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}

	return perms, nil
}

// GrantPermission inserts or replaces a per-workspace grant
func (s *Store) GrantPermission(ctx context.Context, p *storage.WorkspacePermission) (err error) {
	defer func(start time.Time) { s.observe("grant_permission", start, err) }(time.Now())

	query := `
		INSERT INTO workspace_permissions (workspace_id, user_id, permission_level)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET permission_level = excluded.permission_level
	`

	if _, err = s.db.ExecContext(ctx, query, p.WorkspaceID, p.UserID, p.Level); err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	return nil
}

func (s *Store) ListFiles(ctx context.Context, workspaceID string) (_ []*storage.File, err error) {
	defer func(start time.Time) { s.observe("list_files", start, err) }(time.Now())

	query := `
		SELECT id, workspace_id, file_name, file_path, file_size, mime_type, uploaded_by, created_at
		FROM files
		WHERE workspace_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*storage.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return files, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (*storage.File, error) {
	var f storage.File
	err := row.Scan(&f.ID, &f.WorkspaceID, &f.FileName, &f.FilePath, &f.FileSize, &f.MimeType, &f.UploadedBy, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}
	return &f, nil
}

func (s *Store) GetFile(ctx context.Context, id string) (_ *storage.File, err error) {
	defer func(start time.Time) { s.observe("get_file", start, err) }(time.Now())

	query := `
		SELECT id, workspace_id, file_name, file_path, file_size, mime_type, uploaded_by, created_at
		FROM files
		WHERE id = $1
	`

	f, err := scanFile(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", id, storage.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return f, nil
}

func (s *Store) CreateFile(ctx context.Context, f *storage.File) (err error) {
	defer func(start time.Time) { s.observe("create_file", start, err) }(time.Now())

	query := `
		INSERT INTO files (id, workspace_id, file_name, file_path, file_size, mime_type, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.db.ExecContext(ctx, query,
		f.ID,
		f.WorkspaceID,
		f.FileName,
		f.FilePath,
		f.FileSize,
		f.MimeType,
		f.UploadedBy,
		f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	return nil
}

func (s *Store) DeleteFile(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe("delete_file", start, err) }(time.Now())

	result, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("file %s: %w", id, storage.ErrNotFound)
	}

	return nil
}

func (s *Store) FileExistsByPath(ctx context.Context, path string) (_ bool, err error) {
	defer func(start time.Time) { s.observe("file_exists", start, err) }(time.Now())

	var count int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE file_path = $1", path).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check file path: %w", err)
	}
	return count > 0, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (_ *storage.Profile, err error) {
	defer func(start time.Time) { s.observe("get_profile", start, err) }(time.Now())

	query := `
		SELECT id, email, COALESCE(full_name, ''), role, created_at
		FROM profiles
		WHERE id = $1
	`

	var p storage.Profile
	err = s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context) (_ []*storage.Profile, err error) {
	defer func(start time.Time) { s.observe("list_profiles", start, err) }(time.Now())

	query := `
		SELECT id, email, COALESCE(full_name, ''), role, created_at
		FROM profiles
		ORDER BY email
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*storage.Profile
	for rows.Next() {
		var p storage.Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p *storage.Profile) (err error) {
	defer func(start time.Time) { s.observe("upsert_profile", start, err) }(time.Now())

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO profiles (id, email, full_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, full_name = excluded.full_name
	`

	if _, err = s.db.ExecContext(ctx, query, p.ID, p.Email, p.FullName, p.Role, createdAt); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// HealthCheck verifies database connectivity
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", s.dialect, err)
	}
	return nil
}

// Close closes the database handle
func (s *Store) Close() error {
	return s.db.Close()
}
