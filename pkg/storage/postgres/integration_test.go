//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/workbench/pkg/storage"
)

// setupPostgresContainer starts PostgreSQL, applies migrations and returns
// a store bound to it. The test is skipped when no container runtime exists.
func setupPostgresContainer(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	defer provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("workbench_test"),
		tcpostgres.WithUsername("workbench"),
		tcpostgres.WithPassword("workbench_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.PostgresURL = connStr
	db, err := OpenPostgres(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(ctx, db, DialectPostgres))
	return NewStore(db, DialectPostgres)
}

func TestPostgresStore_Integration(t *testing.T) {
	store := setupPostgresContainer(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, store.UpsertProfile(ctx, &storage.Profile{ID: "u1", Email: "ada@example.com", Role: "editor"}))
	require.NoError(t, store.CreateWorkspace(ctx, &storage.Workspace{ID: "w1", Name: "Alpha", Type: storage.WorkspaceTypeReview, CreatedBy: "u1", CreatedAt: now}))
	require.NoError(t, store.GrantPermission(ctx, &storage.WorkspacePermission{WorkspaceID: "w1", UserID: "u1", Level: "admin"}))
	require.NoError(t, store.CreateFile(ctx, &storage.File{
		ID: "f1", WorkspaceID: "w1", FileName: "spec.pdf", FilePath: "w1/1-00ff00ff.pdf",
		FileSize: 2048, MimeType: "application/pdf", UploadedBy: "u1", CreatedAt: now,
	}))

	files, err := store.ListFiles(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].CreatedAt.Equal(now))

	perms, err := store.ListPermissionsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "admin", perms[0].Level)

	require.NoError(t, store.DeleteFile(ctx, "f1"))
	require.NoError(t, store.HealthCheck(ctx))
}
