package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/workbench/pkg/storage"
)

func setupSQLiteStore(t *testing.T) *Store {
	t.Helper()

	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(context.Background(), db, DialectSQLite))
	return NewStore(db, DialectSQLite)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, db, DialectSQLite))
	require.NoError(t, RunMigrations(ctx, db, DialectSQLite))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(GetMigrations()), count)
}

func TestSQLiteStore_WorkspaceRoundTrip(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateWorkspace(ctx, &storage.Workspace{
		ID: "w1", Name: "Alpha", Type: storage.WorkspaceTypeDev, CreatedBy: "u1", CreatedAt: base,
	}))
	require.NoError(t, store.CreateWorkspace(ctx, &storage.Workspace{
		ID: "w2", Name: "Beta", Description: "second", Type: storage.WorkspaceTypeDesign, CreatedBy: "u1", CreatedAt: base.Add(time.Minute),
	}))

	list, err := store.ListWorkspaces(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "w2", list[0].ID)
	assert.Equal(t, "w1", list[1].ID)

	ws, err := store.GetWorkspace(ctx, "w2")
	require.NoError(t, err)
	assert.Equal(t, "second", ws.Description)
	assert.True(t, ws.CreatedAt.Equal(base.Add(time.Minute)))

	_, err = store.GetWorkspace(ctx, "nope")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSQLiteStore_FileRoundTrip(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.CreateWorkspace(ctx, &storage.Workspace{ID: "w1", Name: "W", Type: storage.WorkspaceTypeQA, CreatedBy: "u1", CreatedAt: now}))

	file := &storage.File{
		ID: "f1", WorkspaceID: "w1", FileName: "a.txt", FilePath: "w1/1-abcd.txt",
		FileSize: 10, MimeType: "text/plain", UploadedBy: "u1", CreatedAt: now,
	}
	require.NoError(t, store.CreateFile(ctx, file))

	t.Run("list returns the row", func(t *testing.T) {
		files, err := store.ListFiles(ctx, "w1")
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "a.txt", files[0].FileName)
		assert.Equal(t, int64(10), files[0].FileSize)
		assert.Equal(t, "text/plain", files[0].MimeType)
	})

	t.Run("path is unique", func(t *testing.T) {
		dup := *file
		dup.ID = "f2"
		assert.Error(t, store.CreateFile(ctx, &dup))
	})

	t.Run("workspace must exist", func(t *testing.T) {
		orphan := *file
		orphan.ID = "f3"
		orphan.WorkspaceID = "missing"
		orphan.FilePath = "missing/1.txt"
		assert.Error(t, store.CreateFile(ctx, &orphan))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteFile(ctx, "f1"))
		exists, err := store.FileExistsByPath(ctx, "w1/1-abcd.txt")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.True(t, errors.Is(store.DeleteFile(ctx, "f1"), storage.ErrNotFound))
	})
}

func TestSQLiteStore_PermissionsAndProfiles(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateWorkspace(ctx, &storage.Workspace{ID: "w1", Name: "W", Type: storage.WorkspaceTypeDev, CreatedBy: "u1", CreatedAt: time.Now().UTC()}))
	require.NoError(t, store.GrantPermission(ctx, &storage.WorkspacePermission{WorkspaceID: "w1", UserID: "u2", Level: "viewer"}))
	require.NoError(t, store.GrantPermission(ctx, &storage.WorkspacePermission{WorkspaceID: "w1", UserID: "u2", Level: "editor"}))

	perms, err := store.ListPermissionsForUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "editor", perms[0].Level)

	none, err := store.ListPermissionsForUser(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, store.UpsertProfile(ctx, &storage.Profile{ID: "u2", Email: "old@example.com", Role: "editor"}))
	require.NoError(t, store.UpsertProfile(ctx, &storage.Profile{ID: "u2", Email: "new@example.com", FullName: "Grace", Role: "viewer"}))

	p, err := store.GetProfile(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", p.Email)
	assert.Equal(t, "Grace", p.FullName)
	assert.Equal(t, "editor", p.Role)

	profiles, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)

	assert.Error(t, store.UpsertProfile(ctx, &storage.Profile{ID: "u9", Email: "x@example.com", Role: "owner"}))
}
