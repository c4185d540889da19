package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileSystemBlobStore(t *testing.T) {
	t.Run("creates root directory", func(t *testing.T) {
		rootDir := filepath.Join(t.TempDir(), "blobs")

		store, err := NewFileSystemBlobStore(rootDir)
		require.NoError(t, err)
		assert.Equal(t, rootDir, store.rootDir)

		_, err = os.Stat(rootDir)
		assert.NoError(t, err)
	})

	t.Run("accepts existing directory", func(t *testing.T) {
		_, err := NewFileSystemBlobStore(t.TempDir())
		assert.NoError(t, err)
	})
}

func TestFileSystemBlobStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileSystemBlobStore(t.TempDir())
	require.NoError(t, err)

	n, err := store.PutBlob(ctx, "ws-1/1700000000000-abcd1234.txt", strings.NewReader("0123456789"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	rc, err := store.GetBlob(ctx, "ws-1/1700000000000-abcd1234.txt")
	require.NoError(t, err)
	size, ok := BlobSize(rc)
	assert.True(t, ok)
	assert.Equal(t, int64(10), size)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	blobs, err := store.ListBlobs(ctx, "ws-1/")
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, "ws-1/1700000000000-abcd1234.txt", blobs[0].Path)
	assert.Equal(t, int64(10), blobs[0].Size)

	require.NoError(t, store.DeleteBlob(ctx, "ws-1/1700000000000-abcd1234.txt"))
	_, err = store.GetBlob(ctx, "ws-1/1700000000000-abcd1234.txt")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileSystemBlobStore_DeleteMissingSucceeds(t *testing.T) {
	store, err := NewFileSystemBlobStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.DeleteBlob(context.Background(), "ws-1/missing.txt"))
}

func TestFileSystemBlobStore_PathEscape(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileSystemBlobStore(filepath.Join(root, "blobs"))
	require.NoError(t, err)

	_, err = store.PutBlob(context.Background(), "../outside.txt", strings.NewReader("x"), "text/plain")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "outside.txt"))
	assert.True(t, os.IsNotExist(err), "blob must stay inside the root")
	_, err = os.Stat(filepath.Join(root, "blobs", "outside.txt"))
	assert.NoError(t, err)
}

func TestFileSystemBlobStore_HealthCheck(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileSystemBlobStore(root)
	require.NoError(t, err)
	assert.NoError(t, store.HealthCheck(context.Background()))

	require.NoError(t, os.RemoveAll(root))
	assert.Error(t, store.HealthCheck(context.Background()))
}
