package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/workbench/pkg/apperrors"
	"github.com/platinummonkey/workbench/pkg/audit"
	"github.com/platinummonkey/workbench/pkg/auth"
	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/storage"
)

// faultyBlobs wraps a MemoryBlobStore and fails selected operations
type faultyBlobs struct {
	*storage.MemoryBlobStore
	putErr    error
	deleteErr error
	getErr    error
	deletes   int
}

func (f *faultyBlobs) PutBlob(ctx context.Context, path string, content io.Reader, contentType string) (int64, error) {
	if f.putErr != nil {
		return 0, f.putErr
	}
	return f.MemoryBlobStore.PutBlob(ctx, path, content, contentType)
}

func (f *faultyBlobs) DeleteBlob(ctx context.Context, path string) error {
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryBlobStore.DeleteBlob(ctx, path)
}

func (f *faultyBlobs) GetBlob(ctx context.Context, path string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryBlobStore.GetBlob(ctx, path)
}

// faultyFiles wraps a MemoryStore and fails selected row operations
type faultyFiles struct {
	*storage.MemoryStore
	createErr error
	deleteErr error
	listErr   error
}

func (f *faultyFiles) CreateFile(ctx context.Context, file *storage.File) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.MemoryStore.CreateFile(ctx, file)
}

func (f *faultyFiles) DeleteFile(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryStore.DeleteFile(ctx, id)
}

func (f *faultyFiles) ListFiles(ctx context.Context, workspaceID string) ([]*storage.File, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemoryStore.ListFiles(ctx, workspaceID)
}

type fixture struct {
	svc     *Service
	meta    *faultyFiles
	blobs   *faultyBlobs
	audit   *audit.MemoryLogger
	metrics *observability.Metrics
}

const testWorkspace = "w1"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	meta := &faultyFiles{MemoryStore: storage.NewMemoryStore()}
	blobs := &faultyBlobs{MemoryBlobStore: storage.NewMemoryBlobStore()}
	auditLog := audit.NewMemoryLogger()
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	require.NoError(t, meta.CreateWorkspace(context.Background(), &storage.Workspace{
		ID: testWorkspace, Name: "W", Type: storage.WorkspaceTypeDev, CreatedAt: time.Now().UTC(),
	}))

	svc := NewService(meta, meta, blobs, Options{Audit: auditLog, Metrics: metrics})
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	tick, ids := 0, 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	svc.newID = func() string {
		ids++
		return fmt.Sprintf("file-%d", ids)
	}

	return &fixture{svc: svc, meta: meta, blobs: blobs, audit: auditLog, metrics: metrics}
}

func sessionWithRole(id, role string) *auth.Session {
	return &auth.Session{
		User:    auth.User{ID: id},
		Profile: &storage.Profile{ID: id, Role: role},
	}
}

func upload(name, content string) UploadInput {
	return UploadInput{WorkspaceID: testWorkspace, FileName: name, MimeType: "text/plain", Content: strings.NewReader(content)}
}

func TestStoragePath(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "w1/1700000000123-deadbeef.pdf", StoragePath("w1", "Report.pdf", at, "deadbeef"))
	assert.Equal(t, "w1/1700000000123-deadbeef.gz", StoragePath("w1", "archive.tar.gz", at, "deadbeef"))
	assert.Equal(t, "w1/1700000000123-deadbeef", StoragePath("w1", "README", at, "deadbeef"))

	s1, s2 := randomSuffix(), randomSuffix()
	assert.Len(t, s1, 8)
	assert.NotEqual(t, s1, s2)
}

func TestUploadThenList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	editor := sessionWithRole("editor-1", "editor")

	file, files, err := f.svc.UploadFileAndReload(ctx, editor, upload("a.txt", "0123456789"))
	require.NoError(t, err)
	assert.EqualValues(t, 10, file.FileSize)
	assert.Equal(t, "editor-1", file.UploadedBy)
	assert.True(t, strings.HasPrefix(file.FilePath, testWorkspace+"/"))
	assert.True(t, strings.HasSuffix(file.FilePath, ".txt"))

	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].FileName)
	assert.Equal(t, "text/plain", files[0].MimeType)
	assert.EqualValues(t, 10, files[0].FileSize)

	rc, err := f.blobs.GetBlob(ctx, file.FilePath)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "0123456789", string(data))

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.UploadsTotal.WithLabelValues("success")))
	assert.Len(t, f.audit.EventsOfType(audit.EventTypeDataFileUpload), 1)
}

func TestUpload_SameMillisecondPathsDiffer(t *testing.T) {
	f := newFixture(t)
	fixed := time.UnixMilli(1700000000000).UTC()
	f.svc.now = func() time.Time { return fixed }
	editor := sessionWithRole("editor-1", "editor")

	a, err := f.svc.UploadFile(context.Background(), editor, upload("a.txt", "a"))
	require.NoError(t, err)
	b, err := f.svc.UploadFile(context.Background(), editor, upload("a.txt", "b"))
	require.NoError(t, err)
	assert.NotEqual(t, a.FilePath, b.FilePath)
}

func TestUpload_DefaultMimeType(t *testing.T) {
	f := newFixture(t)
	in := upload("blob.bin", "xyz")
	in.MimeType = ""

	file, err := f.svc.UploadFile(context.Background(), sessionWithRole("a", "admin"), in)
	require.NoError(t, err)
	assert.Equal(t, DefaultMimeType, file.MimeType)
}

func TestUpload_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		session *auth.Session
		input   UploadInput
		kind    apperrors.Kind
	}{
		{"no session", nil, upload("a.txt", "x"), apperrors.KindAuthenticationRequired},
		{"viewer", sessionWithRole("v", "viewer"), upload("a.txt", "x"), apperrors.KindPermissionDenied},
		{"no role", &auth.Session{User: auth.User{ID: "v"}}, upload("a.txt", "x"), apperrors.KindPermissionDenied},
		{"no workspace id", sessionWithRole("e", "editor"), UploadInput{FileName: "a.txt", Content: strings.NewReader("x")}, apperrors.KindValidation},
		{"no file name", sessionWithRole("e", "editor"), UploadInput{WorkspaceID: testWorkspace, Content: strings.NewReader("x")}, apperrors.KindValidation},
		{"unknown workspace", sessionWithRole("e", "editor"), UploadInput{WorkspaceID: "nope", FileName: "a.txt", Content: strings.NewReader("x")}, apperrors.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.UploadFile(ctx, tt.session, tt.input)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))

			blobs, _ := f.blobs.ListBlobs(ctx, "")
			assert.Empty(t, blobs)
		})
	}
}

func TestUpload_BlobFailure(t *testing.T) {
	f := newFixture(t)
	f.blobs.putErr = errors.New("bucket unavailable")

	_, err := f.svc.UploadFile(context.Background(), sessionWithRole("e", "editor"), upload("a.txt", "x"))
	assert.True(t, apperrors.Is(err, apperrors.KindStore))
	assert.Equal(t, "failed to upload file", apperrors.UserMessage(err))

	files, _ := f.meta.ListFiles(context.Background(), testWorkspace)
	assert.Empty(t, files)
	assert.Zero(t, f.blobs.deletes)
}

func TestUpload_MetadataFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.meta.createErr = errors.New("insert failed")

	_, err := f.svc.UploadFile(ctx, sessionWithRole("e", "editor"), upload("a.txt", "x"))

	var partial *apperrors.PartialUploadError
	require.True(t, errors.As(err, &partial))
	assert.True(t, partial.RolledBack)
	assert.NoError(t, partial.RollbackErr)
	assert.Equal(t, "failed to upload file", apperrors.UserMessage(err))

	blobs, _ := f.blobs.ListBlobs(ctx, "")
	assert.Empty(t, blobs)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PartialUploadsTotal.WithLabelValues("true")))
}

func TestUpload_RollbackFailureLeavesOrphan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.meta.createErr = errors.New("insert failed")
	f.blobs.deleteErr = errors.New("delete failed")

	_, err := f.svc.UploadFile(ctx, sessionWithRole("e", "editor"), upload("a.txt", "x"))

	var partial *apperrors.PartialUploadError
	require.True(t, errors.As(err, &partial))
	assert.False(t, partial.RolledBack)
	assert.EqualError(t, partial.RollbackErr, "delete failed")

	blobs, _ := f.blobs.ListBlobs(ctx, "")
	require.Len(t, blobs, 1)
	assert.Equal(t, partial.Path, blobs[0].Path)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PartialUploadsTotal.WithLabelValues("false")))
}

func TestUpload_RollbackSurvivesCancellation(t *testing.T) {
	f := newFixture(t)
	f.meta.createErr = errors.New("insert failed")

	ctx, cancel := context.WithCancel(context.Background())
	in := upload("a.txt", "x")
	in.Content = cancelAfterRead{r: strings.NewReader("x"), cancel: cancel}

	_, err := f.svc.UploadFile(ctx, sessionWithRole("e", "editor"), in)
	var partial *apperrors.PartialUploadError
	require.True(t, errors.As(err, &partial))
	assert.True(t, partial.RolledBack)
}

// cancelAfterRead cancels the request context once the body is consumed
type cancelAfterRead struct {
	r      io.Reader
	cancel context.CancelFunc
}

func (c cancelAfterRead) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err == io.EOF {
		c.cancel()
	}
	return n, err
}

func TestDeleteFile(t *testing.T) {
	ctx := context.Background()

	t.Run("editor deletes any file", func(t *testing.T) {
		f := newFixture(t)
		file, err := f.svc.UploadFile(ctx, sessionWithRole("a", "admin"), upload("a.txt", "x"))
		require.NoError(t, err)

		deleted, files, err := f.svc.DeleteFileAndReload(ctx, sessionWithRole("e", "editor"), file.ID)
		require.NoError(t, err)
		assert.Equal(t, file.ID, deleted.ID)
		assert.Empty(t, files)

		blobs, _ := f.blobs.ListBlobs(ctx, "")
		assert.Empty(t, blobs)
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.FileDeletesTotal.WithLabelValues("success")))
	})

	t.Run("viewer deletes own file", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.meta.CreateFile(ctx, &storage.File{
			ID: "own", WorkspaceID: testWorkspace, FileName: "mine.txt", FilePath: "w1/own.txt", UploadedBy: "v",
		}))

		_, err := f.svc.DeleteFile(ctx, sessionWithRole("v", "viewer"), "own")
		require.NoError(t, err)
	})

	t.Run("viewer cannot delete others' file", func(t *testing.T) {
		f := newFixture(t)
		file, err := f.svc.UploadFile(ctx, sessionWithRole("e", "editor"), upload("a.txt", "x"))
		require.NoError(t, err)

		_, err = f.svc.DeleteFile(ctx, sessionWithRole("v", "viewer"), file.ID)
		assert.True(t, apperrors.Is(err, apperrors.KindPermissionDenied))

		_, err = f.meta.GetFile(ctx, file.ID)
		assert.NoError(t, err)
		assert.Len(t, f.audit.EventsOfType(audit.EventTypeAuthzAccessDenied), 1)
	})

	t.Run("uploader without role cannot delete", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.meta.CreateFile(ctx, &storage.File{
			ID: "own", WorkspaceID: testWorkspace, FileName: "mine.txt", FilePath: "w1/own.txt", UploadedBy: "u",
		}))

		_, err := f.svc.DeleteFile(ctx, &auth.Session{User: auth.User{ID: "u"}}, "own")
		assert.True(t, apperrors.Is(err, apperrors.KindPermissionDenied))
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.DeleteFile(ctx, sessionWithRole("e", "editor"), "nope")
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	})

	t.Run("blob failure keeps row", func(t *testing.T) {
		f := newFixture(t)
		file, err := f.svc.UploadFile(ctx, sessionWithRole("e", "editor"), upload("a.txt", "x"))
		require.NoError(t, err)
		f.blobs.deleteErr = errors.New("storage unavailable")

		_, err = f.svc.DeleteFile(ctx, sessionWithRole("e", "editor"), file.ID)
		assert.True(t, apperrors.Is(err, apperrors.KindStore))

		_, err = f.meta.GetFile(ctx, file.ID)
		assert.NoError(t, err, "row must survive a failed blob delete")
	})

	t.Run("missing blob still clears row", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.meta.CreateFile(ctx, &storage.File{
			ID: "dangling", WorkspaceID: testWorkspace, FileName: "gone.txt", FilePath: "w1/gone.txt", UploadedBy: "e",
		}))
		f.blobs.deleteErr = fmt.Errorf("blob w1/gone.txt: %w", storage.ErrNotFound)

		_, err := f.svc.DeleteFile(ctx, sessionWithRole("e", "editor"), "dangling")
		require.NoError(t, err)
		_, err = f.meta.GetFile(ctx, "dangling")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("row failure reports store error", func(t *testing.T) {
		f := newFixture(t)
		file, err := f.svc.UploadFile(ctx, sessionWithRole("e", "editor"), upload("a.txt", "x"))
		require.NoError(t, err)
		f.meta.deleteErr = errors.New("delete failed")

		_, err = f.svc.DeleteFile(ctx, sessionWithRole("e", "editor"), file.ID)
		assert.True(t, apperrors.Is(err, apperrors.KindStore))
	})
}

func TestDownloadFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	file, err := f.svc.UploadFile(ctx, sessionWithRole("e", "editor"), upload("notes.md", "# hi"))
	require.NoError(t, err)

	got, rc, err := f.svc.DownloadFile(ctx, sessionWithRole("v", "viewer"), file.ID)
	require.NoError(t, err)
	defer rc.Close()
	var buf bytes.Buffer
	_, err = io.Copy(&buf, rc)
	require.NoError(t, err)
	assert.Equal(t, "# hi", buf.String())
	assert.Equal(t, "notes.md", got.FileName)

	_, _, err = f.svc.DownloadFile(ctx, &auth.Session{User: auth.User{ID: "x"}}, file.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindPermissionDenied))

	_, _, err = f.svc.DownloadFile(ctx, nil, file.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthenticationRequired))

	_, _, err = f.svc.DownloadFile(ctx, sessionWithRole("v", "viewer"), "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	f.blobs.getErr = errors.New("timeout")
	_, _, err = f.svc.DownloadFile(ctx, sessionWithRole("v", "viewer"), file.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindStore))
}

func TestListFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	editor := sessionWithRole("e", "editor")

	files, err := f.svc.ListFiles(ctx, editor, testWorkspace)
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)

	first, err := f.svc.UploadFile(ctx, editor, upload("first.txt", "1"))
	require.NoError(t, err)
	second, err := f.svc.UploadFile(ctx, editor, upload("second.txt", "2"))
	require.NoError(t, err)

	files, err = f.svc.ListFiles(ctx, editor, testWorkspace)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, second.ID, files[0].ID)
	assert.Equal(t, first.ID, files[1].ID)

	_, err = f.svc.ListFiles(ctx, editor, "")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	f.meta.listErr = errors.New("boom")
	_, err = f.svc.ListFiles(ctx, editor, testWorkspace)
	assert.True(t, apperrors.Is(err, apperrors.KindStore))
}
