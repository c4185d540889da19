package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/workbench/pkg/contextkeys"
)

func TestFileLogger_Basic(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewFileLogger(FileLoggerConfig{BasePath: tmpDir, MaxSize: 1024 * 1024, MaxFiles: 5})
	require.NoError(t, err)
	defer logger.Close()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	err = logger.Log(context.Background(), &AuditEvent{
		Timestamp:    ts,
		EventType:    EventTypeDataFileUpload,
		Status:       EventStatusSuccess,
		UserID:       "u1",
		ResourceType: ResourceTypeFile,
		ResourceID:   "f1",
		Message:      "uploaded a.txt",
		Metadata:     map[string]interface{}{"size": 10},
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(tmpDir, "audit.log"))

	events, err := logger.ReadLogs(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeDataFileUpload, events[0].EventType)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, "f1", events[0].ResourceID)
	assert.Equal(t, "uploaded a.txt", events[0].Message)
	assert.True(t, ts.Equal(events[0].Timestamp))
	assert.EqualValues(t, 10, events[0].Metadata["size"])
}

func TestFileLogger_Rotation(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewFileLogger(FileLoggerConfig{BasePath: tmpDir, Rotate: true, MaxSize: 200, MaxFiles: 2})
	require.NoError(t, err)
	defer logger.Close()

	for i := 0; i < 20; i++ {
		require.NoError(t, logger.Log(context.Background(), &AuditEvent{
			EventType: EventTypeDataWorkspaceCreate,
			Status:    EventStatusSuccess,
			Message:   "created workspace with a reasonably long message",
		}))
	}

	rotated, err := filepath.Glob(filepath.Join(tmpDir, "audit-*.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, rotated)
	assert.LessOrEqual(t, len(rotated), 2)
}

func TestFileLogger_Closed(t *testing.T) {
	logger, err := NewFileLogger(FileLoggerConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	assert.Error(t, logger.Log(context.Background(), &AuditEvent{EventType: EventTypeAuthLogout}))
}

func TestNewFileLogger_BadDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := NewFileLogger(FileLoggerConfig{BasePath: filepath.Join(file, "audit")})
	assert.Error(t, err)
}

type failingLogger struct{}

func (failingLogger) Log(ctx context.Context, event *AuditEvent) error { return errors.New("disk full") }
func (failingLogger) Close() error                                     { return nil }

func TestEmit(t *testing.T) {
	ctx := contextkeys.WithRequestID(context.Background(), "req-1")
	ctx = contextkeys.WithUserID(ctx, "u1")

	mem := NewMemoryLogger()
	Emit(ctx, mem, &AuditEvent{EventType: EventTypeAuthLogout, Status: EventStatusSuccess})
	Emit(ctx, mem, &AuditEvent{EventType: EventTypeAuthzAccessDenied, Status: EventStatusDenied, UserID: "u2"})

	events := mem.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, "u1", events[0].UserID)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, "u2", events[1].UserID)
	assert.Len(t, mem.EventsOfType(EventTypeAuthzAccessDenied), 1)

	assert.NotPanics(t, func() {
		Emit(ctx, failingLogger{}, &AuditEvent{EventType: EventTypeAuthLogout})
		Emit(ctx, nil, &AuditEvent{EventType: EventTypeAuthLogout})
	})
}
