package workspace

import (
	"context"
	"errors"
	"fmt"
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

func sessionWithRole(id, role string) *auth.Session {
	return &auth.Session{
		User:    auth.User{ID: id, Email: id + "@example.com"},
		Profile: &storage.Profile{ID: id, Email: id + "@example.com", Role: role},
	}
}

type fixture struct {
	svc     *Service
	store   *storage.MemoryStore
	audit   *audit.MemoryLogger
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	auditLog := audit.NewMemoryLogger()
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	svc := NewService(store, store, Options{Audit: auditLog, Metrics: metrics})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	svc.newID = func() string { return fmt.Sprintf("ws-%d", n+1) }

	return &fixture{svc: svc, store: store, audit: auditLog, metrics: metrics}
}

// failingPermissions returns an error for every grant lookup
type failingPermissions struct{}

func (failingPermissions) ListPermissionsForUser(ctx context.Context, userID string) ([]*storage.WorkspacePermission, error) {
	return nil, errors.New("permissions table unavailable")
}

// failingWorkspaces returns an error for every call
type failingWorkspaces struct{}

func (failingWorkspaces) ListWorkspaces(ctx context.Context) ([]*storage.Workspace, error) {
	return nil, errors.New("connection refused")
}
func (failingWorkspaces) GetWorkspace(ctx context.Context, id string) (*storage.Workspace, error) {
	return nil, errors.New("connection refused")
}
func (failingWorkspaces) CreateWorkspace(ctx context.Context, ws *storage.Workspace) error {
	return errors.New("connection refused")
}

func TestCreateWorkspace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	editor := sessionWithRole("editor-1", "editor")

	ws, err := f.svc.CreateWorkspace(ctx, editor, CreateInput{Name: "  Alpha ", Description: "first", Type: "dev"})
	require.NoError(t, err)
	assert.Equal(t, "Alpha", ws.Name)
	assert.Equal(t, storage.WorkspaceTypeDev, ws.Type)
	assert.Equal(t, "editor-1", ws.CreatedBy)
	assert.NotEmpty(t, ws.ID)
	assert.False(t, ws.CreatedAt.IsZero())

	stored, err := f.store.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.Name, stored.Name)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.WorkspacesCreatedTotal))
	events := f.audit.EventsOfType(audit.EventTypeDataWorkspaceCreate)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventStatusSuccess, events[0].Status)
	assert.Equal(t, ws.ID, events[0].ResourceID)
}

func TestCreateWorkspace_Denied(t *testing.T) {
	ctx := context.Background()

	for _, session := range []*auth.Session{
		sessionWithRole("viewer-1", "viewer"),
		{User: auth.User{ID: "no-profile"}},
	} {
		f := newFixture(t)
		_, err := f.svc.CreateWorkspace(ctx, session, CreateInput{Name: "Alpha", Type: "dev"})
		assert.True(t, apperrors.Is(err, apperrors.KindPermissionDenied))

		workspaces, err := f.store.ListWorkspaces(ctx)
		require.NoError(t, err)
		assert.Empty(t, workspaces)
		assert.Len(t, f.audit.EventsOfType(audit.EventTypeAuthzAccessDenied), 1)
	}
}

func TestCreateWorkspace_RequiresSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateWorkspace(context.Background(), nil, CreateInput{Name: "Alpha", Type: "dev"})
	assert.True(t, apperrors.Is(err, apperrors.KindAuthenticationRequired))
}

func TestCreateWorkspace_Validation(t *testing.T) {
	admin := sessionWithRole("admin-1", "admin")

	tests := []struct {
		name  string
		input CreateInput
	}{
		{"empty name", CreateInput{Name: "", Type: "dev"}},
		{"blank name", CreateInput{Name: "   ", Type: "qa"}},
		{"missing type", CreateInput{Name: "Alpha"}},
		{"unknown type", CreateInput{Name: "Alpha", Type: "prod"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateWorkspace(context.Background(), admin, tt.input)
			assert.True(t, apperrors.Is(err, apperrors.KindValidation))

			workspaces, _ := f.store.ListWorkspaces(context.Background())
			assert.Empty(t, workspaces)
		})
	}
}

func TestCreateWorkspace_StoreFailure(t *testing.T) {
	auditLog := audit.NewMemoryLogger()
	svc := NewService(failingWorkspaces{}, storage.NewMemoryStore(), Options{Audit: auditLog})

	_, err := svc.CreateWorkspace(context.Background(), sessionWithRole("e", "editor"), CreateInput{Name: "A", Type: "qa"})
	assert.True(t, apperrors.Is(err, apperrors.KindStore))
	assert.Equal(t, "failed to create workspace", apperrors.UserMessage(err))

	events := auditLog.EventsOfType(audit.EventTypeDataWorkspaceCreate)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventStatusFailure, events[0].Status)
}

func TestCreateWorkspaceAndReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	editor := sessionWithRole("editor-1", "editor")

	_, err := f.svc.CreateWorkspace(ctx, editor, CreateInput{Name: "First", Type: "dev"})
	require.NoError(t, err)

	created, list, err := f.svc.CreateWorkspaceAndReload(ctx, editor, CreateInput{Name: "Second", Type: "design"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, created.ID, list[0].ID, "newest first")
	assert.Equal(t, "First", list[1].Name)
}

func TestListMyPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := sessionWithRole("u1", "viewer")

	require.NoError(t, f.store.GrantPermission(ctx, &storage.WorkspacePermission{WorkspaceID: "w1", UserID: "u1", Level: "editor"}))
	require.NoError(t, f.store.GrantPermission(ctx, &storage.WorkspacePermission{WorkspaceID: "w2", UserID: "u2", Level: "admin"}))

	perms, err := f.svc.ListMyPermissions(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "editor", perms["w1"])
	_, ok := perms["w2"]
	assert.False(t, ok)
	assert.Equal(t, "viewer", perms.Level("w2"))

	_, err = f.svc.ListMyPermissions(ctx, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthenticationRequired))
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	editor := sessionWithRole("editor-1", "editor")

	w1, err := f.svc.CreateWorkspace(ctx, editor, CreateInput{Name: "One", Type: "dev"})
	require.NoError(t, err)
	w2, err := f.svc.CreateWorkspace(ctx, editor, CreateInput{Name: "Two", Type: "qa"})
	require.NoError(t, err)
	require.NoError(t, f.store.GrantPermission(ctx, &storage.WorkspacePermission{WorkspaceID: w1.ID, UserID: "editor-1", Level: "admin"}))

	entries, err := f.svc.Dashboard(ctx, editor)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, w2.ID, entries[0].ID)
	assert.Equal(t, "viewer", entries[0].Role)
	assert.Equal(t, w1.ID, entries[1].ID)
	assert.Equal(t, "admin", entries[1].Role)
}

func TestDashboard_PermissionFailureDegrades(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.CreateWorkspace(context.Background(), &storage.Workspace{
		ID: "w1", Name: "One", Type: storage.WorkspaceTypeDev, CreatedAt: time.Now(),
	}))
	svc := NewService(store, failingPermissions{}, Options{})

	entries, err := svc.Dashboard(context.Background(), sessionWithRole("u1", "viewer"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "viewer", entries[0].Role)
}

func TestDashboard_WorkspaceFailureFails(t *testing.T) {
	svc := NewService(failingWorkspaces{}, storage.NewMemoryStore(), Options{})

	_, err := svc.Dashboard(context.Background(), sessionWithRole("u1", "viewer"))
	assert.True(t, apperrors.Is(err, apperrors.KindStore))

	_, err = svc.Dashboard(context.Background(), nil)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthenticationRequired))
}
