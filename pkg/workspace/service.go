package workspace

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/workbench/pkg/apperrors"
	"github.com/platinummonkey/workbench/pkg/audit"
	"github.com/platinummonkey/workbench/pkg/auth"
	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/rbac"
	"github.com/platinummonkey/workbench/pkg/storage"
)

// CreateInput is the user-supplied part of a new workspace
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"workspace_type"`
}

// Entry is a workspace annotated with the caller's display role
type Entry struct {
	*storage.Workspace
	Role string `json:"role"`
}

// Options wires the optional collaborators of the service
type Options struct {
	Audit   audit.Logger
	Metrics *observability.Metrics
}

// Service lists and creates workspaces. It holds no per-user state and is
// safe for concurrent use.
type Service struct {
	workspaces  storage.WorkspaceStore
	permissions storage.PermissionStore
	audit       audit.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	newID       func() string
}

// NewService creates a workspace service
func NewService(workspaces storage.WorkspaceStore, permissions storage.PermissionStore, opts Options) *Service {
	if opts.Audit == nil {
		opts.Audit = audit.NoOpLogger{}
	}
	return &Service{
		workspaces:  workspaces,
		permissions: permissions,
		audit:       opts.Audit,
		metrics:     opts.Metrics,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// ListWorkspaces returns every workspace, newest first. Visibility is not
// filtered by permission.
func (s *Service) ListWorkspaces(ctx context.Context, session *auth.Session) ([]*storage.Workspace, error) {
	const op = "workspace.ListWorkspaces"

	if session == nil {
		return nil, apperrors.AuthenticationRequired(op)
	}

	workspaces, err := s.workspaces.ListWorkspaces(ctx)
	if err != nil {
		return nil, apperrors.Store(op, "failed to fetch workspaces", err)
	}
	if workspaces == nil {
		workspaces = []*storage.Workspace{}
	}
	return workspaces, nil
}

// ListMyPermissions returns the caller's explicit grants keyed by workspace
func (s *Service) ListMyPermissions(ctx context.Context, session *auth.Session) (rbac.PermissionMap, error) {
	const op = "workspace.ListMyPermissions"

	if session == nil {
		return nil, apperrors.AuthenticationRequired(op)
	}

	rows, err := s.permissions.ListPermissionsForUser(ctx, session.UserID())
	if err != nil {
		return nil, apperrors.Store(op, "failed to fetch permissions", err)
	}

	perms := make(rbac.PermissionMap, len(rows))
	for _, row := range rows {
		perms[row.WorkspaceID] = row.Level
	}
	return perms, nil
}

// Dashboard loads workspaces and grants concurrently. A failed grant read
// only costs the role labels; a failed workspace read fails the call.
func (s *Service) Dashboard(ctx context.Context, session *auth.Session) ([]Entry, error) {
	if session == nil {
		return nil, apperrors.AuthenticationRequired("workspace.Dashboard")
	}

	var (
		workspaces []*storage.Workspace
		perms      rbac.PermissionMap
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		workspaces, err = s.ListWorkspaces(gctx, session)
		return err
	})
	g.Go(func() error {
		var err error
		perms, err = s.ListMyPermissions(gctx, session)
		if err != nil {
			observability.FromContext(ctx).WithError(err).Warn("failed to fetch permissions, showing default roles")
			perms = rbac.PermissionMap{}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(workspaces))
	for _, ws := range workspaces {
		entries = append(entries, Entry{Workspace: ws, Role: perms.Level(ws.ID)})
	}
	return entries, nil
}

// CreateWorkspace checks authentication, then the role policy, then the
// input, and inserts the new workspace
func (s *Service) CreateWorkspace(ctx context.Context, session *auth.Session, input CreateInput) (*storage.Workspace, error) {
	const op = "workspace.CreateWorkspace"

	if session == nil {
		return nil, apperrors.AuthenticationRequired(op)
	}

	if !rbac.CanCreateWorkspace(session.Role()) {
		s.denied(ctx, session, "create workspaces")
		return nil, apperrors.PermissionDenied(op, "create workspaces")
	}

	name := strings.TrimSpace(input.Name)
	wsType := storage.WorkspaceType(strings.TrimSpace(input.Type))
	switch {
	case name == "":
		return nil, apperrors.Validation(op, "workspace name is required")
	case wsType == "":
		return nil, apperrors.Validation(op, "workspace type is required")
	case !wsType.Valid():
		return nil, apperrors.Validation(op, "workspace type must be one of dev, qa, review, design, documentation")
	}

	ws := &storage.Workspace{
		ID:          s.newID(),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Type:        wsType,
		CreatedBy:   session.UserID(),
		CreatedAt:   s.now(),
	}

	if err := s.workspaces.CreateWorkspace(ctx, ws); err != nil {
		audit.Emit(ctx, s.audit, &audit.AuditEvent{
			EventType:    audit.EventTypeDataWorkspaceCreate,
			Status:       audit.EventStatusFailure,
			UserID:       session.UserID(),
			ResourceType: audit.ResourceTypeWorkspace,
			ResourceID:   ws.ID,
			ErrorMessage: err.Error(),
		})
		return nil, apperrors.Store(op, "failed to create workspace", err)
	}

	s.metrics.RecordWorkspaceCreated()
	audit.Emit(ctx, s.audit, &audit.AuditEvent{
		EventType:    audit.EventTypeDataWorkspaceCreate,
		Status:       audit.EventStatusSuccess,
		UserID:       session.UserID(),
		ResourceType: audit.ResourceTypeWorkspace,
		ResourceID:   ws.ID,
		Message:      "created workspace " + ws.Name,
		Metadata:     map[string]interface{}{"workspace_type": string(ws.Type)},
	})

	return ws, nil
}

// CreateWorkspaceAndReload creates a workspace and re-fetches the full list
func (s *Service) CreateWorkspaceAndReload(ctx context.Context, session *auth.Session, input CreateInput) (*storage.Workspace, []*storage.Workspace, error) {
	ws, err := s.CreateWorkspace(ctx, session, input)
	if err != nil {
		return nil, nil, err
	}

	workspaces, err := s.ListWorkspaces(ctx, session)
	if err != nil {
		return ws, nil, err
	}
	return ws, workspaces, nil
}

func (s *Service) denied(ctx context.Context, session *auth.Session, action string) {
	s.metrics.RecordAccessDenied(action)
	audit.Emit(ctx, s.audit, &audit.AuditEvent{
		EventType:    audit.EventTypeAuthzAccessDenied,
		Status:       audit.EventStatusDenied,
		UserID:       session.UserID(),
		ResourceType: audit.ResourceTypeWorkspace,
		Message:      "denied: " + action,
		Metadata:     map[string]interface{}{"role": string(session.Role())},
	})
}
