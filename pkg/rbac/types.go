package rbac

import "github.com/platinummonkey/workbench/pkg/auth"

// Resource represents a resource type in the system
type Resource string

const (
	ResourceWorkspace  Resource = "workspace"
	ResourceFile       Resource = "file"
	ResourceAdminPanel Resource = "admin_panel"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate   Action = "create"
	ActionRead     Action = "read"
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionDelete   Action = "delete"
	ActionView     Action = "view"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

var (
	PermCreateWorkspace = Permission{Resource: ResourceWorkspace, Action: ActionCreate}
	PermReadWorkspace   = Permission{Resource: ResourceWorkspace, Action: ActionRead}
	PermUploadFile      = Permission{Resource: ResourceFile, Action: ActionUpload}
	PermDownloadFile    = Permission{Resource: ResourceFile, Action: ActionDownload}
	PermDeleteFile      = Permission{Resource: ResourceFile, Action: ActionDelete}
	PermViewAdminPanel  = Permission{Resource: ResourceAdminPanel, Action: ActionView}
)

// BuiltInRoles returns the permission table of every global role. Roles
// missing from the table have no permissions.
func BuiltInRoles() map[auth.Role][]Permission {
	return map[auth.Role][]Permission{
		auth.RoleAdmin: {
			PermReadWorkspace,
			PermCreateWorkspace,
			PermDownloadFile,
			PermUploadFile,
			PermDeleteFile,
			PermViewAdminPanel,
		},
		auth.RoleEditor: {
			PermReadWorkspace,
			PermCreateWorkspace,
			PermDownloadFile,
			PermUploadFile,
			PermDeleteFile,
		},
		auth.RoleViewer: {
			PermReadWorkspace,
			PermDownloadFile,
		},
	}
}

// DefaultPermissionLevel is shown for workspaces without an explicit grant
const DefaultPermissionLevel = "viewer"

// PermissionMap maps workspace ID to the user's explicit permission level
type PermissionMap map[string]string

// Level returns the level for a workspace, defaulting to "viewer"
func (m PermissionMap) Level(workspaceID string) string {
	if level, ok := m[workspaceID]; ok && level != "" {
		return level
	}
	return DefaultPermissionLevel
}
