package rbac

import "github.com/platinummonkey/workbench/pkg/auth"

var rolePermissions = buildIndex(BuiltInRoles())

func buildIndex(roles map[auth.Role][]Permission) map[auth.Role]map[Permission]bool {
	index := make(map[auth.Role]map[Permission]bool, len(roles))
	for role, perms := range roles {
		set := make(map[Permission]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		index[role] = set
	}
	return index
}

// HasPermission reports whether the role grants p. The empty role and
// unknown roles are denied everything.
func HasPermission(role auth.Role, p Permission) bool {
	return rolePermissions[role][p]
}

// CanCreateWorkspace reports whether role may create workspaces
func CanCreateWorkspace(role auth.Role) bool {
	return HasPermission(role, PermCreateWorkspace)
}

// CanUploadFile reports whether role may upload files
func CanUploadFile(role auth.Role) bool {
	return HasPermission(role, PermUploadFile)
}

// CanDeleteFile reports whether role may delete a file. Uploaders may
// delete their own files as long as they hold a valid role.
func CanDeleteFile(role auth.Role, isUploader bool) bool {
	if HasPermission(role, PermDeleteFile) {
		return true
	}
	return isUploader && role.Valid()
}

// CanDownloadFile reports whether role may download files
func CanDownloadFile(role auth.Role) bool {
	return HasPermission(role, PermDownloadFile)
}

// CanViewAdminPanel reports whether role may open the admin panel
func CanViewAdminPanel(role auth.Role) bool {
	return HasPermission(role, PermViewAdminPanel)
}

// Capabilities is the flag set shown to a client for its own role
type Capabilities struct {
	CreateWorkspace bool `json:"create_workspace"`
	UploadFile      bool `json:"upload_file"`
	DeleteAnyFile   bool `json:"delete_any_file"`
	DownloadFile    bool `json:"download_file"`
	ViewAdminPanel  bool `json:"view_admin_panel"`
}

// CapabilitiesFor evaluates every policy function for role
func CapabilitiesFor(role auth.Role) Capabilities {
	return Capabilities{
		CreateWorkspace: CanCreateWorkspace(role),
		UploadFile:      CanUploadFile(role),
		DeleteAnyFile:   CanDeleteFile(role, false),
		DownloadFile:    CanDownloadFile(role),
		ViewAdminPanel:  CanViewAdminPanel(role),
	}
}
