package auth

import (
	"time"

	"github.com/platinummonkey/workbench/pkg/storage"
)

// Role is the global capability tier assigned to a profile
type Role string

const (
	RoleAdmin  Role = "admin"  // Full access including the admin panel
	RoleEditor Role = "editor" // Can create workspaces, upload and delete files
	RoleViewer Role = "viewer" // Read-only access
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// ParseRole converts a stored role string; unknown values yield the empty
// role, which the access policy denies everything
func ParseRole(s string) Role {
	r := Role(s)
	if !r.Valid() {
		return ""
	}
	return r
}

// User is the identity carried by a verified token
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Claims are the fields extracted from a verified bearer token
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// Session holds one authenticated request's identity. Profile is nil when
// no profile row exists yet; such a session has no role.
type Session struct {
	User      User
	Profile   *storage.Profile
	TokenHash string
	ExpiresAt time.Time
}

// Role returns the session's global role, or "" when unknown
func (s *Session) Role() Role {
	if s == nil || s.Profile == nil {
		return ""
	}
	return ParseRole(s.Profile.Role)
}

// UserID returns the authenticated user's ID
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.User.ID
}
