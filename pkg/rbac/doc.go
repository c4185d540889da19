// Package rbac is the access policy of the workbench: pure functions that
// decide, from a user's global role, which actions are allowed.
//
// # Roles
//
//	| Permission          | admin | editor | viewer |
//	|---------------------|-------|--------|--------|
//	| workspace:read      |   x   |   x    |   x    |
//	| workspace:create    |   x   |   x    |        |
//	| file:download       |   x   |   x    |   x    |
//	| file:upload         |   x   |   x    |        |
//	| file:delete         |   x   |   x    |  own   |
//	| admin_panel:view    |   x   |        |        |
//
// A user with no role (no profile yet, or an unknown stored value) is
// denied every action, including deleting files they uploaded.
//
// # Per-workspace permission levels
//
// Explicit grants are read into a PermissionMap. They only label the
// workspace for display; Level falls back to "viewer" when no row exists.
//
// # Middleware
//
//	admin := router.PathPrefix("/api/v1/admin").Subrouter()
//	admin.Use(rbac.RequireAdmin(metrics))
package rbac
