// Package api provides the HTTP JSON API of the workbench server.
//
// All /api/v1 routes require a bearer token. Errors are written as
// {"error": "<message>"} with 401, 403, 400, 404 or 500 depending on the
// error kind; store causes are logged and never returned.
//
//	GET    /api/v1/me                      caller, profile and capabilities
//	POST   /api/v1/auth/signout            revoke the token (204)
//	GET    /api/v1/workspaces              workspaces with display role
//	POST   /api/v1/workspaces              create, returns refreshed list (201)
//	GET    /api/v1/permissions             per-workspace grants
//	GET    /api/v1/workspaces/{id}/files   files, filtered by ?q=
//	POST   /api/v1/workspaces/{id}/files   multipart "file" upload (201)
//	GET    /api/v1/files/{id}/download     file content as an attachment
//	DELETE /api/v1/files/{id}              delete, returns refreshed list
//	GET    /api/v1/admin/profiles          admin only
//
// Mutations always answer with the refreshed list so clients never patch
// their local state.
//
// NewOpsRouter serves /health/live, /health/ready and /metrics on the
// separate operations port.
package api
