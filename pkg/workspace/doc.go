// Package workspace implements workspace synchronization: listing
// workspaces, reading the caller's per-workspace grants and creating new
// workspaces.
//
// Every mutation has a "mutate, then reload" form that returns the
// refreshed list so callers never patch their view locally.
package workspace
