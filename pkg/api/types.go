package api

import (
	"github.com/platinummonkey/workbench/pkg/auth"
	"github.com/platinummonkey/workbench/pkg/files"
	"github.com/platinummonkey/workbench/pkg/rbac"
	"github.com/platinummonkey/workbench/pkg/storage"
	"github.com/platinummonkey/workbench/pkg/workspace"
)

// MeResponse describes the caller and what the UI may offer them
type MeResponse struct {
	User         auth.User         `json:"user"`
	Profile      *storage.Profile  `json:"profile"`
	Role         string            `json:"role"`
	Capabilities rbac.Capabilities `json:"capabilities"`
}

// CreateWorkspaceRequest is the body of POST /api/v1/workspaces
type CreateWorkspaceRequest = workspace.CreateInput

type WorkspacesResponse struct {
	Workspaces []workspace.Entry `json:"workspaces"`
}

type CreateWorkspaceResponse struct {
	Workspace  *storage.Workspace   `json:"workspace"`
	Workspaces []*storage.Workspace `json:"workspaces,omitempty"`
}

type PermissionsResponse struct {
	Permissions rbac.PermissionMap `json:"permissions"`
}

// FileView is a file record plus its display size
type FileView struct {
	*storage.File
	SizeLabel string `json:"size_label"`
}

func newFileView(f *storage.File) FileView {
	return FileView{File: f, SizeLabel: files.FormatSize(f.FileSize)}
}

func fileViews(list []*storage.File) []FileView {
	if list == nil {
		return nil
	}
	views := make([]FileView, 0, len(list))
	for _, f := range list {
		views = append(views, newFileView(f))
	}
	return views
}

type FilesResponse struct {
	Files []FileView `json:"files"`
}

type UploadResponse struct {
	File  *FileView  `json:"file"`
	Files []FileView `json:"files,omitempty"`
}

type DeleteResponse struct {
	Deleted *FileView  `json:"deleted"`
	Files   []FileView `json:"files,omitempty"`
}

type ProfilesResponse struct {
	Profiles []*storage.Profile `json:"profiles"`
}
