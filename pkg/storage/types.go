package storage

import "time"

// WorkspaceType is the project category of a workspace
type WorkspaceType string

const (
	WorkspaceTypeDev           WorkspaceType = "dev"
	WorkspaceTypeQA            WorkspaceType = "qa"
	WorkspaceTypeReview        WorkspaceType = "review"
	WorkspaceTypeDesign        WorkspaceType = "design"
	WorkspaceTypeDocumentation WorkspaceType = "documentation"
)

// WorkspaceTypes lists the accepted workspace types in display order
var WorkspaceTypes = []WorkspaceType{
	WorkspaceTypeDev,
	WorkspaceTypeQA,
	WorkspaceTypeReview,
	WorkspaceTypeDesign,
	WorkspaceTypeDocumentation,
}

// Valid reports whether t is one of the known workspace types
func (t WorkspaceType) Valid() bool {
	for _, known := range WorkspaceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Workspace is a named container of files
type Workspace struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        WorkspaceType `json:"workspace_type"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
}

// WorkspacePermission is an explicit per-workspace grant for one user
type WorkspacePermission struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
	Level       string `json:"permission_level"`
}

// File is the metadata row describing an uploaded blob
type File struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	FileName    string    `json:"file_name"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	MimeType    string    `json:"mime_type"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile is the account record holding a user's global role
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// BlobInfo describes an object in a blob store
type BlobInfo struct {
	Path       string
	Size       int64
	ModifiedAt time.Time
}
