package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin  EventType = "auth.login"
	EventTypeAuthLogout EventType = "auth.logout"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Data mutation events
	EventTypeDataWorkspaceCreate EventType = "data.workspace_create"
	EventTypeDataFileUpload      EventType = "data.file_upload"
	EventTypeDataFileDelete      EventType = "data.file_delete"

	// Maintenance events
	EventTypeMaintenanceOrphanSweep EventType = "maintenance.orphan_sweep"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeWorkspace ResourceType = "workspace"
	ResourceTypeFile      ResourceType = "file"
	ResourceTypeSession   ResourceType = "session"
	ResourceTypeProfile   ResourceType = "profile"
	ResourceTypeBlob      ResourceType = "blob"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID string `json:"user_id,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	RequestID    string                 `json:"request_id,omitempty"`
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
