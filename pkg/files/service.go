package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/workbench/pkg/apperrors"
	"github.com/platinummonkey/workbench/pkg/audit"
	"github.com/platinummonkey/workbench/pkg/auth"
	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/rbac"
	"github.com/platinummonkey/workbench/pkg/storage"
)

// DefaultMimeType is stored when the client sends no content type
const DefaultMimeType = "application/octet-stream"

// UploadInput describes one file to upload
type UploadInput struct {
	WorkspaceID string
	FileName    string
	MimeType    string
	Content     io.Reader
}

// Options wires the optional collaborators of the service
type Options struct {
	Audit   audit.Logger
	Metrics *observability.Metrics
}

// Service uploads, lists, downloads and deletes workspace files. A file is
// a blob plus a metadata row; the service keeps the two in step.
type Service struct {
	workspaces storage.WorkspaceStore
	files      storage.FileStore
	blobs      storage.BlobStore
	audit      audit.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	newID      func() string
	suffix     func() string
}

// NewService creates a file service
func NewService(workspaces storage.WorkspaceStore, files storage.FileStore, blobs storage.BlobStore, opts Options) *Service {
	if opts.Audit == nil {
		opts.Audit = audit.NoOpLogger{}
	}
	return &Service{
		workspaces: workspaces,
		files:      files,
		blobs:      blobs,
		audit:      opts.Audit,
		metrics:    opts.Metrics,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		suffix:     randomSuffix,
	}
}

// randomSuffix returns 8 random hex characters
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// StoragePath derives the blob path of an upload:
// <workspace>/<unix millis>-<suffix>.<ext>, without the extension part
// when the file name has none
func StoragePath(workspaceID, fileName string, at time.Time, suffix string) string {
	path := fmt.Sprintf("%s/%d-%s", workspaceID, at.UnixMilli(), suffix)
	if ext := strings.TrimPrefix(filepath.Ext(fileName), "."); ext != "" {
		path += "." + ext
	}
	return path
}

// ListFiles returns the files of a workspace, newest first
func (s *Service) ListFiles(ctx context.Context, session *auth.Session, workspaceID string) ([]*storage.File, error) {
	const op = "files.ListFiles"

	if session == nil {
		return nil, apperrors.AuthenticationRequired(op)
	}
	if strings.TrimSpace(workspaceID) == "" {
		return nil, apperrors.Validation(op, "workspace id is required")
	}

	files, err := s.files.ListFiles(ctx, workspaceID)
	if err != nil {
		return nil, apperrors.Store(op, "failed to fetch files", err)
	}
	if files == nil {
		files = []*storage.File{}
	}
	return files, nil
}

// UploadFile stores the blob, then records its metadata. When the record
// cannot be written the blob is removed again and a PartialUploadError
// describes the outcome.
func (s *Service) UploadFile(ctx context.Context, session *auth.Session, input UploadInput) (*storage.File, error) {
	const op = "files.UploadFile"

	if session == nil {
		return nil, apperrors.AuthenticationRequired(op)
	}
	if !rbac.CanUploadFile(session.Role()) {
		s.denied(ctx, session, "upload files", input.WorkspaceID)
		return nil, apperrors.PermissionDenied(op, "upload files")
	}

	workspaceID := strings.TrimSpace(input.WorkspaceID)
	fileName := strings.TrimSpace(input.FileName)
	switch {
	case workspaceID == "":
		return nil, apperrors.Validation(op, "workspace id is required")
	case fileName == "":
		return nil, apperrors.Validation(op, "file name is required")
	case input.Content == nil:
		return nil, apperrors.Validation(op, "file content is required")
	}

	if _, err := s.workspaces.GetWorkspace(ctx, workspaceID); errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound(op, "workspace not found")
	} else if err != nil {
		return nil, apperrors.Store(op, "failed to upload file", err)
	}

	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	now := s.now()
	path := StoragePath(workspaceID, fileName, now, s.suffix())
	logger := observability.FromContext(ctx).WithField("file_path", path)

	written, err := s.blobs.PutBlob(ctx, path, input.Content, mimeType)
	if err != nil {
		s.metrics.RecordUpload("blob_error", 0)
		s.uploadFailed(ctx, session, path, err)
		return nil, apperrors.Store(op, "failed to upload file", err)
	}

	file := &storage.File{
		ID:          s.newID(),
		WorkspaceID: workspaceID,
		FileName:    fileName,
		FilePath:    path,
		FileSize:    written,
		MimeType:    mimeType,
		UploadedBy:  session.UserID(),
		CreatedAt:   now,
	}

	if err := s.files.CreateFile(ctx, file); err != nil {
		partial := &apperrors.PartialUploadError{Path: path, Err: err}

		// the blob must go even when the caller has gone away
		rollbackErr := s.blobs.DeleteBlob(context.WithoutCancel(ctx), path)
		if rollbackErr != nil {
			partial.RollbackErr = rollbackErr
			logger.WithError(rollbackErr).Error("failed to remove blob after metadata insert failure, orphan left")
		} else {
			partial.RolledBack = true
			logger.WithError(err).Warn("metadata insert failed, blob removed")
		}

		s.metrics.RecordUpload("metadata_error", 0)
		s.metrics.RecordPartialUpload(partial.RolledBack)
		s.uploadFailed(ctx, session, path, partial)
		return nil, partial
	}

	s.metrics.RecordUpload("success", written)
	audit.Emit(ctx, s.audit, &audit.AuditEvent{
		EventType:    audit.EventTypeDataFileUpload,
		Status:       audit.EventStatusSuccess,
		UserID:       session.UserID(),
		ResourceType: audit.ResourceTypeFile,
		ResourceID:   file.ID,
		Message:      "uploaded " + file.FileName,
		Metadata: map[string]interface{}{
			"workspace_id": workspaceID,
			"file_path":    path,
			"file_size":    written,
		},
	})

	return file, nil
}

// UploadFileAndReload uploads a file and re-fetches the workspace's files
func (s *Service) UploadFileAndReload(ctx context.Context, session *auth.Session, input UploadInput) (*storage.File, []*storage.File, error) {
	file, err := s.UploadFile(ctx, session, input)
	if err != nil {
		return nil, nil, err
	}

	files, err := s.ListFiles(ctx, session, file.WorkspaceID)
	if err != nil {
		return file, nil, err
	}
	return file, files, nil
}

// DeleteFile removes the blob and then the metadata row. If the blob
// cannot be removed the row is kept so the file stays visible and the
// delete can be retried.
func (s *Service) DeleteFile(ctx context.Context, session *auth.Session, fileID string) (*storage.File, error) {
	const op = "files.DeleteFile"

	if session == nil {
		return nil, apperrors.AuthenticationRequired(op)
	}

	file, err := s.getFile(ctx, op, fileID)
	if err != nil {
		return nil, err
	}

	isUploader := file.UploadedBy != "" && file.UploadedBy == session.UserID()
	if !rbac.CanDeleteFile(session.Role(), isUploader) {
		s.denied(ctx, session, "delete this file", file.ID)
		return nil, apperrors.PermissionDenied(op, "delete this file")
	}

	if err := s.blobs.DeleteBlob(ctx, file.FilePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.metrics.RecordFileDelete("blob_error")
		s.deleteFailed(ctx, session, file, err)
		return nil, apperrors.Store(op, "failed to delete file", err)
	}

	if err := s.files.DeleteFile(ctx, file.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound(op, "file not found")
		}
		s.metrics.RecordFileDelete("metadata_error")
		s.deleteFailed(ctx, session, file, err)
		return nil, apperrors.Store(op, "failed to delete file", err)
	}

	s.metrics.RecordFileDelete("success")
	audit.Emit(ctx, s.audit, &audit.AuditEvent{
		EventType:    audit.EventTypeDataFileDelete,
		Status:       audit.EventStatusSuccess,
		UserID:       session.UserID(),
		ResourceType: audit.ResourceTypeFile,
		ResourceID:   file.ID,
		Message:      "deleted " + file.FileName,
		Metadata: map[string]interface{}{
			"workspace_id": file.WorkspaceID,
			"file_path":    file.FilePath,
			"own_file":     isUploader,
		},
	})

	return file, nil
}

// DeleteFileAndReload deletes a file and re-fetches its workspace's files
func (s *Service) DeleteFileAndReload(ctx context.Context, session *auth.Session, fileID string) (*storage.File, []*storage.File, error) {
	file, err := s.DeleteFile(ctx, session, fileID)
	if err != nil {
		return nil, nil, err
	}

	files, err := s.ListFiles(ctx, session, file.WorkspaceID)
	if err != nil {
		return file, nil, err
	}
	return file, files, nil
}

// DownloadFile opens a file's content. The caller closes the reader.
func (s *Service) DownloadFile(ctx context.Context, session *auth.Session, fileID string) (*storage.File, io.ReadCloser, error) {
	const op = "files.DownloadFile"

	if session == nil {
		return nil, nil, apperrors.AuthenticationRequired(op)
	}
	if !rbac.CanDownloadFile(session.Role()) {
		s.denied(ctx, session, "download files", fileID)
		return nil, nil, apperrors.PermissionDenied(op, "download files")
	}

	file, err := s.getFile(ctx, op, fileID)
	if err != nil {
		return nil, nil, err
	}

	content, err := s.blobs.GetBlob(ctx, file.FilePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, apperrors.NotFound(op, "file content not found")
	} else if err != nil {
		return nil, nil, apperrors.Store(op, "failed to download file", err)
	}

	return file, content, nil
}

func (s *Service) getFile(ctx context.Context, op, fileID string) (*storage.File, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, apperrors.Validation(op, "file id is required")
	}

	file, err := s.files.GetFile(ctx, fileID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound(op, "file not found")
	} else if err != nil {
		return nil, apperrors.Store(op, "failed to fetch file", err)
	}
	return file, nil
}

func (s *Service) denied(ctx context.Context, session *auth.Session, action, resourceID string) {
	s.metrics.RecordAccessDenied(action)
	audit.Emit(ctx, s.audit, &audit.AuditEvent{
		EventType:    audit.EventTypeAuthzAccessDenied,
		Status:       audit.EventStatusDenied,
		UserID:       session.UserID(),
		ResourceType: audit.ResourceTypeFile,
		ResourceID:   resourceID,
		Message:      "denied: " + action,
		Metadata:     map[string]interface{}{"role": string(session.Role())},
	})
}

func (s *Service) uploadFailed(ctx context.Context, session *auth.Session, path string, err error) {
	audit.Emit(ctx, s.audit, &audit.AuditEvent{
		EventType:    audit.EventTypeDataFileUpload,
		Status:       audit.EventStatusFailure,
		UserID:       session.UserID(),
		ResourceType: audit.ResourceTypeBlob,
		ResourceID:   path,
		ErrorMessage: err.Error(),
	})
}

func (s *Service) deleteFailed(ctx context.Context, session *auth.Session, file *storage.File, err error) {
	audit.Emit(ctx, s.audit, &audit.AuditEvent{
		EventType:    audit.EventTypeDataFileDelete,
		Status:       audit.EventStatusFailure,
		UserID:       session.UserID(),
		ResourceType: audit.ResourceTypeFile,
		ResourceID:   file.ID,
		ErrorMessage: err.Error(),
	})
}
