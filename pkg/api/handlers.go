package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/platinummonkey/workbench/pkg/apperrors"
	"github.com/platinummonkey/workbench/pkg/audit"
	"github.com/platinummonkey/workbench/pkg/auth"
	"github.com/platinummonkey/workbench/pkg/files"
	"github.com/platinummonkey/workbench/pkg/httputil"
	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/rbac"
	"github.com/platinummonkey/workbench/pkg/storage"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files
const multipartMemory = 8 << 20

func session(r *http.Request) *auth.Session {
	s, _ := auth.SessionFromContext(r.Context())
	return s
}

// getMe handles GET /api/v1/me
func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	httputil.WriteSuccess(w, &MeResponse{
		User:         sess.User,
		Profile:      sess.Profile,
		Role:         string(sess.Role()),
		Capabilities: rbac.CapabilitiesFor(sess.Role()),
	})
}

// signOut handles POST /api/v1/auth/signout
func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	if err := s.identity.SignOut(r.Context(), sess); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	audit.Emit(r.Context(), s.audit, &audit.AuditEvent{
		EventType:    audit.EventTypeAuthLogout,
		Status:       audit.EventStatusSuccess,
		UserID:       sess.UserID(),
		ResourceType: audit.ResourceTypeSession,
		Message:      "signed out",
	})
	httputil.WriteNoContent(w)
}

// listWorkspaces handles GET /api/v1/workspaces
func (s *Server) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	entries, err := s.workspaces.Dashboard(r.Context(), session(r))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, &WorkspacesResponse{Workspaces: entries})
}

// createWorkspace handles POST /api/v1/workspaces
func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkspaceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ws, list, err := s.workspaces.CreateWorkspaceAndReload(r.Context(), session(r), req)
	if err != nil && ws == nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err != nil {
		// created, but the refresh failed; the client reloads on its own
		observability.FromContext(r.Context()).WithError(err).Warn("failed to reload workspaces after create")
	}

	httputil.WriteCreated(w, &CreateWorkspaceResponse{Workspace: ws, Workspaces: list})
}

// listPermissions handles GET /api/v1/permissions
func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := s.workspaces.ListMyPermissions(r.Context(), session(r))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, &PermissionsResponse{Permissions: perms})
}

// listFiles handles GET /api/v1/workspaces/{id}/files?q=
func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	list, err := s.files.ListFiles(r.Context(), session(r), workspaceID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	list = files.SearchFiles(list, httputil.ParseQueryString(r, "q", ""))
	httputil.WriteSuccess(w, &FilesResponse{Files: fileViews(list)})
}

// uploadFile handles POST /api/v1/workspaces/{id}/files (multipart field "file")
func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		httputil.WriteBadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	content, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "file is required")
		return
	}
	defer content.Close()

	file, list, err := s.files.UploadFileAndReload(r.Context(), session(r), files.UploadInput{
		WorkspaceID: workspaceID,
		FileName:    header.Filename,
		MimeType:    header.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil && file == nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to reload files after upload")
	}

	view := newFileView(file)
	httputil.WriteCreated(w, &UploadResponse{File: &view, Files: fileViews(list)})
}

// downloadFile handles GET /api/v1/files/{id}/download
func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	file, content, err := s.files.DownloadFile(r.Context(), session(r), fileID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName}))
	if size, ok := storage.BlobSize(content); ok {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		observability.FromContext(r.Context()).WithError(err).WithField("file_id", file.ID).Warn("download interrupted")
	}
}

// deleteFile handles DELETE /api/v1/files/{id}
func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	file, list, err := s.files.DeleteFileAndReload(r.Context(), session(r), fileID)
	if err != nil && file == nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to reload files after delete")
	}

	view := newFileView(file)
	httputil.WriteSuccess(w, &DeleteResponse{Deleted: &view, Files: fileViews(list)})
}

// listProfiles handles GET /api/v1/admin/profiles
func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	const op = "api.ListProfiles"

	profiles, err := s.profiles.ListProfiles(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, apperrors.Store(op, "failed to fetch profiles", err))
		return
	}
	if profiles == nil {
		profiles = []*storage.Profile{}
	}
	httputil.WriteSuccess(w, &ProfilesResponse{Profiles: profiles})
}
