// Package apperrors defines the error kinds returned by the workspace and file
// services and the helpers the HTTP layer uses to map them to responses.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a service error
type Kind string

const (
	KindAuthenticationRequired Kind = "authentication_required"
	KindPermissionDenied       Kind = "permission_denied"
	KindValidation             Kind = "validation_error"
	KindNotFound               Kind = "not_found"
	KindStore                  Kind = "store_error"
	KindPartialUpload          Kind = "partial_upload"
	KindUnknown                Kind = "unknown"
)

// Error is a classified service error. Op names the operation that failed,
// Message is safe to show to end users, Err is the underlying cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AuthenticationRequired is returned when an operation runs without a session
func AuthenticationRequired(op string) *Error {
	return &Error{Kind: KindAuthenticationRequired, Op: op, Message: "authentication required"}
}

// PermissionDenied is returned when the access policy rejects an action
func PermissionDenied(op, action string) *Error {
	return &Error{
		Kind:    KindPermissionDenied,
		Op:      op,
		Message: fmt.Sprintf("you do not have permission to %s", action),
	}
}

// Validation is returned for missing or malformed input
func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// NotFound is returned when a referenced workspace or file does not exist
func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// Store wraps a failure reported by a metadata or blob store
func Store(op, message string, err error) *Error {
	return &Error{Kind: KindStore, Op: op, Message: message, Err: err}
}

// PartialUploadError reports a blob that was written while its metadata row
// was not. RolledBack tells whether the blob was removed again; when it is
// false, Path names an orphan left in the blob store.
type PartialUploadError struct {
	Path        string
	RolledBack  bool
	RollbackErr error
	Err         error
}

func (e *PartialUploadError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("upload of %s failed after blob write (blob removed): %v", e.Path, e.Err)
	}
	return fmt.Sprintf("upload of %s failed after blob write (orphan blob left: %v): %v", e.Path, e.RollbackErr, e.Err)
}

func (e *PartialUploadError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or KindUnknown
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var partial *PartialUploadError
	if errors.As(err, &partial) {
		return KindPartialUpload
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UserMessage returns a human-readable message for err. Store causes are
// never included.
func UserMessage(err error) string {
	var partial *PartialUploadError
	if errors.As(err, &partial) {
		return "failed to upload file"
	}
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "internal server error"
}
