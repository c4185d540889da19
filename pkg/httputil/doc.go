// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteForbidden(w, "you do not have permission to view the admin panel")
//
// Service errors carry an apperrors kind. WriteAppError maps the kind to a
// status code and writes the user-facing message:
//
//	if err != nil {
//		httputil.WriteAppError(w, r, err)
//		return
//	}
//
// | Kind                    | Status |
// |-------------------------|--------|
// | authentication_required | 401    |
// | permission_denied       | 403    |
// | validation_error        | 400    |
// | not_found               | 404    |
// | anything else           | 500    |
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.MaxBytesMiddleware(50<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Bearer-token authentication
package httputil
