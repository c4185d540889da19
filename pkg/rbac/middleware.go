package rbac

import (
	"net/http"

	"github.com/platinummonkey/workbench/pkg/auth"
	"github.com/platinummonkey/workbench/pkg/httputil"
	"github.com/platinummonkey/workbench/pkg/observability"
)

// RequirePermission creates middleware that requires a specific global permission
func RequirePermission(p Permission, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := auth.SessionFromContext(r.Context())
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if !HasPermission(session.Role(), p) {
				metrics.RecordAccessDenied(p.String())
				observability.FromContext(r.Context()).
					WithField("permission", p.String()).
					WithField("role", string(session.Role())).
					Warn("permission denied")
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates the admin panel
func RequireAdmin(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return RequirePermission(PermViewAdminPanel, metrics)
}
