package middleware

import (
	"context"
	"net/http"

	"github.com/platinummonkey/workbench/pkg/apperrors"
	"github.com/platinummonkey/workbench/pkg/auth"
	"github.com/platinummonkey/workbench/pkg/httputil"
	"github.com/platinummonkey/workbench/pkg/observability"
)

// Authenticator resolves a raw bearer token into a session
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	authenticator Authenticator
	optional      bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator Authenticator, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		optional:      optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	const op = "middleware.Authenticate"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" && m.optional {
			next.ServeHTTP(w, r)
			return
		}

		// Format: "Bearer <token>"
		token, ok := auth.BearerToken(header)
		if !ok {
			httputil.WriteAppError(w, r, apperrors.AuthenticationRequired(op))
			return
		}

		session, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}

		ctx := auth.WithSession(r.Context(), session)
		ctx = observability.WithLogger(ctx, observability.FromContext(ctx).WithField("user_id", session.UserID()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
