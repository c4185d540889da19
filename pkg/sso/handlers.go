package sso

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/workbench/pkg/audit"
	"github.com/platinummonkey/workbench/pkg/auth"
	"github.com/platinummonkey/workbench/pkg/httputil"
	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/storage"
)

const (
	stateCookieName = "workbench_sso_state"
	stateCookieTTL  = 10 * time.Minute
)

// IdentityProvider runs the authorization-code flow
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// ProfileInvalidator drops cached profiles after a login refreshes them
type ProfileInvalidator interface {
	InvalidateProfile(userID string)
}

// Options wires optional collaborators into Handlers
type Options struct {
	Audit       audit.Logger
	Invalidator ProfileInvalidator
}

// Handlers handles SSO-related HTTP requests
type Handlers struct {
	provider     IdentityProvider
	profiles     storage.ProfileStore
	defaultRole  string
	cookieSecure bool
	audit        audit.Logger
	invalidator  ProfileInvalidator
}

// NewHandlers creates a new SSO handlers instance
func NewHandlers(provider IdentityProvider, profiles storage.ProfileStore, cfg Config, opts Options) *Handlers {
	role := cfg.DefaultRole
	if !auth.Role(role).Valid() {
		role = DefaultRole
	}

	return &Handlers{
		provider:     provider,
		profiles:     profiles,
		defaultRole:  role,
		cookieSecure: cfg.CookieSecure,
		audit:        opts.Audit,
		invalidator:  opts.Invalidator,
	}
}

// RegisterRoutes registers SSO routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.initiateLogin).Methods("GET")
	router.HandleFunc("/auth/callback", h.handleCallback).Methods("GET")
}

// initiateLogin handles GET /auth/login
func (h *Handlers) initiateLogin(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to generate SSO state")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// handleCallback handles GET /auth/callback
func (h *Handlers) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)
	query := r.URL.Query()

	if idpErr := query.Get("error"); idpErr != "" {
		logger.WithField("idp_error", idpErr).Warn("identity provider rejected login")
		h.loginFailed(ctx, idpErr)
		httputil.WriteBadRequest(w, "login was not completed")
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != query.Get("state") {
		h.loginFailed(ctx, "state mismatch")
		httputil.WriteBadRequest(w, "invalid login state")
		return
	}
	h.clearStateCookie(w)

	identity, err := h.provider.Exchange(ctx, query.Get("code"))
	if err != nil {
		logger.WithError(err).Warn("SSO code exchange failed")
		h.loginFailed(ctx, err.Error())
		httputil.WriteUnauthorized(w, "authentication failed")
		return
	}

	// Provision on first login. An existing profile keeps its role.
	if err := h.profiles.UpsertProfile(ctx, &storage.Profile{
		ID:       identity.Subject,
		Email:    identity.Email,
		FullName: identity.FullName,
		Role:     h.defaultRole,
	}); err != nil {
		logger.WithError(err).WithField("user_id", identity.Subject).Error("failed to provision profile")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to provision profile")
		return
	}
	if h.invalidator != nil {
		h.invalidator.InvalidateProfile(identity.Subject)
	}

	audit.Emit(ctx, h.audit, &audit.AuditEvent{
		EventType:    audit.EventTypeAuthLogin,
		Status:       audit.EventStatusSuccess,
		UserID:       identity.Subject,
		ResourceType: audit.ResourceTypeSession,
		Message:      "SSO login",
	})

	httputil.WriteSuccess(w, &LoginResult{
		IDToken:   identity.IDToken,
		ExpiresAt: identity.ExpiresAt,
		UserID:    identity.Subject,
		Email:     identity.Email,
	})
}

func (h *Handlers) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) loginFailed(ctx context.Context, reason string) {
	audit.Emit(ctx, h.audit, &audit.AuditEvent{
		EventType:    audit.EventTypeAuthLogin,
		Status:       audit.EventStatusFailure,
		ResourceType: audit.ResourceTypeSession,
		ErrorMessage: reason,
	})
}
