package api

import (
	"context"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/workbench/pkg/audit"
	"github.com/platinummonkey/workbench/pkg/auth"
	"github.com/platinummonkey/workbench/pkg/files"
	"github.com/platinummonkey/workbench/pkg/httputil"
	"github.com/platinummonkey/workbench/pkg/middleware"
	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/rbac"
	"github.com/platinummonkey/workbench/pkg/storage"
	"github.com/platinummonkey/workbench/pkg/workspace"
)

// DefaultMaxUploadBytes caps multipart upload bodies when Config leaves it unset
const DefaultMaxUploadBytes = 50 << 20

// IdentityProvider authenticates bearer tokens and ends sessions
type IdentityProvider interface {
	middleware.Authenticator
	SignOut(ctx context.Context, session *auth.Session) error
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// Config tunes the HTTP surface
type Config struct {
	MaxUploadBytes     int64
	CORSAllowedOrigins []string
	// Tracing wraps the handler with otelhttp server spans
	Tracing bool
	// RateLimiter is optional; nil disables rate limiting
	RateLimiter middleware.Limiter
	RateLimit   *middleware.RateLimitConfig
}

// Deps are the services behind the API
type Deps struct {
	Identity   IdentityProvider
	Workspaces *workspace.Service
	Files      *files.Service
	Profiles   storage.ProfileStore
	// SSO registers /auth/login and /auth/callback when set
	SSO     RouteRegistrar
	Audit   audit.Logger
	Metrics *observability.Metrics
	Logger  *observability.Logger
}

// Server represents our API server
type Server struct {
	router     *mux.Router
	handler    http.Handler
	identity   IdentityProvider
	workspaces *workspace.Service
	files      *files.Service
	profiles   storage.ProfileStore
	audit      audit.Logger
	metrics    *observability.Metrics
	logger     *observability.Logger
	maxUpload  int64
}

// NewServer creates a new API server
func NewServer(deps Deps, cfg Config) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		router:     mux.NewRouter(),
		identity:   deps.Identity,
		workspaces: deps.Workspaces,
		files:      deps.Files,
		profiles:   deps.Profiles,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		maxUpload:  cfg.MaxUploadBytes,
	}

	s.setupRoutes(deps, cfg)

	handler := httputil.Chain(
		observability.RecoveryMiddleware(deps.Logger),
		corsMiddleware(cfg.CORSAllowedOrigins),
		httputil.RequestIDMiddleware(deps.Logger),
		httputil.LoggingMiddleware,
	)(s.router)
	if cfg.Tracing {
		handler = otelhttp.NewHandler(handler, "workbench-api")
	}
	s.handler = handler

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(deps Deps, cfg Config) {
	s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "not found")
	})

	if deps.SSO != nil {
		deps.SSO.RegisterRoutes(s.router)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.NewAuthMiddleware(s.identity, false).Handler)
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit, s.metrics))
	}

	// Session routes
	api.HandleFunc("/me", s.getMe).Methods("GET")
	api.HandleFunc("/auth/signout", s.signOut).Methods("POST")

	// Workspace routes
	api.HandleFunc("/workspaces", s.listWorkspaces).Methods("GET")
	api.HandleFunc("/workspaces", s.createWorkspace).Methods("POST")
	api.HandleFunc("/permissions", s.listPermissions).Methods("GET")

	// File routes
	api.HandleFunc("/workspaces/{id}/files", s.listFiles).Methods("GET")
	api.Handle("/workspaces/{id}/files", httputil.MaxBytesMiddleware(s.maxUpload)(http.HandlerFunc(s.uploadFile))).Methods("POST")
	api.HandleFunc("/files/{id}/download", s.downloadFile).Methods("GET")
	api.HandleFunc("/files/{id}", s.deleteFile).Methods("DELETE")

	// Admin panel
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(rbac.RequireAdmin(s.metrics))
	admin.HandleFunc("/profiles", s.listProfiles).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			httputil.RequestIDHeader,
		},
		ExposedHeaders: []string{
			"Content-Disposition",
			httputil.RequestIDHeader,
		},
		// bearer tokens, not cookies, so credentials stay off
		AllowCredentials: false,
		MaxAge:           300,
	})
}
