package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/workbench/pkg/api"
	"github.com/platinummonkey/workbench/pkg/audit"
	"github.com/platinummonkey/workbench/pkg/auth"
	"github.com/platinummonkey/workbench/pkg/config"
	"github.com/platinummonkey/workbench/pkg/files"
	"github.com/platinummonkey/workbench/pkg/janitor"
	"github.com/platinummonkey/workbench/pkg/middleware"
	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/sso"
	"github.com/platinummonkey/workbench/pkg/storage/postgres"
	"github.com/platinummonkey/workbench/pkg/workspace"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv(config.ConfigFileEnv), "Path to a YAML config file")
	migrate := flag.Bool("migrate", false, "Run database migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).
		WithField("service", "workbench").
		WithField("version", version)

	if *migrate {
		if err := runMigrations(context.Background(), cfg); err != nil {
			logger.WithError(err).Error("Migrations failed")
			os.Exit(1)
		}
		logger.Info("Migrations applied")
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := observability.WithLogger(context.Background(), logger)

	// Observability
	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Storage
	backend, err := postgres.Open(ctx, cfg.Storage, metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	logger.WithField("type", cfg.Storage.Type).Info("Storage initialized")

	redisClient, closeRedis, err := sharedRedis(cfg, backend)
	if err != nil {
		backend.Close()
		return err
	}

	// Identity
	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		backend.Close()
		return err
	}

	var revoked auth.RevocationList
	if cfg.Auth.RevocationBackend == "redis" {
		revoked = auth.NewRedisRevocationList(redisClient)
	}
	provider := auth.NewProvider(verifier, backend.Metadata, revoked, auth.ProviderOptions{
		ProfileCacheSize: cfg.Auth.ProfileCacheSize,
		ProfileCacheTTL:  cfg.Auth.ProfileCacheTTL,
		Logger:           logger.WithField("component", "auth"),
	})

	// Audit
	var auditLogger audit.Logger = audit.NoOpLogger{}
	if cfg.Audit.Sink == "file" {
		fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: cfg.Audit.Path,
			Rotate:   true,
			MaxSize:  cfg.Audit.MaxSize,
			MaxFiles: cfg.Audit.MaxFiles,
		})
		if err != nil {
			backend.Close()
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		auditLogger = fileLogger
	}

	// Services
	workspaces := workspace.NewService(backend.Metadata, backend.Metadata, workspace.Options{Audit: auditLogger, Metrics: metrics})
	fileService := files.NewService(backend.Metadata, backend.Metadata, backend.Blobs, files.Options{Audit: auditLogger, Metrics: metrics})

	deps := api.Deps{
		Identity:   provider,
		Workspaces: workspaces,
		Files:      fileService,
		Profiles:   backend.Metadata,
		Audit:      auditLogger,
		Metrics:    metrics,
		Logger:     logger,
	}
	if cfg.Auth.SSOEnabled {
		ssoConfig := sso.Config{
			IssuerURL:    cfg.Auth.OIDCIssuer,
			ClientID:     cfg.Auth.OIDCClientID,
			ClientSecret: cfg.Auth.OIDCClientSecret,
			RedirectURL:  cfg.Auth.OIDCRedirectURL,
		}
		oidcProvider, err := sso.NewOIDCProvider(ctx, ssoConfig)
		if err != nil {
			backend.Close()
			return fmt.Errorf("failed to initialize SSO: %w", err)
		}
		deps.SSO = sso.NewHandlers(oidcProvider, backend.Metadata, ssoConfig, sso.Options{Audit: auditLogger, Invalidator: provider})
	}

	apiConfig := api.Config{
		MaxUploadBytes:     cfg.Server.MaxUploadBytes,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Tracing:            cfg.Observability.OTelEnabled,
	}
	if cfg.RateLimit.Enabled {
		apiConfig.RateLimit = &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			WindowDuration:    cfg.RateLimit.Window,
			BurstSize:         cfg.RateLimit.Burst,
		}
		if cfg.RateLimit.Backend == "redis" {
			apiConfig.RateLimiter = middleware.NewDistributedRateLimiter(redisClient, apiConfig.RateLimit, "")
		} else {
			limiter := middleware.NewRateLimiter(apiConfig.RateLimit)
			limiter.StartCleanup(ctx)
			apiConfig.RateLimiter = limiter
		}
	}
	server := api.NewServer(deps, apiConfig)

	// Health
	checker := observability.NewHealthChecker(version)
	if backend.DB != nil {
		checker.AddCheck("database", true, observability.DatabaseCheck(backend.DB))
	}
	if redisClient != nil {
		checker.AddCheck("redis", false, observability.RedisCheck(redisClient))
	}
	checker.AddCheck("blob_store", true, backend.Blobs.HealthCheck)

	mainServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	opsServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      api.NewOpsRouter(checker, registry),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, mainServer, opsServer)

	// Orphan sweeper
	var sweeper *janitor.Sweeper
	if cfg.Janitor.Enabled {
		sweeper = janitor.NewSweeper(backend.Blobs, backend.Metadata, janitor.Config{
			Schedule:    cfg.Janitor.Schedule,
			GracePeriod: cfg.Janitor.GracePeriod,
		}, janitor.Options{
			Logger:  logger.WithField("component", "janitor"),
			Metrics: metrics,
			Audit:   auditLogger,
		})
		if err := sweeper.Start(ctx); err != nil {
			backend.Close()
			return fmt.Errorf("failed to start janitor: %w", err)
		}
	}

	// Shutdown funcs run concurrently; the sweeper must stop before the
	// stores it reads from are closed.
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		var errs []error
		if sweeper != nil {
			errs = append(errs, sweeper.Stop(ctx))
		}
		errs = append(errs, auditLogger.Close(), closeRedis(), backend.Close())
		return errors.Join(errs...)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	serverErrors := make(chan error, 2)
	for _, srv := range []*http.Server{mainServer, opsServer} {
		go func(srv *http.Server) {
			defer observability.RecoverPanic(logger, "http server")
			logger.WithField("addr", srv.Addr).Info("Starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := <-serverErrors; err != nil {
			logger.WithError(err).Error("HTTP server failed")
			cancel()
		}
	}()

	return shutdown.WaitForShutdown(waitCtx)
}

// sharedRedis returns the Redis client used for revocation and rate limiting.
// The storage cache client is reused when present.
func sharedRedis(cfg *config.Config, backend *postgres.Backend) (*redis.Client, func() error, error) {
	noop := func() error { return nil }

	if backend.Redis != nil {
		// closed together with the cached store
		return backend.Redis.GetClient(), noop, nil
	}
	needed := cfg.Auth.RevocationBackend == "redis" || (cfg.RateLimit.Enabled && cfg.RateLimit.Backend == "redis")
	if !needed || cfg.Storage.RedisURL == "" {
		return nil, noop, nil
	}

	client, err := postgres.NewRedisClient(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return client.GetClient(), client.Close, nil
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.TokenVerifier, error) {
	switch cfg.Verifier {
	case "oidc":
		verifier, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC verifier: %w", err)
		}
		return verifier, nil
	default:
		return auth.NewJWTVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience), nil
	}
}

func runMigrations(ctx context.Context, cfg *config.Config) error {
	switch cfg.Storage.Type {
	case "postgres":
		db, err := postgres.OpenPostgres(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer db.Close()
		return postgres.RunMigrations(ctx, db, postgres.DialectPostgres)
	case "local":
		db, err := postgres.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		return postgres.RunMigrations(ctx, db, postgres.DialectSQLite)
	default:
		return fmt.Errorf("storage type %q has no schema to migrate", cfg.Storage.Type)
	}
}
