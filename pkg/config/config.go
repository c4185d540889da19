package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/workbench/pkg/janitor"
	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/storage"
)

// ConfigFileEnv names the environment variable holding the YAML file path
const ConfigFileEnv = "WORKBENCH_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Janitor       JanitorConfig       `yaml:"janitor"`
	Audit         AuditConfig         `yaml:"audit"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	MaxUploadBytes     int64    `yaml:"max_upload_bytes"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// AuthConfig selects and configures the bearer-token verifier
type AuthConfig struct {
	// Verifier is "jwt" (shared HS256 secret) or "oidc"
	Verifier    string `yaml:"verifier"`
	JWTSecret   string `yaml:"jwt_secret"`
	JWTIssuer   string `yaml:"jwt_issuer"`
	JWTAudience string `yaml:"jwt_audience"`

	OIDCIssuer       string `yaml:"oidc_issuer"`
	OIDCClientID     string `yaml:"oidc_client_id"`
	OIDCClientSecret string `yaml:"oidc_client_secret"`
	OIDCRedirectURL  string `yaml:"oidc_redirect_url"`

	// SSOEnabled serves /auth/login and /auth/callback
	SSOEnabled bool `yaml:"sso_enabled"`

	ProfileCacheSize int           `yaml:"profile_cache_size"`
	ProfileCacheTTL  time.Duration `yaml:"profile_cache_ttl"`

	// RevocationBackend is "memory" or "redis"
	RevocationBackend string `yaml:"revocation_backend"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// JanitorConfig controls the orphan blob sweeper
type JanitorConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Schedule    string        `yaml:"schedule"`
	GracePeriod time.Duration `yaml:"grace_period"`
}

// AuditConfig selects the audit sink
type AuditConfig struct {
	// Sink is "none" or "file"
	Sink     string `yaml:"sink"`
	Path     string `yaml:"path"`
	MaxSize  int64  `yaml:"max_size"`
	MaxFiles int    `yaml:"max_files"`
}

// RateLimitConfig throttles API requests per user or client IP
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
	Burst             int           `yaml:"burst"`
	// Backend is "memory" or "redis"
	Backend string `yaml:"backend"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               "8080",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       60 * time.Second,
			IdleTimeout:        60 * time.Second,
			ShutdownTimeout:    30 * time.Second,
			HealthPort:         "9090",
			MaxUploadBytes:     50 << 20,
			CORSAllowedOrigins: []string{"*"},
		},
		Storage: storage.DefaultConfig(),
		Auth: AuthConfig{
			Verifier:          "jwt",
			JWTAudience:       "authenticated",
			ProfileCacheSize:  1024,
			ProfileCacheTTL:   5 * time.Minute,
			RevocationBackend: "memory",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "workbench",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
		Janitor: JanitorConfig{
			Enabled:     true,
			Schedule:    janitor.DefaultSchedule,
			GracePeriod: janitor.DefaultGracePeriod,
		},
		Audit: AuditConfig{
			Sink:     "none",
			Path:     "/var/log/workbench/audit",
			MaxSize:  100 * 1024 * 1024,
			MaxFiles: 10,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerWindow: 600,
			Window:            time.Minute,
			Burst:             50,
			Backend:           "memory",
		},
	}
}

// LoadConfig loads configuration from WORKBENCH_CONFIG_FILE (if set) and
// environment variables
func LoadConfig() (*Config, error) {
	return Load(os.Getenv(ConfigFileEnv))
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then WORKBENCH_* environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	// Server
	c.Server.Host = getEnv("WORKBENCH_HOST", c.Server.Host)
	c.Server.Port = getEnv("WORKBENCH_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("WORKBENCH_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("WORKBENCH_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("WORKBENCH_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("WORKBENCH_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.HealthPort = getEnv("WORKBENCH_HEALTH_PORT", c.Server.HealthPort)
	c.Server.MaxUploadBytes = getEnvInt64("WORKBENCH_MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes)
	if origins := getEnv("WORKBENCH_CORS_ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.CORSAllowedOrigins = splitList(origins)
	}

	// Storage
	s := &c.Storage
	s.Type = getEnv("WORKBENCH_STORAGE_TYPE", s.Type)
	s.FilesystemRoot = getEnv("WORKBENCH_FILESYSTEM_ROOT", s.FilesystemRoot)
	s.SQLitePath = getEnv("WORKBENCH_SQLITE_PATH", s.SQLitePath)
	s.PostgresURL = getEnv("WORKBENCH_POSTGRES_URL", s.PostgresURL)
	s.PostgresMaxConns = getEnvInt("WORKBENCH_POSTGRES_MAX_CONNS", s.PostgresMaxConns)
	s.PostgresMinConns = getEnvInt("WORKBENCH_POSTGRES_MIN_CONNS", s.PostgresMinConns)
	s.PostgresTimeout = getEnvDuration("WORKBENCH_POSTGRES_TIMEOUT", s.PostgresTimeout)
	s.AutoMigrate = getEnvBool("WORKBENCH_AUTO_MIGRATE", s.AutoMigrate)
	s.S3Endpoint = getEnv("WORKBENCH_S3_ENDPOINT", s.S3Endpoint)
	s.S3Region = getEnv("WORKBENCH_S3_REGION", s.S3Region)
	s.S3Bucket = getEnv("WORKBENCH_S3_BUCKET", s.S3Bucket)
	s.S3AccessKey = getEnv("WORKBENCH_S3_ACCESS_KEY", s.S3AccessKey)
	s.S3SecretKey = getEnv("WORKBENCH_S3_SECRET_KEY", s.S3SecretKey)
	s.S3UsePathStyle = getEnvBool("WORKBENCH_S3_USE_PATH_STYLE", s.S3UsePathStyle)
	s.RedisURL = getEnv("WORKBENCH_REDIS_URL", s.RedisURL)
	s.RedisPassword = getEnv("WORKBENCH_REDIS_PASSWORD", s.RedisPassword)
	s.RedisDB = getEnvInt("WORKBENCH_REDIS_DB", s.RedisDB)
	s.RedisMaxRetries = getEnvInt("WORKBENCH_REDIS_MAX_RETRIES", s.RedisMaxRetries)
	s.RedisPoolSize = getEnvInt("WORKBENCH_REDIS_POOL_SIZE", s.RedisPoolSize)
	s.CacheEnabled = getEnvBool("WORKBENCH_CACHE_ENABLED", s.CacheEnabled)

	// Auth
	a := &c.Auth
	a.Verifier = getEnv("WORKBENCH_AUTH_VERIFIER", a.Verifier)
	a.JWTSecret = getEnv("WORKBENCH_JWT_SECRET", a.JWTSecret)
	a.JWTIssuer = getEnv("WORKBENCH_JWT_ISSUER", a.JWTIssuer)
	a.JWTAudience = getEnv("WORKBENCH_JWT_AUDIENCE", a.JWTAudience)
	a.OIDCIssuer = getEnv("WORKBENCH_OIDC_ISSUER", a.OIDCIssuer)
	a.OIDCClientID = getEnv("WORKBENCH_OIDC_CLIENT_ID", a.OIDCClientID)
	a.OIDCClientSecret = getEnv("WORKBENCH_OIDC_CLIENT_SECRET", a.OIDCClientSecret)
	a.OIDCRedirectURL = getEnv("WORKBENCH_OIDC_REDIRECT_URL", a.OIDCRedirectURL)
	a.SSOEnabled = getEnvBool("WORKBENCH_SSO_ENABLED", a.SSOEnabled)
	a.ProfileCacheSize = getEnvInt("WORKBENCH_PROFILE_CACHE_SIZE", a.ProfileCacheSize)
	a.ProfileCacheTTL = getEnvDuration("WORKBENCH_PROFILE_CACHE_TTL", a.ProfileCacheTTL)
	a.RevocationBackend = getEnv("WORKBENCH_REVOCATION_BACKEND", a.RevocationBackend)

	// Observability
	o := &c.Observability
	o.LogLevel = getEnv("WORKBENCH_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("WORKBENCH_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("WORKBENCH_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("WORKBENCH_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("WORKBENCH_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("WORKBENCH_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("WORKBENCH_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("WORKBENCH_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)

	// Janitor
	c.Janitor.Enabled = getEnvBool("WORKBENCH_JANITOR_ENABLED", c.Janitor.Enabled)
	c.Janitor.Schedule = getEnv("WORKBENCH_JANITOR_SCHEDULE", c.Janitor.Schedule)
	c.Janitor.GracePeriod = getEnvDuration("WORKBENCH_JANITOR_GRACE_PERIOD", c.Janitor.GracePeriod)

	// Audit
	c.Audit.Sink = getEnv("WORKBENCH_AUDIT_SINK", c.Audit.Sink)
	c.Audit.Path = getEnv("WORKBENCH_AUDIT_PATH", c.Audit.Path)
	c.Audit.MaxSize = getEnvInt64("WORKBENCH_AUDIT_MAX_SIZE", c.Audit.MaxSize)
	c.Audit.MaxFiles = getEnvInt("WORKBENCH_AUDIT_MAX_FILES", c.Audit.MaxFiles)

	// Rate limiting
	c.RateLimit.Enabled = getEnvBool("WORKBENCH_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RequestsPerWindow = getEnvInt("WORKBENCH_RATE_LIMIT_REQUESTS", c.RateLimit.RequestsPerWindow)
	c.RateLimit.Window = getEnvDuration("WORKBENCH_RATE_LIMIT_WINDOW", c.RateLimit.Window)
	c.RateLimit.Burst = getEnvInt("WORKBENCH_RATE_LIMIT_BURST", c.RateLimit.Burst)
	c.RateLimit.Backend = getEnv("WORKBENCH_RATE_LIMIT_BACKEND", c.RateLimit.Backend)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort == "" {
		return errors.New("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case "memory":
	case "local":
		if c.Storage.FilesystemRoot == "" || c.Storage.SQLitePath == "" {
			return errors.New("filesystem root and sqlite path are required for local storage")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return errors.New("postgres URL is required for postgres storage")
		}
		if c.Storage.S3Bucket == "" {
			return errors.New("S3 bucket is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, local, or postgres)", c.Storage.Type)
	}

	// Validate auth config
	switch c.Auth.Verifier {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return errors.New("JWT secret is required for the jwt verifier")
		}
	case "oidc":
		if c.Auth.OIDCIssuer == "" || c.Auth.OIDCClientID == "" {
			return errors.New("OIDC issuer and client ID are required for the oidc verifier")
		}
	default:
		return fmt.Errorf("invalid auth verifier: %s (must be jwt or oidc)", c.Auth.Verifier)
	}
	if c.Auth.SSOEnabled {
		if c.Auth.OIDCIssuer == "" || c.Auth.OIDCClientID == "" || c.Auth.OIDCClientSecret == "" || c.Auth.OIDCRedirectURL == "" {
			return errors.New("SSO requires OIDC issuer, client ID, client secret and redirect URL")
		}
	}
	switch c.Auth.RevocationBackend {
	case "memory":
	case "redis":
		if c.Storage.RedisURL == "" {
			return errors.New("redis URL is required for the redis revocation backend")
		}
	default:
		return fmt.Errorf("invalid revocation backend: %s (must be memory or redis)", c.Auth.RevocationBackend)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return errors.New("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	// Validate janitor config
	if c.Janitor.Enabled {
		if err := janitor.ValidateSchedule(c.Janitor.Schedule); err != nil {
			return err
		}
		if c.Janitor.GracePeriod <= 0 {
			return errors.New("janitor grace period must be positive")
		}
	}

	// Validate audit config
	switch c.Audit.Sink {
	case "none":
	case "file":
		if c.Audit.Path == "" {
			return errors.New("audit path is required for the file sink")
		}
	default:
		return fmt.Errorf("invalid audit sink: %s (must be none or file)", c.Audit.Sink)
	}

	// Validate rate limit config
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 {
			return errors.New("rate limit requests and window must be positive")
		}
		switch c.RateLimit.Backend {
		case "memory":
		case "redis":
			if c.Storage.RedisURL == "" {
				return errors.New("redis URL is required for the redis rate limit backend")
			}
		default:
			return fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.RateLimit.Backend)
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
