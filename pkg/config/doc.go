// Package config loads the workbench server configuration.
//
// Values are layered: built-in defaults, then an optional YAML file (the
// -config flag or WORKBENCH_CONFIG_FILE), then WORKBENCH_* environment
// variables. The result is validated before use.
//
// Server settings:
//
//	WORKBENCH_HOST="0.0.0.0"
//	WORKBENCH_PORT="8080"
//	WORKBENCH_HEALTH_PORT="9090"
//	WORKBENCH_MAX_UPLOAD_BYTES="52428800"
//	WORKBENCH_CORS_ALLOWED_ORIGINS="https://app.example.com,https://admin.example.com"
//
// Storage settings:
//
//	WORKBENCH_STORAGE_TYPE="postgres"  # memory, local, postgres
//	WORKBENCH_POSTGRES_URL="postgres://localhost/workbench"
//	WORKBENCH_S3_BUCKET="workspace-files"
//	WORKBENCH_REDIS_URL="redis://localhost:6379"
//
// Auth settings:
//
//	WORKBENCH_AUTH_VERIFIER="jwt"  # jwt, oidc
//	WORKBENCH_JWT_SECRET="..."
//	WORKBENCH_SSO_ENABLED="false"
//	WORKBENCH_REVOCATION_BACKEND="memory"  # memory, redis
//
// Observability, janitor, audit and rate limit settings:
//
//	WORKBENCH_LOG_LEVEL="info"
//	WORKBENCH_OTEL_ENABLED="true"
//	WORKBENCH_JANITOR_SCHEDULE="@every 1h"
//	WORKBENCH_AUDIT_SINK="file"
//	WORKBENCH_RATE_LIMIT_ENABLED="true"
//
// Usage:
//
//	cfg, err := config.Load(*configPath)
//	if err != nil {
//		log.Fatal(err)
//	}
package config
