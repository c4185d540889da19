// Package observability provides structured logging, Prometheus metrics,
// health probes, graceful shutdown and OpenTelemetry setup for the
// workbench server.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("workspace_id", id).Info("workspace created")
//
// Request-scoped loggers carry the request ID, user ID and trace IDs:
//
//	observability.FromContext(ctx).WithError(err).Error("upload failed")
//
// # Prometheus Metrics
//
// Every metric is prefixed workbench_. A nil *Metrics records nothing, so
// components accept one optionally:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordUpload("success", size)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("database", true, observability.DatabaseCheck(db))
//	checker.AddCheck("redis", false, observability.RedisCheck(client))
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
