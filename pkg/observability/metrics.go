package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	StorageErrorsTotal       *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// CacheInvalidationFailuresTotal counts committed writes whose cache
	// entry could not be dropped
	CacheInvalidationFailuresTotal *prometheus.CounterVec

	// Workspace and file metrics
	WorkspacesCreatedTotal prometheus.Counter
	UploadsTotal           *prometheus.CounterVec
	UploadBytes            prometheus.Histogram
	PartialUploadsTotal    *prometheus.CounterVec
	FileDeletesTotal       *prometheus.CounterVec
	AccessDeniedTotal      *prometheus.CounterVec
	OrphanBlobsSweptTotal  prometheus.Counter

	// Rate limiting
	RateLimitedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workbench_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workbench_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workbench_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"operation", "backend", "error_type"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type", "key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type", "key_type"},
		),
		CacheInvalidationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_cache_invalidation_failures_total",
				Help: "Total number of cache invalidations that failed after a committed write",
			},
			[]string{"cache_type", "key_type"},
		),

		WorkspacesCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workbench_workspaces_created_total",
				Help: "Total number of workspaces created",
			},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_uploads_total",
				Help: "Total number of file uploads",
			},
			[]string{"status"},
		),
		UploadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "workbench_upload_size_bytes",
				Help:    "Size of uploaded files in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		PartialUploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_partial_uploads_total",
				Help: "Uploads whose blob was stored but whose metadata insert failed",
			},
			[]string{"rolled_back"},
		),
		FileDeletesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_file_deletes_total",
				Help: "Total number of file deletions",
			},
			[]string{"status"},
		),
		AccessDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_access_denied_total",
				Help: "Operations refused by the role policy",
			},
			[]string{"action"},
		),
		OrphanBlobsSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workbench_orphan_blobs_swept_total",
				Help: "Blobs removed because no file record referenced them",
			},
		),

		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"scope"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.StorageErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidationFailuresTotal,
		m.WorkspacesCreatedTotal,
		m.UploadsTotal,
		m.UploadBytes,
		m.PartialUploadsTotal,
		m.FileDeletesTotal,
		m.AccessDeniedTotal,
		m.OrphanBlobsSweptTotal,
		m.RateLimitedTotal,
	)

	return m
}

// ObserveStorageOp records one metadata or blob operation
func (m *Metrics) ObserveStorageOp(op, backend string, start time.Time, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
		m.StorageErrorsTotal.WithLabelValues(op, backend, storageErrorType(err)).Inc()
	}
	m.StorageOperationsTotal.WithLabelValues(op, backend, status).Inc()
	m.StorageOperationDuration.WithLabelValues(op, backend).Observe(time.Since(start).Seconds())
}

func storageErrorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// RecordUpload records the outcome of a file upload
func (m *Metrics) RecordUpload(status string, size int64) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.UploadBytes.Observe(float64(size))
	}
}

// RecordPartialUpload counts a blob-without-record failure
func (m *Metrics) RecordPartialUpload(rolledBack bool) {
	if m == nil {
		return
	}
	m.PartialUploadsTotal.WithLabelValues(strconv.FormatBool(rolledBack)).Inc()
}

// RecordFileDelete records the outcome of a file deletion
func (m *Metrics) RecordFileDelete(status string) {
	if m == nil {
		return
	}
	m.FileDeletesTotal.WithLabelValues(status).Inc()
}

// RecordAccessDenied counts a policy refusal
func (m *Metrics) RecordAccessDenied(action string) {
	if m == nil {
		return
	}
	m.AccessDeniedTotal.WithLabelValues(action).Inc()
}

// RecordWorkspaceCreated counts a created workspace
func (m *Metrics) RecordWorkspaceCreated() {
	if m == nil {
		return
	}
	m.WorkspacesCreatedTotal.Inc()
}

// RecordOrphansSwept counts blobs removed by the janitor
func (m *Metrics) RecordOrphansSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OrphanBlobsSweptTotal.Add(float64(n))
}

// RecordCacheInvalidationFailure counts a cache entry left stale by a
// failed invalidation
func (m *Metrics) RecordCacheInvalidationFailure(cacheType, keyType string) {
	if m == nil {
		return
	}
	m.CacheInvalidationFailuresTotal.WithLabelValues(cacheType, keyType).Inc()
}

// RecordRateLimited counts a request rejected with 429. scope is "user" or "ip".
func (m *Metrics) RecordRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(scope).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the mux route template so IDs in paths do not
// explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := routeLabel(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
