// Package metrics provides Prometheus metrics for the API backend.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	requestsInFlight    prometheus.Gauge
	admissionRejections *prometheus.CounterVec
	rateLimitDecisions  *prometheus.CounterVec
	cleanupSweepsTotal  *prometheus.CounterVec
	cleanupDeletedTotal prometheus.Counter
	tasksEnqueuedTotal  *prometheus.CounterVec
	healthStatus        prometheus.Gauge
}

var globalMetrics *Metrics

// NewMetrics creates and registers Prometheus metrics.
func NewMetrics() *Metrics {
	if globalMetrics != nil {
		return globalMetrics
	}

	globalMetrics = &Metrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		requestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "api_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		admissionRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_admission_rejections_total",
				Help: "Requests rejected by the tenant admission gate",
			},
			[]string{"reason"},
		),
		rateLimitDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_rate_limit_decisions_total",
				Help: "Rate limiter decisions by outcome",
			},
			[]string{"outcome"},
		),
		cleanupSweepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_cleanup_sweeps_total",
				Help: "Cleanup reaper sweep attempts by result",
			},
			[]string{"result"},
		),
		cleanupDeletedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "api_cleanup_deleted_drafts_total",
				Help: "Total expired drafts removed by the cleanup reaper",
			},
		),
		tasksEnqueuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_tasks_enqueued_total",
				Help: "Background tasks enqueued by type",
			},
			[]string{"type"},
		),
		healthStatus: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "api_health_status",
				Help: "Health status of the service (1 = healthy, 0 = unhealthy)",
			},
		),
	}

	return globalMetrics
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	m.requestsTotal.WithLabelValues(method, path, status).Inc()
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncRequestsInFlight increments the in-flight request gauge.
func (m *Metrics) IncRequestsInFlight() {
	m.requestsInFlight.Inc()
}

// DecRequestsInFlight decrements the in-flight request gauge.
func (m *Metrics) DecRequestsInFlight() {
	m.requestsInFlight.Dec()
}

// RecordAdmissionRejection records a rejection by the admission gate.
func (m *Metrics) RecordAdmissionRejection(reason string) {
	m.admissionRejections.WithLabelValues(reason).Inc()
}

// RecordRateLimitDecision records a rate limiter outcome.
func (m *Metrics) RecordRateLimitDecision(outcome string) {
	m.rateLimitDecisions.WithLabelValues(outcome).Inc()
}

// RecordCleanupSweep records a reaper sweep and the rows it removed.
func (m *Metrics) RecordCleanupSweep(result string, deleted int64) {
	m.cleanupSweepsTotal.WithLabelValues(result).Inc()
	if deleted > 0 {
		m.cleanupDeletedTotal.Add(float64(deleted))
	}
}

// RecordTaskEnqueued records a successfully enqueued task.
func (m *Metrics) RecordTaskEnqueued(taskType string) {
	m.tasksEnqueuedTotal.WithLabelValues(taskType).Inc()
}

// SetHealthStatus sets the health status.
func (m *Metrics) SetHealthStatus(healthy bool) {
	if healthy {
		m.healthStatus.Set(1)
	} else {
		m.healthStatus.Set(0)
	}
}

// MetricsServer provides a separate HTTP server for Prometheus metrics.
type MetricsServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a new metrics server.
func NewMetricsServer(port int, path string, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		logger: logger,
	}
}

// Start starts the metrics server.
func (ms *MetricsServer) Start() error {
	ms.logger.Info("starting metrics server", zap.String("addr", ms.server.Addr))
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// MetricsMiddleware creates middleware that records HTTP metrics.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.IncRequestsInFlight()
			defer m.DecRequestsInFlight()

			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			m.RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, duration)
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture metrics.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
