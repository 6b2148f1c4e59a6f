// Package health provides health check endpoints for the API backend.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger is a dependency that can be health checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck manages health check functionality.
type HealthCheck struct {
	database Pinger
	queue    Pinger
	timeout  time.Duration
	logger   *zap.Logger
}

// NewHealthCheck creates a new HealthCheck instance.
func NewHealthCheck(database, queue Pinger, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		database: database,
		queue:    queue,
		timeout:  2 * time.Second,
		logger:   logger,
	}
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running. Never requires a tenant.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status: "ok",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// ReadinessHandler handles GET /ready requests. It verifies that both the
// record store and the counter store answer within the check timeout.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), hc.timeout)
	defer cancel()

	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
	}
	ready := true

	if err := hc.database.Ping(ctx); err != nil {
		hc.logger.Warn("readiness: database unreachable", zap.Error(err))
		checks["database"] = err.Error()
		ready = false
	}
	if err := hc.queue.Ping(ctx); err != nil {
		hc.logger.Warn("readiness: redis unreachable", zap.Error(err))
		checks["redis"] = err.Error()
		ready = false
	}

	resp := ReadinessResponse{Status: "ready", Checks: checks}
	statusCode := http.StatusOK
	if !ready {
		resp.Status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
