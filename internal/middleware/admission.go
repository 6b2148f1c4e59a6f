package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/drichman1-maker/coin-agg/internal/apierrors"
	"github.com/drichman1-maker/coin-agg/internal/metrics"
	"github.com/drichman1-maker/coin-agg/internal/model"
	"github.com/drichman1-maker/coin-agg/internal/ratelimit"
)

// TenantHeader carries the tenant identifier on every admitted request.
const TenantHeader = "X-App-ID"

// The same message is returned for a missing and for a malformed tenant id
// so probing clients learn nothing about which rule they tripped.
const tenantRejectMessage = "invalid or missing X-App-ID header"

// RateLimiter is the limiter decision surface the admission gate needs.
type RateLimiter interface {
	Check(ctx context.Context, tenantID string) ratelimit.Decision
}

// AdmissionGate validates the tenant identifier and enforces the tenant's
// rate limit before any handler runs. Paths on the allow list (health,
// liveness) bypass tenant extraction entirely.
type AdmissionGate struct {
	limiter      RateLimiter
	errorHandler *apierrors.Handler
	metrics      *metrics.Metrics
	bypassPaths  map[string]struct{}
	logger       *zap.Logger
}

// NewAdmissionGate creates a new admission gate.
func NewAdmissionGate(
	limiter RateLimiter,
	errorHandler *apierrors.Handler,
	m *metrics.Metrics,
	bypassPaths []string,
	logger *zap.Logger,
) *AdmissionGate {
	bypass := make(map[string]struct{}, len(bypassPaths))
	for _, p := range bypassPaths {
		bypass[p] = struct{}{}
	}
	return &AdmissionGate{
		limiter:      limiter,
		errorHandler: errorHandler,
		metrics:      m,
		bypassPaths:  bypass,
		logger:       logger,
	}
}

// Admit intercepts every request: extract tenant id, validate it, check the
// rate limit, then attach the tenant id to the request context.
func (g *AdmissionGate) Admit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := g.bypassPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		requestID := r.Header.Get("X-Request-ID")
		tenantID := r.Header.Get(TenantHeader)

		if tenantID == "" {
			g.metrics.RecordAdmissionRejection("missing_tenant")
			g.errorHandler.WriteValidationError(w, tenantRejectMessage, requestID)
			return
		}

		if err := model.ValidateTenantID(tenantID); err != nil {
			g.logger.Debug("tenant id rejected",
				zap.String("request_id", requestID),
				zap.Error(err))
			g.metrics.RecordAdmissionRejection("invalid_tenant")
			g.errorHandler.WriteValidationError(w, tenantRejectMessage, requestID)
			return
		}

		switch g.limiter.Check(r.Context(), tenantID) {
		case ratelimit.Denied:
			g.metrics.RecordRateLimitDecision("denied")
			g.metrics.RecordAdmissionRejection("rate_limited")
			g.errorHandler.WriteRateLimited(w, requestID)
			return
		case ratelimit.AllowedDegraded:
			g.metrics.RecordRateLimitDecision("allowed_degraded")
		default:
			g.metrics.RecordRateLimitDecision("allowed")
		}

		ctx := context.WithValue(r.Context(), TenantIDKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
