// Package server provides the HTTP server implementation for the API backend.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/drichman1-maker/coin-agg/internal/apierrors"
	"github.com/drichman1-maker/coin-agg/internal/config"
	"github.com/drichman1-maker/coin-agg/internal/handler"
	"github.com/drichman1-maker/coin-agg/internal/health"
	"github.com/drichman1-maker/coin-agg/internal/metrics"
	"github.com/drichman1-maker/coin-agg/internal/middleware"
)

// BypassPaths are served without tenant admission. /metrics normally lives
// on the dedicated metrics port, but stays exempt here in case an operator
// scrapes the main port.
var BypassPaths = []string{"/", "/health", "/ready", "/metrics"}

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	handler      http.Handler
	httpServer   *http.Server
	handlers     *handler.Handlers
	healthCheck  *health.HealthCheck
	admission    *middleware.AdmissionGate
	errorHandler *apierrors.Handler
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	handlers *handler.Handlers,
	healthCheck *health.HealthCheck,
	admission *middleware.AdmissionGate,
	errorHandler *apierrors.Handler,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	router := mux.NewRouter()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handlers,
		healthCheck:  healthCheck,
		admission:    admission,
		errorHandler: errorHandler,
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	// Setup middleware chain
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.CORS(s.cfg.Server.AllowedOrigins),
		metrics.MetricsMiddleware(s.metrics),
	}

	// Add process-level throttle if enabled
	if s.cfg.Throttle.Enabled {
		throttle := middleware.NewThrottle(
			s.cfg.Throttle.RequestsPerSecond,
			s.cfg.Throttle.BurstSize,
			s.logger,
		)
		middlewareChain = append(middlewareChain, throttle.Limit)
	}

	// Every request passes the admission gate; health paths bypass inside it.
	middlewareChain = append(middlewareChain, s.admission.Admit)

	// Wrap the router in the chain rather than registering it with
	// router.Use: mux skips Use middleware for unmatched paths and method
	// mismatches, which would leave CORS preflights (OPTIONS never matches
	// the registered methods) and 404/405 responses outside the chain.
	s.handler = middleware.Chain(middlewareChain...)(s.router)
	s.httpServer.Handler = s.handler

	// Health check endpoints
	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	// API v1 routes
	v1 := s.router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/drafts", s.handlers.CreateDraft).Methods(http.MethodPost)
	v1.HandleFunc("/bots/trigger", s.handlers.TriggerTask).Methods(http.MethodPost)
	v1.HandleFunc("/ios/register", s.handlers.RegisterToken).Methods(http.MethodPost)
	v1.HandleFunc("/subscriptions", s.handlers.CheckSubscription).Methods(http.MethodGet)

	// Not found handler
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apierrors.ErrorCodeNotFound, "endpoint not found", requestID)
	})

	// Method not allowed handler
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apierrors.ErrorCodeInvalidRequest, "method not allowed", requestID)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("addr", s.httpServer.Addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the http.Handler for the server. SetupRoutes must be
// called first so the middleware chain is in place.
func (s *Server) GetHandler() http.Handler {
	if s.handler != nil {
		return s.handler
	}
	return s.router
}
