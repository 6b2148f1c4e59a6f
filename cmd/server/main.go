// Package main provides the entry point for the stateless API backend.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/drichman1-maker/coin-agg/internal/apierrors"
	"github.com/drichman1-maker/coin-agg/internal/config"
	"github.com/drichman1-maker/coin-agg/internal/crypto"
	"github.com/drichman1-maker/coin-agg/internal/handler"
	"github.com/drichman1-maker/coin-agg/internal/health"
	"github.com/drichman1-maker/coin-agg/internal/metrics"
	"github.com/drichman1-maker/coin-agg/internal/middleware"
	"github.com/drichman1-maker/coin-agg/internal/ratelimit"
	"github.com/drichman1-maker/coin-agg/internal/server"
	"github.com/drichman1-maker/coin-agg/internal/service"
	"github.com/drichman1-maker/coin-agg/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.Parse()

	logger := initLogger()
	defer logger.Sync()

	logger.Info("starting API backend")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.Int("server_port", cfg.Server.Port),
		zap.String("database_host", cfg.Database.Host),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("rate_limit_per_minute", cfg.RateLimit.RequestsPerMinute))

	// Initialize crypto boundary. In production a missing key refuses to
	// start the process.
	cipher, err := crypto.New(cfg.Crypto.Key, cfg.Env, logger)
	if err != nil {
		logger.Fatal("failed to initialize encryption", zap.Error(err))
	}

	// Initialize metrics
	m := metrics.NewMetrics()
	m.SetHealthStatus(true)

	// Initialize record store (PostgreSQL)
	draftStore, err := store.NewPostgresDraftStore(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Drafts.Retention,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to initialize draft store", zap.Error(err))
	}
	defer draftStore.Close()
	logger.Info("draft store initialized")

	// Initialize shared Redis client (counter store, task queue, tokens)
	redisClient, err := store.NewRedisClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		cfg.Redis.Timeout,
	)
	if err != nil {
		logger.Fatal("failed to initialize Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis client initialized")

	taskQueue := store.NewRedisTaskQueue(redisClient, logger)
	tokenRegistry := store.NewRedisTokenRegistry(redisClient, logger)

	// One limiter per process, shared by every request.
	counterStore := ratelimit.NewRedisCounterStore(redisClient)
	limiter := ratelimit.NewLimiter(
		counterStore,
		cfg.RateLimit.RequestsPerMinute,
		cfg.RateLimit.WindowTTL,
		logger,
	)

	errorHandler := apierrors.NewHandler(logger)
	admission := middleware.NewAdmissionGate(limiter, errorHandler, m, server.BypassPaths, logger)
	handlers := handler.NewHandlers(
		cipher,
		draftStore,
		draftStore,
		taskQueue,
		tokenRegistry,
		errorHandler,
		m,
		cfg.Database.QueryTimeout,
		logger,
	)
	healthCheck := health.NewHealthCheck(draftStore, taskQueue, logger)

	httpServer := server.NewServer(cfg, handlers, healthCheck, admission, errorHandler, m, logger)
	httpServer.SetupRoutes()

	reaper := service.NewReaper(
		draftStore,
		cfg.Cleanup.Interval,
		cfg.Cleanup.Backoff,
		cfg.Cleanup.MaxFailures,
		cfg.Cleanup.SweepTimeout,
		m,
		logger,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return httpServer.Start()
	})

	if metricsServer != nil {
		group.Go(func() error {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// Cleanup reaper runs for the life of the process and exits on cancel.
	group.Go(func() error {
		if err := reaper.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	logger.Info("API backend started", zap.Int("port", cfg.Server.Port))

	<-groupCtx.Done()

	logger.Info("initiating graceful shutdown")
	m.SetHealthStatus(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	if err := group.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("API backend shutdown complete")
}

// initLogger initializes the zap logger.
func initLogger() *zap.Logger {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var level zapcore.Level
	switch logLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if os.Getenv("LOG_FORMAT") == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapConfig.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
