package config

import (
	"errors"
	"time"
)

// Config represents the API backend configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Crypto    CryptoConfig    `mapstructure:"crypto"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Drafts    DraftsConfig    `mapstructure:"drafts"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Env       string          `mapstructure:"env"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig represents the PostgreSQL record store configuration
type DatabaseConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Database       string        `mapstructure:"database"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	MaxConnections int           `mapstructure:"max_connections"`
	MinConnections int           `mapstructure:"min_connections"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
}

// RedisConfig represents the counter store / task queue configuration
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CryptoConfig represents the encryption boundary configuration.
// Key is a base64-encoded 32-byte AES key. In production a missing key
// is a fatal startup error.
type CryptoConfig struct {
	Key string `mapstructure:"key"`
}

// RateLimitConfig represents the per-tenant fixed-window limiter configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	WindowTTL         time.Duration `mapstructure:"window_ttl"`
}

// ThrottleConfig represents the coarse process-level throttle in front of
// the per-tenant limiter
type ThrottleConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// CleanupConfig represents the expired-draft reaper configuration
type CleanupConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	Backoff      time.Duration `mapstructure:"backoff"`
	MaxFailures  int           `mapstructure:"max_failures"`
	SweepTimeout time.Duration `mapstructure:"sweep_timeout"`
}

// DraftsConfig represents draft retention configuration
type DraftsConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EnvProduction is the deployment tier in which a missing encryption key
// refuses to start the process.
const EnvProduction = "production"

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Database == "" {
		return errors.New("database.database is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Redis.Host == "" {
		return errors.New("redis.host is required")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return errors.New("rate_limit.requests_per_minute must be positive")
	}
	if c.RateLimit.WindowTTL < time.Minute {
		return errors.New("rate_limit.window_ttl must cover the full window")
	}
	if c.Drafts.Retention <= 0 {
		return errors.New("drafts.retention must be positive")
	}
	if c.Cleanup.Interval <= 0 {
		return errors.New("cleanup.interval must be positive")
	}
	if c.Cleanup.MaxFailures <= 0 {
		return errors.New("cleanup.max_failures must be positive")
	}
	if c.Env == EnvProduction && c.Crypto.Key == "" {
		return errors.New("crypto.key is required in production")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "stateless_infra",
			User:           "api",
			Password:       "",
			MaxConnections: 50,
			MinConnections: 10,
			QueryTimeout:   2 * time.Second,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
			PoolSize: 50,
			Timeout:  2 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 100,
			WindowTTL:         65 * time.Second,
		},
		Throttle: ThrottleConfig{
			Enabled:           false,
			RequestsPerSecond: 500,
			BurstSize:         100,
		},
		Cleanup: CleanupConfig{
			Interval:     time.Hour,
			Backoff:      5 * time.Minute,
			MaxFailures:  5,
			SweepTimeout: 2 * time.Second,
		},
		Drafts: DraftsConfig{
			Retention: 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Env: "development",
	}
}
