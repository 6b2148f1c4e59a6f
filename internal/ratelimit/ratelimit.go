// Package ratelimit implements per-tenant fixed-window rate limiting backed
// by a shared atomic counter store.
//
// The limiter fails open: an unreachable counter store admits the request
// and logs the failure. Rate limiting here is a defense-in-depth control,
// not a correctness gate, so availability wins over strict enforcement.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Decision is the outcome of a rate limit check. A store failure is
// distinguishable from quota exhaustion so callers can log the difference.
type Decision int

const (
	// Allowed admits the request within quota.
	Allowed Decision = iota
	// Denied rejects the request: the tenant exceeded its window quota.
	Denied
	// AllowedDegraded admits the request because the counter store was
	// unreachable (fail open).
	AllowedDegraded
)

// CounterStore atomically increments a window counter and refreshes its TTL
// in a single unit of work, returning the post-increment count.
type CounterStore interface {
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisCounterStore implements CounterStore on a shared Redis instance.
// The increment and expire run in one transactional pipeline so two
// concurrent requests can never both observe the same pre-increment count.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore creates a counter store on an existing client.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

// IncrWindow increments key and refreshes its TTL atomically.
func (s *RedisCounterStore) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("counter pipeline failed: %w", err)
	}
	return incr.Val(), nil
}

// Limiter enforces a per-tenant requests-per-minute quota using
// fixed-window counting. Exactly one Limiter exists per process; it is
// constructed at startup and injected into the admission middleware.
type Limiter struct {
	store        CounterStore
	quota        int
	windowTTL    time.Duration
	checkTimeout time.Duration
	logger       *zap.Logger
}

// NewLimiter creates a new rate limiter.
func NewLimiter(store CounterStore, quota int, windowTTL time.Duration, logger *zap.Logger) *Limiter {
	if windowTTL <= 0 {
		// 60s window plus clock-skew margin
		windowTTL = 65 * time.Second
	}
	return &Limiter{
		store:        store,
		quota:        quota,
		windowTTL:    windowTTL,
		checkTimeout: 2 * time.Second,
		logger:       logger,
	}
}

// Check counts the request against the tenant's current 60-second window
// and decides whether to admit it. Counters self-expire via TTL; no
// explicit cleanup ever runs.
func (l *Limiter) Check(ctx context.Context, tenantID string) Decision {
	key := windowKey(tenantID, time.Now())

	ctx, cancel := context.WithTimeout(ctx, l.checkTimeout)
	defer cancel()

	count, err := l.store.IncrWindow(ctx, key, l.windowTTL)
	if err != nil {
		// Fail open: an unreachable counter store must not take the
		// service down with it.
		l.logger.Error("rate limit check failed, admitting request",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return AllowedDegraded
	}

	if count > int64(l.quota) {
		l.logger.Warn("rate limit exceeded",
			zap.String("tenant_id", tenantID),
			zap.Int64("count", count),
			zap.Int("quota", l.quota))
		return Denied
	}

	return Allowed
}

// Quota returns the configured requests-per-minute quota.
func (l *Limiter) Quota() int {
	return l.quota
}

// windowKey derives the fixed-window counter key for a tenant at time t.
func windowKey(tenantID string, t time.Time) string {
	return fmt.Sprintf("rate_limit:%s:%d", tenantID, t.Unix()/60)
}
