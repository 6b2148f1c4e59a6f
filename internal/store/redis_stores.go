package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/drichman1-maker/coin-agg/internal/model"
)

// TaskQueueKey is the Redis list the external bot workers pop from.
const TaskQueueKey = "bot-tasks"

// NewRedisClient creates the shared Redis client used by the rate limiter,
// the task queue and the token registry. The connection is verified once
// at startup.
func NewRedisClient(host string, port int, password string, db, poolSize int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisTaskQueue implements TaskQueue on a Redis list. Tasks are appended
// to the tail and consumed exactly once by external workers popping the head.
type RedisTaskQueue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTaskQueue creates a new Redis task queue
func NewRedisTaskQueue(client *redis.Client, logger *zap.Logger) *RedisTaskQueue {
	return &RedisTaskQueue{
		client: client,
		logger: logger,
	}
}

// Enqueue appends a task to the queue tail
func (q *RedisTaskQueue) Enqueue(ctx context.Context, task *model.BotTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := q.client.RPush(ctx, TaskQueueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Debug("task enqueued",
		zap.String("task_id", task.ID),
		zap.String("type", string(task.Type)),
		zap.String("tenant_id", task.AppID))

	return nil
}

// Ping checks the Redis connection
func (q *RedisTaskQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// RedisTokenRegistry implements TokenRegistry on Redis with per-token TTL.
type RedisTokenRegistry struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTokenRegistry creates a new Redis token registry
func NewRedisTokenRegistry(client *redis.Client, logger *zap.Logger) *RedisTokenRegistry {
	return &RedisTokenRegistry{
		client: client,
		logger: logger,
	}
}

// Register stores a tenant-scoped push token that expires after ttl
func (r *RedisTokenRegistry) Register(ctx context.Context, tenantID, token string, ttl time.Duration) error {
	key := fmt.Sprintf("apns:%s:%s", tenantID, token)
	if err := r.client.SetEx(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to register token: %w", err)
	}
	return nil
}
