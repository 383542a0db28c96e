package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisQueue is a Redis list used as a FIFO: LPUSH to enqueue, BRPOP to
// dequeue.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
	logger *zap.Logger
}

var _ outbound.JobQueue = (*RedisQueue)(nil)

// NewRedisClient builds a client from configuration and pings it.
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (redis.UniversalClient, error) {
	opts := &redis.UniversalOptions{
		Addrs:        []string{cfg.Addr()},
		Password:     cfg.Password,
		DB:           cfg.Database,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  10 * time.Second,
	}
	if len(cfg.ClusterNodes) > 0 {
		opts.Addrs = cfg.ClusterNodes
		logger.Info("Redis cluster mode enabled", zap.Strings("nodes", cfg.ClusterNodes))
	}

	client := redis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis client initialized successfully",
		zap.String("addr", cfg.Addr()),
		zap.Int("database", cfg.Database))
	return client, nil
}

// NewRedisQueue wraps client. The queue owns the client and closes it.
func NewRedisQueue(client redis.UniversalClient, key string, logger *zap.Logger) *RedisQueue {
	if key == "" {
		key = "dietgen:jobs"
	}
	return &RedisQueue{client: client, key: key, logger: logger.Named("redis-queue")}
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.client.LPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (string, error) {
	res, err := q.client.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("dequeue: %w", err)
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		q.logger.Warn("Unexpected BRPOP reply", zap.Strings("reply", res))
		return "", nil
	}
	return res[1], nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
