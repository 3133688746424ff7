package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounters backs the limiter with a shared Redis instance so the window
// holds across all server replicas.
type RedisCounters struct {
	client *redis.Client
}

// NewRedisCounters connects to Redis and verifies the connection once at
// startup. The client is long-lived and reused for every request.
func NewRedisCounters(ctx context.Context, addr, password string) (*RedisCounters, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address must be provided")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	log.Printf("Redis client connected: %s", addr)

	return &RedisCounters{client: client}, nil
}

func (r *RedisCounters) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *RedisCounters) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

func (r *RedisCounters) Close() error {
	return r.client.Close()
}
