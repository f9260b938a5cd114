package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLease grants short exclusive ownership of a key with SET NX. Leases
// are never released early; they expire after their ttl.
type RedisLease struct {
	rdb *redis.Client
}

// NewRedisLease creates a lease backed by its own redis connection.
func NewRedisLease(redisURL string) (*RedisLease, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &RedisLease{rdb: redis.NewClient(opts)}, nil
}

// Acquire reports whether the caller now holds key.
func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set lease %s: %w", key, err)
	}
	return ok, nil
}

// Close closes the Redis client connection
func (l *RedisLease) Close() error {
	return l.rdb.Close()
}
