// Package cache wraps the shared Redis client used for ephemeral state:
// the emergency-flag cache, the "pay today at 50%" strike flag, telemetry
// idempotency keys, and rate-limit counters. Grounded on the teacher's
// redisclient/redis.go constructor shape.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SweetModels/sweet-models-enterprise/internal/config"
)

// Client wraps a go-redis client with the namespaced helpers components use.
type Client struct {
	rdb *redis.Client
}

// New creates a Redis client from config, failing fast if the URL is malformed.
func New(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid REDIS_URL: %w", err)
	}
	return &Client{rdb: redis.NewClient(opt)}, nil
}

// Ping verifies connectivity at boot.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// SetNX sets key to value with ttl only if it does not already exist,
// reporting whether this call was the one that set it. Used for telemetry
// idempotency dedup (spec §6 telemetry_ingest).
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Set stores a key unconditionally with a TTL. Used for the "pay today at
// 50%" strike-1 flag (24h TTL, spec §4.4) and the emergency-flag cache.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get returns a key's value, and false if it is absent.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Del removes a key.
func (c *Client) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// Incr increments a counter key, setting expiry on first increment. Used
// for the telemetry rate limiter.
func (c *Client) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		c.rdb.Expire(ctx, key, window)
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
