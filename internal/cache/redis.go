// Package cache wraps the optional Redis connection shared by API instances.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"vidvest/internal/logger"
)

// ErrCacheDisabled is returned by health checks when Redis is not configured.
var ErrCacheDisabled = errors.New("cache is disabled")

const keyPrefix = "vidvest:"

// Cache wraps a Redis client. A nil *Cache is valid and behaves as disabled.
type Cache struct {
	client *redis.Client
	now    func() time.Time
}

// New connects to redisURL. An empty URL disables the cache and returns nil, nil.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	if redisURL == "" {
		logger.Named("cache").Info("Redis cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Named("cache").Info("Redis connection established")
	return NewFromClient(client), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client, now: time.Now}
}

// Allow counts one event against key in a fixed window and reports whether the
// count is still within limit. A disabled cache allows everything.
func (c *Cache) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if c == nil || c.client == nil || limit <= 0 {
		return true, nil
	}

	k := windowKey(key, c.now(), window)
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return incr.Val() <= int64(limit), nil
}

// Health pings Redis.
func (c *Cache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// windowKey names the counter for the window containing now.
func windowKey(key string, now time.Time, window time.Duration) string {
	if window <= 0 {
		window = time.Minute
	}
	bucket := now.UnixNano() / int64(window)
	return fmt.Sprintf("%sratelimit:%s:%d", keyPrefix, key, bucket)
}
