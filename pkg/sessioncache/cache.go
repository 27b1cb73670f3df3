// Package sessioncache provides a generic Redis-backed cache used by
// Alert Intake to expire a just-persisted row right after its insert
// commits (spec §4.4: "persists then expires the row
// from any session cache so that asynchronous enrichment is visible to
// subsequent reads").
package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("sessioncache: cache miss")

// Client wraps a Redis connection. A nil *Client (no REDIS_URL
// configured) makes every Cache a safe, silent no-op — Alert Intake's
// invalidation call becomes a best-effort operation rather than a hard
// dependency.
type Client struct {
	rdb *redis.Client
}

// NewClient parses redisURL ("redis://host:port/db") and builds a Client.
func NewClient(redisURL string) (*Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("sessioncache: parse REDIS_URL: %w", err)
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// EnsureConnection pings Redis, surfacing connectivity problems at
// startup rather than on first cache access.
func (c *Client) EnsureConnection(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// Cache is a generic, prefix-namespaced, JSON-serialized cache of T
// over a shared Redis client.
type Cache[T any] struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewCache builds a Cache namespaced under prefix with entries expiring
// after ttl.
func NewCache[T any](client *Client, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache[T]) key(id string) string {
	return c.prefix + ":" + id
}

// Get fetches and deserializes the cached value for id, or
// ErrCacheMiss if absent. A nil underlying client always misses.
func (c *Cache[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if c.client == nil {
		return zero, ErrCacheMiss
	}
	raw, err := c.client.rdb.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, ErrCacheMiss
	}
	if err != nil {
		return zero, fmt.Errorf("sessioncache: get %s: %w", id, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("sessioncache: unmarshal %s: %w", id, err)
	}
	return v, nil
}

// Set stores value for id with the configured TTL. A nil underlying
// client is a silent no-op.
func (c *Cache[T]) Set(ctx context.Context, id string, value T) error {
	if c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sessioncache: marshal %s: %w", id, err)
	}
	return c.client.rdb.Set(ctx, c.key(id), raw, c.ttl).Err()
}

// Expire removes id from the cache immediately, used by Alert Intake
// once the Alert row has been durably persisted (spec §4.4). A nil
// underlying client is a silent no-op.
func (c *Cache[T]) Expire(ctx context.Context, id string) error {
	if c.client == nil {
		return nil
	}
	return c.client.rdb.Del(ctx, c.key(id)).Err()
}
