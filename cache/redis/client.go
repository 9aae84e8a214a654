// Package redis implements the cache.Store contract on top of a Redis server
// using the go-redis client.
package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/casafind/listingcache/cache"
	"github.com/casafind/listingcache/cache/internal/tracking"
)

// scanCount is the COUNT hint passed to SCAN. Cursor-based scanning keeps the
// server responsive under large keyspaces, unlike a blocking KEYS call.
const scanCount = 256

// Client implements the cache.Store interface using Redis as the backend.
type Client struct {
	client redis.UniversalClient
	caps   cache.Capabilities
	addr   string
	closed atomic.Bool
}

// Ensure Client implements the Store contract.
var _ cache.Store = (*Client)(nil)

// NewClient creates a new Redis store client.
// Validates configuration and establishes connection.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &redis.Options{
		Addr:            cfg.Address(),
		Password:        cfg.Password,
		DB:              cfg.Database,
		PoolSize:        cfg.PoolSize,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	}

	client := redis.NewClient(opts)

	// Test connection with PING
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, cache.NewConnectionError("ping", cfg.Address(), err)
	}

	return &Client{
		client: client,
		caps:   cache.Capabilities{PatternDelete: cfg.PatternDelete},
		addr:   cfg.Address(),
	}, nil
}

// Get retrieves a value from the store.
// Returns cache.ErrNotFound if the key doesn't exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, cache.ErrClosed
	}

	start := time.Now()
	result, err := c.client.Get(ctx, key).Bytes()
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Cache miss - not an error, just not found
			tracking.RecordCacheOperation(ctx, tracking.OpGet, duration, false, nil)
			return nil, cache.ErrNotFound
		}
		tracking.RecordCacheOperation(ctx, tracking.OpGet, duration, false, err)
		return nil, cache.NewOperationError("get", key, err)
	}

	tracking.RecordCacheOperation(ctx, tracking.OpGet, duration, true, nil)
	return result, nil
}

// Set stores a value with the specified TTL.
// TTL of 0 means no expiration (use with caution).
// Returns cache.ErrInvalidTTL if TTL is negative.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	if ttl < 0 {
		return cache.ErrInvalidTTL
	}

	start := time.Now()
	err := c.client.Set(ctx, key, value, ttl).Err()
	duration := time.Since(start)

	tracking.RecordCacheOperation(ctx, tracking.OpSet, duration, false, err)

	if err != nil {
		return cache.NewOperationError("set", key, err)
	}

	return nil
}

// Delete removes a key from the store. The boolean reports whether a key was
// actually present and removed.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, cache.ErrClosed
	}

	start := time.Now()
	removed, err := c.client.Del(ctx, key).Result()
	duration := time.Since(start)

	tracking.RecordCacheOperation(ctx, tracking.OpDelete, duration, false, err)

	if err != nil {
		return false, cache.NewOperationError("delete", key, err)
	}

	return removed > 0, nil
}

// DeletePattern removes every key matching the glob and returns how many were
// removed. Returns cache.ErrPatternDeleteUnsupported when the client was
// configured without the capability.
func (c *Client) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if c.closed.Load() {
		return 0, cache.ErrClosed
	}

	if !c.caps.PatternDelete {
		return 0, cache.ErrPatternDeleteUnsupported
	}

	start := time.Now()
	keys, err := c.scan(ctx, pattern)
	if err != nil {
		tracking.RecordCacheOperation(ctx, tracking.OpDeletePattern, time.Since(start), false, err)
		return 0, cache.NewOperationError("delete_pattern", pattern, err)
	}

	if len(keys) == 0 {
		tracking.RecordCacheOperation(ctx, tracking.OpDeletePattern, time.Since(start), false, nil)
		return 0, nil
	}

	removed, err := c.client.Del(ctx, keys...).Result()
	duration := time.Since(start)

	tracking.RecordCacheOperation(ctx, tracking.OpDeletePattern, duration, false, err)

	if err != nil {
		return 0, cache.NewOperationError("delete_pattern", pattern, err)
	}

	return int(removed), nil
}

// ScanKeys enumerates keys matching the glob via cursor-based SCAN.
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	if c.closed.Load() {
		return nil, cache.ErrClosed
	}

	start := time.Now()
	keys, err := c.scan(ctx, pattern)
	duration := time.Since(start)

	tracking.RecordCacheOperation(ctx, tracking.OpScan, duration, false, err)

	if err != nil {
		return nil, cache.NewOperationError("scan", pattern, err)
	}

	return keys, nil
}

func (c *Client) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// TTL reports the remaining time-to-live of a key.
// Returns cache.ErrNotFound if the key doesn't exist; 0 means no expiry.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	if c.closed.Load() {
		return 0, cache.ErrClosed
	}

	start := time.Now()
	d, err := c.client.TTL(ctx, key).Result()
	duration := time.Since(start)

	tracking.RecordCacheOperation(ctx, tracking.OpTTL, duration, false, err)

	if err != nil {
		return 0, cache.NewOperationError("ttl", key, err)
	}

	// go-redis encodes the Redis sentinels as raw -1/-2 durations:
	// -2 means the key doesn't exist, -1 means no expiry.
	switch d {
	case -2:
		return 0, cache.ErrNotFound
	case -1:
		return 0, nil
	default:
		return d, nil
	}
}

// Info returns server-level statistics parsed from the INFO command.
func (c *Client) Info(ctx context.Context) (*cache.ServerInfo, error) {
	if c.closed.Load() {
		return nil, cache.ErrClosed
	}

	start := time.Now()
	raw, err := c.client.Info(ctx).Result()
	duration := time.Since(start)

	tracking.RecordCacheOperation(ctx, tracking.OpInfo, duration, false, err)

	if err != nil {
		return nil, cache.NewOperationError("info", "INFO", err)
	}

	return parseInfo(raw), nil
}

// ResetStats resets the server-level hit/miss counters via CONFIG RESETSTAT.
func (c *Client) ResetStats(ctx context.Context) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	start := time.Now()
	err := c.client.ConfigResetStat(ctx).Err()
	duration := time.Since(start)

	tracking.RecordCacheOperation(ctx, tracking.OpResetStats, duration, false, err)

	if err != nil {
		return cache.NewOperationError("resetstat", "CONFIG RESETSTAT", err)
	}

	return nil
}

// Capabilities reports the optional features negotiated at construction.
func (c *Client) Capabilities() cache.Capabilities {
	return c.caps
}

// Health checks if the Redis connection is healthy.
// Uses PING command to verify connectivity.
func (c *Client) Health(ctx context.Context) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	start := time.Now()
	err := c.client.Ping(ctx).Err()
	duration := time.Since(start)

	tracking.RecordCacheOperation(ctx, tracking.OpHealth, duration, false, err)

	if err != nil {
		return cache.NewConnectionError("ping", c.addr, err)
	}

	return nil
}

// Close closes the Redis client and releases resources.
// Close is idempotent - calling it multiple times is safe.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	return c.client.Close()
}
