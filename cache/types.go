// Package cache provides the vendor-agnostic contract for the key-value store
// backing the listing cache, along with serialization helpers and typed errors.
package cache

import (
	"context"
	"time"
)

// Store defines the operations the caching layer needs from a key-value store
// with TTL support. All implementations must be thread-safe and context-aware.
//
// Correctness of the caching layer relies on Get, Set and Delete each being
// atomic at the store for a given key. No in-process locking is layered on top.
type Store interface {
	// Get retrieves a value from the store by key.
	// Returns ErrNotFound if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value under key with the specified TTL.
	// A zero TTL stores the value without expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. The boolean reports whether a key was actually
	// present and removed, not whether the call succeeded.
	Delete(ctx context.Context, key string) (bool, error)

	// DeletePattern removes every key matching the glob and returns how many
	// were removed. Returns ErrPatternDeleteUnsupported when the store was
	// configured without pattern-delete capability.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// ScanKeys enumerates keys matching the glob using cursor-based scanning.
	// It never issues a blocking full-keyspace listing.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)

	// TTL reports the remaining time-to-live of a key.
	// Returns ErrNotFound if the key doesn't exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Info returns server-level statistics, including the cumulative keyspace
	// hit/miss counters since the last stat reset.
	Info(ctx context.Context) (*ServerInfo, error)

	// ResetStats resets the server-level hit/miss counters.
	ResetStats(ctx context.Context) error

	// Capabilities reports what optional operations this store supports.
	// The result is fixed at construction time.
	Capabilities() Capabilities

	// Health checks connectivity to the store.
	Health(ctx context.Context) error

	// Close releases resources held by the store client.
	Close() error
}

// Capabilities describes optional store features, negotiated once at startup
// rather than probed per call.
type Capabilities struct {
	// PatternDelete indicates the store supports bulk deletion by glob.
	PatternDelete bool
}

// ServerInfo is a point-in-time read of server-level statistics.
// Hits and misses are cumulative since the last stat reset.
type ServerInfo struct {
	KeyspaceHits     int64
	KeyspaceMisses   int64
	Version          string
	ConnectedClients int64
	UsedMemoryHuman  string
	UptimeSeconds    int64
}
