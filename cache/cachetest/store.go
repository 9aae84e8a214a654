// Package cachetest provides an in-memory cache.Store implementation for
// testing. It is thread-safe, honors TTLs, tracks operations for assertions,
// and supports configurable failure injection.
package cachetest

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casafind/listingcache/cache"
)

// Store is an in-memory cache.Store for tests.
//
// Server-level hit/miss counters are maintained the way a real store would:
// every Get that finds a live entry counts a hit, every other Get counts a
// miss. Tests can also seed the counters directly with SetServerStats.
type Store struct {
	mu   sync.Mutex
	data map[string]*entry

	closed atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64

	patternDelete bool

	// Configurable behavior
	getError    error
	setError    error
	deleteError error
	scanError   error
	infoError   error
	resetError  error

	// Operation tracking
	getCalls    atomic.Int64
	setCalls    atomic.Int64
	deleteCalls atomic.Int64
	scanCalls   atomic.Int64
	infoCalls   atomic.Int64
	resetCalls  atomic.Int64
}

type entry struct {
	value      []byte
	expiration time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

// Ensure Store implements the contract.
var _ cache.Store = (*Store)(nil)

// New creates a Store with pattern-delete capability enabled.
func New() *Store {
	return &Store{
		data:          make(map[string]*entry),
		patternDelete: true,
	}
}

// Configuration methods (fluent API)

// WithoutPatternDelete disables the pattern-delete capability.
func (s *Store) WithoutPatternDelete() *Store {
	s.patternDelete = false
	return s
}

// WithGetFailure configures Get operations to return an error.
func (s *Store) WithGetFailure(err error) *Store {
	s.getError = err
	return s
}

// WithSetFailure configures Set operations to return an error.
func (s *Store) WithSetFailure(err error) *Store {
	s.setError = err
	return s
}

// WithDeleteFailure configures Delete and DeletePattern operations to return an error.
func (s *Store) WithDeleteFailure(err error) *Store {
	s.deleteError = err
	return s
}

// WithScanFailure configures ScanKeys operations to return an error.
func (s *Store) WithScanFailure(err error) *Store {
	s.scanError = err
	return s
}

// WithInfoFailure configures Info operations to return an error.
func (s *Store) WithInfoFailure(err error) *Store {
	s.infoError = err
	return s
}

// WithResetFailure configures ResetStats operations to return an error.
func (s *Store) WithResetFailure(err error) *Store {
	s.resetError = err
	return s
}

// WithFailure configures every operation to return the given error,
// simulating an unreachable store.
func (s *Store) WithFailure(err error) *Store {
	s.getError = err
	s.setError = err
	s.deleteError = err
	s.scanError = err
	s.infoError = err
	s.resetError = err
	return s
}

// SetServerStats seeds the server-level hit/miss counters.
func (s *Store) SetServerStats(hits, misses int64) {
	s.hits.Store(hits)
	s.misses.Store(misses)
}

// Store contract implementation

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.getCalls.Add(1)

	if s.closed.Load() {
		return nil, cache.ErrClosed
	}
	if s.getError != nil {
		return nil, s.getError
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok || e.expired(time.Now()) {
		if ok {
			delete(s.data, key)
		}
		s.misses.Add(1)
		return nil, cache.ErrNotFound
	}

	s.hits.Add(1)
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a value with the given TTL.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.setCalls.Add(1)

	if s.closed.Load() {
		return cache.ErrClosed
	}
	if s.setError != nil {
		return s.setError
	}
	if ttl < 0 {
		return cache.ErrInvalidTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.data[key] = &entry{value: stored, expiration: exp}
	s.mu.Unlock()
	return nil
}

// Delete removes a key, reporting whether it was present.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.deleteCalls.Add(1)

	if s.closed.Load() {
		return false, cache.ErrClosed
	}
	if s.deleteError != nil {
		return false, s.deleteError
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return false, nil
	}
	delete(s.data, key)
	return !e.expired(time.Now()), nil
}

// DeletePattern removes every key matching the glob.
func (s *Store) DeletePattern(_ context.Context, pattern string) (int, error) {
	s.deleteCalls.Add(1)

	if s.closed.Load() {
		return 0, cache.ErrClosed
	}
	if !s.patternDelete {
		return 0, cache.ErrPatternDeleteUnsupported
	}
	if s.deleteError != nil {
		return 0, s.deleteError
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := time.Now()
	for key, e := range s.data {
		if matchGlob(pattern, key) {
			delete(s.data, key)
			if !e.expired(now) {
				removed++
			}
		}
	}
	return removed, nil
}

// ScanKeys enumerates live keys matching the glob, sorted for determinism.
func (s *Store) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	s.scanCalls.Add(1)

	if s.closed.Load() {
		return nil, cache.ErrClosed
	}
	if s.scanError != nil {
		return nil, s.scanError
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	now := time.Now()
	for key, e := range s.data {
		if !e.expired(now) && matchGlob(pattern, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// TTL reports the remaining time-to-live of a key; 0 means no expiry.
func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	if s.closed.Load() {
		return 0, cache.ErrClosed
	}
	if s.getError != nil {
		return 0, s.getError
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	now := time.Now()
	if !ok || e.expired(now) {
		return 0, cache.ErrNotFound
	}
	if e.expiration.IsZero() {
		return 0, nil
	}
	return e.expiration.Sub(now), nil
}

// Info returns the fake server statistics.
func (s *Store) Info(_ context.Context) (*cache.ServerInfo, error) {
	s.infoCalls.Add(1)

	if s.closed.Load() {
		return nil, cache.ErrClosed
	}
	if s.infoError != nil {
		return nil, s.infoError
	}

	s.mu.Lock()
	keyCount := len(s.data)
	s.mu.Unlock()

	return &cache.ServerInfo{
		KeyspaceHits:     s.hits.Load(),
		KeyspaceMisses:   s.misses.Load(),
		Version:          "fake",
		ConnectedClients: 1,
		UsedMemoryHuman:  "0B",
		UptimeSeconds:    int64(keyCount), // arbitrary nonzero informational value
	}, nil
}

// ResetStats zeroes the server-level counters.
func (s *Store) ResetStats(_ context.Context) error {
	s.resetCalls.Add(1)

	if s.closed.Load() {
		return cache.ErrClosed
	}
	if s.resetError != nil {
		return s.resetError
	}

	s.hits.Store(0)
	s.misses.Store(0)
	return nil
}

// Capabilities reports the configured capabilities.
func (s *Store) Capabilities() cache.Capabilities {
	return cache.Capabilities{PatternDelete: s.patternDelete}
}

// Health reports the configured health state.
func (s *Store) Health(_ context.Context) error {
	if s.closed.Load() {
		return cache.ErrClosed
	}
	if s.getError != nil {
		return s.getError
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	return nil
}

// Assertion helpers

// Len reports the number of live keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	now := time.Now()
	for _, e := range s.data {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Has reports whether a live entry exists for key without counting a hit or miss.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	return ok && !e.expired(time.Now())
}

// GetCalls returns the number of Get invocations.
func (s *Store) GetCalls() int64 { return s.getCalls.Load() }

// SetCalls returns the number of Set invocations.
func (s *Store) SetCalls() int64 { return s.setCalls.Load() }

// DeleteCalls returns the number of Delete/DeletePattern invocations.
func (s *Store) DeleteCalls() int64 { return s.deleteCalls.Load() }

// ScanCalls returns the number of ScanKeys invocations.
func (s *Store) ScanCalls() int64 { return s.scanCalls.Load() }

// InfoCalls returns the number of Info invocations.
func (s *Store) InfoCalls() int64 { return s.infoCalls.Load() }

// ResetCalls returns the number of ResetStats invocations.
func (s *Store) ResetCalls() int64 { return s.resetCalls.Load() }

// matchGlob matches s against a redis-style glob supporting '*' and '?'.
// Unlike path.Match, no byte is special-cased, so keys containing '/' match.
func matchGlob(pattern, s string) bool {
	// Iterative wildcard match with single-star backtracking.
	var starIdx, matchIdx = -1, 0
	i, j := 0, 0
	for i < len(s) {
		switch {
		case j < len(pattern) && (pattern[j] == '?' || pattern[j] == s[i]):
			i++
			j++
		case j < len(pattern) && pattern[j] == '*':
			starIdx = j
			matchIdx = i
			j++
		case starIdx != -1:
			j = starIdx + 1
			matchIdx++
			i = matchIdx
		default:
			return false
		}
	}
	for j < len(pattern) && pattern[j] == '*' {
		j++
	}
	return j == len(pattern)
}
