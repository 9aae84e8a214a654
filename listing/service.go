package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casafind/listingcache/cache"
	"github.com/casafind/listingcache/logger"
)

// Named cache keys. The vocabulary is fixed, not derived from requests.
const (
	// KeyAllProperties holds the full listing sequence.
	KeyAllProperties = "all_properties"

	// KeyPropertyCount holds the listing count.
	KeyPropertyCount = "property_count"
)

// TTL policy per key. The outer page cache (server package) must stay at or
// below AllPropertiesTTL so outer staleness is always bounded by inner staleness.
const (
	AllPropertiesTTL = time.Hour
	PropertyCountTTL = 30 * time.Minute
)

// Service is the cache-aside read-through layer in front of the Repository.
//
// Store failures are never fatal for reads: any failure to reach the store is
// treated as a miss and the read falls through to the Repository. Repository
// failures always propagate, wrapped in ErrRepositoryUnavailable.
//
// Concurrent misses for the same key are not de-duplicated. Each one queries
// the Repository and overwrites the entry with an identical value, which is
// an accepted inefficiency.
type Service struct {
	store cache.Store
	repo  Repository
	log   logger.Logger
}

// NewService creates the listing cache service.
func NewService(store cache.Store, repo Repository, log logger.Logger) *Service {
	return &Service{
		store: store,
		repo:  repo,
		log:   log,
	}
}

// GetAll returns every listing, newest first.
// Cache hit: the cached sequence is returned unchanged, without touching the
// Repository. Cache miss: the Repository result is written through under
// KeyAllProperties with AllPropertiesTTL.
func (s *Service) GetAll(ctx context.Context) ([]Listing, error) {
	data, err := s.store.Get(ctx, KeyAllProperties)
	if err == nil {
		listings, derr := cache.Unmarshal[[]Listing](data)
		if derr == nil {
			return listings, nil
		}
		s.log.Warn().Err(derr).Str("key", KeyAllProperties).Msg("Discarding undecodable cache entry")
	} else if !errors.Is(err, cache.ErrNotFound) {
		s.logDegraded("get", KeyAllProperties, err)
	}

	listings, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrRepositoryUnavailable, err)
	}

	s.populate(ctx, KeyAllProperties, listings, AllPropertiesTTL)
	return listings, nil
}

// GetCount returns the number of listings, cached under KeyPropertyCount with
// PropertyCountTTL.
func (s *Service) GetCount(ctx context.Context) (int64, error) {
	data, err := s.store.Get(ctx, KeyPropertyCount)
	if err == nil {
		count, derr := cache.Unmarshal[int64](data)
		if derr == nil {
			return count, nil
		}
		s.log.Warn().Err(derr).Str("key", KeyPropertyCount).Msg("Discarding undecodable cache entry")
	} else if !errors.Is(err, cache.ErrNotFound) {
		s.logDegraded("get", KeyPropertyCount, err)
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrRepositoryUnavailable, err)
	}

	s.populate(ctx, KeyPropertyCount, count, PropertyCountTTL)
	return count, nil
}

// Invalidate deletes KeyAllProperties. The boolean reports whether the key
// was actually present and removed, not whether the call succeeded.
func (s *Service) Invalidate(ctx context.Context) (bool, error) {
	removed, err := s.store.Delete(ctx, KeyAllProperties)
	if err != nil {
		return false, err
	}
	return removed, nil
}

// populate writes a freshly computed value through to the store.
// The write is detached from request cancellation so an abandoned request
// doesn't leave the cache permanently cold, and a store failure only degrades.
func (s *Service) populate(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := cache.Marshal(value)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to encode cache value")
		return
	}

	if err := s.store.Set(context.WithoutCancel(ctx), key, data, ttl); err != nil {
		s.logDegraded("set", key, err)
	}
}

// logDegraded records that a read was served in degraded (cache-less) mode.
func (s *Service) logDegraded(op, key string, err error) {
	s.log.Warn().
		Err(err).
		Str("op", op).
		Str("key", key).
		Msg("Cache store unreachable, serving in degraded mode")
}
