package listing

import (
	"context"
	"errors"

	"github.com/casafind/listingcache/cache"
	"github.com/casafind/listingcache/logger"
)

// PageCachePattern matches the outer response-cache entries for the listing
// endpoints. The server package derives its keys from this namespace.
const PageCachePattern = "pagecache:*properties*"

// Invalidator reacts to repository mutation events by deleting the dependent
// cache entries. Dispatch is synchronous and fire-and-forget: a store failure
// is logged and swallowed, never rolled back into the mutation.
type Invalidator struct {
	store cache.Store
	log   logger.Logger
}

// NewInvalidator creates a dispatcher bound to the given store.
func NewInvalidator(store cache.Store, log logger.Logger) *Invalidator {
	return &Invalidator{
		store: store,
		log:   log,
	}
}

// Register subscribes the dispatcher to mutation events on the bus.
// Call once at process start, before the repository publishes anything.
func (iv *Invalidator) Register(bus *Bus) {
	bus.Subscribe(iv.handle)
}

// handle clears the named keys on any mutation. Create, update and delete all
// invalidate identically. Which keys were actually present is recorded for
// observability only.
func (iv *Invalidator) handle(ctx context.Context, e Event) {
	// Detached from the request context: invalidation must complete even if
	// the originating request has been abandoned.
	ctx = context.WithoutCancel(ctx)

	var deleted []string
	for _, key := range []string{KeyAllProperties, KeyPropertyCount} {
		removed, err := iv.store.Delete(ctx, key)
		if err != nil {
			iv.log.Warn().Err(err).Str("key", key).Str("op", string(e.Op)).
				Msg("Cache invalidation failed, entry may expire via TTL")
			continue
		}
		if removed {
			deleted = append(deleted, key)
		}
	}

	if len(deleted) > 0 {
		iv.log.Info().
			Strs("keys", deleted).
			Str("op", string(e.Op)).
			Str("listing_id", e.Listing.ID.String()).
			Str("title", e.Listing.Title).
			Msg("Cache invalidated")
	} else {
		iv.log.Debug().Str("op", string(e.Op)).Msg("No cache entries to invalidate")
	}
}

// ClearAll clears every listing-related cache entry: both named keys plus a
// pattern sweep of the outer page cache. When the store lacks pattern-delete
// capability the sweep is a logged no-op, not an error; only the two named
// keys are guaranteed cleared. Returns how many entries were removed.
func (iv *Invalidator) ClearAll(ctx context.Context) (int, error) {
	cleared := 0

	for _, key := range []string{KeyAllProperties, KeyPropertyCount} {
		removed, err := iv.store.Delete(ctx, key)
		if err != nil {
			return cleared, err
		}
		if removed {
			cleared++
		}
	}

	swept, err := iv.store.DeletePattern(ctx, PageCachePattern)
	if err != nil {
		if errors.Is(err, cache.ErrPatternDeleteUnsupported) {
			iv.log.Debug().Msg("Pattern delete not supported, skipping page cache sweep")
			return cleared, nil
		}
		return cleared, err
	}

	if swept > 0 {
		iv.log.Info().Int("count", swept).Str("pattern", PageCachePattern).
			Msg("Swept page cache entries")
	}

	return cleared + swept, nil
}
