package listing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Sentinel errors for repository operations.
var (
	// ErrNotFound is returned when the referenced listing doesn't exist.
	ErrNotFound = errors.New("listing: not found")

	// ErrRepositoryUnavailable wraps failures to reach the persistent store.
	// Unlike cache failures these are fatal and always propagate to the caller.
	ErrRepositoryUnavailable = errors.New("listing: repository unavailable")
)

// Repository is the persistent store of listing records.
//
// Implementations publish a mutation event on their Bus after each successful
// Create, Update or Delete, once the mutation is visible to subsequent reads
// and before the call returns. That ordering closes the window where a
// concurrent read could repopulate the cache with stale data that never gets
// invalidated.
type Repository interface {
	// List returns all listings ordered by creation time, newest first.
	List(ctx context.Context) ([]Listing, error)

	// Count returns the number of listings.
	Count(ctx context.Context) (int64, error)

	// Create persists a new listing and emits an OpCreated event.
	Create(ctx context.Context, fields Fields) (*Listing, error)

	// Update replaces the mutable fields of an existing listing and emits an
	// OpUpdated event. Returns ErrNotFound if no such listing exists.
	Update(ctx context.Context, id uuid.UUID, fields Fields) (*Listing, error)

	// Delete removes a listing by id and emits an OpDeleted event.
	// Returns ErrNotFound if no such listing exists.
	Delete(ctx context.Context, id uuid.UUID) error
}
