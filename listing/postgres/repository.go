// Package postgres implements listing.Repository over PostgreSQL using
// database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/casafind/listingcache/listing"
	"github.com/casafind/listingcache/logger"
)

const listingsTable = "listings"

var listingColumns = []string{"id", "title", "description", "price::text", "location", "created_at"}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// Repository is the PostgreSQL-backed listing store.
//
// Mutation events are published on the bus after the statement has executed
// (so the mutation is visible to subsequent reads) and before the method
// returns to its caller.
type Repository struct {
	db  *sql.DB
	bus *listing.Bus
	log logger.Logger
	sb  sq.StatementBuilderType
}

// Ensure Repository implements the contract.
var _ listing.Repository = (*Repository)(nil)

// NewRepository creates a repository publishing mutation events on bus.
func NewRepository(db *sql.DB, bus *listing.Bus, log logger.Logger) *Repository {
	return &Repository{
		db:  db,
		bus: bus,
		log: log,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// List returns all listings ordered by creation time, newest first.
func (r *Repository) List(ctx context.Context) ([]listing.Listing, error) {
	query, args, err := r.sb.
		Select(listingColumns...).
		From(listingsTable).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", listing.ErrRepositoryUnavailable, err)
	}
	defer rows.Close()

	var listings []listing.Listing
	for rows.Next() {
		var l listing.Listing
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Location, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %w", listing.ErrRepositoryUnavailable, err)
	}

	return listings, nil
}

// Count returns the number of listings.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	query, args, err := r.sb.
		Select("COUNT(*)").
		From(listingsTable).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count: %w", listing.ErrRepositoryUnavailable, err)
	}

	return count, nil
}

// Create persists a new listing and emits an OpCreated event.
// The identifier and creation timestamp are assigned here and are immutable.
func (r *Repository) Create(ctx context.Context, fields listing.Fields) (*listing.Listing, error) {
	l := listing.Listing{
		ID:          uuid.New(),
		Title:       fields.Title,
		Description: fields.Description,
		Price:       fields.Price,
		Location:    fields.Location,
		CreatedAt:   time.Now().UTC(),
	}

	query, args, err := r.sb.
		Insert(listingsTable).
		Columns("id", "title", "description", "price", "location", "created_at").
		Values(l.ID, l.Title, l.Description, l.Price, l.Location, l.CreatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("%w: create: %w", listing.ErrRepositoryUnavailable, err)
	}

	r.bus.Publish(ctx, listing.Event{Op: listing.OpCreated, Listing: l})

	r.log.Info().Str("listing_id", l.ID.String()).Str("title", l.Title).Msg("Listing created")
	return &l, nil
}

// Update replaces the mutable fields of an existing listing and emits an
// OpUpdated event. Returns listing.ErrNotFound when no such listing exists.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fields listing.Fields) (*listing.Listing, error) {
	// Fetch first so the immutable fields survive and ErrNotFound is
	// distinguishable from an execution failure.
	current, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	l := listing.Listing{
		ID:          current.ID,
		Title:       fields.Title,
		Description: fields.Description,
		Price:       fields.Price,
		Location:    fields.Location,
		CreatedAt:   current.CreatedAt,
	}

	query, args, err := r.sb.
		Update(listingsTable).
		Set("title", l.Title).
		Set("description", l.Description).
		Set("price", l.Price).
		Set("location", l.Location).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: update: %w", listing.ErrRepositoryUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update rows affected: %w", err)
	}
	if affected == 0 {
		// Lost a race with a concurrent delete.
		return nil, listing.ErrNotFound
	}

	r.bus.Publish(ctx, listing.Event{Op: listing.OpUpdated, Listing: l})

	r.log.Info().Str("listing_id", id.String()).Str("title", l.Title).Msg("Listing updated")
	return &l, nil
}

// Delete removes a listing by id and emits an OpDeleted event.
// Returns listing.ErrNotFound when no such listing exists.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	// Fetch the record first so the event can carry it.
	l, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	query, args, err := r.sb.
		Delete(listingsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: delete: %w", listing.ErrRepositoryUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		// Lost a race with a concurrent delete.
		return listing.ErrNotFound
	}

	r.bus.Publish(ctx, listing.Event{Op: listing.OpDeleted, Listing: *l})

	r.log.Info().Str("listing_id", id.String()).Str("title", l.Title).Msg("Listing deleted")
	return nil
}

func (r *Repository) get(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	query, args, err := r.sb.
		Select(listingColumns...).
		From(listingsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	var l listing.Listing
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Location, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, listing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get: %w", listing.ErrRepositoryUnavailable, err)
	}

	return &l, nil
}
