// Package listing contains the listing domain model, the repository contract,
// the mutation event bus, and the cache-aside layer that sits between the two.
package listing

import (
	"time"

	"github.com/google/uuid"
)

// Listing is a single property listing record.
//
// Price is a fixed-point decimal carried as a string end to end so no float
// rounding happens in transport or storage round-trips.
type Listing struct {
	ID          uuid.UUID `json:"id" cbor:"1,keyasint"`
	Title       string    `json:"title" cbor:"2,keyasint"`
	Description string    `json:"description" cbor:"3,keyasint"`
	Price       string    `json:"price" cbor:"4,keyasint"`
	Location    string    `json:"location" cbor:"5,keyasint"`
	CreatedAt   time.Time `json:"created_at" cbor:"6,keyasint"`
}

// Fields carries the caller-supplied attributes for a new listing.
// ID and CreatedAt are assigned by the repository at creation time.
type Fields struct {
	Title       string
	Description string
	Price       string
	Location    string
}
