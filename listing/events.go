package listing

import (
	"context"
	"sync"
)

// Op identifies the kind of repository mutation an event describes.
type Op string

// Mutation event kinds. An update invalidates exactly like a create.
const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Event describes a single committed repository mutation.
type Event struct {
	Op      Op
	Listing Listing
}

// Handler receives mutation events. Handlers run synchronously on the
// publishing goroutine, so a handler must not block indefinitely.
type Handler func(ctx context.Context, e Event)

// Bus is an explicit, in-process event bus for repository mutations.
// It is passed into both the repository and the invalidation dispatcher at
// construction; there is no ambient global dispatch.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all subsequent events.
// Subscription is expected to happen at process start, before publishing begins.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish dispatches the event to every handler, in subscription order,
// before returning.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, e)
	}
}
