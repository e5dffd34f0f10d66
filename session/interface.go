package session

import (
	"context"
	"time"
)

// Collection is the document-collection capability a Store delegates to.
// Implementations live in the drivers and supabase packages. Each method must be a
// single atomic operation on the backing store.
type Collection interface {
	// FindAndTouch sets Modified to now on the record with the given id and returns it.
	// Returns nil if the record is not found (not an error).
	FindAndTouch(ctx context.Context, id string, now time.Time) (*Record, error)

	// Upsert replaces the record with rec.ID, inserting it if it does not exist.
	Upsert(ctx context.Context, rec Record) error

	// DeleteOne deletes the record with the given id.
	// Deleting a missing id is still an acknowledged success.
	DeleteOne(ctx context.Context, id string) (DeleteResult, error)

	// DeleteModifiedBefore deletes every record whose Modified is at or before cutoff.
	DeleteModifiedBefore(ctx context.Context, cutoff time.Time) (DeleteResult, error)
}

// Handler is the set of lifecycle hooks a web framework calls to persist sessions.
// Frameworks hold a Handler directly instead of registering hooks globally.
type Handler interface {
	Open() bool
	Close() bool
	Read(ctx context.Context, id string) (string, error)
	Write(ctx context.Context, id, payload string) (bool, error)
	Destroy(ctx context.Context, id string) (bool, error)
	GC(ctx context.Context, maxLifetimeSeconds int64) (bool, error)
}
