package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/creastat/storage/session"
)

// MemoryCollection implements session.Collection using an in-memory map.
// It is meant for tests and single-process deployments.
type MemoryCollection struct {
	mu       sync.RWMutex
	sessions map[string]session.Record
}

// NewMemoryCollection creates a new in-memory session collection.
func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{
		sessions: make(map[string]session.Record),
	}
}

// FindAndTouch implements session.Collection.
// Returns nil if the session is not found (not an error).
func (c *MemoryCollection) FindAndTouch(ctx context.Context, id string, now time.Time) (*session.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, exists := c.sessions[id]
	if !exists {
		return nil, nil
	}
	rec.Modified = now
	c.sessions[id] = rec
	return &rec, nil
}

// Upsert implements session.Collection.
func (c *MemoryCollection) Upsert(ctx context.Context, rec session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions[rec.ID] = rec
	return nil
}

// DeleteOne implements session.Collection.
func (c *MemoryCollection) DeleteOne(ctx context.Context, id string) (session.DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return session.DeleteResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res := session.DeleteResult{Acknowledged: true}
	if _, exists := c.sessions[id]; exists {
		delete(c.sessions, id)
		res.DeletedCount = 1
	}
	return res, nil
}

// DeleteModifiedBefore implements session.Collection.
func (c *MemoryCollection) DeleteModifiedBefore(ctx context.Context, cutoff time.Time) (session.DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return session.DeleteResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res := session.DeleteResult{Acknowledged: true}
	for id, rec := range c.sessions {
		if !rec.Modified.After(cutoff) {
			delete(c.sessions, id)
			res.DeletedCount++
		}
	}
	return res, nil
}

// Get returns a copy of the stored record without touching it.
func (c *MemoryCollection) Get(id string) (session.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, exists := c.sessions[id]
	return rec, exists
}

// Len returns the number of stored records.
func (c *MemoryCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.sessions)
}

var _ session.Collection = (*MemoryCollection)(nil)
