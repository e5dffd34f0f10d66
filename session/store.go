package session

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store implements Handler on top of a Collection.
//
// A Store is meant to live for one request or process context. It remembers the last
// payload it read or wrote for the current id so that a Write of unchanged data does not
// reach the backing store. That memory is local to the instance and is not a cache shared
// with other processes.
type Store struct {
	collection Collection
	logger     *zap.Logger
	clock      func() time.Time

	mu        sync.Mutex
	id        string
	cachedID  string
	cached    string
	hasCached bool
}

// NewStore creates a Store. WithCollection is required.
func NewStore(opts ...StoreOption) (*Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.collection == nil {
		return nil, &ConfigurationError{Option: "collection", Reason: "is required"}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}

	return &Store{
		collection: cfg.collection,
		logger:     cfg.logger,
		clock:      cfg.clock,
		id:         cfg.sessionID,
	}, nil
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// ID returns the current session id.
func (s *Store) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetID sets the current session id.
func (s *Store) SetID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// Open implements Handler. The collection is already connected by its owner.
func (s *Store) Open() bool {
	return true
}

// Close implements Handler. The collection is left open.
func (s *Store) Close() bool {
	return true
}

// Read implements Handler.
// Returns "" if the session does not exist or has no data.
func (s *Store) Read(ctx context.Context, id string) (string, error) {
	rec, err := s.collection.FindAndTouch(ctx, id, s.now())
	if err != nil {
		s.logger.Warn("session read failed", zap.String("session_id", id), zap.Error(err))
		return "", &StorageError{Op: "read", ID: id, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = id
	if rec == nil {
		s.hasCached = false
		s.logger.Debug("session not found", zap.String("session_id", id))
		return "", nil
	}

	// A record without data caches "" too: it exists, so writing "" again changes nothing.
	s.cachedID, s.cached, s.hasCached = id, rec.Data, true
	s.logger.Debug("session read", zap.String("session_id", id), zap.Int("bytes", len(rec.Data)))
	return rec.Data, nil
}

// Write implements Handler.
// A payload equal to the one last read or written for id is not persisted again.
func (s *Store) Write(ctx context.Context, id, payload string) (bool, error) {
	s.mu.Lock()
	s.id = id
	unchanged := s.hasCached && s.cachedID == id && s.cached == payload
	s.mu.Unlock()

	if unchanged {
		s.logger.Debug("session unchanged, write skipped", zap.String("session_id", id))
		return true, nil
	}

	rec := Record{ID: id, Modified: s.now(), Data: payload}
	if err := s.collection.Upsert(ctx, rec); err != nil {
		s.logger.Warn("session write failed", zap.String("session_id", id), zap.Error(err))
		return false, &StorageError{Op: "write", ID: id, Err: err}
	}

	s.mu.Lock()
	s.cachedID, s.cached, s.hasCached = id, payload, true
	s.mu.Unlock()

	s.logger.Debug("session written", zap.String("session_id", id), zap.Int("bytes", len(payload)))
	return true, nil
}

// Destroy implements Handler. An empty id destroys the current session.
// The result is the store's acknowledgment, which is true for ids that did not exist.
func (s *Store) Destroy(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	if id == "" {
		id = s.id
	}
	s.cachedID, s.cached, s.hasCached = "", "", false
	s.mu.Unlock()

	if id == "" {
		return false, ErrNoSessionID
	}

	res, err := s.collection.DeleteOne(ctx, id)
	if err != nil {
		s.logger.Warn("session destroy failed", zap.String("session_id", id), zap.Error(err))
		return false, &StorageError{Op: "destroy", ID: id, Err: err}
	}

	s.logger.Debug("session destroyed",
		zap.String("session_id", id),
		zap.Bool("acknowledged", res.Acknowledged),
		zap.Int64("deleted", res.DeletedCount))
	return res.Acknowledged, nil
}

// GC implements Handler. It deletes every session not touched within maxLifetimeSeconds.
func (s *Store) GC(ctx context.Context, maxLifetimeSeconds int64) (bool, error) {
	if maxLifetimeSeconds < 0 {
		return false, &ConfigurationError{Option: "maxLifetime", Reason: "must not be negative"}
	}

	cutoff := s.now().Add(-lifetime(maxLifetimeSeconds))
	res, err := s.collection.DeleteModifiedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Warn("session gc failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return false, &StorageError{Op: "gc", Err: err}
	}

	s.logger.Debug("session gc",
		zap.Time("cutoff", cutoff),
		zap.Bool("acknowledged", res.Acknowledged),
		zap.Int64("deleted", res.DeletedCount))
	return res.Acknowledged, nil
}

// lifetime converts seconds to a Duration, saturating at the largest Duration
// instead of wrapping to a negative one.
func lifetime(seconds int64) time.Duration {
	if seconds > int64(math.MaxInt64/time.Second) {
		return math.MaxInt64
	}
	return time.Duration(seconds) * time.Second
}

// now is the store clock truncated to the millisecond precision records carry.
func (s *Store) now() time.Time {
	return s.clock().Truncate(time.Millisecond)
}

// Compile-time check that Store implements Handler
var _ Handler = (*Store)(nil)
