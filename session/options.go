package session

import (
	"time"

	"go.uber.org/zap"
)

// StoreOption is a functional option for configuring a session store.
type StoreOption func(*storeConfig)

// storeConfig holds configuration for session stores.
type storeConfig struct {
	collection Collection
	logger     *zap.Logger
	clock      func() time.Time
	sessionID  string
}

// WithCollection sets the collection the store persists records in. Required.
// The store never closes it.
func WithCollection(c Collection) StoreOption {
	return func(cfg *storeConfig) {
		cfg.collection = c
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(cfg *storeConfig) {
		cfg.logger = logger
	}
}

// WithClock overrides the time source used for modified timestamps and gc cutoffs.
func WithClock(clock func() time.Time) StoreOption {
	return func(cfg *storeConfig) {
		cfg.clock = clock
	}
}

// WithSessionID sets the id Destroy uses when called without one.
func WithSessionID(id string) StoreOption {
	return func(cfg *storeConfig) {
		cfg.sessionID = id
	}
}
