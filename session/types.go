package session

import "time"

// Record is the persisted form of one session.
// A record without data is an empty session, not an error.
type Record struct {
	ID       string    `json:"id"`
	Modified time.Time `json:"modified"`
	Data     string    `json:"data,omitempty"`
}

// DeleteResult reports how the backing store answered a delete.
// Acknowledged says the store accepted the request; it does not say a record existed.
type DeleteResult struct {
	Acknowledged bool
	DeletedCount int64
}

// StoreType represents the backend a session collection is stored in.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeMongo    StoreType = "mongo"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeSupabase StoreType = "supabase"
)
