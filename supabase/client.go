package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"

	"github.com/creastat/storage/session"
)

// DefaultTable is the table sessions are stored in when Config.Table is empty.
const DefaultTable = "sessions"

// Config holds Supabase connection configuration
type Config struct {
	URL    string
	APIKey string
	Table  string // Default: "sessions"
}

// Collection implements session.Collection on a Supabase (PostgREST) table with the
// columns id (text primary key), modified (timestamptz) and data (text, nullable).
type Collection struct {
	client *supabase.Client
	table  string
}

// row is the table layout.
type row struct {
	ID       string    `json:"id"`
	Modified time.Time `json:"modified"`
	Data     *string   `json:"data"`
}

// New creates a new Supabase session collection
func New(cfg Config) (*Collection, error) {
	if cfg.URL == "" {
		return nil, &session.ConfigurationError{Option: "supabase.url", Reason: "is required"}
	}
	if cfg.APIKey == "" {
		return nil, &session.ConfigurationError{Option: "supabase.api_key", Reason: "is required"}
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Collection{
		client: client,
		table:  cfg.Table,
	}, nil
}

// FindAndTouch implements session.Collection with a single PATCH returning the updated row.
// Returns nil if the session is not found (not an error).
func (c *Collection) FindAndTouch(ctx context.Context, id string, now time.Time) (*session.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []row
	_, err := c.client.From(c.table).
		Update(map[string]string{"modified": timestamp(now)}, "representation", "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	rec := &session.Record{ID: rows[0].ID, Modified: rows[0].Modified}
	if rows[0].Data != nil {
		rec.Data = *rows[0].Data
	}
	return rec, nil
}

// Upsert implements session.Collection.
func (c *Collection) Upsert(ctx context.Context, rec session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := rec.Data
	_, _, err := c.client.From(c.table).
		Upsert(row{ID: rec.ID, Modified: rec.Modified.UTC(), Data: &data}, "id", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// DeleteOne implements session.Collection.
func (c *Collection) DeleteOne(ctx context.Context, id string) (session.DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return session.DeleteResult{}, err
	}

	_, count, err := c.client.From(c.table).
		Delete("minimal", "exact").
		Eq("id", id).
		Execute()
	if err != nil {
		return session.DeleteResult{}, fmt.Errorf("failed to delete session: %w", err)
	}

	return session.DeleteResult{Acknowledged: true, DeletedCount: count}, nil
}

// DeleteModifiedBefore implements session.Collection.
func (c *Collection) DeleteModifiedBefore(ctx context.Context, cutoff time.Time) (session.DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return session.DeleteResult{}, err
	}

	_, count, err := c.client.From(c.table).
		Delete("minimal", "exact").
		Lte("modified", timestamp(cutoff)).
		Execute()
	if err != nil {
		return session.DeleteResult{}, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return session.DeleteResult{Acknowledged: true, DeletedCount: count}, nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Compile-time check that Collection implements session.Collection
var _ session.Collection = (*Collection)(nil)
