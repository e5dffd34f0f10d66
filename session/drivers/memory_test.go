package drivers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/storage/session"
)

func TestMemoryCollection(t *testing.T) {
	runCollectionConformance(t, func(t *testing.T) session.Collection {
		return NewMemoryCollection()
	})
}

func TestMemoryCollection_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewMemoryCollection()
	_, err := c.FindAndTouch(ctx, "abc", time.Now())
	assert.ErrorIs(t, err, context.Canceled)

	err = c.Upsert(ctx, session.Record{ID: "abc"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.Len())
}

func TestMemoryCollection_FindReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection()
	require.NoError(t, c.Upsert(ctx, session.Record{ID: "abc", Data: "x"}))

	rec, err := c.FindAndTouch(ctx, "abc", time.Now())
	require.NoError(t, err)
	rec.Data = "mutated"

	stored, ok := c.Get("abc")
	require.True(t, ok)
	assert.Equal(t, "x", stored.Data)
}
