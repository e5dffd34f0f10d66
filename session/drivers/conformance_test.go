package drivers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/storage/session"
)

// runCollectionConformance checks the behaviour every session.Collection must share.
func runCollectionConformance(t *testing.T, newCollection func(t *testing.T) session.Collection) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("find missing", func(t *testing.T) {
		c := newCollection(t)
		rec, err := c.FindAndTouch(context.Background(), "missing", base)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("upsert then find touches", func(t *testing.T) {
		ctx := context.Background()
		c := newCollection(t)

		require.NoError(t, c.Upsert(ctx, session.Record{ID: "abc", Modified: base, Data: "user=alice"}))

		later := base.Add(time.Minute)
		rec, err := c.FindAndTouch(ctx, "abc", later)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "abc", rec.ID)
		assert.Equal(t, "user=alice", rec.Data)
		assert.True(t, rec.Modified.Equal(later))

		// The touch must be persisted: a gc just before the touch keeps the record.
		_, err = c.DeleteModifiedBefore(ctx, later.Add(-time.Millisecond))
		require.NoError(t, err)
		rec, err = c.FindAndTouch(ctx, "abc", later)
		require.NoError(t, err)
		assert.NotNil(t, rec)
	})

	t.Run("upsert replaces", func(t *testing.T) {
		ctx := context.Background()
		c := newCollection(t)

		require.NoError(t, c.Upsert(ctx, session.Record{ID: "abc", Modified: base, Data: "one"}))
		require.NoError(t, c.Upsert(ctx, session.Record{ID: "abc", Modified: base, Data: "two"}))

		rec, err := c.FindAndTouch(ctx, "abc", base)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "two", rec.Data)

		res, err := c.DeleteModifiedBefore(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.DeletedCount, "one record per id")
	})

	t.Run("empty data", func(t *testing.T) {
		ctx := context.Background()
		c := newCollection(t)

		require.NoError(t, c.Upsert(ctx, session.Record{ID: "abc", Modified: base}))
		rec, err := c.FindAndTouch(ctx, "abc", base)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Empty(t, rec.Data)
	})

	t.Run("delete one is idempotent", func(t *testing.T) {
		ctx := context.Background()
		c := newCollection(t)
		require.NoError(t, c.Upsert(ctx, session.Record{ID: "abc", Modified: base, Data: "x"}))

		res, err := c.DeleteOne(ctx, "abc")
		require.NoError(t, err)
		assert.True(t, res.Acknowledged)
		assert.Equal(t, int64(1), res.DeletedCount)

		res, err = c.DeleteOne(ctx, "abc")
		require.NoError(t, err)
		assert.True(t, res.Acknowledged)
		assert.Zero(t, res.DeletedCount)

		rec, err := c.FindAndTouch(ctx, "abc", base)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("delete modified before is inclusive", func(t *testing.T) {
		ctx := context.Background()
		c := newCollection(t)
		cutoff := base.Add(-time.Hour)

		require.NoError(t, c.Upsert(ctx, session.Record{ID: "old", Modified: base.Add(-2 * time.Hour), Data: "a"}))
		require.NoError(t, c.Upsert(ctx, session.Record{ID: "edge", Modified: cutoff, Data: "b"}))
		require.NoError(t, c.Upsert(ctx, session.Record{ID: "fresh", Modified: base.Add(-10 * time.Second), Data: "c"}))

		res, err := c.DeleteModifiedBefore(ctx, cutoff)
		require.NoError(t, err)
		assert.True(t, res.Acknowledged)
		assert.Equal(t, int64(2), res.DeletedCount)

		res, err = c.DeleteModifiedBefore(ctx, cutoff)
		require.NoError(t, err)
		assert.True(t, res.Acknowledged)
		assert.Zero(t, res.DeletedCount)

		rec, err := c.FindAndTouch(ctx, "fresh", base)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "c", rec.Data)

		for _, id := range []string{"old", "edge"} {
			rec, err := c.FindAndTouch(ctx, id, base)
			require.NoError(t, err)
			assert.Nil(t, rec, id)
		}
	})
}
