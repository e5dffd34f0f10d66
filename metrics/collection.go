// Package metrics instruments session collections with Prometheus.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/creastat/storage/session"
)

const namespace = "sessionstore"

// Operation label values.
const (
	OpFindAndTouch = "find_and_touch"
	OpUpsert       = "upsert"
	OpDeleteOne    = "delete_one"
	OpDeleteMany   = "delete_modified_before"
)

// Collection wraps a session.Collection and records per-operation counts and latency.
type Collection struct {
	next     session.Collection
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	deleted  prometheus.Counter
}

// NewCollection instruments next and registers its collectors with reg.
func NewCollection(next session.Collection, reg prometheus.Registerer) (*Collection, error) {
	c := &Collection{
		next: next,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Session collection operations by operation and result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of session collection operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deleted_total",
			Help:      "Session records removed by destroy and gc.",
		}),
	}

	for _, col := range []prometheus.Collector{c.ops, c.duration, c.deleted} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register session metrics: %w", err)
		}
	}
	return c, nil
}

// FindAndTouch implements session.Collection.
func (c *Collection) FindAndTouch(ctx context.Context, id string, now time.Time) (*session.Record, error) {
	start := time.Now()
	rec, err := c.next.FindAndTouch(ctx, id, now)
	c.observe(OpFindAndTouch, start, err)
	return rec, err
}

// Upsert implements session.Collection.
func (c *Collection) Upsert(ctx context.Context, rec session.Record) error {
	start := time.Now()
	err := c.next.Upsert(ctx, rec)
	c.observe(OpUpsert, start, err)
	return err
}

// DeleteOne implements session.Collection.
func (c *Collection) DeleteOne(ctx context.Context, id string) (session.DeleteResult, error) {
	start := time.Now()
	res, err := c.next.DeleteOne(ctx, id)
	c.observe(OpDeleteOne, start, err)
	c.deleted.Add(float64(res.DeletedCount))
	return res, err
}

// DeleteModifiedBefore implements session.Collection.
func (c *Collection) DeleteModifiedBefore(ctx context.Context, cutoff time.Time) (session.DeleteResult, error) {
	start := time.Now()
	res, err := c.next.DeleteModifiedBefore(ctx, cutoff)
	c.observe(OpDeleteMany, start, err)
	c.deleted.Add(float64(res.DeletedCount))
	return res, err
}

func (c *Collection) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.ops.WithLabelValues(op, result).Inc()
	c.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

var _ session.Collection = (*Collection)(nil)
