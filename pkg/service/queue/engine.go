package queue

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Ensure the adapters implement Store.
var (
	_ Store = (*MongoAdapter)(nil)
	_ Store = (*RedisAdapter)(nil)
)

// Queue is a priority queue bound to one collection of a Store.
//
// A Queue holds no locks and no per-consumer state, so it may be shared
// between goroutines. Consumers that want to walk the queue element by element
// should use a Cursor.
type Queue struct {
	def      Definition
	coll     Collection
	store    Store
	reporter ErrorReporter
	now      func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithReporter sets where insert failures are reported. A nil reporter
// discards them.
func WithReporter(r ErrorReporter) Option {
	return func(q *Queue) {
		if r == nil {
			r = nopReporter{}
		}
		q.reporter = r
	}
}

// WithClock replaces the clock used to stamp inserted records.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// New creates a Queue for def backed by s.
//
// An invalid definition is returned as a *ConfigurationError and no Queue is
// created.
func New(def Definition, s Store, opts ...Option) (*Queue, error) {
	if s == nil {
		panic("nil queue store")
	}
	def = def.withDefaults()
	if err := def.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	q := &Queue{
		def:      def,
		coll:     Collection{Name: def.Collection, Fields: def.Fields},
		store:    s,
		reporter: nopReporter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Name returns the name of the queue's collection.
func (q *Queue) Name() string {
	return q.def.Collection
}

// DefaultPriority returns the priority used when an insert supplies none.
func (q *Queue) DefaultPriority() int64 {
	return q.def.DefaultPriority
}

// Definition returns the queue's definition with defaults applied.
func (q *Queue) Definition() Definition {
	return q.def
}

// Extract claims the next element of the queue and returns its value.
//
// The boolean is false when the queue has no unclaimed elements. Storage
// errors are returned to the caller.
func (q *Queue) Extract(ctx context.Context) (string, bool, error) {
	r, err := q.store.ClaimNext(ctx, q.coll)
	if err != nil {
		return "", false, errors.Wrapf(err, "unable to extract from queue %q", q.coll.Name)
	}
	if r == nil {
		return "", false, nil
	}
	return string(r.Value), true, nil
}

// Count returns the number of unclaimed elements.
func (q *Queue) Count(ctx context.Context) (int64, error) {
	n, err := q.store.CountUnclaimed(ctx, q.coll)
	return n, errors.Wrapf(err, "unable to count queue %q", q.coll.Name)
}

// IsEmpty reports whether the queue has no unclaimed elements.
func (q *Queue) IsEmpty(ctx context.Context) (bool, error) {
	n, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Cursor returns a new single-pass cursor over the queue.
func (q *Queue) Cursor() *Cursor {
	return &Cursor{q: q}
}
