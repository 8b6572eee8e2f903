package queuemock

import (
	"context"
	"sync"

	"github.com/rwool/priority-queue/pkg/service/queue"
)

// Ensure QueueMock implements queue.Store.
var _ queue.Store = (*QueueMock)(nil)

// QueueMock is an in-memory implementation of the queue.Store type.
//
// Each collection is guarded by its own mutex, standing in for the atomicity a
// real database provides. Intended for testing only.
type QueueMock struct {
	Data *sync.Map

	mu          sync.Mutex
	insertErr   error
	nackInserts bool
	readErr     error
}

// New returns a new QueueMock.
func New() *QueueMock {
	return &QueueMock{Data: new(sync.Map)}
}

type collection struct {
	mu      sync.Mutex
	records []*queue.Record
}

func (q *QueueMock) getCollection(name string) *collection {
	v, ok := q.Data.Load(name)
	if !ok {
		v, _ = q.Data.LoadOrStore(name, &collection{})
	}
	return v.(*collection)
}

// FailInserts makes every following insert return err.
func (q *QueueMock) FailInserts(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.insertErr = err
}

// NackInserts makes every following insert return a negative acknowledgement.
func (q *QueueMock) NackInserts(nack bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nackInserts = nack
}

// FailReads makes every following claim and count return err.
func (q *QueueMock) FailReads(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.readErr = err
}

func (q *QueueMock) faults() (insertErr error, nack bool, readErr error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.insertErr, q.nackInserts, q.readErr
}

// InsertOne stores a copy of r.
func (q *QueueMock) InsertOne(ctx context.Context, c queue.Collection, r queue.Record) (queue.Ack, error) {
	insertErr, nack, _ := q.faults()
	if insertErr != nil {
		return queue.Ack{}, insertErr
	}
	if nack {
		return queue.Ack{OK: false}, nil
	}
	if err := ctx.Err(); err != nil {
		return queue.Ack{}, err
	}

	r.Value = append([]byte(nil), r.Value...)
	coll := q.getCollection(c.Name)
	coll.mu.Lock()
	defer coll.mu.Unlock()
	coll.records = append(coll.records, &r)
	return queue.Ack{OK: true}, nil
}

// ClaimNext claims the unclaimed record with the highest priority, oldest
// first, and returns it as it was before being claimed.
func (q *QueueMock) ClaimNext(ctx context.Context, c queue.Collection) (*queue.Record, error) {
	if _, _, err := q.faults(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	coll := q.getCollection(c.Name)
	coll.mu.Lock()
	defer coll.mu.Unlock()

	var next *queue.Record
	for _, r := range coll.records {
		if r.Claimed {
			continue
		}
		// Records are kept in insertion order, so strict comparisons keep the
		// earliest inserted among equals.
		if next == nil ||
			r.Priority > next.Priority ||
			(r.Priority == next.Priority && r.Created.Before(next.Created)) {
			next = r
		}
	}
	if next == nil {
		return nil, nil
	}
	before := *next
	next.Claimed = true
	return &before, nil
}

// CountUnclaimed counts the unclaimed records of c.
func (q *QueueMock) CountUnclaimed(ctx context.Context, c queue.Collection) (int64, error) {
	if _, _, err := q.faults(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	coll := q.getCollection(c.Name)
	coll.mu.Lock()
	defer coll.mu.Unlock()
	var n int64
	for _, r := range coll.records {
		if !r.Claimed {
			n++
		}
	}
	return n, nil
}

// Records returns copies of every record of the named collection, claimed or
// not, in insertion order.
func (q *QueueMock) Records(name string) []queue.Record {
	coll := q.getCollection(name)
	coll.mu.Lock()
	defer coll.mu.Unlock()
	out := make([]queue.Record, 0, len(coll.records))
	for _, r := range coll.records {
		out = append(out, *r)
	}
	return out
}
