// Package queue implements a persistent priority queue on top of a document
// store.
//
// Elements with a higher priority are extracted first. Elements sharing a
// priority are extracted in the order they were inserted. Extraction marks an
// element as claimed in the same storage operation that returns it, so any
// number of processes may consume the same queue without receiving an element
// twice. Claimed elements are kept in storage rather than deleted.
package queue

import (
	"context"
	"time"
)

// Record is a single element of a queue as persisted by a Store.
type Record struct {
	Value       []byte
	Created     time.Time
	Claimed     bool
	Priority    int64
	Description map[string]interface{}
}

// Collection identifies a queue within a Store and the field names its
// records are stored under.
type Collection struct {
	Name   string
	Fields Fields
}

// Ack is the acknowledgement a Store returns for a write.
type Ack struct {
	// OK is true only when the write was fully applied.
	OK bool
}

// Store wraps the set of storage operations a Queue is built on.
//
// ClaimNext must select the unclaimed record with the highest priority (oldest
// first among equal priorities), mark it claimed and return it as it was before
// the update, all as one atomic operation. A nil record with a nil error means
// no unclaimed record exists.
type Store interface {
	InsertOne(ctx context.Context, c Collection, r Record) (Ack, error)
	ClaimNext(ctx context.Context, c Collection) (*Record, error)
	CountUnclaimed(ctx context.Context, c Collection) (int64, error)
}
