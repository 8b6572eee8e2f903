// Package emails defines the queue of outgoing emails.
package emails

import (
	"context"

	"github.com/rwool/priority-queue/pkg/service/queue"
)

// CollectionName is the collection holding queued emails.
const CollectionName = "emails"

// Email priorities.
const (
	ProblemPriority int64 = 2
	LowPriority     int64 = 3
	DirectPriority  int64 = 5
	DefaultPriority int64 = 7
	UrgentPriority  int64 = 73
)

// Definition returns the definition of the emails queue.
func Definition() queue.Definition {
	return queue.Definition{
		Collection:      CollectionName,
		DefaultPriority: DefaultPriority,
		Fields:          queue.DefaultFields(),
	}
}

// Queue is the queue of outgoing emails.
type Queue struct {
	*queue.Queue
}

// New creates the emails queue on s.
func New(s queue.Store, opts ...queue.Option) (*Queue, error) {
	q, err := queue.New(Definition(), s, opts...)
	if err != nil {
		return nil, err
	}
	return &Queue{Queue: q}, nil
}

// Send queues message with the given priority. A zero priority selects
// DefaultPriority.
func (q *Queue) Send(ctx context.Context, message string, priority int64, description map[string]interface{}) (bool, error) {
	if priority == 0 {
		priority = DefaultPriority
	}
	return q.Insert(ctx, message, queue.WithPriority(priority), queue.WithDescription(description))
}

// Receive claims the next message to be sent.
func (q *Queue) Receive(ctx context.Context) (string, bool, error) {
	return q.Extract(ctx)
}
