package service

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/rwool/priority-queue/pkg/service/queue"
)

// ErrUnknownQueue is returned for requests naming a queue that is not served.
var ErrUnknownQueue = errors.New("unknown queue")

// Registry holds the queues served, keyed by collection name.
type Registry struct {
	queues map[string]*queue.Queue
}

// NewRegistry creates a Registry of qs. Two queues sharing a collection name
// is an error.
func NewRegistry(qs ...*queue.Queue) (*Registry, error) {
	r := &Registry{queues: make(map[string]*queue.Queue, len(qs))}
	for _, q := range qs {
		if q == nil {
			return nil, errors.New("nil queue")
		}
		if _, ok := r.queues[q.Name()]; ok {
			return nil, errors.Errorf("queue %q registered twice", q.Name())
		}
		r.queues[q.Name()] = q
	}
	return r, nil
}

// Lookup returns the queue with the given name.
func (r *Registry) Lookup(name string) (*queue.Queue, error) {
	q, ok := r.queues[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownQueue, "%q", name)
	}
	return q, nil
}

// Names returns the names of all queues in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.queues))
	for name := range r.queues {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
