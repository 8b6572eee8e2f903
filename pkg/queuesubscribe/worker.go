// Package queuesubscribe provides support for transport of elements claimed
// from a priority queue to a worker endpoint.
//
// This is analogous to the http package for the API service.
package queuesubscribe

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"golang.org/x/sync/semaphore"

	"github.com/rwool/priority-queue/pkg/service"
	"github.com/rwool/priority-queue/pkg/service/queue"
)

const (
	defaultPollInterval = time.Second
	defaultConcurrency  = 4
)

// Config contains the configuration for setting up a subscription to a queue
// for a worker.
type Config struct {
	Endpoint endpoint.Endpoint
	Queue    *queue.Queue
	Log      log.Logger
	// PollInterval is how long to wait after finding the queue empty.
	PollInterval time.Duration
	// Concurrency bounds the number of elements being handled at once.
	Concurrency int64
}

func (c Config) withDefaults() Config {
	if c.Log == nil {
		c.Log = log.NewNopLogger()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	return c
}

// MakeWorkerHandler returns a function that consumes the configured queue
// until its context is done.
//
// Every element is claimed before it is handed to the endpoint, so an element
// whose handling fails is not retried.
func MakeWorkerHandler(conf Config) func(context.Context) {
	conf = conf.withDefaults()
	var (
		dataC   = make(chan string)
		subLoop = makeSubscribeLoop(conf.Queue, conf.Log, dataC, conf.PollInterval)
		sema    = semaphore.NewWeighted(conf.Concurrency)
	)

	return func(ctx context.Context) {
		go subLoop(ctx)
		// Wait for in-flight elements before returning.
		defer func() { _ = sema.Acquire(context.Background(), conf.Concurrency) }()

		for {
			select {
			case value := <-dataC:
				if err := sema.Acquire(ctx, 1); err != nil {
					_ = conf.Log.Log("LEVEL", "ERROR", "MESSAGE", fmt.Sprintf("Dropped claimed element of queue %s: %s", conf.Queue.Name(), err), "VALUE", value)
					return
				}
				// Process incoming data asynchronously to not block other
				// elements.
				go func() {
					defer sema.Release(1)
					deliver(ctx, value, conf)
				}()
			case <-ctx.Done():
				return
			}
		}
	}
}

func deliver(ctx context.Context, value string, conf Config) {
	resp, err := conf.Endpoint(ctx, service.Delivery{Queue: conf.Queue.Name(), Value: value})
	if err != nil {
		_ = conf.Log.Log("LEVEL", "ERROR", "MESSAGE", err.Error())
		return
	}
	if v, ok := resp.(endpoint.Failer); ok && v.Failed() != nil {
		_ = conf.Log.Log("LEVEL", "ERROR", "MESSAGE", v.Failed().Error())
	}
}

// makeSubscribeLoop returns a function that walks the queue with a cursor and
// sends every claimed element over c, polling while the queue is empty.
func makeSubscribeLoop(q *queue.Queue, l log.Logger, c chan string, poll time.Duration) func(context.Context) {
	return func(ctx context.Context) {
		_ = l.Log("LEVEL", "INFO", "MESSAGE", fmt.Sprintf("Beginning subscription for %s", q.Name()))

		cursor := q.Cursor()
		for {
			err := cursor.Each(ctx, func(value string) error {
				select {
				case c <- value:
					return nil
				case <-ctx.Done():
					_ = l.Log("LEVEL", "ERROR", "MESSAGE", fmt.Sprintf("Dropped claimed element of queue %s on shutdown", q.Name()), "VALUE", value)
					return ctx.Err()
				}
			})
			// Check if the walk was stopped from a context cancellation or
			// deadline.
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err != nil {
				_ = l.Log("LEVEL", "ERROR", "MESSAGE", err.Error())
			}

			wait := time.NewTimer(poll)
			select {
			case <-wait.C:
			case <-ctx.Done():
				wait.Stop()
				return
			}
		}
	}
}
