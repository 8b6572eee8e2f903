// Package service implements the business logic for the priority queue
// system.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// WorkerService wraps the set of methods for a queue consumer.
type WorkerService interface {
	Deliver(ctx context.Context, d Delivery) error
}

// Delivery is an element claimed from a queue.
type Delivery struct {
	Queue string `json:"queue"`
	Value string `json:"value"`
}

// WorkerServiceConfig contains the configuration for a WorkerService.
type WorkerServiceConfig struct {
	// Out receives one JSON object per delivered element.
	Out io.Writer
	Log log.Logger
}

// NewWorkerService returns a WorkerService.
func NewWorkerService(conf WorkerServiceConfig) WorkerService {
	return newWorkerService(conf)
}

func newWorkerService(conf WorkerServiceConfig) *workerService {
	l := conf.Log
	if l == nil {
		l = log.NewNopLogger()
	}
	return &workerService{
		enc: json.NewEncoder(conf.Out),
		log: l,
	}
}

type workerService struct {
	mu  sync.Mutex
	enc *json.Encoder
	log log.Logger
}

// Deliver writes d to the configured output.
//
// The element has already been claimed, so a write failure loses it; the
// failure is logged along with the value.
func (w *workerService) Deliver(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	w.mu.Lock()
	err := w.enc.Encode(d)
	w.mu.Unlock()
	if err != nil {
		_ = w.log.Log("LEVEL", "ERROR", "MESSAGE", fmt.Sprintf("Unable to deliver element of queue %s: %s", d.Queue, err), "VALUE", d.Value)
		return errors.Wrap(err, "unable to write delivery")
	}
	_ = w.log.Log("LEVEL", "DEBUG", "MESSAGE", fmt.Sprintf("Delivered element of queue %s", d.Queue))
	return nil
}
