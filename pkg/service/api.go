package service

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// APIService is the user accessible service.
type APIService interface {
	Insert(ctx context.Context, request InsertRequest) (InsertResponse, error)
	Extract(ctx context.Context, request ExtractRequest) (ExtractResponse, error)
	Count(ctx context.Context, request CountRequest) (CountResponse, error)
}

// InsertRequest is a request to add an element to a queue.
//
// Value, Priority and Description are validated by the queue, so they may
// hold whatever a transport decoded.
type InsertRequest struct {
	Queue       string      `json:"-"`
	Value       interface{} `json:"value"`
	Priority    interface{} `json:"priority,omitempty"`
	Description interface{} `json:"description,omitempty"`
}

// InsertResponse is the response for inserting an element.
type InsertResponse struct {
	Inserted bool `json:"inserted"`
}

// ExtractRequest is a request to claim the next element of a queue.
type ExtractRequest struct {
	Queue string `json:"-"`
}

// ExtractResponse is the response for extracting an element. Found is false
// when the queue was empty.
type ExtractResponse struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// CountRequest is a request for the number of unclaimed elements of a queue.
type CountRequest struct {
	Queue string `json:"-"`
}

// CountResponse is the response for counting a queue.
type CountResponse struct {
	Count int64 `json:"count"`
	Empty bool  `json:"empty"`
}

type apiService struct {
	queues *Registry
	l      log.Logger
}

// Insert inserts an element into the requested queue.
//
// A storage failure is reported through the queue's reporter and results in
// Inserted being false rather than an error.
func (a *apiService) Insert(ctx context.Context, request InsertRequest) (InsertResponse, error) {
	q, err := a.queues.Lookup(request.Queue)
	if err != nil {
		return InsertResponse{}, err
	}
	ok, err := q.InsertAny(ctx, request.Value, request.Priority, request.Description)
	if err != nil {
		return InsertResponse{}, errors.WithStack(err)
	}
	if !ok {
		_ = a.l.Log("LEVEL", "WARN", "MESSAGE", fmt.Sprintf("Insert into queue %s was not stored", request.Queue))
	}
	return InsertResponse{Inserted: ok}, nil
}

// Extract claims the next element of the requested queue.
func (a *apiService) Extract(ctx context.Context, request ExtractRequest) (ExtractResponse, error) {
	q, err := a.queues.Lookup(request.Queue)
	if err != nil {
		return ExtractResponse{}, err
	}
	v, ok, err := q.Extract(ctx)
	if err != nil {
		return ExtractResponse{}, errors.WithStack(err)
	}
	return ExtractResponse{Value: v, Found: ok}, nil
}

// Count counts the unclaimed elements of the requested queue.
func (a *apiService) Count(ctx context.Context, request CountRequest) (CountResponse, error) {
	q, err := a.queues.Lookup(request.Queue)
	if err != nil {
		return CountResponse{}, err
	}
	n, err := q.Count(ctx)
	if err != nil {
		return CountResponse{}, errors.WithStack(err)
	}
	return CountResponse{Count: n, Empty: n == 0}, nil
}

func newAPIService(queues *Registry, l log.Logger) *apiService {
	if l == nil {
		l = log.NewNopLogger()
	}
	return &apiService{
		queues: queues,
		l:      l,
	}
}

// NewAPIService returns an APIService.
func NewAPIService(queues *Registry, l log.Logger) APIService {
	return newAPIService(queues, l)
}
