package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
)

// Middleware decorates an APIService.
type Middleware func(APIService) APIService

// LoggingMiddleware logs every call with its duration and error.
func LoggingMiddleware(l log.Logger) Middleware {
	return func(next APIService) APIService {
		return &loggingMiddleware{next: next, l: l}
	}
}

type loggingMiddleware struct {
	next APIService
	l    log.Logger
}

func (m *loggingMiddleware) log(method, queue string, begin time.Time, err error) {
	level := "DEBUG"
	if err != nil {
		level = "ERROR"
	}
	_ = m.l.Log(
		"LEVEL", level,
		"MESSAGE", fmt.Sprintf("%s on queue %s", method, queue),
		"TOOK", time.Since(begin),
		"ERR", err,
	)
}

func (m *loggingMiddleware) Insert(ctx context.Context, request InsertRequest) (response InsertResponse, err error) {
	defer func(begin time.Time) { m.log("Insert", request.Queue, begin, err) }(time.Now())
	return m.next.Insert(ctx, request)
}

func (m *loggingMiddleware) Extract(ctx context.Context, request ExtractRequest) (response ExtractResponse, err error) {
	defer func(begin time.Time) { m.log("Extract", request.Queue, begin, err) }(time.Now())
	return m.next.Extract(ctx, request)
}

func (m *loggingMiddleware) Count(ctx context.Context, request CountRequest) (response CountResponse, err error) {
	defer func(begin time.Time) { m.log("Count", request.Queue, begin, err) }(time.Now())
	return m.next.Count(ctx, request)
}

// InstrumentingMiddleware records request counts and latencies labelled by
// method, queue and error.
func InstrumentingMiddleware(requests metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next APIService) APIService {
		return &instrumentingMiddleware{next: next, requests: requests, latency: latency}
	}
}

type instrumentingMiddleware struct {
	next     APIService
	requests metrics.Counter
	latency  metrics.Histogram
}

func (m *instrumentingMiddleware) observe(method, queue string, begin time.Time, err error) {
	lvs := []string{"method", method, "queue", queue, "error", fmt.Sprint(err != nil)}
	m.requests.With(lvs...).Add(1)
	m.latency.With(lvs...).Observe(time.Since(begin).Seconds())
}

func (m *instrumentingMiddleware) Insert(ctx context.Context, request InsertRequest) (response InsertResponse, err error) {
	defer func(begin time.Time) { m.observe("insert", request.Queue, begin, err) }(time.Now())
	return m.next.Insert(ctx, request)
}

func (m *instrumentingMiddleware) Extract(ctx context.Context, request ExtractRequest) (response ExtractResponse, err error) {
	defer func(begin time.Time) { m.observe("extract", request.Queue, begin, err) }(time.Now())
	return m.next.Extract(ctx, request)
}

func (m *instrumentingMiddleware) Count(ctx context.Context, request CountRequest) (response CountResponse, err error) {
	defer func(begin time.Time) { m.observe("count", request.Queue, begin, err) }(time.Now())
	return m.next.Count(ctx, request)
}
