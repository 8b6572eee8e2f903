package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwool/priority-queue/pkg/service"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}

func TestWorker(t *testing.T) {
	var out bytes.Buffer
	worker := service.NewWorkerService(service.WorkerServiceConfig{
		Out: &out,
		Log: log.NewNopLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := worker.Deliver(ctx, service.Delivery{Queue: "emails", Value: "line one\nline two"})
	require.NoError(t, err, "Delivery should succeed.")
	err = worker.Deliver(ctx, service.Delivery{Queue: "emails", Value: "禅"})
	require.NoError(t, err)

	assert.Equal(t,
		"{\"queue\":\"emails\",\"value\":\"line one\\nline two\"}\n{\"queue\":\"emails\",\"value\":\"禅\"}\n",
		out.String(), "Each delivery should be one JSON line.")
}

func TestWorkerErrors(t *testing.T) {
	t.Parallel()
	worker := service.NewWorkerService(service.WorkerServiceConfig{Out: failingWriter{}})

	err := worker.Deliver(context.Background(), service.Delivery{Queue: "q", Value: "v"})
	assert.Error(t, err, "Write failures should be returned.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	worker = service.NewWorkerService(service.WorkerServiceConfig{Out: &out})
	err = worker.Deliver(ctx, service.Delivery{Queue: "q", Value: "v"})
	assert.Error(t, err, "Cancelled deliveries should fail.")
	assert.Empty(t, out.String())
}
