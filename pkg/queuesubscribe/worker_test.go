package queuesubscribe_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/rwool/priority-queue/pkg/internal/queuemock"
	"github.com/rwool/priority-queue/pkg/queuesubscribe"
	"github.com/rwool/priority-queue/pkg/service"
	"github.com/rwool/priority-queue/pkg/service/queue"
)

func TestMakeWorkerHandler(t *testing.T) {
	t.Parallel()

	var (
		count = 6
		store = queuemock.New()
		l     = log.NewNopLogger()

		// Use a weighted semaphore in place of a sync.WaitGroup to not have the
		// test block forever in the event of an error.
		sema = semaphore.NewWeighted(int64(count))

		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	)
	defer cancel()

	q, err := queue.New(queue.Definition{Collection: t.Name(), DefaultPriority: 1}, store)
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		received = make(map[string]int)
	)
	f := func(_ context.Context, request interface{}) (response interface{}, err error) {
		defer sema.Release(1)
		d := request.(service.Delivery)
		mu.Lock()
		received[d.Value]++
		mu.Unlock()
		return nil, nil
	}

	config := queuesubscribe.Config{
		Endpoint:     f,
		Queue:        q,
		Log:          l,
		PollInterval: 10 * time.Millisecond,
		Concurrency:  2,
	}
	handler := queuesubscribe.MakeWorkerHandler(config)
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler(ctx)
	}()

	require.NoError(t, sema.Acquire(ctx, int64(count)), "Semaphore acquisition should happen.")

	// Half the elements exist before the subscription polls, half after.
	for i := 0; i < count; i++ {
		ok, err := q.Insert(ctx, strconv.Itoa(i))
		require.NoError(t, err)
		require.True(t, ok)
		if i == count/2 {
			time.Sleep(30 * time.Millisecond)
		}
	}

	require.NoError(t, sema.Acquire(ctx, int64(count)), "Every element should be delivered.")
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, count)
	for v, n := range received {
		assert.Equal(t, 1, n, "Element %s should be delivered once.", v)
	}
	empty, err := q.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestMakeWorkerHandlerSurvivesReadErrors(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	store := queuemock.New()
	q, err := queue.New(queue.Definition{Collection: t.Name()}, store)
	require.NoError(t, err)
	ok, err := q.Insert(ctx, "after outage")
	require.NoError(t, err)
	require.True(t, ok)
	store.FailReads(assert.AnError)

	delivered := make(chan string, 1)
	handler := queuesubscribe.MakeWorkerHandler(queuesubscribe.Config{
		Endpoint: func(_ context.Context, request interface{}) (interface{}, error) {
			delivered <- request.(service.Delivery).Value
			return nil, nil
		},
		Queue:        q,
		PollInterval: 5 * time.Millisecond,
	})
	go handler(ctx)

	time.Sleep(20 * time.Millisecond)
	store.FailReads(nil)

	select {
	case v := <-delivered:
		assert.Equal(t, "after outage", v)
	case <-ctx.Done():
		t.Fatal("Element should be delivered once reads recover.")
	}
}
