package http_test

import (
	"context"
	"encoding/json"
	"errors"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qendpoint "github.com/rwool/priority-queue/pkg/endpoint"
	"github.com/rwool/priority-queue/pkg/http"
	"github.com/rwool/priority-queue/pkg/internal/queuemock"
	"github.com/rwool/priority-queue/pkg/service"
	"github.com/rwool/priority-queue/pkg/service/queue"
)

func newHandler(t *testing.T, store *queuemock.QueueMock) gohttp.Handler {
	t.Helper()
	q, err := queue.New(queue.Definition{Collection: "emails", DefaultPriority: 7}, store)
	require.NoError(t, err)
	reg, err := service.NewRegistry(q)
	require.NoError(t, err)
	return http.NewAPIHTTPHandler(qendpoint.MakeAPIEndpoints(service.NewAPIService(reg, nil)), nil)
}

func do(h gohttp.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "http://something.com"+target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTP(t *testing.T) {
	t.Parallel()
	h := newHandler(t, queuemock.New())

	rec := do(h, "POST", "/queues/emails/elements", `{"value": "low", "priority": 1}`)
	assert.Equal(t, 200, rec.Code, "Should have 200 status code.")
	assert.JSONEq(t, `{"inserted": true}`, rec.Body.String())

	rec = do(h, "POST", "/queues/emails/elements", `{"value": "high", "priority": 9, "description": {"to": "a@b.c"}}`)
	assert.Equal(t, 200, rec.Code)

	rec = do(h, "GET", "/queues/emails/count", "")
	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"count": 2, "empty": false}`, rec.Body.String())

	for _, want := range []string{"high", "low"} {
		rec = do(h, "POST", "/queues/emails/extract", "")
		require.Equal(t, 200, rec.Code)
		var resp service.ExtractResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, service.ExtractResponse{Value: want, Found: true}, resp)
	}

	rec = do(h, "POST", "/queues/emails/extract", "")
	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"value": "", "found": false}`, rec.Body.String())
}

func TestHTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		code   int
	}{
		{"Unknown Queue", "GET", "/queues/missing/count", "", 404},
		{"Non-String Value", "POST", "/queues/emails/elements", `{"value": 1}`, 400},
		{"Missing Value", "POST", "/queues/emails/elements", `{"priority": 1}`, 400},
		{"Float Priority", "POST", "/queues/emails/elements", `{"value": "v", "priority": 1.5}`, 400},
		{"String Priority", "POST", "/queues/emails/elements", `{"value": "v", "priority": "1"}`, 400},
		{"Scalar Description", "POST", "/queues/emails/elements", `{"value": "v", "description": "d"}`, 400},
		{"Unknown Field", "POST", "/queues/emails/elements", `{"value": "v", "extra": 1}`, 400},
		{"Invalid JSON", "POST", "/queues/emails/elements", `{`, 400},
		{"Empty Body", "POST", "/queues/emails/elements", ``, 400},
		{"Wrong Method", "GET", "/queues/emails/extract", "", 405},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHandler(t, queuemock.New())
			rec := do(h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestHTTPInsertNotStored(t *testing.T) {
	t.Parallel()
	store := queuemock.New()
	store.NackInserts(true)
	h := newHandler(t, store)

	rec := do(h, "POST", "/queues/emails/elements", `{"value": "v"}`)
	assert.Equal(t, 503, rec.Code, "Unstored inserts should be retryable.")
	assert.JSONEq(t, `{"inserted": false}`, rec.Body.String())
}

func TestHTTPEndpointError(t *testing.T) {
	t.Parallel()
	f := func(_ context.Context, request interface{}) (response interface{}, err error) {
		return nil, errors.New("error")
	}
	h := http.NewAPIHTTPHandler(qendpoint.Endpoints{Insert: f, Extract: f, Count: f}, nil)

	rec := do(h, "POST", "/queues/emails/extract", "")
	assert.JSONEq(t, `{"Error": "error"}`, rec.Body.String(), "Error value should be in response.")
	assert.Equal(t, 500, rec.Code, "Should have 500 status code.")
}
