package http

import (
	"context"
	"encoding/json"
	"io"
	gohttp "net/http"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/transport/http"
	"github.com/pkg/errors"

	qendpoint "github.com/rwool/priority-queue/pkg/endpoint"
	"github.com/rwool/priority-queue/pkg/service"
	"github.com/rwool/priority-queue/pkg/service/queue"
)

// NewAPIHTTPHandler returns a handler that makes the API service endpoints
// available via HTTP.
//
// Options are keyed by endpoint name: "Insert", "Extract" and "Count".
func NewAPIHTTPHandler(endpoints qendpoint.Endpoints, options map[string][]http.ServerOption) gohttp.Handler {
	if options == nil {
		options = make(map[string][]http.ServerOption)
	}
	m := gohttp.NewServeMux()
	makeHandler(m, "POST /queues/{name}/elements", endpoints.Insert, decodeInsertRequest, options["Insert"]...)
	makeHandler(m, "POST /queues/{name}/extract", endpoints.Extract, decodeExtractRequest, options["Extract"]...)
	makeHandler(m, "GET /queues/{name}/count", endpoints.Count, decodeCountRequest, options["Count"]...)
	return m
}

type errorResponse struct {
	Error string
}

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch errors.Cause(err) {
	case errBadRequest, queue.ErrInvalidPayload, queue.ErrInvalidPriority, queue.ErrInvalidDescription:
		return gohttp.StatusBadRequest
	case service.ErrUnknownQueue:
		return gohttp.StatusNotFound
	default:
		return gohttp.StatusInternalServerError
	}
}

func encodeError(_ context.Context, err error, w gohttp.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func encodeResponse(ctx context.Context, w gohttp.ResponseWriter, r interface{}) error {
	if v, ok := r.(endpoint.Failer); ok && v.Failed() != nil {
		encodeError(ctx, v.Failed(), w)
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	// The store did not take the element; the client may retry.
	if v, ok := r.(qendpoint.InsertResponse); ok && !v.Inserted {
		w.WriteHeader(gohttp.StatusServiceUnavailable)
	}
	err := json.NewEncoder(w).Encode(r)
	return errors.WithStack(err)
}

func decodeInsertRequest(_ context.Context, req *gohttp.Request) (i interface{}, e error) {
	decoder := json.NewDecoder(req.Body)
	decoder.DisallowUnknownFields()
	// Keep numbers exact so non-integer priorities can be rejected.
	decoder.UseNumber()
	defer func() {
		err := req.Body.Close()
		if e != nil && err != nil {
			e = errors.Wrapf(e, "multiple errors: %s", err)
			return
		}
		if err != nil {
			e = err
		}
	}()

	var ir service.InsertRequest
	if err := decoder.Decode(&ir); err != nil {
		if err == io.EOF {
			return nil, errors.Wrap(errBadRequest, "empty body")
		}
		return nil, errors.Wrap(errBadRequest, err.Error())
	}
	ir.Queue = req.PathValue("name")
	return ir, nil
}

func decodeExtractRequest(_ context.Context, req *gohttp.Request) (interface{}, error) {
	return service.ExtractRequest{Queue: req.PathValue("name")}, nil
}

func decodeCountRequest(_ context.Context, req *gohttp.Request) (interface{}, error) {
	return service.CountRequest{Queue: req.PathValue("name")}, nil
}

func makeHandler(m *gohttp.ServeMux, pattern string, e endpoint.Endpoint, dec http.DecodeRequestFunc, options ...http.ServerOption) {
	options = append([]http.ServerOption{http.ServerErrorEncoder(encodeError)}, options...)
	handler := http.NewServer(e, dec, encodeResponse, options...)
	m.Handle(pattern, handler)
}
