package endpoint

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"

	"github.com/rwool/priority-queue/pkg/service"
)

// InsertResponse contains the response for a call to the Insert endpoint.
type InsertResponse struct {
	service.InsertResponse
	e error
}

// Failed indicates if there was a business logic failure.
func (r InsertResponse) Failed() error {
	return r.e
}

// ExtractResponse contains the response for a call to the Extract endpoint.
type ExtractResponse struct {
	service.ExtractResponse
	e error
}

// Failed indicates if there was a business logic failure.
func (r ExtractResponse) Failed() error {
	return r.e
}

// CountResponse contains the response for a call to the Count endpoint.
type CountResponse struct {
	service.CountResponse
	e error
}

// Failed indicates if there was a business logic failure.
func (r CountResponse) Failed() error {
	return r.e
}

// Endpoints collects the endpoints of the API service.
type Endpoints struct {
	Insert  endpoint.Endpoint
	Extract endpoint.Endpoint
	Count   endpoint.Endpoint
}

// MakeAPIEndpoints creates all API endpoints for a.
func MakeAPIEndpoints(a service.APIService) Endpoints {
	return Endpoints{
		Insert:  MakeInsertEndpoint(a),
		Extract: MakeExtractEndpoint(a),
		Count:   MakeCountEndpoint(a),
	}
}

// requestTimeout bounds a single storage round trip made for an API call.
const requestTimeout = 10 * time.Second

// MakeInsertEndpoint creates an endpoint for inserting elements.
func MakeInsertEndpoint(a service.APIService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		req := request.(service.InsertRequest)
		resp, err := a.Insert(ctx, req)
		return InsertResponse{InsertResponse: resp, e: err}, nil
	}
}

// MakeExtractEndpoint creates an endpoint for extracting elements.
func MakeExtractEndpoint(a service.APIService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		req := request.(service.ExtractRequest)
		resp, err := a.Extract(ctx, req)
		return ExtractResponse{ExtractResponse: resp, e: err}, nil
	}
}

// MakeCountEndpoint creates an endpoint for counting elements.
func MakeCountEndpoint(a service.APIService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		req := request.(service.CountRequest)
		resp, err := a.Count(ctx, req)
		return CountResponse{CountResponse: resp, e: err}, nil
	}
}
