package endpoint

import (
	"context"

	"github.com/go-kit/kit/endpoint"

	"github.com/rwool/priority-queue/pkg/service"
)

// DeliveryResponse contains an error to indicate a failure in the business
// logic.
type DeliveryResponse struct {
	e error
}

// Failed indicates if there was a business logic failure.
func (d DeliveryResponse) Failed() error {
	return d.e
}

// MakeWorkerDeliverEndpoint creates a Go kit endpoint for delivering claimed
// elements.
func MakeWorkerDeliverEndpoint(w service.WorkerService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(service.Delivery)
		err := w.Deliver(ctx, req)
		return DeliveryResponse{e: err}, nil
	}
}
