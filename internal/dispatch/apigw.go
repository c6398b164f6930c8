package dispatch

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/kylejryan/support-case-insights/internal/authz"
	"github.com/kylejryan/support-case-insights/internal/httpx"
)

// HTTPHandler adapts the dispatcher to API Gateway HTTP API events. The
// caller identity is logged, never enforced.
func (d *Dispatcher) HTTPHandler(devBypass bool) httpx.Handler {
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		log := logger(d.Logger)
		caller, err := authz.FromAPIGWv2(req, devBypass)
		if err != nil {
			caller = "anonymous"
		}
		log.Info("query request", "caller", caller, "request_id", req.RequestContext.RequestID)

		body, err := httpx.RequestBody(req)
		if err != nil {
			return httpx.Error(http.StatusBadRequest, "Invalid JSON in request body")
		}
		resp := d.Handle(ctx, body)
		return httpx.Raw(resp.StatusCode, resp.ContentType, resp.Body), nil
	}
}
