// Package dispatch is the query entry point: it screens the request, hands
// it to a router that picks capabilities, and maps the outcome to a
// status code and body.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kylejryan/support-case-insights/internal/api"
	"github.com/kylejryan/support-case-insights/internal/validate"
)

// Content types of Response bodies.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Response is a transport-neutral reply.
type Response struct {
	StatusCode  int
	ContentType string
	Body        string
}

// Dispatcher handles one query request per call.
type Dispatcher struct {
	Router       Router
	Capabilities []Capability
	Logger       *slog.Logger
}

// Envelope wraps a cleaned query in the form the router expects.
func Envelope(query string) string { return "query:" + query + "?" }

// Handle never returns an error: every failure is a 4xx or 5xx Response.
func (d *Dispatcher) Handle(ctx context.Context, body string) (resp Response) {
	log := logger(d.Logger)
	defer func() {
		if r := recover(); r != nil {
			log.Error("query handler panicked", "panic", fmt.Sprint(r))
			resp = internalError()
		}
	}()

	if body == "" {
		return errorResponse(http.StatusBadRequest, "No body found in request")
	}
	var raw any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid JSON in request body")
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return errorResponse(http.StatusBadRequest, "Request body must be a JSON object")
	}
	rawQuery, ok := obj["query"]
	if !ok {
		rawQuery = ""
	}

	query, err := validate.Sanitize(rawQuery)
	if err != nil {
		var ve *validate.ValidationError
		if errors.As(err, &ve) {
			log.Info("rejected query", "reason", ve.Reason)
			return errorResponse(http.StatusBadRequest, "Invalid input: "+ve.Reason)
		}
		log.Error("sanitize query", "error", err)
		return internalError()
	}
	if query == "" {
		return errorResponse(http.StatusBadRequest, "No query provided in the request")
	}

	result, err := d.Router.Route(ctx, Envelope(query), d.Capabilities)
	if err != nil {
		log.Error("route query", "error", err)
		return internalError()
	}
	return Response{StatusCode: http.StatusOK, ContentType: ContentTypeText, Body: "result: " + result}
}

func errorResponse(status int, msg string) Response {
	b, _ := json.Marshal(api.ErrorResponse{Error: msg})
	return Response{StatusCode: status, ContentType: ContentTypeJSON, Body: string(b)}
}

func internalError() Response {
	return errorResponse(http.StatusInternalServerError, "Internal server error occurred")
}
