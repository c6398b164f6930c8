// Package httpx provides helpers for API Gateway HTTP responses and for
// serving Lambda handlers over net/http.
package httpx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// MaxBodyBytes caps request bodies read by Adapt.
const MaxBodyBytes = 1 << 20

// JSON creates a JSON HTTP response with the given status code and value.
func JSON(status int, v any) (events.APIGatewayV2HTTPResponse, error) {
	b, _ := json.Marshal(v)
	return Raw(status, "application/json", string(b)), nil
}

// Error creates a JSON HTTP error response with the given status code and message.
func Error(status int, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return JSON(status, map[string]string{"error": msg})
}

// Raw creates a response with a preformatted body.
func Raw(status int, contentType, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type": contentType,
		},
		Body: body,
	}
}

// RequestBody returns the decoded request body.
func RequestBody(req events.APIGatewayV2HTTPRequest) (string, error) {
	if !req.IsBase64Encoded {
		return req.Body, nil
	}
	b, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Handler is an API Gateway HTTP API Lambda handler.
type Handler func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// Adapt serves h over net/http so the Lambda contract can run locally.
func Adapt(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		headers := make(map[string]string, len(r.Header))
		for k, v := range r.Header {
			headers[strings.ToLower(k)] = strings.Join(v, ",")
		}
		req := events.APIGatewayV2HTTPRequest{
			RawPath:        r.URL.Path,
			RawQueryString: r.URL.RawQuery,
			Headers:        headers,
			Body:           string(body),
			RequestContext: events.APIGatewayV2HTTPRequestContext{
				HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
					Method:    r.Method,
					Path:      r.URL.Path,
					SourceIP:  r.RemoteAddr,
					UserAgent: r.UserAgent(),
				},
			},
		}
		resp, err := h(r.Context(), req)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, resp.Body)
	}
}
