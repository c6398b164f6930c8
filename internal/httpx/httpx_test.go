package httpx

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	resp, err := Error(http.StatusBadRequest, "bad")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.JSONEq(t, `{"error":"bad"}`, resp.Body)
}

func TestRequestBody(t *testing.T) {
	got, err := RequestBody(events.APIGatewayV2HTTPRequest{Body: `{"query":"x"}`})
	require.NoError(t, err)
	assert.Equal(t, `{"query":"x"}`, got)

	got, err = RequestBody(events.APIGatewayV2HTTPRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"query":"y"}`)),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"query":"y"}`, got)

	_, err = RequestBody(events.APIGatewayV2HTTPRequest{Body: "%%%", IsBase64Encoded: true})
	assert.Error(t, err)
}

func TestAdapt(t *testing.T) {
	var seen events.APIGatewayV2HTTPRequest
	h := Adapt(func(_ context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		seen = req
		return Raw(http.StatusOK, "text/plain; charset=utf-8", "result: ok"), nil
	})

	r := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"x"}`))
	r.Header.Set("X-User-Sub", "dev")
	w := httptest.NewRecorder()
	h(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "result: ok", w.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"query":"x"}`, seen.Body)
	assert.Equal(t, "dev", seen.Headers["x-user-sub"])
	assert.Equal(t, http.MethodPost, seen.RequestContext.HTTP.Method)
}

func TestAdapt_HandlerError(t *testing.T) {
	h := Adapt(func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return events.APIGatewayV2HTTPResponse{}, errors.New("boom")
	})
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/query", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
