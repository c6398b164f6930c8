// Package authz identifies the caller of an HTTP API request. The query API
// uses it for audit logging only; access control sits in API Gateway.
package authz

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// ErrUnidentified is returned when no caller identity is present.
var ErrUnidentified = errors.New("caller not identified")

const devBypassHeader = "x-user-sub"

// header returns the value of key, matched case-insensitively.
func header(h map[string]string, key string) string {
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// claimSub reads "sub" from authorizer claims, which arrive as a map or,
// from Lambda authorizers, as a JSON string.
func claimSub(raw any) string {
	switch c := raw.(type) {
	case map[string]string:
		return c["sub"]
	case map[string]any:
		return asString(c["sub"])
	case string:
		var m map[string]any
		if json.Unmarshal([]byte(c), &m) == nil {
			return asString(m["sub"])
		}
	}
	return ""
}

// FromAPIGWv2 returns the caller of an HTTP API (v2) request as resolved by
// API Gateway: a JWT or Lambda authorizer subject, then an IAM principal ARN.
// Request headers are never trusted outside dev bypass.
func FromAPIGWv2(req events.APIGatewayV2HTTPRequest, devBypass bool) (string, error) {
	if devBypass {
		if sub := strings.TrimSpace(header(req.Headers, devBypassHeader)); sub != "" {
			return sub, nil
		}
	}

	a := req.RequestContext.Authorizer
	if a == nil {
		return "", ErrUnidentified
	}
	var candidates []string
	if a.JWT != nil {
		candidates = append(candidates, claimSub(a.JWT.Claims))
	}
	if a.Lambda != nil {
		candidates = append(candidates, claimSub(a.Lambda["claims"]), asString(a.Lambda["sub"]))
	}
	if a.IAM != nil {
		candidates = append(candidates, a.IAM.UserARN)
	}
	for _, sub := range candidates {
		if sub != "" {
			return sub, nil
		}
	}

	return "", ErrUnidentified
}
