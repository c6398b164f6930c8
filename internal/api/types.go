// Package api contains types for the API requests and responses.
package api

// QueryRequest is the inbound body of POST /query.
type QueryRequest struct {
	Query string `json:"query" validate:"required,max=2000"`
}

// ErrorResponse is the JSON error body used by every failing response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AggregationResult is the output of the case aggregation capability.
// AthenaResults holds either the result set or an ErrorResponse.
type AggregationResult struct {
	GeneratedQuery string `json:"generated_query"`
	AthenaResults  any    `json:"athena_results"`
}
