// Package athena runs generated SQL against Athena as an explicit state
// machine: a job is submitted, polled with capped exponential backoff under
// a wall-clock budget, and ends in exactly one terminal state.
package athena

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aws/smithy-go"
)

// State is the lifecycle state of a Job.
type State string

// Job states. SUCCEEDED, FAILED, CANCELLED and TIMED_OUT are terminal.
const (
	StateSubmitted State = "SUBMITTED"
	StatePolling   State = "POLLING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
	StateTimedOut  State = "TIMED_OUT"
)

// transitions lists the legal next states of every non-terminal state.
var transitions = map[State][]State{
	StateSubmitted: {StatePolling, StateFailed, StateCancelled, StateTimedOut},
	StatePolling:   {StatePolling, StateSucceeded, StateFailed, StateCancelled, StateTimedOut},
}

// Terminal reports whether s is final.
func (s State) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// Job is one submitted query execution. It is owned by a single caller.
type Job struct {
	Query        string
	ExecutionID  string
	State        State
	StartedAt    time.Time
	PollInterval time.Duration
	// Reason is the engine's explanation for a FAILED state.
	Reason string
}

// ErrIllegalTransition is returned when a job is moved out of a terminal
// state or along an edge not in the transition table.
var ErrIllegalTransition = errors.New("illegal job state transition")

func (j *Job) transition(to State) error {
	if !slices.Contains(transitions[j.State], to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.State, to)
	}
	j.State = to
	return nil
}

// Kind classifies a Failure.
type Kind string

// Failure kinds.
const (
	KindEngineError Kind = "engine_error"
	KindFailed      Kind = "failed"
	KindCancelled   Kind = "cancelled"
	KindTimedOut    Kind = "timed_out"
)

// Failure is the single error shape returned by the executor, whether the
// engine reported a terminal state or a call to it failed.
type Failure struct {
	Kind        Kind
	Code        string // remote error code, engine errors only
	Message     string
	ExecutionID string
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindFailed:
		return "Query failed: " + f.Message
	case KindCancelled:
		return "Query was cancelled"
	case KindTimedOut:
		return "Query execution timed out after " + f.Message
	default:
		if f.Code != "" {
			return fmt.Sprintf("Athena error: %s - %s", f.Code, f.Message)
		}
		return f.Message
	}
}

// engineFailure normalizes a transport or service error.
func engineFailure(executionID string, err error) *Failure {
	f := &Failure{Kind: KindEngineError, Message: err.Error(), ExecutionID: executionID}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		f.Code = ae.ErrorCode()
		f.Message = ae.ErrorMessage()
	}
	return f
}

// Column describes one result column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ResultSet is the full result of a succeeded query.
type ResultSet struct {
	ExecutionID string     `json:"execution_id"`
	Columns     []Column   `json:"columns"`
	Rows        [][]string `json:"rows"`
}
