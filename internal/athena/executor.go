package athena

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
)

// Polling defaults.
const (
	DefaultTimeout         = 300 * time.Second
	DefaultInitialInterval = 1 * time.Second
	DefaultMaxInterval     = 5 * time.Second
)

// API is the subset of the Athena client used by Executor.
type API interface {
	StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	StopQueryExecution(ctx context.Context, in *athena.StopQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StopQueryExecutionOutput, error)
	athena.GetQueryResultsAPIClient
}

// Executor submits queries and drives jobs to a terminal state.
type Executor struct {
	Client         API
	Database       string
	OutputLocation string
	WorkGroup      string

	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration

	Now    func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// Execute submits sql and waits for it. Every failure is a *Failure.
func (e *Executor) Execute(ctx context.Context, sql string) (*ResultSet, error) {
	job, err := e.Submit(ctx, sql)
	if err != nil {
		return nil, err
	}
	return e.Wait(ctx, job)
}

// Submit starts the execution and returns a job in SUBMITTED.
func (e *Executor) Submit(ctx context.Context, sql string) (*Job, error) {
	in := &athena.StartQueryExecutionInput{
		QueryString:           aws.String(sql),
		QueryExecutionContext: &types.QueryExecutionContext{Database: aws.String(e.Database)},
		ResultConfiguration:   &types.ResultConfiguration{OutputLocation: aws.String(e.OutputLocation)},
	}
	if e.WorkGroup != "" {
		in.WorkGroup = aws.String(e.WorkGroup)
	}
	out, err := e.Client.StartQueryExecution(ctx, in)
	if err != nil {
		return nil, engineFailure("", err)
	}
	job := &Job{
		Query:        sql,
		ExecutionID:  aws.ToString(out.QueryExecutionId),
		State:        StateSubmitted,
		StartedAt:    e.now(),
		PollInterval: e.initialInterval(),
	}
	e.logger().Info("submitted athena query", "execution_id", job.ExecutionID)
	return job, nil
}

// Wait polls job until it reaches a terminal state. It can resume a job
// built from a known execution id. The budget is measured from
// job.StartedAt and checked before every poll; when it runs out, or ctx is
// cancelled, the remote execution is stopped.
func (e *Executor) Wait(ctx context.Context, job *Job) (*ResultSet, error) {
	if job.State.Terminal() {
		return nil, fmt.Errorf("%w: job %s already %s", ErrIllegalTransition, job.ExecutionID, job.State)
	}
	if job.PollInterval <= 0 {
		job.PollInterval = e.initialInterval()
	}
	deadline := job.StartedAt.Add(e.timeout())

	for {
		if !e.now().Before(deadline) {
			e.stop(ctx, job)
			_ = job.transition(StateTimedOut)
			return nil, &Failure{Kind: KindTimedOut, Message: fmt.Sprintf("%d seconds", int(e.timeout().Seconds())), ExecutionID: job.ExecutionID}
		}
		if ctx.Err() != nil {
			return nil, e.Cancel(context.WithoutCancel(ctx), job)
		}
		if job.State == StateSubmitted {
			_ = job.transition(StatePolling)
		}

		out, err := e.Client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{QueryExecutionId: aws.String(job.ExecutionID)})
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			_ = job.transition(StateFailed)
			return nil, engineFailure(job.ExecutionID, err)
		}

		var status types.QueryExecutionStatus
		if out.QueryExecution != nil && out.QueryExecution.Status != nil {
			status = *out.QueryExecution.Status
		}
		switch status.State {
		case types.QueryExecutionStateSucceeded:
			_ = job.transition(StateSucceeded)
			return e.results(ctx, job)
		case types.QueryExecutionStateFailed:
			_ = job.transition(StateFailed)
			job.Reason = aws.ToString(status.StateChangeReason)
			if job.Reason == "" {
				job.Reason = "Unknown error"
			}
			return nil, &Failure{Kind: KindFailed, Message: job.Reason, ExecutionID: job.ExecutionID}
		case types.QueryExecutionStateCancelled:
			_ = job.transition(StateCancelled)
			return nil, &Failure{Kind: KindCancelled, ExecutionID: job.ExecutionID}
		}
		_ = job.transition(StatePolling)

		d := min(job.PollInterval, e.maxInterval(), deadline.Sub(e.now()))
		if d > 0 {
			// A cancelled sleep is picked up at the top of the loop.
			_ = e.sleep(ctx, d)
		}
		job.PollInterval = min(job.PollInterval*2, e.maxInterval())
	}
}

// Cancel stops the remote execution and marks job CANCELLED.
func (e *Executor) Cancel(ctx context.Context, job *Job) error {
	if job.State.Terminal() {
		return fmt.Errorf("%w: job %s already %s", ErrIllegalTransition, job.ExecutionID, job.State)
	}
	e.stop(ctx, job)
	_ = job.transition(StateCancelled)
	return &Failure{Kind: KindCancelled, ExecutionID: job.ExecutionID}
}

func (e *Executor) stop(ctx context.Context, job *Job) {
	_, err := e.Client.StopQueryExecution(ctx, &athena.StopQueryExecutionInput{QueryExecutionId: aws.String(job.ExecutionID)})
	if err != nil {
		e.logger().Warn("stop athena query failed", "execution_id", job.ExecutionID, "error", err)
	}
}

// results reads every page of a succeeded execution. Athena repeats the
// column names as the first row of the first page; that row is dropped.
func (e *Executor) results(ctx context.Context, job *Job) (*ResultSet, error) {
	rs := &ResultSet{ExecutionID: job.ExecutionID, Rows: [][]string{}}
	p := athena.NewGetQueryResultsPaginator(e.Client, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(job.ExecutionID),
	})
	first := true
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, engineFailure(job.ExecutionID, err)
		}
		if page.ResultSet == nil {
			continue
		}
		if first && page.ResultSet.ResultSetMetadata != nil {
			for _, c := range page.ResultSet.ResultSetMetadata.ColumnInfo {
				rs.Columns = append(rs.Columns, Column{Name: aws.ToString(c.Name), Type: aws.ToString(c.Type)})
			}
		}
		for i, row := range page.ResultSet.Rows {
			vals := make([]string, len(row.Data))
			for j, d := range row.Data {
				vals[j] = aws.ToString(d.VarCharValue)
			}
			if first && i == 0 && isHeader(vals, rs.Columns) {
				continue
			}
			rs.Rows = append(rs.Rows, vals)
		}
		first = false
	}
	return rs, nil
}

func isHeader(vals []string, cols []Column) bool {
	if len(cols) == 0 || len(vals) != len(cols) {
		return false
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return slices.Equal(vals, names)
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

func (e *Executor) initialInterval() time.Duration {
	if e.InitialInterval <= 0 {
		return DefaultInitialInterval
	}
	return e.InitialInterval
}

func (e *Executor) maxInterval() time.Duration {
	if e.MaxInterval <= 0 {
		return DefaultMaxInterval
	}
	return e.MaxInterval
}

func (e *Executor) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}
