// Package ledger folds raw support-case objects into the two CSV ledgers
// queried by Athena: a resolved-case snapshot that every flush overwrites,
// and an active-case ledger that only ever grows.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kylejryan/support-case-insights/internal/kb"
	"github.com/kylejryan/support-case-insights/internal/models"
	"github.com/kylejryan/support-case-insights/internal/s3io"
)

// DefaultBatchSize is the number of records held in memory before a flush.
const DefaultBatchSize = 10000

// ErrStoreUnreachable aborts an ingestion run: the bucket cannot be reached
// or the active ledger cannot be read back.
var ErrStoreUnreachable = errors.New("case store unreachable")

// Reindexer starts a refresh of the retrieval corpus.
type Reindexer interface {
	Reindex(ctx context.Context) (*kb.IngestionJob, error)
}

// RunRecorder persists a summary of each run.
type RunRecorder interface {
	PutRun(ctx context.Context, run models.Run) error
}

// Writer runs ingestion passes over the raw case prefix. Runs must not
// overlap: the active ledger is read, extended and rewritten without any
// concurrency control.
type Writer struct {
	Store       s3io.Store
	Reindexer   Reindexer   // optional
	Runs        RunRecorder // optional
	BatchSize   int
	ResolvedKey string
	ActiveKey   string
	Logger      *slog.Logger
	Now         func() time.Time
}

// ReindexStatus reports the outcome of the re-index trigger.
type ReindexStatus struct {
	Status          string `json:"status"` // success | error
	JobID           string `json:"job_id,omitempty"`
	KnowledgeBaseID string `json:"kb_id,omitempty"`
	DataSourceID    string `json:"data_source_id,omitempty"`
	Message         string `json:"message,omitempty"`
}

// Result summarizes one ingestion run.
type Result struct {
	RunID          string         `json:"run_id"`
	Message        string         `json:"message"`
	ResolvedKey    string         `json:"resolved_cases_file,omitempty"`
	ActiveKey      string         `json:"active_cases_file,omitempty"`
	FilesProcessed int            `json:"files_processed"`
	ResolvedCount  int            `json:"resolved_count"`
	ActiveCount    int            `json:"active_count"`
	Skipped        int            `json:"skipped"`
	Batches        int            `json:"batches"`
	Reindex        *ReindexStatus `json:"kb_ingestion,omitempty"`
}

// batch accumulates classified records between flushes.
type batch struct {
	resolved []models.LedgerRecord
	active   []models.LedgerRecord
}

func (b *batch) len() int { return len(b.resolved) + len(b.active) }

func (b *batch) add(env models.CaseEnvelope) {
	rec := models.NewLedgerRecord(env)
	if env.Case.Resolved() {
		b.resolved = append(b.resolved, rec)
	} else {
		b.active = append(b.active, rec)
	}
}

// Ingest scans every raw case object, classifies it as resolved or active
// and merges it into the ledgers in batches. Unreadable or malformed
// objects are logged and skipped. An empty prefix is a no-op: nothing is
// written and no re-index is started.
func (w *Writer) Ingest(ctx context.Context) (*Result, error) {
	log := w.logger()
	started := w.now()
	res := &Result{RunID: ulid.Make().String()}
	log = log.With("run_id", res.RunID)

	if err := w.Store.Ping(ctx); err != nil {
		w.record(ctx, res, started, err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnreachable, err)
	}

	var b batch
	err := w.Store.List(ctx, s3io.CasePrefix, func(keys []string) error {
		for _, key := range keys {
			if !s3io.IsCaseObject(key) {
				continue
			}
			body, err := w.Store.Get(ctx, key)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				skip(log, key, "error reading case object", err)
				res.Skipped++
				continue
			}
			env, err := parseEnvelope(key, body)
			if err != nil {
				skip(log, key, "error processing case object", err)
				res.Skipped++
				continue
			}
			b.add(env)
			res.FilesProcessed++

			if b.len() >= w.batchSize() {
				if err := w.flush(ctx, &b, res); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil && b.len() > 0 {
		err = w.flush(ctx, &b, res)
	}
	if err != nil {
		w.record(ctx, res, started, err)
		return nil, err
	}

	if res.FilesProcessed == 0 {
		res.Message = "No files found to process in prefix " + s3io.CasePrefix
		log.Info(res.Message, "skipped", res.Skipped)
		w.record(ctx, res, started, nil)
		return res, nil
	}

	res.Message = "CSV files created successfully"
	res.Reindex = w.reindex(ctx, log)
	log.Info("ingestion run complete",
		"files_processed", res.FilesProcessed,
		"resolved", res.ResolvedCount,
		"active", res.ActiveCount,
		"skipped", res.Skipped,
		"batches", res.Batches)
	w.record(ctx, res, started, nil)
	return res, nil
}

// skip logs an object left out of the ledgers, with the case it belongs to
// when the key follows the raw case layout.
func skip(log *slog.Logger, key, msg string, err error) {
	attrs := []any{"key", key, "error", err}
	if acct, id, ok := s3io.ParseCaseKey(key); ok {
		attrs = append(attrs, "account_id", acct, "display_id", id)
	}
	log.Warn(msg, attrs...)
}

// flush writes the current batch and resets it. The resolved snapshot is
// replaced wholesale, so with more than one flush per run only the last
// batch's resolved rows survive. Active rows are appended.
func (w *Writer) flush(ctx context.Context, b *batch, res *Result) error {
	log := w.logger()
	if len(b.resolved) > 0 {
		body, err := encodeRows(b.resolved, true)
		if err != nil {
			return err
		}
		key := w.resolvedKey()
		if err := w.Store.Put(ctx, key, body, s3io.ContentTypeCSV); err != nil {
			return fmt.Errorf("write resolved ledger: %w", err)
		}
		res.ResolvedKey = key
		res.ResolvedCount += len(b.resolved)
		log.Info("exported resolved cases", "count", len(b.resolved), "key", key)
	}

	if len(b.active) > 0 {
		key := w.activeKey()
		existing, err := w.Store.Get(ctx, key)
		if err != nil && !errors.Is(err, s3io.ErrNotFound) {
			return fmt.Errorf("%w: read active ledger: %w", ErrStoreUnreachable, err)
		}
		if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
			existing = append(existing, '\n')
		}
		rows, err := encodeRows(b.active, len(existing) == 0)
		if err != nil {
			return err
		}
		if err := w.Store.Put(ctx, key, append(existing, rows...), s3io.ContentTypeCSV); err != nil {
			return fmt.Errorf("write active ledger: %w", err)
		}
		res.ActiveKey = key
		res.ActiveCount += len(b.active)
		log.Info("appended active cases", "count", len(b.active), "key", key)
	}

	res.Batches++
	b.resolved, b.active = nil, nil
	return nil
}

func (w *Writer) reindex(ctx context.Context, log *slog.Logger) *ReindexStatus {
	if w.Reindexer == nil {
		return nil
	}
	job, err := w.Reindexer.Reindex(ctx)
	if err != nil {
		log.Warn("knowledge base ingestion trigger failed", "error", err)
		return &ReindexStatus{Status: "error", Message: err.Error()}
	}
	log.Info("started knowledge base ingestion job", "job_id", job.JobID)
	return &ReindexStatus{
		Status:          "success",
		JobID:           job.JobID,
		KnowledgeBaseID: job.KnowledgeBaseID,
		DataSourceID:    job.DataSourceID,
	}
}

func (w *Writer) record(ctx context.Context, res *Result, started time.Time, runErr error) {
	if w.Runs == nil {
		return
	}
	run := models.Run{
		RunID:          res.RunID,
		Kind:           models.RunIngest,
		Status:         models.RunSucceeded,
		StartedAt:      started.UTC().Format(time.RFC3339),
		FinishedAt:     w.now().UTC().Format(time.RFC3339),
		FilesProcessed: res.FilesProcessed,
		ResolvedCount:  res.ResolvedCount,
		ActiveCount:    res.ActiveCount,
		ResolvedKey:    res.ResolvedKey,
		ActiveKey:      res.ActiveKey,
	}
	switch {
	case runErr != nil:
		run.Status = models.RunFailed
		run.Error = runErr.Error()
	case res.FilesProcessed == 0:
		run.Status = models.RunNoop
	}
	if res.Reindex != nil {
		run.IngestionJobID = res.Reindex.JobID
	}
	if err := w.Runs.PutRun(ctx, run); err != nil {
		w.logger().Warn("record run failed", "run_id", res.RunID, "error", err)
	}
}

func (w *Writer) batchSize() int {
	if w.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return w.BatchSize
}

func (w *Writer) resolvedKey() string {
	if w.ResolvedKey == "" {
		return s3io.ResolvedLedgerKey
	}
	return w.ResolvedKey
}

func (w *Writer) activeKey() string {
	if w.ActiveKey == "" {
		return s3io.ActiveLedgerKey
	}
	return w.ActiveKey
}

func (w *Writer) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

func (w *Writer) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}
