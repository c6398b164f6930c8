package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kylejryan/support-case-insights/internal/collector"
	"github.com/kylejryan/support-case-insights/internal/ddb"
	"github.com/kylejryan/support-case-insights/internal/models"
	"github.com/kylejryan/support-case-insights/internal/s3io"
)

// CollectRequest selects a full collection or a single case.
type CollectRequest struct {
	LookbackDays int    `json:"lookback_days,omitempty"`
	AccountID    string `json:"account_id,omitempty"`
	CaseID       string `json:"case_id,omitempty"` // display id
}

// CollectResult summarizes a collection run.
type CollectResult struct {
	RunID    string `json:"run_id"`
	Accounts int    `json:"accounts"`
	Cases    int    `json:"cases"`
	Uploaded int    `json:"uploaded"`
}

// RunRecorder persists run records.
type RunRecorder interface {
	PutRun(ctx context.Context, run models.Run) error
}

// Collection collects cases, writes them to the bucket and records the run.
type Collection struct {
	Collector *collector.Collector
	Store     s3io.Store
	Runs      RunRecorder // optional
	HomeID    string
	Days      int
}

// Collection returns the collection pipeline for d.
func (d *Deps) Collection() *Collection {
	c := &Collection{
		Collector: d.Collector(),
		Store:     d.Store(),
		HomeID:    d.Env.HomeAccountID,
		Days:      d.Env.LookbackDays,
	}
	if runs := d.Runs(); runs != nil {
		c.Runs = runs
	}
	return c
}

// Run executes req.
func (c *Collection) Run(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	log := c.Collector.Logger
	if log == nil {
		log = slog.Default()
	}
	started := time.Now()
	res := &CollectResult{RunID: ulid.Make().String()}

	cases, err := c.collect(ctx, req)
	if err == nil {
		res.Accounts, res.Cases = len(cases.Accounts), cases.Len()
		res.Uploaded, err = collector.Save(ctx, c.Store, cases, log)
	}

	if c.Runs != nil {
		run := models.Run{
			RunID:          res.RunID,
			Kind:           models.RunCollect,
			Status:         models.RunSucceeded,
			StartedAt:      started.UTC().Format(time.RFC3339),
			FinishedAt:     ddb.NowISO(),
			Accounts:       res.Accounts,
			FilesProcessed: res.Uploaded,
		}
		if err != nil {
			run.Status, run.Error = models.RunFailed, err.Error()
		} else if res.Cases == 0 {
			run.Status = models.RunNoop
		}
		if perr := c.Runs.PutRun(ctx, run); perr != nil {
			log.Warn("record run failed", "run_id", res.RunID, "error", perr)
		}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Collection) collect(ctx context.Context, req CollectRequest) (*collector.CasesByAccount, error) {
	if req.CaseID != "" {
		return c.Collector.CollectCase(ctx, c.HomeID, req.AccountID, req.CaseID)
	}
	days := req.LookbackDays
	if days <= 0 {
		days = c.Days
	}
	return c.Collector.Collect(ctx, days, c.HomeID)
}
