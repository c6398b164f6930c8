// Package main rebuilds the case ledgers from the raw case objects and
// starts a knowledge base ingestion job.
package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"

	"github.com/kylejryan/support-case-insights/internal/app"
	"github.com/kylejryan/support-case-insights/internal/config"
	"github.com/kylejryan/support-case-insights/internal/ledger"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

// App holds the application state.
type App struct {
	writer *ledger.Writer
	log    *slog.Logger
}

// main initializes the app and starts the Lambda handler.
func main() {
	env := config.MustLoad()
	if err := env.RequireBucket(); err != nil {
		log.Fatal(err)
	}
	logger := app.NewLogger(env, os.Stdout, true)
	deps, err := app.Load(context.Background(), env, logger)
	if err != nil {
		log.Fatal(err)
	}
	a := &App{writer: deps.LedgerWriter(), log: logger}
	lambda.Start(a.handler)
}

// ---- Handler ----

// handler runs one full ingestion pass whatever triggered it. S3 event
// records are only logged; the pass always rescans the whole prefix.
func (a *App) handler(ctx context.Context, raw json.RawMessage) (*ledger.Result, error) {
	var ev events.S3Event
	if json.Unmarshal(raw, &ev) == nil {
		for _, rec := range ev.Records {
			a.log.Info("triggered by object", "bucket", rec.S3.Bucket.Name, "key", rec.S3.Object.Key)
		}
	}
	return a.writer.Ingest(ctx)
}
