// Package app wires configuration and AWS clients into the pipeline
// components. Lambda entrypoints and the operator CLI build everything
// through it.
package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsathena "github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/support"
	"golang.org/x/time/rate"

	"github.com/kylejryan/support-case-insights/internal/athena"
	"github.com/kylejryan/support-case-insights/internal/awsutil"
	"github.com/kylejryan/support-case-insights/internal/collector"
	"github.com/kylejryan/support-case-insights/internal/config"
	"github.com/kylejryan/support-case-insights/internal/ddb"
	"github.com/kylejryan/support-case-insights/internal/dispatch"
	"github.com/kylejryan/support-case-insights/internal/insight"
	"github.com/kylejryan/support-case-insights/internal/kb"
	"github.com/kylejryan/support-case-insights/internal/ledger"
	"github.com/kylejryan/support-case-insights/internal/llm"
	"github.com/kylejryan/support-case-insights/internal/s3io"
	"github.com/kylejryan/support-case-insights/internal/translate"
)

// Deps is the loaded configuration plus a base AWS config.
type Deps struct {
	Env      config.Env
	AWS      aws.Config
	Endpoint string
	Logger   *slog.Logger
}

// Load reads AWS configuration for env.
func Load(ctx context.Context, env config.Env, log *slog.Logger) (*Deps, error) {
	cfg, endpoint, err := awsutil.Load(ctx, env.Region)
	if err != nil {
		return nil, err
	}
	return &Deps{Env: env, AWS: cfg, Endpoint: endpoint, Logger: log}, nil
}

// NewLogger returns a JSON logger (Lambda) or a text logger (CLI) at the
// configured level.
func NewLogger(env config.Env, w io.Writer, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: env.SlogLevel()}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ---- Storage ----

// S3 returns an S3 client; path-style addressing is used against a custom
// endpoint.
func (d *Deps) S3() *s3.Client {
	return s3.NewFromConfig(d.AWS, func(o *s3.Options) {
		if d.Endpoint != "" {
			o.UsePathStyle = true // localstack/dev friendliness
		}
	})
}

// Store returns the case bucket.
func (d *Deps) Store() *s3io.S3Store {
	return &s3io.S3Store{Client: d.S3(), Bucket: d.Env.Bucket, KMS: true}
}

// Runs returns the run history repository, or nil when RUNS_TABLE is unset.
func (d *Deps) Runs() *ddb.Repo {
	if d.Env.RunsTable == "" {
		return nil
	}
	return &ddb.Repo{DB: dynamodb.NewFromConfig(d.AWS), Table: d.Env.RunsTable}
}

// ---- Collection and ingestion ----

// Collector returns a collector over the organization of the caller.
func (d *Deps) Collector() *collector.Collector {
	return &collector.Collector{
		Base:    d.AWS,
		Orgs:    organizations.NewFromConfig(d.AWS),
		STS:     sts.NewFromConfig(d.AWS),
		Support: support.NewFromConfig(d.AWS),
		NewSupport: func(cfg aws.Config) support.DescribeCasesAPIClient {
			return support.NewFromConfig(cfg)
		},
		RoleName: d.Env.CrossAccountRole,
		Limiter:  rate.NewLimiter(rate.Limit(d.Env.SupportAPIRPS), 1),
		Logger:   d.Logger,
	}
}

// KnowledgeBaseID resolves the configured id, falling back to the secret.
func (d *Deps) KnowledgeBaseID() func(context.Context) (string, error) {
	if d.Env.KnowledgeBaseID != "" {
		return kb.StaticID(d.Env.KnowledgeBaseID)
	}
	return kb.SecretID(secretsmanager.NewFromConfig(d.AWS), d.Env.KnowledgeBaseSecretID)
}

// LedgerWriter returns a writer that re-indexes the knowledge base after
// each run and records runs when a table is configured.
func (d *Deps) LedgerWriter() *ledger.Writer {
	w := &ledger.Writer{
		Store: d.Store(),
		Reindexer: &kb.Reindexer{
			Client:          bedrockagent.NewFromConfig(d.AWS),
			KnowledgeBaseID: d.KnowledgeBaseID(),
		},
		Logger: d.Logger,
	}
	if runs := d.Runs(); runs != nil {
		w.Runs = runs
	}
	return w
}

// ---- Query path ----

// Executor returns the Athena executor.
func (d *Deps) Executor() *athena.Executor {
	return &athena.Executor{
		Client:         awsathena.NewFromConfig(d.AWS),
		Database:       d.Env.AthenaDatabase,
		OutputLocation: d.Env.AthenaOutputS3,
		WorkGroup:      d.Env.AthenaWorkGroup,
		Logger:         d.Logger,
	}
}

// Translator returns the SQL translator.
func (d *Deps) Translator(rt *bedrockruntime.Client) *translate.Translator {
	return &translate.Translator{
		Generator: &llm.Bedrock{
			Client:      rt,
			ModelID:     d.Env.ModelID,
			MaxTokens:   1000,
			Temperature: 0.3,
			Preamble:    translate.Preamble,
		},
		Database: d.Env.AthenaDatabase,
		Logger:   d.Logger,
	}
}

// Synthesizer returns the insight synthesizer. An unresolvable knowledge
// base id is logged; every answer then falls back to the no-context reply.
func (d *Deps) Synthesizer(ctx context.Context, rt *bedrockruntime.Client) *insight.Synthesizer {
	kbID, err := d.KnowledgeBaseID()(ctx)
	if err != nil {
		d.logger().Warn("knowledge base id unavailable", "error", err)
	}
	return &insight.Synthesizer{
		Retriever: &kb.Retriever{
			Client:          bedrockagentruntime.NewFromConfig(d.AWS),
			KnowledgeBaseID: kbID,
		},
		Generator: &llm.Bedrock{
			Client:      rt,
			ModelID:     d.Env.ModelID,
			MaxTokens:   insight.MaxTokens,
			Temperature: insight.Temperature,
		},
		Logger: d.Logger,
	}
}

// Dispatcher returns the query dispatcher with both capabilities.
func (d *Deps) Dispatcher(ctx context.Context) *dispatch.Dispatcher {
	rt := bedrockruntime.NewFromConfig(d.AWS)
	return &dispatch.Dispatcher{
		Router: &dispatch.BedrockRouter{
			Client:       rt,
			ModelID:      d.Env.ModelID,
			SystemPrompt: d.Env.SystemPrompt,
			Logger:       d.Logger,
		},
		Capabilities: []dispatch.Capability{
			&dispatch.CaseAggregation{Translator: d.Translator(rt), Executor: d.Executor(), Logger: d.Logger},
			&dispatch.KnowledgeInsight{Answerer: d.Synthesizer(ctx, rt)},
		},
		Logger: d.Logger,
	}
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
