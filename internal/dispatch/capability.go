package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kylejryan/support-case-insights/internal/api"
	"github.com/kylejryan/support-case-insights/internal/athena"
)

// Capability is one tool the router may call with a user query.
type Capability interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, query string) (string, error)
}

// Translator turns a natural-language request into SQL.
type Translator interface {
	Translate(ctx context.Context, request string) (string, bool)
}

// Executor runs SQL to completion.
type Executor interface {
	Execute(ctx context.Context, sql string) (*athena.ResultSet, error)
}

// Answerer answers a free-form question.
type Answerer interface {
	Answer(ctx context.Context, question string) string
}

// generationFailed is returned verbatim when no SQL could be produced.
const generationFailed = "Failed to generate SQL query from Bedrock"

// CaseAggregation answers counting and filtering questions over the case
// ledger by translating them to SQL and running it.
type CaseAggregation struct {
	Translator Translator
	Executor   Executor
	Logger     *slog.Logger
}

func (c *CaseAggregation) Name() string { return "case_aggregation" }

func (c *CaseAggregation) Description() string {
	return "Answers quantitative questions about support cases (counts, filters by service, severity, status, account or date) " +
		"by generating and running SQL over the case_metadata table. Input is the user's question in natural language."
}

// Invoke returns a JSON document. Execution failures are reported inside
// athena_results rather than as an error.
func (c *CaseAggregation) Invoke(ctx context.Context, query string) (string, error) {
	sql, ok := c.Translator.Translate(ctx, query)
	if !ok {
		return marshal(api.ErrorResponse{Error: generationFailed})
	}
	res := api.AggregationResult{GeneratedQuery: sql}
	rs, err := c.Executor.Execute(ctx, sql)
	if err != nil {
		logger(c.Logger).Warn("athena query failed", "error", err)
		res.AthenaResults = api.ErrorResponse{Error: err.Error()}
	} else {
		res.AthenaResults = rs
	}
	return marshal(res)
}

// KnowledgeInsight answers qualitative questions from the knowledge base.
type KnowledgeInsight struct {
	Answerer Answerer
}

func (k *KnowledgeInsight) Name() string { return "knowledge_insight" }

func (k *KnowledgeInsight) Description() string {
	return "Answers qualitative questions (recommendations, root causes, best practices, end-of-life guidance) " +
		"using documents retrieved from the support knowledge base. Input is the user's question in natural language."
}

func (k *KnowledgeInsight) Invoke(ctx context.Context, query string) (string, error) {
	return k.Answerer.Answer(ctx, query), nil
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
