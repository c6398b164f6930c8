package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylejryan/support-case-insights/internal/athena"
)

type stubTranslator struct {
	sql string
	ok  bool
}

func (s stubTranslator) Translate(context.Context, string) (string, bool) { return s.sql, s.ok }

type stubExecutor struct {
	calls int
	rs    *athena.ResultSet
	err   error
}

func (s *stubExecutor) Execute(context.Context, string) (*athena.ResultSet, error) {
	s.calls++
	return s.rs, s.err
}

type stubAnswerer string

func (s stubAnswerer) Answer(context.Context, string) string { return string(s) }

func TestCaseAggregation_TranslationFailureSkipsExecution(t *testing.T) {
	exec := &stubExecutor{}
	c := &CaseAggregation{Translator: stubTranslator{}, Executor: exec, Logger: discard}

	out, err := c.Invoke(context.Background(), "how many cases")
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Failed to generate SQL query from Bedrock"}`, out)
	assert.Zero(t, exec.calls)
}

func TestCaseAggregation_Results(t *testing.T) {
	exec := &stubExecutor{rs: &athena.ResultSet{
		ExecutionID: "exec-1",
		Columns:     []athena.Column{{Name: "cases", Type: "bigint"}},
		Rows:        [][]string{{"4"}},
	}}
	c := &CaseAggregation{Translator: stubTranslator{sql: "SELECT count(*) AS cases FROM case_metadata", ok: true}, Executor: exec, Logger: discard}

	out, err := c.Invoke(context.Background(), "how many cases")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"generated_query": "SELECT count(*) AS cases FROM case_metadata",
		"athena_results": {"execution_id": "exec-1", "columns": [{"name": "cases", "type": "bigint"}], "rows": [["4"]]}
	}`, out)
}

func TestCaseAggregation_ExecutionFailureIsReported(t *testing.T) {
	exec := &stubExecutor{err: &athena.Failure{Kind: athena.KindFailed, Message: "SYNTAX_ERROR"}}
	c := &CaseAggregation{Translator: stubTranslator{sql: "SELEC", ok: true}, Executor: exec, Logger: discard}

	out, err := c.Invoke(context.Background(), "q")
	require.NoError(t, err)
	assert.JSONEq(t, `{"generated_query":"SELEC","athena_results":{"error":"Query failed: SYNTAX_ERROR"}}`, out)
}

func TestKnowledgeInsight(t *testing.T) {
	k := &KnowledgeInsight{Answerer: stubAnswerer("Upgrade soon.")}
	out, err := k.Invoke(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "Upgrade soon.", out)
	assert.NotEqual(t, k.Name(), (&CaseAggregation{}).Name())
}
