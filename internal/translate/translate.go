// Package translate turns natural-language case questions into Athena SQL
// over the case_metadata table.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/kylejryan/support-case-insights/internal/llm"
)

// Preamble frames the generator before the request-specific prompt.
const Preamble = "You are a SQL expert with extensive experience writing queries for AWS Athena."

// Table is the Athena table built over the ledger CSVs.
const Table = "case_metadata"

// Columns of Table, in ledger order.
const Columns = "account_id, caseId, timeCreated, severityCode, status, subject, categoryCode, serviceCode"

// Prompt renders the constrained SQL-generation prompt for request.
func Prompt(database, request string) string {
	return "You are an SQL expert familiar with AWS Athena. " +
		fmt.Sprintf("Using the database '%s', which contains table '%s' (fields: %s), ", database, Table, Columns) +
		fmt.Sprintf("generate an Athena SQL query matching the following natural language request: '%s'. ", request) +
		"Important rules: " +
		"(1) Always use the SQL LIKE operator (not '=') with wildcards ('%') when filtering the field 'serviceCode'. " +
		"(2) Use plain string literals for date conditions (e.g., 'YYYY-MM-DD') rather than TIMESTAMP literals. " +
		"(3) Return only the SQL query without commentary. " +
		"(4) When filtering for specific dates, use SUBSTRING(timeCreated, 1, 10) = 'YYYY-MM-DD' format. " +
		"(5) Severity is either of the following: high, low, normal, urgent, critical. " +
		"(6) Always use LOWER() function when matching serviceCode to ensure case-insensitive comparison. " +
		"(7) If there is mention of UTC then (otherwise ignore this rule): you can use from_iso8601_timestamp. " +
		"Keep it simple, dont use timezone function. DONT USE ANY MARKDOWN"
}

// Translator generates SQL with a text generator. The SQL is not checked
// locally; a bad statement surfaces when Athena runs it.
type Translator struct {
	Generator llm.Generator
	Database  string
	Logger    *slog.Logger
}

// Translate returns the candidate SQL for request, or false when the
// generator fails or returns nothing.
func (t *Translator) Translate(ctx context.Context, request string) (string, bool) {
	log := t.Logger
	if log == nil {
		log = slog.Default()
	}
	if unescaped, err := url.PathUnescape(request); err == nil {
		request = unescaped
	}
	sql, err := t.Generator.Generate(ctx, Prompt(t.Database, request))
	if err != nil {
		log.Warn("sql generation failed", "error", err)
		return "", false
	}
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", false
	}
	log.Info("generated sql query", "sql", sql)
	return sql, true
}
