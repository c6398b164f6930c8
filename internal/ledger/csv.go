package ledger

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kylejryan/support-case-insights/internal/models"
)

// ParseError marks a raw object that could not be turned into a case.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Key, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// parseEnvelope decodes a raw case object. The projected ledger fields
// must all be present.
func parseEnvelope(key string, body []byte) (models.CaseEnvelope, error) {
	var raw struct {
		AccountID *string                     `json:"account_id"`
		Case      map[string]*json.RawMessage `json:"case"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.CaseEnvelope{}, &ParseError{Key: key, Err: err}
	}
	if raw.AccountID == nil {
		return models.CaseEnvelope{}, &ParseError{Key: key, Err: errors.New("missing account_id")}
	}
	if raw.Case == nil {
		return models.CaseEnvelope{}, &ParseError{Key: key, Err: errors.New("missing case")}
	}
	for _, col := range models.LedgerHeader[1:] {
		field := col
		if col == "caseId" {
			field = "displayId"
		}
		if _, ok := raw.Case[field]; !ok {
			return models.CaseEnvelope{}, &ParseError{Key: key, Err: fmt.Errorf("missing case.%s", field)}
		}
	}
	// Nulls project to empty cells, except status which drives classification.
	if raw.Case["status"] == nil {
		return models.CaseEnvelope{}, &ParseError{Key: key, Err: errors.New("null case.status")}
	}

	var env models.CaseEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.CaseEnvelope{}, &ParseError{Key: key, Err: err}
	}
	return env, nil
}

// encodeRows renders records as CSV, preceded by the header when asked.
func encodeRows(records []models.LedgerRecord, header bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if header {
		if err := w.Write(models.LedgerHeader); err != nil {
			return nil, err
		}
	}
	for _, r := range records {
		if err := w.Write(r.Row()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
