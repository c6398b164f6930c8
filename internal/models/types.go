// Package models defines the data models used in the application.
package models

import "strings"

// StatusResolved is the Support API status of a closed case.
const StatusResolved = "resolved"

// CaseDetails is one AWS Support case as returned by DescribeCases. JSON
// names follow the Support API wire format so raw objects stay readable by
// other tooling.
type CaseDetails struct {
	CaseID               string                    `json:"caseId,omitempty"`
	DisplayID            string                    `json:"displayId"`
	TimeCreated          string                    `json:"timeCreated"`
	Status               string                    `json:"status"`
	SeverityCode         string                    `json:"severityCode"`
	ServiceCode          string                    `json:"serviceCode"`
	CategoryCode         string                    `json:"categoryCode"`
	Subject              string                    `json:"subject"`
	SubmittedBy          string                    `json:"submittedBy,omitempty"`
	Language             string                    `json:"language,omitempty"`
	CcEmailAddresses     []string                  `json:"ccEmailAddresses,omitempty"`
	RecentCommunications *RecentCaseCommunications `json:"recentCommunications,omitempty"`
}

// Resolved reports whether the case status is "resolved", ignoring case.
func (c CaseDetails) Resolved() bool {
	return strings.EqualFold(c.Status, StatusResolved)
}

// RecentCaseCommunications holds the latest communications on a case.
type RecentCaseCommunications struct {
	Communications []Communication `json:"communications"`
	NextToken      string          `json:"nextToken,omitempty"`
}

// Communication is one message on a support case.
type Communication struct {
	CaseID        string       `json:"caseId,omitempty"`
	Body          string       `json:"body"`
	SubmittedBy   string       `json:"submittedBy,omitempty"`
	TimeCreated   string       `json:"timeCreated,omitempty"`
	AttachmentSet []Attachment `json:"attachmentSet,omitempty"`
}

// Attachment references a file attached to a communication.
type Attachment struct {
	AttachmentID string `json:"attachmentId"`
	FileName     string `json:"fileName"`
}

// CaseEnvelope is the body of one raw case object in the bucket.
type CaseEnvelope struct {
	AccountID          string      `json:"account_id"`
	Case               CaseDetails `json:"case"`
	SupportCaseContext string      `json:"support_case_context"`
}

// LedgerHeader is the fixed CSV column order of both ledger artifacts.
var LedgerHeader = []string{
	"account_id", "caseId", "timeCreated", "severityCode",
	"status", "subject", "categoryCode", "serviceCode",
}

// LedgerRecord is the denormalized CSV projection of a case.
type LedgerRecord struct {
	AccountID    string
	CaseID       string
	TimeCreated  string
	SeverityCode string
	Status       string
	Subject      string
	CategoryCode string
	ServiceCode  string
}

// NewLedgerRecord projects an envelope onto the ledger columns.
func NewLedgerRecord(e CaseEnvelope) LedgerRecord {
	return LedgerRecord{
		AccountID:    e.AccountID,
		CaseID:       e.Case.DisplayID,
		TimeCreated:  e.Case.TimeCreated,
		SeverityCode: e.Case.SeverityCode,
		Status:       e.Case.Status,
		Subject:      e.Case.Subject,
		CategoryCode: e.Case.CategoryCode,
		ServiceCode:  e.Case.ServiceCode,
	}
}

// Row returns the record in LedgerHeader order.
func (r LedgerRecord) Row() []string {
	return []string{
		r.AccountID, r.CaseID, r.TimeCreated, r.SeverityCode,
		r.Status, r.Subject, r.CategoryCode, r.ServiceCode,
	}
}

// RunKind identifies which pipeline produced a Run.
type RunKind string

// Possible values for RunKind
const (
	RunCollect RunKind = "collect"
	RunIngest  RunKind = "ingest"
)

// RunStatus is the outcome of a Run.
type RunStatus string

// Possible values for RunStatus
const (
	RunSucceeded RunStatus = "SUCCEEDED"
	RunNoop      RunStatus = "NOOP"
	RunFailed    RunStatus = "FAILED"
)

// Run is one collector or ledger execution recorded in the runs table.
type Run struct {
	// DynamoDB keys
	PK string `dynamodbav:"PK" json:"-"` // RUN#<kind>
	SK string `dynamodbav:"SK" json:"-"` // <ulid>, sorts by start time

	RunID          string    `dynamodbav:"run_id" json:"run_id"`
	Kind           RunKind   `dynamodbav:"kind" json:"kind"`
	Status         RunStatus `dynamodbav:"status" json:"status"`
	StartedAt      string    `dynamodbav:"started_at" json:"started_at"`
	FinishedAt     string    `dynamodbav:"finished_at" json:"finished_at"`
	Accounts       int       `dynamodbav:"accounts,omitempty" json:"accounts,omitempty"`
	FilesProcessed int       `dynamodbav:"files_processed" json:"files_processed"`
	ResolvedCount  int       `dynamodbav:"resolved_count,omitempty" json:"resolved_count,omitempty"`
	ActiveCount    int       `dynamodbav:"active_count,omitempty" json:"active_count,omitempty"`
	ResolvedKey    string    `dynamodbav:"resolved_key,omitempty" json:"resolved_key,omitempty"`
	ActiveKey      string    `dynamodbav:"active_key,omitempty" json:"active_key,omitempty"`
	IngestionJobID string    `dynamodbav:"ingestion_job_id,omitempty" json:"ingestion_job_id,omitempty"`
	Error          string    `dynamodbav:"error,omitempty" json:"error,omitempty"`
}
