package s3io

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Common S3 key patterns and helper functions.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/csv"

	// CasePrefix holds one JSON object per collected case.
	CasePrefix = "support-cases/"

	// ResolvedLedgerKey is overwritten with the resolved-case snapshot on every flush.
	ResolvedLedgerKey = "metadata/resolved_cases.csv"
	// ActiveLedgerKey accumulates every active case ever ingested.
	ActiveLedgerKey = "metadata/active_cases.csv"

	// unknownPartition is used when a case has an unparseable creation time.
	unknownPartition = "unknown/00"
)

// CaseKey builds the raw object key support-cases/{account}/{YYYY}/{MM}/{displayId}.json.
func CaseKey(accountID, timeCreated, displayID string) (string, error) {
	part, err := MonthPartition(timeCreated)
	if err != nil {
		return CasePrefix + path.Join(accountID, unknownPartition, displayID+".json"), err
	}
	return CasePrefix + path.Join(accountID, part, displayID+".json"), nil
}

// MonthPartition converts "2024-07-23T15:49:29.995Z" to "2024/07".
func MonthPartition(iso string) (string, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.UTC().Format("2006/01"), nil
		}
	}
	return "", fmt.Errorf("unparseable creation time %q", iso)
}

// ParseCaseKey extracts accountID and displayID from a raw case key.
func ParseCaseKey(key string) (accountID, displayID string, ok bool) {
	if !IsCaseObject(key) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(key, CasePrefix), "/")
	if len(parts) != 4 {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[3], ".json"), true
}

// IsCaseObject reports whether key is a JSON object under CasePrefix.
func IsCaseObject(key string) bool {
	return strings.HasPrefix(key, CasePrefix) && strings.HasSuffix(key, ".json")
}
