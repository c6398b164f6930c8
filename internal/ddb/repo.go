// Package ddb provides a simple repository for the pipeline run history
// kept in DynamoDB.
package ddb

import (
	"context"
	"fmt"
	"time"

	"github.com/kylejryan/support-case-insights/internal/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"
)

// API is the subset of the DynamoDB client used by Repo.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Repo wraps a DynamoDB client and table name for run records.
type Repo struct {
	DB    API
	Table string
}

// PutRun inserts a run record, assigning a run id when empty. Run ids are
// never overwritten.
func (r *Repo) PutRun(ctx context.Context, run models.Run) error {
	if run.RunID == "" {
		run.RunID = ulid.Make().String()
	}
	run.PK, run.SK = MakeKeys(run.Kind, run.RunID)
	item, err := attributevalue.MarshalMap(run)
	if err != nil {
		return err
	}
	_, err = r.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.Table,
		Item:                item,
		ConditionExpression: awsStr("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("put run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRuns returns up to limit runs of kind, newest first.
func (r *Repo) ListRuns(ctx context.Context, kind models.RunKind, limit int32) ([]models.Run, error) {
	pk, _ := MakeKeys(kind, "")
	in := &dynamodb.QueryInput{
		TableName:              &r.Table,
		KeyConditionExpression: awsStr("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ScanIndexForward: new(bool),
	}
	if limit > 0 {
		in.Limit = &limit
	}
	out, err := r.DB.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("query runs %s: %w", kind, err)
	}
	runs := []models.Run{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// awsStr is a helper to get a pointer to a string literal.
func awsStr(s string) *string { return &s }

// NowISO returns the current time in ISO8601 format.
func NowISO() string { return time.Now().UTC().Format(time.RFC3339) }

// MakeKeys constructs the partition key (PK) and sort key (SK) for a run.
// ULID sort keys order runs by start time.
func MakeKeys(kind models.RunKind, runID string) (pk, sk string) {
	return fmt.Sprintf("RUN#%s", kind), runID
}
