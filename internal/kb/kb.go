// Package kb talks to the Bedrock knowledge base built over the case
// bucket: retrieval for the insight path and ingestion jobs after the
// ledger is rebuilt.
package kb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	rttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/google/uuid"
)

// DefaultMaxResults is the number of snippets requested per retrieval.
const DefaultMaxResults = 5

// IngestionJob identifies a started knowledge base ingestion job.
type IngestionJob struct {
	JobID           string
	KnowledgeBaseID string
	DataSourceID    string
}

// Snippet is one ranked retrieval result.
type Snippet struct {
	Text   string
	Source string
	Score  float64
}

// ---- Retrieval ----

// RetrieveAPI is the subset of the agent runtime client used by Retriever.
type RetrieveAPI interface {
	Retrieve(ctx context.Context, in *bedrockagentruntime.RetrieveInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error)
}

// Retriever runs vector searches against one knowledge base.
type Retriever struct {
	Client          RetrieveAPI
	KnowledgeBaseID string
	MaxResults      int32
}

// Retrieve returns the top snippets for query, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Snippet, error) {
	n := r.MaxResults
	if n <= 0 {
		n = DefaultMaxResults
	}
	out, err := r.Client.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(r.KnowledgeBaseID),
		RetrievalQuery:  &rttypes.KnowledgeBaseQuery{Text: aws.String(query)},
		RetrievalConfiguration: &rttypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &rttypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(n),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve from knowledge base: %w", err)
	}
	snippets := make([]Snippet, 0, len(out.RetrievalResults))
	for _, rr := range out.RetrievalResults {
		s := Snippet{Score: aws.ToFloat64(rr.Score)}
		if rr.Content != nil {
			s.Text = aws.ToString(rr.Content.Text)
		}
		if rr.Location != nil && rr.Location.S3Location != nil {
			s.Source = aws.ToString(rr.Location.S3Location.Uri)
		}
		snippets = append(snippets, s)
	}
	return snippets, nil
}

// ---- Re-indexing ----

// AgentAPI is the subset of the bedrock-agent client used by Reindexer.
type AgentAPI interface {
	ListDataSources(ctx context.Context, in *bedrockagent.ListDataSourcesInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.ListDataSourcesOutput, error)
	StartIngestionJob(ctx context.Context, in *bedrockagent.StartIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error)
}

// Reindexer starts an ingestion job on the first data source of a knowledge base.
type Reindexer struct {
	Client AgentAPI
	// KnowledgeBaseID resolves the id lazily so a missing secret only fails
	// the re-index step.
	KnowledgeBaseID func(ctx context.Context) (string, error)
}

// Reindex starts the ingestion job and returns its identifiers.
func (r *Reindexer) Reindex(ctx context.Context) (*IngestionJob, error) {
	kbID, err := r.KnowledgeBaseID(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := r.Client.ListDataSources(ctx, &bedrockagent.ListDataSourcesInput{
		KnowledgeBaseId: aws.String(kbID),
	})
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	if len(ds.DataSourceSummaries) == 0 {
		return nil, errors.New("no data sources found")
	}
	dsID := aws.ToString(ds.DataSourceSummaries[0].DataSourceId)

	out, err := r.Client.StartIngestionJob(ctx, &bedrockagent.StartIngestionJobInput{
		KnowledgeBaseId: aws.String(kbID),
		DataSourceId:    aws.String(dsID),
		ClientToken:     aws.String(uuid.NewString()),
	})
	if err != nil {
		return nil, fmt.Errorf("start ingestion job: %w", err)
	}
	job := &IngestionJob{KnowledgeBaseID: kbID, DataSourceID: dsID}
	if out.IngestionJob != nil {
		job.JobID = aws.ToString(out.IngestionJob.IngestionJobId)
	}
	return job, nil
}

// ---- Knowledge base id ----

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// StaticID returns a resolver for a known knowledge base id.
func StaticID(id string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return id, nil }
}

// SecretID returns a resolver that reads {"knowledge_base_id": "..."} from secretID.
func SecretID(client SecretsAPI, secretID string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return ResolveKnowledgeBaseID(ctx, client, secretID)
	}
}

// ResolveKnowledgeBaseID reads the knowledge base id from a JSON secret.
func ResolveKnowledgeBaseID(ctx context.Context, client SecretsAPI, secretID string) (string, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretID)})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", secretID, err)
	}
	var data struct {
		KnowledgeBaseID string `json:"knowledge_base_id"`
	}
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &data); err != nil {
		return "", fmt.Errorf("decode secret %s: %w", secretID, err)
	}
	if data.KnowledgeBaseID == "" {
		return "", fmt.Errorf("secret %s has no knowledge_base_id", secretID)
	}
	return data.KnowledgeBaseID, nil
}
