package kb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	rttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	in  *bedrockagentruntime.RetrieveInput
	out *bedrockagentruntime.RetrieveOutput
}

func (f *fakeRuntime) Retrieve(_ context.Context, in *bedrockagentruntime.RetrieveInput, _ ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error) {
	f.in = in
	return f.out, nil
}

func TestRetriever(t *testing.T) {
	f := &fakeRuntime{out: &bedrockagentruntime.RetrieveOutput{RetrievalResults: []rttypes.KnowledgeBaseRetrievalResult{
		{
			Content: &rttypes.RetrievalResultContent{Text: aws.String("case 1 text")},
			Location: &rttypes.RetrievalResultLocation{
				S3Location: &rttypes.RetrievalResultS3Location{Uri: aws.String("s3://b/support-cases/1.json")},
			},
			Score: aws.Float64(0.9),
		},
		{Content: &rttypes.RetrievalResultContent{Text: aws.String("case 2 text")}},
	}}}
	r := &Retriever{Client: f, KnowledgeBaseID: "KB1"}

	got, err := r.Retrieve(context.Background(), "redshift issues")
	require.NoError(t, err)
	assert.Equal(t, "KB1", aws.ToString(f.in.KnowledgeBaseId))
	assert.Equal(t, int32(DefaultMaxResults), aws.ToInt32(f.in.RetrievalConfiguration.VectorSearchConfiguration.NumberOfResults))
	require.Len(t, got, 2)
	assert.Equal(t, Snippet{Text: "case 1 text", Source: "s3://b/support-cases/1.json", Score: 0.9}, got[0])
	assert.Empty(t, got[1].Source)
}

type fakeAgent struct {
	sources  []agenttypes.DataSourceSummary
	startErr error
	started  *bedrockagent.StartIngestionJobInput
}

func (f *fakeAgent) ListDataSources(context.Context, *bedrockagent.ListDataSourcesInput, ...func(*bedrockagent.Options)) (*bedrockagent.ListDataSourcesOutput, error) {
	return &bedrockagent.ListDataSourcesOutput{DataSourceSummaries: f.sources}, nil
}

func (f *fakeAgent) StartIngestionJob(_ context.Context, in *bedrockagent.StartIngestionJobInput, _ ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error) {
	f.started = in
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &bedrockagent.StartIngestionJobOutput{IngestionJob: &agenttypes.IngestionJob{IngestionJobId: aws.String("JOB1")}}, nil
}

func TestReindexer(t *testing.T) {
	f := &fakeAgent{sources: []agenttypes.DataSourceSummary{{DataSourceId: aws.String("DS1")}, {DataSourceId: aws.String("DS2")}}}
	r := &Reindexer{Client: f, KnowledgeBaseID: StaticID("KB1")}

	job, err := r.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &IngestionJob{JobID: "JOB1", KnowledgeBaseID: "KB1", DataSourceID: "DS1"}, job)
	assert.NotEmpty(t, aws.ToString(f.started.ClientToken))
}

func TestReindexer_Errors(t *testing.T) {
	_, err := (&Reindexer{Client: &fakeAgent{}, KnowledgeBaseID: StaticID("KB1")}).Reindex(context.Background())
	assert.EqualError(t, err, "no data sources found")

	f := &fakeAgent{sources: []agenttypes.DataSourceSummary{{DataSourceId: aws.String("DS1")}}, startErr: errors.New("conflict")}
	_, err = (&Reindexer{Client: f, KnowledgeBaseID: StaticID("KB1")}).Reindex(context.Background())
	assert.ErrorContains(t, err, "conflict")

	failID := func(context.Context) (string, error) { return "", errors.New("no secret") }
	_, err = (&Reindexer{Client: f, KnowledgeBaseID: failID}).Reindex(context.Background())
	assert.EqualError(t, err, "no secret")
}

type fakeSecrets struct{ value string }

func (f fakeSecrets) GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.value)}, nil
}

func TestResolveKnowledgeBaseID(t *testing.T) {
	id, err := SecretID(fakeSecrets{value: `{"knowledge_base_id":"KB9"}`}, "optira/knowledge-base-id")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "KB9", id)

	_, err = ResolveKnowledgeBaseID(context.Background(), fakeSecrets{value: `{}`}, "s")
	assert.ErrorContains(t, err, "no knowledge_base_id")

	_, err = ResolveKnowledgeBaseID(context.Background(), fakeSecrets{value: `nope`}, "s")
	assert.ErrorContains(t, err, "decode secret")
}
