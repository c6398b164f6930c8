package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoke struct {
	in   *bedrockruntime.InvokeModelInput
	body string
	err  error
}

func (f *fakeInvoke) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrock_Generate(t *testing.T) {
	f := &fakeInvoke{body: `{"content":[{"type":"text","text":"  SELECT 1"},{"type":"text","text":"FROM t  "}]}`}
	b := &Bedrock{Client: f, ModelID: "model-1", Temperature: 0.3, Preamble: "You are a SQL expert."}

	got, err := b.Generate(context.Background(), "count cases")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM t", got)
	assert.Equal(t, "model-1", aws.ToString(f.in.ModelId))

	var req request
	require.NoError(t, json.Unmarshal(f.in.Body, &req))
	assert.Equal(t, AnthropicVersion, req.AnthropicVersion)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.InDelta(t, 0.3, req.Temperature, 1e-9)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "You are a SQL expert.\n\ncount cases", req.Messages[0].Content)
}

func TestBedrock_GenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		f    *fakeInvoke
	}{
		{name: "endpoint error", f: &fakeInvoke{err: errors.New("throttled")}},
		{name: "bad json", f: &fakeInvoke{body: "oops"}},
		{name: "empty content", f: &fakeInvoke{body: `{"content":[]}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Bedrock{Client: tt.f, ModelID: "m"}).Generate(context.Background(), "p")
			assert.ErrorIs(t, err, ErrGeneration)
		})
	}
}
