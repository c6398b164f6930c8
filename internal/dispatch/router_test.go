package dispatch

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConverse replays scripted model replies and records each request.
type fakeConverse struct {
	replies []*bedrockruntime.ConverseOutput
	inputs  []*bedrockruntime.ConverseInput
	msgs    [][]types.Message
	err     error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.inputs = append(f.inputs, in)
	f.msgs = append(f.msgs, slices.Clone(in.Messages))
	if f.err != nil {
		return nil, f.err
	}
	out := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return out, nil
}

func toolUse(id, name string, input map[string]any) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		StopReason: types.StopReasonToolUse,
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role: types.ConversationRoleAssistant,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: "Let me check."},
				&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(id),
					Name:      aws.String(name),
					Input:     document.NewLazyDocument(input),
				}},
			},
		}},
	}
}

func endTurn(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		StopReason: types.StopReasonEndTurn,
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
		}},
	}
}

type recordingCapability struct {
	name    string
	queries []string
	out     string
	err     error
}

func (c *recordingCapability) Name() string        { return c.name }
func (c *recordingCapability) Description() string { return "test capability " + c.name }

func (c *recordingCapability) Invoke(_ context.Context, q string) (string, error) {
	c.queries = append(c.queries, q)
	return c.out, c.err
}

func toolResult(t *testing.T, msg types.Message) types.ToolResultBlock {
	t.Helper()
	require.Len(t, msg.Content, 1)
	res, ok := msg.Content[0].(*types.ContentBlockMemberToolResult)
	require.True(t, ok)
	return res.Value
}

func resultText(t *testing.T, res types.ToolResultBlock) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	txt, ok := res.Content[0].(*types.ToolResultContentBlockMemberText)
	require.True(t, ok)
	return txt.Value
}

func TestBedrockRouter_RunsNamedCapability(t *testing.T) {
	agg := &recordingCapability{name: "case_aggregation", out: `{"generated_query":"SELECT 1"}`}
	ins := &recordingCapability{name: "knowledge_insight", out: "unused"}
	fc := &fakeConverse{replies: []*bedrockruntime.ConverseOutput{
		toolUse("tu-1", "case_aggregation", map[string]any{"query": "critical redshift cases"}),
		endTurn("  There is 1 critical case. "),
	}}
	r := &BedrockRouter{Client: fc, ModelID: "model", SystemPrompt: "You are a support analyst.", Logger: discard}

	got, err := r.Route(context.Background(), "query:critical redshift cases?", []Capability{agg, ins})
	require.NoError(t, err)
	assert.Equal(t, "There is 1 critical case.", got)
	assert.Equal(t, []string{"critical redshift cases"}, agg.queries)
	assert.Empty(t, ins.queries)

	require.Len(t, fc.inputs, 2)
	first := fc.inputs[0]
	assert.Equal(t, "model", aws.ToString(first.ModelId))
	require.Len(t, first.System, 1)
	assert.Equal(t, "You are a support analyst.", first.System[0].(*types.SystemContentBlockMemberText).Value)
	require.Len(t, first.ToolConfig.Tools, 2)
	spec := first.ToolConfig.Tools[0].(*types.ToolMemberToolSpec).Value
	assert.Equal(t, "case_aggregation", aws.ToString(spec.Name))

	second := fc.msgs[1]
	require.Len(t, second, 3)
	assert.Equal(t, types.ConversationRoleUser, second[2].Role)
	res := toolResult(t, second[2])
	assert.Equal(t, "tu-1", aws.ToString(res.ToolUseId))
	assert.Equal(t, types.ToolResultStatusSuccess, res.Status)
	assert.Equal(t, `{"generated_query":"SELECT 1"}`, resultText(t, res))
}

func TestBedrockRouter_ToolErrorsGoBackToModel(t *testing.T) {
	tests := []struct {
		name  string
		tool  string
		input map[string]any
		cap   *recordingCapability
	}{
		{name: "unknown tool", tool: "drop_tables", input: map[string]any{"query": "x"}, cap: &recordingCapability{name: "case_aggregation"}},
		{name: "missing query", tool: "case_aggregation", input: map[string]any{}, cap: &recordingCapability{name: "case_aggregation"}},
		{name: "capability error", tool: "case_aggregation", input: map[string]any{"query": "x"}, cap: &recordingCapability{name: "case_aggregation", err: errors.New("boom")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeConverse{replies: []*bedrockruntime.ConverseOutput{
				toolUse("tu-9", tt.tool, tt.input),
				endTurn("I could not answer that."),
			}}
			r := &BedrockRouter{Client: fc, ModelID: "model", Logger: discard}

			got, err := r.Route(context.Background(), "query:x?", []Capability{tt.cap})
			require.NoError(t, err)
			assert.Equal(t, "I could not answer that.", got)
			assert.Nil(t, fc.inputs[0].System)
			res := toolResult(t, fc.msgs[1][2])
			assert.Equal(t, types.ToolResultStatusError, res.Status)
			assert.NotEmpty(t, resultText(t, res))
		})
	}
}

func TestBedrockRouter_Limits(t *testing.T) {
	loop := &fakeConverse{replies: []*bedrockruntime.ConverseOutput{
		toolUse("tu", "case_aggregation", map[string]any{"query": "x"}),
	}}
	r := &BedrockRouter{Client: loop, ModelID: "model", MaxTurns: 3, Logger: discard}
	_, err := r.Route(context.Background(), "q", []Capability{&recordingCapability{name: "case_aggregation", out: "{}"}})
	assert.ErrorIs(t, err, ErrTooManyTurns)
	assert.Len(t, loop.inputs, 3)

	failing := &fakeConverse{err: errors.New("ThrottlingException")}
	r = &BedrockRouter{Client: failing, ModelID: "model", Logger: discard}
	_, err = r.Route(context.Background(), "q", nil)
	assert.ErrorContains(t, err, "ThrottlingException")
}
