package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// Router picks and runs capabilities for a prompt and returns the final
// answer text.
type Router interface {
	Route(ctx context.Context, prompt string, caps []Capability) (string, error)
}

// DefaultMaxTurns bounds the model round trips of one Route call.
const DefaultMaxTurns = 6

// ErrTooManyTurns is returned when the model keeps requesting tools.
var ErrTooManyTurns = errors.New("router exceeded maximum turns")

// ConverseAPI is the subset of the Bedrock runtime client used by
// BedrockRouter.
type ConverseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockRouter lets a Bedrock model choose capabilities through the
// Converse tool-use protocol.
type BedrockRouter struct {
	Client       ConverseAPI
	ModelID      string
	SystemPrompt string
	MaxTurns     int
	Logger       *slog.Logger
}

// Route runs the tool-use loop until the model ends its turn.
func (r *BedrockRouter) Route(ctx context.Context, prompt string, caps []Capability) (string, error) {
	byName := make(map[string]Capability, len(caps))
	tools := make([]types.Tool, 0, len(caps))
	for _, c := range caps {
		byName[c.Name()] = c
		tools = append(tools, toolSpec(c))
	}

	msgs := []types.Message{{
		Role:    types.ConversationRoleUser,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
	}}
	for turn := 0; turn < r.maxTurns(); turn++ {
		in := &bedrockruntime.ConverseInput{
			ModelId:    aws.String(r.ModelID),
			Messages:   msgs,
			ToolConfig: &types.ToolConfiguration{Tools: tools},
		}
		if r.SystemPrompt != "" {
			in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: r.SystemPrompt}}
		}
		out, err := r.Client.Converse(ctx, in)
		if err != nil {
			return "", fmt.Errorf("converse %s: %w", r.ModelID, err)
		}
		reply, ok := out.Output.(*types.ConverseOutputMemberMessage)
		if !ok {
			return "", fmt.Errorf("converse %s: response has no message", r.ModelID)
		}
		msgs = append(msgs, reply.Value)

		if out.StopReason != types.StopReasonToolUse {
			return replyText(reply.Value), nil
		}
		msgs = append(msgs, types.Message{
			Role:    types.ConversationRoleUser,
			Content: r.runTools(ctx, reply.Value, byName),
		})
	}
	return "", ErrTooManyTurns
}

// runTools answers every tool request in msg. Tool failures are reported
// back to the model, not to the caller.
func (r *BedrockRouter) runTools(ctx context.Context, msg types.Message, byName map[string]Capability) []types.ContentBlock {
	log := logger(r.Logger)
	var results []types.ContentBlock
	for _, block := range msg.Content {
		use, ok := block.(*types.ContentBlockMemberToolUse)
		if !ok {
			continue
		}
		name := aws.ToString(use.Value.Name)
		text, err := invokeTool(ctx, byName[name], use.Value.Input)
		status := types.ToolResultStatusSuccess
		if err != nil {
			log.Warn("tool call failed", "tool", name, "error", err)
			text, status = err.Error(), types.ToolResultStatusError
		} else {
			log.Info("tool call", "tool", name)
		}
		results = append(results, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
			ToolUseId: use.Value.ToolUseId,
			Status:    status,
			Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: text}},
		}})
	}
	return results
}

func invokeTool(ctx context.Context, c Capability, input document.Interface) (string, error) {
	if c == nil {
		return "", errors.New("unknown tool")
	}
	var args map[string]any
	if input != nil {
		if err := input.UnmarshalSmithyDocument(&args); err != nil {
			return "", fmt.Errorf("decode tool input: %w", err)
		}
	}
	q, _ := args["query"].(string)
	if strings.TrimSpace(q) == "" {
		return "", errors.New("tool input requires a non-empty query")
	}
	return c.Invoke(ctx, q)
}

func toolSpec(c Capability) types.Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The user's question in natural language.",
			},
		},
		"required": []string{"query"},
	}
	return &types.ToolMemberToolSpec{Value: types.ToolSpecification{
		Name:        aws.String(c.Name()),
		Description: aws.String(c.Description()),
		InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
	}}
}

func replyText(msg types.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			parts = append(parts, t.Value)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func (r *BedrockRouter) maxTurns() int {
	if r.MaxTurns <= 0 {
		return DefaultMaxTurns
	}
	return r.MaxTurns
}
