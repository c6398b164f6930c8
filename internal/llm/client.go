// Package llm wraps the Bedrock text generation endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// AnthropicVersion is the Messages API version accepted by Bedrock.
const AnthropicVersion = "bedrock-2023-05-31"

// ErrGeneration wraps every failure of the generation endpoint.
var ErrGeneration = errors.New("text generation failed")

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// InvokeAPI is the subset of the Bedrock runtime client used by Bedrock.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock calls an Anthropic model through InvokeModel.
type Bedrock struct {
	Client      InvokeAPI
	ModelID     string
	MaxTokens   int
	Temperature float64
	// Preamble is prepended to every prompt, separated by a blank line.
	Preamble string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	Messages         []message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate sends prompt as a single user message and returns the trimmed text.
func (b *Bedrock) Generate(ctx context.Context, prompt string) (string, error) {
	if b.Preamble != "" {
		prompt = b.Preamble + "\n\n" + prompt
	}
	body, err := json.Marshal(request{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        b.maxTokens(),
		Temperature:      b.Temperature,
		Messages:         []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	out, err := b.Client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("%w: invoke %s: %w", ErrGeneration, b.ModelID, err)
	}
	var resp response
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrGeneration, err)
	}
	parts := make([]string, 0, len(resp.Content))
	for _, c := range resp.Content {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	return text, nil
}

func (b *Bedrock) maxTokens() int {
	if b.MaxTokens <= 0 {
		return 1000
	}
	return b.MaxTokens
}
