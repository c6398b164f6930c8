// Package insight answers free-form questions from knowledge base snippets.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kylejryan/support-case-insights/internal/kb"
	"github.com/kylejryan/support-case-insights/internal/llm"
)

// Fixed replies.
const (
	NoContext = "Sorry, I couldn't retrieve any relevant information from the Knowledge Base."
	Failed    = "Sorry, an error occurred while processing your query."
)

// Generation settings for answers.
const (
	MaxTokens   = 2000
	Temperature = 0.5
)

// Retriever returns ranked snippets for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]kb.Snippet, error)
}

// Synthesizer grounds a generated answer in retrieved snippets.
type Synthesizer struct {
	Retriever Retriever
	Generator llm.Generator
	Logger    *slog.Logger
}

// Answer always returns text: the answer, or one of the fixed replies. A
// retrieval error is treated like an empty result.
func (s *Synthesizer) Answer(ctx context.Context, question string) string {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	snippets, err := s.Retriever.Retrieve(ctx, question)
	if err != nil {
		log.Warn("knowledge base retrieval failed", "error", err)
		snippets = nil
	}
	if len(snippets) == 0 {
		return NoContext
	}

	answer, err := s.Generator.Generate(ctx, Prompt(question, snippets))
	if err != nil {
		log.Warn("insight generation failed", "error", err)
		return Failed
	}
	return answer
}

// Context formats snippets as numbered sources separated by blank lines.
func Context(snippets []kb.Snippet) string {
	blocks := make([]string, len(snippets))
	for i, sn := range snippets {
		label := fmt.Sprintf("Source %d", i+1)
		if sn.Source != "" {
			label += " (" + sn.Source + ")"
		}
		blocks[i] = label + ":\n" + sn.Text
	}
	return strings.Join(blocks, "\n\n")
}

// Prompt renders the answering prompt for question over snippets.
func Prompt(question string, snippets []kb.Snippet) string {
	var b strings.Builder
	b.WriteString("Context from Knowledge Base:\n")
	b.WriteString(Context(snippets))
	b.WriteString("\n\nHuman Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nPlease provide a comprehensive answer based on the context provided above.\n")
	b.WriteString("If the context doesn't contain enough information, please mention that.")
	return b.String()
}
