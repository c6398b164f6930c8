package insight

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kylejryan/support-case-insights/internal/kb"
)

type stubRetriever struct {
	snippets []kb.Snippet
	err      error
}

func (s stubRetriever) Retrieve(context.Context, string) ([]kb.Snippet, error) {
	return s.snippets, s.err
}

type stubGenerator struct {
	calls  int
	prompt string
	out    string
	err    error
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.out, s.err
}

var discard = slog.New(slog.DiscardHandler)

func TestAnswer(t *testing.T) {
	gen := &stubGenerator{out: "Upgrade to Aurora 3 before the deadline."}
	s := &Synthesizer{
		Retriever: stubRetriever{snippets: []kb.Snippet{
			{Text: "Aurora MySQL 2 reaches end of life.", Source: "s3://kb/eol.md", Score: 0.9},
			{Text: "Plan upgrades early."},
		}},
		Generator: gen,
		Logger:    discard,
	}

	got := s.Answer(context.Background(), "what is ending soon?")
	assert.Equal(t, "Upgrade to Aurora 3 before the deadline.", got)
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.prompt, "Source 1 (s3://kb/eol.md):\nAurora MySQL 2 reaches end of life.\n\nSource 2:\nPlan upgrades early.")
	assert.Contains(t, gen.prompt, "Human Question:\nwhat is ending soon?")
}

func TestAnswer_NoSnippetsSkipsGeneration(t *testing.T) {
	tests := []struct {
		name string
		r    stubRetriever
	}{
		{name: "empty", r: stubRetriever{}},
		{name: "retrieval error", r: stubRetriever{err: errors.New("access denied")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{out: "unused"}
			s := &Synthesizer{Retriever: tt.r, Generator: gen, Logger: discard}
			assert.Equal(t, NoContext, s.Answer(context.Background(), "q"))
			assert.Zero(t, gen.calls)
		})
	}
}

func TestAnswer_GenerationFailure(t *testing.T) {
	s := &Synthesizer{
		Retriever: stubRetriever{snippets: []kb.Snippet{{Text: "x"}}},
		Generator: &stubGenerator{err: errors.New("throttled")},
		Logger:    discard,
	}
	assert.Equal(t, Failed, s.Answer(context.Background(), "q"))
}
