package similarity

import (
	"context"
	"strings"

	"github.com/wolfman30/clinic-autoresponder/internal/embedding"
)

// Query is a prepared incoming message.
type Query struct {
	Text   string
	Vector []float32
}

// Candidate is the stored side of a comparison for one language.
type Candidate struct {
	Text   string
	Vector []float32
}

// Strategy scores candidates against a prepared query. Score returns false
// when the candidate lacks the data the strategy needs.
type Strategy interface {
	Name() string
	Prepare(ctx context.Context, message string) (Query, error)
	Score(q Query, c Candidate) (float64, bool)
}

// EmbeddingStrategy compares vectors produced by an embedding provider.
type EmbeddingStrategy struct {
	provider embedding.Provider
}

func NewEmbeddingStrategy(provider embedding.Provider) *EmbeddingStrategy {
	if provider == nil {
		panic("similarity: embedding provider cannot be nil")
	}
	return &EmbeddingStrategy{provider: provider}
}

func (s *EmbeddingStrategy) Name() string { return "embedding" }

// Prepare embeds the message. Errors wrap embedding.ErrEmbeddingFailed.
func (s *EmbeddingStrategy) Prepare(ctx context.Context, message string) (Query, error) {
	vectors, err := s.provider.Embed(ctx, []string{message})
	if err != nil {
		return Query{}, wrapEmbeddingErr(err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return Query{}, wrapEmbeddingErr(nil)
	}
	return Query{Text: message, Vector: vectors[0]}, nil
}

// Score returns the cosine similarity clamped to [0,1].
func (s *EmbeddingStrategy) Score(q Query, c Candidate) (float64, bool) {
	if len(c.Vector) == 0 {
		return 0, false
	}
	score, err := Cosine(q.Vector, c.Vector)
	if err != nil {
		return 0, false
	}
	if score < 0 {
		score = 0
	}
	return score, true
}

// LexicalStrategy compares normalized text without any model call.
type LexicalStrategy struct{}

func (LexicalStrategy) Name() string { return "lexical" }

func (LexicalStrategy) Prepare(_ context.Context, message string) (Query, error) {
	return Query{Text: message}, nil
}

func (LexicalStrategy) Score(q Query, c Candidate) (float64, bool) {
	if strings.TrimSpace(c.Text) == "" {
		return 0, false
	}
	return Lexical(q.Text, c.Text), true
}
