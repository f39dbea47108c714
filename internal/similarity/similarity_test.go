package similarity

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/wolfman30/clinic-autoresponder/internal/embedding"
)

func TestCosineIdentity(t *testing.T) {
	v := []float32{0.2, 0.4, 0.9}
	got, err := Cosine(v, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected 1, got %v", got)
	}
}

func TestCosineSymmetric(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{3, -1, 0.5}
	ab, _ := Cosine(a, b)
	ba, _ := Cosine(b, a)
	if ab != ba {
		t.Fatalf("expected symmetric result, got %v and %v", ab, ba)
	}
}

func TestCosineZeroMagnitude(t *testing.T) {
	got, err := Cosine([]float32{0, 0}, []float32{1, 1})
	if err != nil || got != 0 {
		t.Fatalf("expected 0 without error, got %v (%v)", got, err)
	}
	got, err = Cosine(nil, nil)
	if err != nil || got != 0 {
		t.Fatalf("expected 0 for empty vectors, got %v (%v)", got, err)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	if _, err := Cosine([]float32{1}, []float32{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestCosineOrthogonal(t *testing.T) {
	got, _ := Cosine([]float32{1, 0}, []float32{0, 1})
	if got != 0 {
		t.Fatalf("expected 0 for orthogonal vectors, got %v", got)
	}
}

func TestLexical(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical ignoring case and punctuation", "Quels sont vos horaires?", "quels sont vos HORAIRES", 1, 1},
		{"both empty", "", "?", 1, 1},
		{"completely different", "abc", "xyz", 0, 0},
		{"close", "horaires", "horaire", 0.8, 0.9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Lexical(tc.a, tc.b)
			if got < tc.min || got > tc.max {
				t.Fatalf("Lexical(%q, %q) = %v, want [%v, %v]", tc.a, tc.b, got, tc.min, tc.max)
			}
		})
	}
}

func TestWordsTrimsPunctuation(t *testing.T) {
	words := Words("Prix du NETTOYAGE? combien, svp!")
	for _, w := range []string{"prix", "du", "nettoyage", "combien", "svp"} {
		if _, ok := words[w]; !ok {
			t.Fatalf("expected word %q in %v", w, words)
		}
	}
	if FoldKeyword(" Nettoyage ") != "nettoyage" {
		t.Fatalf("expected folded keyword")
	}
}

type fixedProvider struct {
	vec []float32
	err error
}

func (f fixedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return [][]float32{f.vec}, nil
}

func TestEmbeddingStrategy(t *testing.T) {
	s := NewEmbeddingStrategy(fixedProvider{vec: []float32{1, 0}})
	q, err := s.Prepare(context.Background(), "hello")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if _, ok := s.Score(q, Candidate{}); ok {
		t.Fatalf("expected candidate without vector to be skipped")
	}
	if _, ok := s.Score(q, Candidate{Vector: []float32{1, 0, 0}}); ok {
		t.Fatalf("expected mismatched dimension to be skipped")
	}
	score, ok := s.Score(q, Candidate{Vector: []float32{-1, 0}})
	if !ok || score != 0 {
		t.Fatalf("expected negative cosine clamped to 0, got %v %v", score, ok)
	}
	score, ok = s.Score(q, Candidate{Vector: []float32{2, 0}})
	if !ok || math.Abs(score-1) > 1e-9 {
		t.Fatalf("expected 1, got %v", score)
	}
}

func TestEmbeddingStrategyPrepareFailure(t *testing.T) {
	s := NewEmbeddingStrategy(fixedProvider{err: errors.New("timeout")})
	if _, err := s.Prepare(context.Background(), "hello"); !errors.Is(err, embedding.ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}
	s = NewEmbeddingStrategy(fixedProvider{})
	if _, err := s.Prepare(context.Background(), "hello"); !errors.Is(err, embedding.ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed for empty vector, got %v", err)
	}
}

func TestLexicalStrategySkipsEmptyCandidate(t *testing.T) {
	var s LexicalStrategy
	q, _ := s.Prepare(context.Background(), "bonjour")
	if _, ok := s.Score(q, Candidate{Text: "  "}); ok {
		t.Fatalf("expected empty candidate skipped")
	}
	if score, ok := s.Score(q, Candidate{Text: "Bonjour!"}); !ok || score != 1 {
		t.Fatalf("expected exact match, got %v %v", score, ok)
	}
}
