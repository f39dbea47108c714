package scripts

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/wolfman30/clinic-autoresponder/internal/catalog"
	"github.com/wolfman30/clinic-autoresponder/internal/embedding"
	"github.com/wolfman30/clinic-autoresponder/internal/patients"
	"github.com/wolfman30/clinic-autoresponder/internal/similarity"
)

// vectorProvider embeds by looking the text up in a fixed table.
type vectorProvider struct {
	vectors map[string][]float32
	err     error
}

func (p vectorProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vectors[t]
	}
	return out, nil
}

type countingObserver struct {
	matches int
	skipped int
}

func (c *countingObserver) ObserveMatch(string, bool, float64) { c.matches++ }
func (c *countingObserver) ObserveSkippedScript(string)        { c.skipped++ }

func hoursScript() *Script {
	return &Script{
		ID:          "hours",
		QuestionFr:  "Quels sont vos horaires?",
		QuestionAr:  "ما هي ساعات العمل؟",
		ResponseFr:  "Nous sommes ouverts de 9h à 19h.",
		ResponseAr:  "نحن مفتوحون من 9 إلى 7.",
		Keywords:    []string{"horaires", "ساعات"},
		Active:      true,
		EmbeddingFr: []float32{1, 0, 0},
		EmbeddingAr: []float32{1, 0, 0},
	}
}

func priceScript() *Script {
	return &Script{
		ID:          "price",
		QuestionFr:  "Combien coûte un nettoyage?",
		QuestionAr:  "كم يكلف التنظيف؟",
		ResponseFr:  "Un nettoyage coûte 300 dirhams.",
		ResponseAr:  "التنظيف يكلف 300 درهم.",
		Keywords:    []string{"prix", "nettoyage"},
		Active:      true,
		EmbeddingFr: []float32{0, 1, 0},
		EmbeddingAr: []float32{0, 1, 0},
	}
}

func newEmbeddingMatcher(vectors map[string][]float32, obs MatchObserver) *Matcher {
	return NewMatcher(similarity.NewEmbeddingStrategy(vectorProvider{vectors: vectors}), obs, nil)
}

func TestMatchPicksBestScript(t *testing.T) {
	m := newEmbeddingMatcher(map[string][]float32{"À quelle heure ouvrez-vous ?": {0.9, 0.1, 0}}, nil)
	res, err := m.Match(context.Background(), MatchInput{
		Message:          "À quelle heure ouvrez-vous ?",
		Language:         patients.LanguageFrench,
		Scripts:          []*Script{priceScript(), hoursScript()},
		Threshold:        0.7,
		AutoReplyEnabled: true,
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !res.Matched || res.Script.ID != "hours" {
		t.Fatalf("expected hours match, got %+v", res)
	}
	if res.Reply != "Nous sommes ouverts de 9h à 19h." {
		t.Fatalf("unexpected reply %q", res.Reply)
	}
}

func TestMatchedIffThresholdAndAutoReply(t *testing.T) {
	msg := "bonjour"
	cases := []struct {
		name      string
		vector    []float32
		threshold float64
		autoReply bool
		want      bool
	}{
		{"above threshold", []float32{1, 0, 0}, 0.7, true, true},
		{"exactly threshold", []float32{0.7, float32(math.Sqrt(1 - 0.49)), 0}, 0.7, true, true},
		{"below threshold", []float32{0.2, 1, 0}, 0.7, true, false},
		{"auto reply disabled", []float32{1, 0, 0}, 0.7, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := hoursScript()
			s.Keywords = nil
			s.EmbeddingFr = []float32{1, 0, 0}
			m := newEmbeddingMatcher(map[string][]float32{msg: tc.vector}, nil)
			res, err := m.Match(context.Background(), MatchInput{
				Message: msg, Language: patients.LanguageFrench, Scripts: []*Script{s},
				Threshold: tc.threshold - 1e-6, AutoReplyEnabled: tc.autoReply,
			})
			if err != nil {
				t.Fatalf("match: %v", err)
			}
			wantMatched := res.Score >= tc.threshold-1e-6 && tc.autoReply
			if res.Matched != wantMatched || res.Matched != tc.want {
				t.Fatalf("matched=%v score=%v, want %v", res.Matched, res.Score, tc.want)
			}
			if !res.Matched && res.Reply != catalog.Fallback(patients.LanguageFrench) {
				t.Fatalf("expected fallback reply, got %q", res.Reply)
			}
		})
	}
}

func TestInactiveScriptNeverSelected(t *testing.T) {
	inactive := hoursScript()
	inactive.Active = false
	m := newEmbeddingMatcher(map[string][]float32{"horaires": {1, 0, 0}}, nil)
	res, err := m.Match(context.Background(), MatchInput{
		Message: "horaires", Language: patients.LanguageFrench,
		Scripts: []*Script{inactive}, Threshold: 0.1, AutoReplyEnabled: true,
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if res.Script != nil || res.Matched {
		t.Fatalf("expected no candidate, got %+v", res)
	}
}

func TestKeywordBoostIsMonotonic(t *testing.T) {
	msg := "Prix du nettoyage?"
	vectors := map[string][]float32{msg: {0.3, 0.6, 0.74}}
	base := priceScript()
	base.Keywords = nil

	m := newEmbeddingMatcher(vectors, nil)
	without, err := m.Match(context.Background(), MatchInput{Message: msg, Language: patients.LanguageFrench, Scripts: []*Script{base}, Threshold: 0.7, AutoReplyEnabled: true})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	with, err := m.Match(context.Background(), MatchInput{Message: msg, Language: patients.LanguageFrench, Scripts: []*Script{priceScript()}, Threshold: 0.7, AutoReplyEnabled: true})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if math.Abs(with.Score-(without.Score+2*KeywordBoost)) > 1e-9 {
		t.Fatalf("expected +0.2 boost, got %v vs %v", with.Score, without.Score)
	}
	if without.Matched && !with.Matched {
		t.Fatalf("adding keywords must never unmatch")
	}
}

func TestBoostMayExceedOne(t *testing.T) {
	msg := "horaires"
	m := newEmbeddingMatcher(map[string][]float32{msg: {1, 0, 0}}, nil)
	res, _ := m.Match(context.Background(), MatchInput{Message: msg, Language: patients.LanguageFrench, Scripts: []*Script{hoursScript()}, Threshold: 0.7, AutoReplyEnabled: true})
	if res.Score <= 1 {
		t.Fatalf("expected boosted score above 1, got %v", res.Score)
	}
}

func TestTieKeepsFirstSeen(t *testing.T) {
	first := hoursScript()
	first.ID = "first"
	first.Keywords = nil
	second := hoursScript()
	second.ID = "second"
	second.Keywords = nil
	m := newEmbeddingMatcher(map[string][]float32{"x": {1, 0, 0}}, nil)
	res, _ := m.Match(context.Background(), MatchInput{Message: "x", Language: patients.LanguageFrench, Scripts: []*Script{first, second}, Threshold: 0.5, AutoReplyEnabled: true})
	if res.Script.ID != "first" {
		t.Fatalf("expected first-seen winner, got %s", res.Script.ID)
	}
}

func TestMissingEmbeddingIsSkipped(t *testing.T) {
	noArabic := hoursScript()
	noArabic.EmbeddingAr = nil
	obs := &countingObserver{}
	m := newEmbeddingMatcher(map[string][]float32{"متى": {0, 1, 0}}, obs)
	res, err := m.Match(context.Background(), MatchInput{Message: "متى", Language: patients.LanguageArabic, Scripts: []*Script{noArabic, priceScript()}, Threshold: 0.7, AutoReplyEnabled: true})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if res.Skipped != 1 || obs.skipped != 1 {
		t.Fatalf("expected one skipped script, got %d/%d", res.Skipped, obs.skipped)
	}
	if res.Script == nil || res.Script.ID != "price" {
		t.Fatalf("expected price script chosen, got %+v", res.Script)
	}
	if res.Reply != "التنظيف يكلف 300 درهم." {
		t.Fatalf("expected arabic reply, got %q", res.Reply)
	}
	if obs.matches != 1 {
		t.Fatalf("expected one match observation, got %d", obs.matches)
	}
}

func TestEmbeddingFailureIsError(t *testing.T) {
	m := NewMatcher(similarity.NewEmbeddingStrategy(vectorProvider{err: errors.New("timeout")}), nil, nil)
	_, err := m.Match(context.Background(), MatchInput{Message: "x", Language: patients.LanguageFrench, Scripts: []*Script{hoursScript()}, Threshold: 0.7, AutoReplyEnabled: true})
	if !errors.Is(err, embedding.ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}
}

func TestLexicalMatcher(t *testing.T) {
	m := NewMatcher(nil, nil, nil)
	res, err := m.Match(context.Background(), MatchInput{
		Message: "quels sont vos horaires", Language: patients.LanguageFrench,
		Scripts: []*Script{priceScript(), hoursScript()}, Threshold: 0.7, AutoReplyEnabled: true,
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !res.Matched || res.Script.ID != "hours" {
		t.Fatalf("expected lexical hours match, got %+v", res)
	}
}
