package scripts

import (
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/clinic-autoresponder/internal/patients"
	"github.com/wolfman30/clinic-autoresponder/internal/similarity"
)

var (
	// ErrScriptNotFound is returned when no script has the requested id.
	ErrScriptNotFound = errors.New("script not found")

	// ErrInvalidScript is returned when a script misses a required field.
	ErrInvalidScript = errors.New("script requires a question and a response in both languages")
)

// Script is a curated bilingual question/answer pair.
type Script struct {
	ID          string    `json:"id"`
	QuestionAr  string    `json:"question_ar"`
	QuestionFr  string    `json:"question_fr"`
	ResponseAr  string    `json:"response_ar"`
	ResponseFr  string    `json:"response_fr"`
	Keywords    []string  `json:"keywords"`
	Category    string    `json:"category,omitempty"`
	Active      bool      `json:"active"`
	EmbeddingAr []float32 `json:"-"`
	EmbeddingFr []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Question returns the stored question in lang.
func (s *Script) Question(lang patients.Language) string {
	if lang == patients.LanguageArabic {
		return s.QuestionAr
	}
	return s.QuestionFr
}

// Response returns the stored answer in lang.
func (s *Script) Response(lang patients.Language) string {
	if lang == patients.LanguageArabic {
		return s.ResponseAr
	}
	return s.ResponseFr
}

// Embedding returns the question vector in lang, nil when not computed.
func (s *Script) Embedding(lang patients.Language) []float32 {
	if lang == patients.LanguageArabic {
		return s.EmbeddingAr
	}
	return s.EmbeddingFr
}

func (s *Script) candidate(lang patients.Language) similarity.Candidate {
	return similarity.Candidate{Text: s.Question(lang), Vector: s.Embedding(lang)}
}

// Input carries the admin-editable fields of a script.
type Input struct {
	QuestionAr string   `json:"question_ar"`
	QuestionFr string   `json:"question_fr"`
	ResponseAr string   `json:"response_ar"`
	ResponseFr string   `json:"response_fr"`
	Keywords   []string `json:"keywords"`
	Category   string   `json:"category"`
	Active     *bool    `json:"active,omitempty"`
}

// Validate requires both language pairs.
func (in *Input) Validate() error {
	if strings.TrimSpace(in.QuestionAr) == "" || strings.TrimSpace(in.QuestionFr) == "" ||
		strings.TrimSpace(in.ResponseAr) == "" || strings.TrimSpace(in.ResponseFr) == "" {
		return ErrInvalidScript
	}
	return nil
}

// NormalizeKeywords trims, drops empties and removes case-insensitive duplicates.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		folded := similarity.FoldKeyword(k)
		if _, ok := seen[folded]; ok {
			continue
		}
		seen[folded] = struct{}{}
		out = append(out, k)
	}
	return out
}
