// Package similarity scores how close an incoming message is to a stored question.
package similarity

import (
	"errors"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
)

// ErrDimensionMismatch is returned when two vectors have different lengths.
var ErrDimensionMismatch = errors.New("similarity: vector dimension mismatch")

// Cosine returns the cosine similarity of a and b. Empty or zero-magnitude
// vectors score 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	if len(a) == 0 {
		return 0, nil
	}
	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score, nil
}

// Lexical scores two strings by normalized Levenshtein distance, in [0,1].
func Lexical(a, b string) float64 {
	a = Normalize(a)
	b = Normalize(b)
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	distance := fuzzy.LevenshteinDistance(a, b)
	score := 1 - float64(distance)/float64(longest)
	if score < 0 {
		return 0
	}
	return score
}

var punctuation = strings.NewReplacer("?", "", ".", "", "!", "", ",", "", "؟", "", "،", "")

// Normalize case-folds s, strips sentence punctuation and collapses whitespace.
func Normalize(s string) string {
	folded := cases.Fold().String(punctuation.Replace(s))
	return strings.Join(strings.Fields(folded), " ")
}

// Words returns the case-folded word set of s, with surrounding punctuation trimmed.
func Words(s string) map[string]struct{} {
	fields := strings.Fields(cases.Fold().String(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		w := strings.Trim(f, "?.!,;:؟،")
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// FoldKeyword normalizes a keyword for comparison against Words.
func FoldKeyword(k string) string {
	return strings.Trim(cases.Fold().String(strings.TrimSpace(k)), "?.!,;:؟،")
}
