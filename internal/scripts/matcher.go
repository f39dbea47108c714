package scripts

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinic-autoresponder/internal/catalog"
	"github.com/wolfman30/clinic-autoresponder/internal/patients"
	"github.com/wolfman30/clinic-autoresponder/internal/similarity"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

// KeywordBoost is added to the score for each script keyword found in the message.
const KeywordBoost = 0.1

// MatchInput is everything the matcher needs for one message.
type MatchInput struct {
	Message          string
	Language         patients.Language
	Scripts          []*Script
	Threshold        float64
	AutoReplyEnabled bool
}

// MatchResult describes the best candidate and the reply to send.
type MatchResult struct {
	Script  *Script
	Score   float64
	Matched bool
	Reply   string
	Skipped int
}

// MatchObserver is notified about scoring outcomes.
type MatchObserver interface {
	ObserveMatch(strategy string, matched bool, score float64)
	ObserveSkippedScript(language string)
}

// Matcher picks the best script for a message.
type Matcher struct {
	strategy similarity.Strategy
	observer MatchObserver
	logger   *logging.Logger
}

func NewMatcher(strategy similarity.Strategy, observer MatchObserver, logger *logging.Logger) *Matcher {
	if strategy == nil {
		strategy = similarity.LexicalStrategy{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Matcher{strategy: strategy, observer: observer, logger: logger}
}

// Strategy returns the scoring strategy in use.
func (m *Matcher) Strategy() similarity.Strategy {
	return m.strategy
}

// Match scores every active script and returns the highest. The first script
// wins ties. No match yields the fallback reply, never an error.
func (m *Matcher) Match(ctx context.Context, in MatchInput) (MatchResult, error) {
	query, err := m.strategy.Prepare(ctx, in.Message)
	if err != nil {
		return MatchResult{}, fmt.Errorf("scripts: prepare query: %w", err)
	}
	words := similarity.Words(in.Message)

	var (
		best      *Script
		bestScore float64
		skipped   int
	)
	for _, s := range in.Scripts {
		if s == nil || !s.Active {
			continue
		}
		raw, ok := m.strategy.Score(query, s.candidate(in.Language))
		if !ok {
			skipped++
			m.logger.Warn("script skipped: missing data for language",
				"script_id", s.ID,
				"language", string(in.Language),
				"strategy", m.strategy.Name(),
			)
			if m.observer != nil {
				m.observer.ObserveSkippedScript(string(in.Language))
			}
			continue
		}
		score := raw + keywordBoost(words, s.Keywords)
		if best == nil || score > bestScore {
			best = s
			bestScore = score
		}
	}

	result := MatchResult{Script: best, Score: bestScore, Skipped: skipped}
	result.Matched = best != nil && in.AutoReplyEnabled && bestScore >= in.Threshold
	if result.Matched {
		result.Reply = best.Response(in.Language)
	} else {
		result.Reply = catalog.Fallback(in.Language)
	}
	if m.observer != nil {
		m.observer.ObserveMatch(m.strategy.Name(), result.Matched, bestScore)
	}
	return result, nil
}

func keywordBoost(words map[string]struct{}, keywords []string) float64 {
	var boost float64
	for _, k := range keywords {
		if _, ok := words[similarity.FoldKeyword(k)]; ok {
			boost += KeywordBoost
		}
	}
	return boost
}
