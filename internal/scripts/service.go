package scripts

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-autoresponder/internal/embedding"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

// Service implements the admin operations on scripts.
type Service struct {
	repo     Repository
	embedder embedding.Provider
	logger   *logging.Logger
}

// NewService builds a Service. embedder may be nil when matching is lexical;
// scripts are then stored without vectors.
func NewService(repo Repository, embedder embedding.Provider, logger *logging.Logger) *Service {
	if repo == nil {
		panic("scripts: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, embedder: embedder, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]*Script, error) {
	return s.repo.List(ctx)
}

// ListActive returns the scripts eligible for matching.
func (s *Service) ListActive(ctx context.Context) ([]*Script, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Script, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (*Script, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	script := &Script{Active: true}
	apply(script, in)
	if err := s.embed(ctx, script); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, script); err != nil {
		return nil, err
	}
	s.logger.Info("script created", "script_id", script.ID, "category", script.Category)
	return script, nil
}

// Update replaces the editable fields. Vectors are recomputed only when a
// question changed.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Script, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	script, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	questionsChanged := strings.TrimSpace(in.QuestionAr) != script.QuestionAr ||
		strings.TrimSpace(in.QuestionFr) != script.QuestionFr
	apply(script, in)
	if questionsChanged || len(script.EmbeddingAr) == 0 || len(script.EmbeddingFr) == 0 {
		if err := s.embed(ctx, script); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, script); err != nil {
		return nil, err
	}
	s.logger.Info("script updated", "script_id", script.ID, "reembedded", questionsChanged)
	return script, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("script deleted", "script_id", id)
	return nil
}

func (s *Service) embed(ctx context.Context, script *Script) error {
	if s.embedder == nil {
		script.EmbeddingAr, script.EmbeddingFr = nil, nil
		return nil
	}
	vectors, err := s.embedder.Embed(ctx, []string{script.QuestionAr, script.QuestionFr})
	if err != nil {
		return fmt.Errorf("scripts: embed questions: %w", err)
	}
	if len(vectors) != 2 {
		return fmt.Errorf("scripts: embed questions: %w", embedding.ErrEmbeddingFailed)
	}
	script.EmbeddingAr, script.EmbeddingFr = vectors[0], vectors[1]
	return nil
}

func apply(script *Script, in Input) {
	script.QuestionAr = strings.TrimSpace(in.QuestionAr)
	script.QuestionFr = strings.TrimSpace(in.QuestionFr)
	script.ResponseAr = strings.TrimSpace(in.ResponseAr)
	script.ResponseFr = strings.TrimSpace(in.ResponseFr)
	script.Keywords = NormalizeKeywords(in.Keywords)
	script.Category = strings.TrimSpace(in.Category)
	if in.Active != nil {
		script.Active = *in.Active
	}
}
