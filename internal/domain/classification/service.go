package classification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
	"github.com/zyxiao/pocketledger/pkg/metrics"
)

// Classifier produces a category suggestion for a description.
type Classifier interface {
	Classify(ctx context.Context, description string, tax *Taxonomy) (*expense.Suggestion, error)
}

// Service runs classification over unclassified expenses. Suggestions are
// stored as proposals; confirming them stays with the user.
type Service struct {
	repo   expense.Repository
	llm    Classifier // nil when no model is configured
	engine *KeywordEngine
	tax    *Taxonomy
	logger *slog.Logger
}

func NewService(repo expense.Repository, llm Classifier, tax *Taxonomy, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		llm:    llm,
		engine: NewKeywordEngine(tax),
		tax:    tax,
		logger: logger,
	}
}

// Suggest classifies one description: the model first, the keyword engine
// when the model is missing, unreachable, or answers outside the taxonomy.
func (s *Service) Suggest(ctx context.Context, description string) *expense.Suggestion {
	if s.llm != nil {
		sug, err := s.llm.Classify(ctx, description, s.tax)
		if err == nil {
			metrics.ObserveClassification("llm", "ok")
			return sug
		}
		metrics.ObserveClassification("llm", "error")
		if !errors.Is(err, ErrBadAnswer) {
			s.logger.Warn("llm classification failed",
				slog.String("description", description),
				slog.Any("error", err))
		}
	}

	sug := s.engine.Classify(description)
	metrics.ObserveClassification("keyword", "ok")
	return sug
}

// Sweep classifies up to batchSize pending expenses and stores the
// suggestions. It returns how many records received one.
func (s *Service) Sweep(ctx context.Context, batchSize int) (int, error) {
	pending, err := s.repo.ListUnclassified(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending expenses: %w", err)
	}

	done := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		sug := s.Suggest(ctx, rec.DescriptionForAI)
		if err := s.repo.SaveSuggestion(ctx, rec.ID, *sug); err != nil {
			s.logger.Error("failed to save suggestion",
				slog.String("id", rec.ID.String()),
				slog.Any("error", err))
			continue
		}
		done++
	}

	if done > 0 {
		s.logger.Info("classification sweep finished",
			slog.Int("pending", len(pending)),
			slog.Int("classified", done))
	}
	return done, nil
}
