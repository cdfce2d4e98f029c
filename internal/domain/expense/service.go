package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// ErrValidation reports a request the service refuses outright.
var ErrValidation = errors.New("expense: invalid request")

// Service implements the expense operations on top of a Repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

// Page is one page of expense listings.
type Page struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
}

func (s *Service) List(ctx context.Context, filter ListFilter, opts ListOptions) (*Page, error) {
	opts = opts.Normalize()
	records, total, err := s.repo.List(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return &Page{Records: records, Total: total, Page: opts.Page, PerPage: opts.PerPage}, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Record, error) {
	if p.CategoryL1 == nil && p.CategoryL2 == nil && p.Notes == nil && p.IsHidden == nil {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	if p.CategoryL2 != nil && *p.CategoryL2 != "" && (p.CategoryL1 == nil || *p.CategoryL1 == "") {
		return nil, fmt.Errorf("%w: subcategory requires a category", ErrValidation)
	}
	return s.repo.Update(ctx, id, p)
}

// Confirm records the user's category decision. Confirmation needs both
// category levels; a confirmed record is the user's word and later
// classification runs leave it alone.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, l1, l2 string) (*Record, error) {
	l1 = strings.TrimSpace(l1)
	l2 = strings.TrimSpace(l2)
	if l1 == "" || l2 == "" {
		return nil, fmt.Errorf("%w: both category levels are required", ErrValidation)
	}
	rec, err := s.repo.Confirm(ctx, id, l1, l2)
	if err != nil {
		return nil, err
	}
	s.logger.Info("expense confirmed",
		slog.String("id", id.String()),
		slog.String("category_l1", l1),
		slog.String("category_l2", l2))
	return rec, nil
}

func (s *Service) SetHidden(ctx context.Context, ids []uuid.UUID, hidden bool) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no ids given", ErrValidation)
	}
	return s.repo.SetHidden(ctx, ids, hidden)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no ids given", ErrValidation)
	}
	n, err := s.repo.DeleteBatch(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.logger.Info("expenses deleted", slog.Int64("count", n))
	return n, nil
}

// ClearCategories undoes user categorization for a batch. AI suggestions
// stay in place.
func (s *Service) ClearCategories(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no ids given", ErrValidation)
	}
	return s.repo.ClearCategories(ctx, ids)
}
