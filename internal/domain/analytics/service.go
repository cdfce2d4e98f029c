package analytics

import (
	"context"

	"github.com/zyxiao/pocketledger/pkg/money"
)

// Repository is the query surface the service needs.
type Repository interface {
	Summary(ctx context.Context, rng Range) (*Summary, error)
	ByChannel(ctx context.Context, rng Range) ([]ChannelSpending, error)
	ByCategory(ctx context.Context, rng Range) ([]CategorySpending, error)
	Trend(ctx context.Context, rng Range, granularity string) ([]TrendPoint, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Overview is the combined report served by the dashboard endpoint.
type Overview struct {
	Summary      *Summary           `json:"summary"`
	TotalDisplay string             `json:"total_display"`
	ByChannel    []ChannelSpending  `json:"by_channel"`
	ByCategory   []CategorySpending `json:"by_category"`
}

func (s *Service) Overview(ctx context.Context, rng Range) (*Overview, error) {
	sum, err := s.repo.Summary(ctx, rng)
	if err != nil {
		return nil, err
	}
	byChannel, err := s.repo.ByChannel(ctx, rng)
	if err != nil {
		return nil, err
	}
	byCategory, err := s.repo.ByCategory(ctx, rng)
	if err != nil {
		return nil, err
	}
	if byChannel == nil {
		byChannel = []ChannelSpending{}
	}
	if byCategory == nil {
		byCategory = []CategorySpending{}
	}
	return &Overview{
		Summary:      sum,
		TotalDisplay: money.DisplayDecimal(sum.TotalSpending, money.CNY),
		ByChannel:    byChannel,
		ByCategory:   byCategory,
	}, nil
}

func (s *Service) Trend(ctx context.Context, rng Range, granularity string) ([]TrendPoint, error) {
	if granularity == "" {
		granularity = "day"
	}
	points, err := s.repo.Trend(ctx, rng, granularity)
	if err != nil {
		return nil, err
	}
	if points == nil {
		points = []TrendPoint{}
	}
	return points, nil
}
