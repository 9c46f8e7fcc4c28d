package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/quiz_platform/internal/transport"
)

type StatsStore interface {
	LandingSummary(ctx context.Context) (*transport.LandingSummary, error)
	Dashboard(ctx context.Context, now time.Time, topN int) (*transport.Dashboard, error)
}

const dashboardTopQuizzes = 5

type StatsService struct {
	Repo StatsStore
	Now  func() time.Time
}

func (s *StatsService) Landing(ctx context.Context) (*transport.LandingSummary, error) {
	return s.Repo.LandingSummary(ctx)
}

func (s *StatsService) Dashboard(ctx context.Context) (*transport.Dashboard, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	return s.Repo.Dashboard(ctx, now, dashboardTopQuizzes)
}
