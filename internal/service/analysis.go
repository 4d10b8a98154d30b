package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/metrics"
	"github.com/xampla/insider-bot/internal/models"
)

type Analyzer interface {
	Analyze(ctx context.Context, f models.InsiderFiling) (models.StrategyScore, bool, error)
}

type UnscoredLister interface {
	ListUnscoredPurchases(ctx context.Context, limit int) ([]models.InsiderFiling, error)
}

// AnalysisService scores pending purchases in filing order.
type AnalysisService struct {
	Engine    Analyzer
	Repo      UnscoredLister
	BatchSize int
	Flags     *SystemSettingsService
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
}

// RunOnce returns the scores inserted by this run. A store failure stops the
// batch; the remaining filings stay pending for the next run.
func (s *AnalysisService) RunOnce(ctx context.Context) ([]models.StrategyScore, error) {
	if s == nil || s.Engine == nil || s.Repo == nil {
		return nil, nil
	}
	if s.Flags != nil && !s.Flags.IsEnabled(ctx, FeatureAnalysis, true) {
		return nil, nil
	}
	limit := s.BatchSize
	if limit <= 0 {
		limit = 100
	}
	pending, err := s.Repo.ListUnscoredPurchases(ctx, limit)
	if err != nil {
		return nil, err
	}
	var out []models.StrategyScore
	for _, f := range pending {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		score, inserted, err := s.Engine.Analyze(ctx, f)
		if err != nil {
			return out, err
		}
		if !inserted {
			continue
		}
		s.Metrics.Scored(score.Decision)
		out = append(out, score)
	}
	if s.Logger != nil && len(pending) > 0 {
		s.Logger.Info("service: analysis finished", zap.Int("pending", len(pending)), zap.Int("scored", len(out)))
	}
	return out, nil
}
