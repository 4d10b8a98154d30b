package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/market"
	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/notify"
	"github.com/xampla/insider-bot/internal/repository"
)

type StatusReport struct {
	At            time.Time                     `json:"at"`
	Window        market.Window                 `json:"window,omitempty"`
	Equity        *decimal.Decimal              `json:"equity,omitempty"`
	BuyingPower   *decimal.Decimal              `json:"buying_power,omitempty"`
	OpenTrades    int                           `json:"open_trades"`
	OpenSymbols   []string                      `json:"open_symbols,omitempty"`
	TodayTrades   int64                         `json:"today_trades"`
	Queued        int                           `json:"queued"`
	ScalingFactor float64                       `json:"scaling_factor"`
	Performance   repository.PerformanceSummary `json:"performance_30d"`
}

// StatusService assembles the operator status report.
type StatusService struct {
	Repo     repository.Repository
	Broker   Broker
	Scaling  FactorSource
	Location *time.Location
	Flags    *SystemSettingsService
	Notifier Notifier
	Logger   *zap.Logger
	Now      func() time.Time
}

func (s *StatusService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Performance summarizes closed trades over the last days.
func (s *StatusService) Performance(ctx context.Context, days int) (repository.PerformanceSummary, error) {
	if days <= 0 {
		days = 30
	}
	return s.Repo.PerformanceSummary(ctx, s.now().AddDate(0, 0, -days))
}

// Report reads the store first; broker fields are left empty when the broker fails.
func (s *StatusService) Report(ctx context.Context) (StatusReport, error) {
	now := s.now()
	out := StatusReport{At: now, ScalingFactor: 1.0}
	open, err := s.Repo.ListOpenTrades(ctx)
	if err != nil {
		return out, err
	}
	out.OpenTrades = len(open)
	for _, t := range open {
		out.OpenSymbols = append(out.OpenSymbols, t.Symbol)
	}
	if out.TodayTrades, err = s.Repo.CountTradesSince(ctx, market.SessionDate(now, s.Location), nil); err != nil {
		return out, err
	}
	queued, err := s.Repo.ListQueuedTrades(ctx, models.QueueStatusQueued, 0)
	if err != nil {
		return out, err
	}
	out.Queued = len(queued)
	if out.Performance, err = s.Performance(ctx, 30); err != nil {
		return out, err
	}
	if s.Scaling != nil {
		out.ScalingFactor = s.Scaling.Factor(ctx)
	}
	if s.Broker != nil {
		if acct, err := s.Broker.Account(ctx); err == nil {
			out.Equity, out.BuyingPower = &acct.Equity, &acct.BuyingPower
		} else if s.Logger != nil {
			s.Logger.Warn("status: account unavailable", zap.Error(err))
		}
		if clock, err := s.Broker.Clock(ctx); err == nil {
			out.Window = market.ClassifyWindow(now, clock, s.Location)
		}
	}
	return out, nil
}

// Publish sends the report as a system_status notification.
func (s *StatusService) Publish(ctx context.Context) (StatusReport, error) {
	if s.Flags != nil && !s.Flags.IsEnabled(ctx, FeatureStatusReport, true) {
		return StatusReport{}, nil
	}
	r, err := s.Report(ctx)
	if err != nil {
		return r, err
	}
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, StatusEvent(r))
	}
	return r, nil
}

func StatusEvent(r StatusReport) notify.Event {
	fields := map[string]any{
		"open_trades":    r.OpenTrades,
		"today_trades":   r.TodayTrades,
		"queued":         r.Queued,
		"scaling_factor": fmt.Sprintf("%.2f", r.ScalingFactor),
		"trades_30d":     r.Performance.TotalTrades,
		"win_rate_30d":   fmt.Sprintf("%.1f%%", r.Performance.WinRate*100),
		"pnl_30d":        r.Performance.TotalPnL.StringFixed(2),
	}
	if r.Equity != nil {
		fields["equity"] = r.Equity.StringFixed(2)
	}
	if r.Window != "" {
		fields["window"] = string(r.Window)
	}
	return notify.Event{Kind: notify.KindSystemStatus, Title: "System status", Fields: fields, At: r.At}
}
