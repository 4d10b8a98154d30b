package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/client/alpaca"
	"github.com/xampla/insider-bot/internal/metrics"
	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/notify"
	"github.com/xampla/insider-bot/internal/risk"
)

type ClosedTradeLister interface {
	ListClosedTradesSince(ctx context.Context, since time.Time) ([]models.TradeRecord, error)
}

type AccountSource interface {
	Account(ctx context.Context) (alpaca.Account, error)
}

type ScalingResult struct {
	Decision risk.ScalingDecision `json:"decision"`
	Previous float64              `json:"previous"`
	Current  float64              `json:"current"`
}

// ScalingService keeps the risk scaling factor in system settings and moves it
// once a month from realized performance.
type ScalingService struct {
	Repo         ClosedTradeLister
	Settings     *SystemSettingsService
	Account      AccountSource
	Scaler       *risk.Scaler
	LookbackDays int
	Flags        *SystemSettingsService
	Notifier     Notifier
	Metrics      *metrics.Recorder
	Logger       *zap.Logger
	Now          func() time.Time
}

func (s *ScalingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Factor is the persisted factor, 1.0 when unset or unreadable.
func (s *ScalingService) Factor(ctx context.Context) float64 {
	if s == nil {
		return 1.0
	}
	f, err := s.Settings.Float(ctx, SettingScalingFactor, 1.0)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("scaling: read factor failed", zap.Error(err))
		}
		return 1.0
	}
	if !(f > 0) {
		return 1.0
	}
	return f
}

// Evaluate computes the recommendation without persisting it.
func (s *ScalingService) Evaluate(ctx context.Context) (risk.ScalingDecision, error) {
	if s == nil || s.Repo == nil || s.Account == nil {
		return risk.ScalingDecision{Action: risk.ScaleHold, Multiplier: 1.0}, nil
	}
	now := s.now()
	lookback := s.LookbackDays
	if lookback <= 0 {
		lookback = 90
	}
	trades, err := s.Repo.ListClosedTradesSince(ctx, now.AddDate(0, 0, -lookback))
	if err != nil {
		return risk.ScalingDecision{}, err
	}
	acct, err := s.Account.Account(ctx)
	if err != nil {
		return risk.ScalingDecision{}, fmt.Errorf("account equity: %w", err)
	}
	return s.Scaler.Evaluate(trades, acct.Equity, now), nil
}

func (s *ScalingService) RunOnce(ctx context.Context) (ScalingResult, error) {
	var out ScalingResult
	if s == nil {
		return out, nil
	}
	if s.Flags != nil && !s.Flags.IsEnabled(ctx, FeatureScaling, true) {
		return out, nil
	}
	d, err := s.Evaluate(ctx)
	if err != nil {
		return out, err
	}
	out.Decision = d
	out.Previous = s.Factor(ctx)
	out.Current = s.Scaler.Apply(out.Previous, d)
	if err := s.Settings.SetFloat(ctx, SettingScalingFactor, out.Current, "risk scaling factor"); err != nil {
		return out, err
	}
	s.Metrics.ScalingFactor(out.Current)
	if s.Logger != nil {
		s.Logger.Info("scaling: evaluated",
			zap.String("action", string(d.Action)),
			zap.Float64("previous", out.Previous),
			zap.Float64("current", out.Current),
			zap.Int("trades", d.Trades),
			zap.Float64("win_rate", d.WinRate),
			zap.Strings("reasons", d.Reasons),
		)
	}
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, notify.Event{
			Kind:  notify.KindScalingUpdate,
			Title: fmt.Sprintf("Risk scaling %s: %.2f -> %.2f", d.Action, out.Previous, out.Current),
			Fields: map[string]any{
				"trades":    d.Trades,
				"win_rate":  fmt.Sprintf("%.1f%%", d.WinRate*100),
				"total_pnl": d.TotalPnL.StringFixed(2),
				"reasons":   d.Reasons,
			},
			At: s.now(),
		})
	}
	return out, nil
}
