package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/client/alpaca"
	"github.com/xampla/insider-bot/internal/metrics"
	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/notify"
	"github.com/xampla/insider-bot/internal/repository"
	"github.com/xampla/insider-bot/internal/risk"
)

type PositionBroker interface {
	SubmitOrder(ctx context.Context, req alpaca.OrderRequest) (alpaca.Order, error)
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

type PositionStore interface {
	ListOpenTrades(ctx context.Context) ([]models.TradeRecord, error)
	CloseTrade(ctx context.Context, id uint64, exit repository.TradeExit) error
	UpdateScoreState(ctx context.Context, filingID string, state string, reason string) error
}

type CloseResult struct {
	Checked int      `json:"checked"`
	Closed  int      `json:"closed"`
	Failed  int      `json:"failed"`
	Symbols []string `json:"symbols,omitempty"`
}

// PositionManager closes open trades on stop, target, end of day or operator request.
type PositionManager struct {
	Repo     PositionStore
	Broker   PositionBroker
	Risk     *risk.Manager
	DryRun   bool
	Flags    *SystemSettingsService
	Notifier Notifier
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
	Now      func() time.Time
}

// ExitReason returns the exit triggered by price, or "" to keep holding.
func ExitReason(t models.TradeRecord, price decimal.Decimal) string {
	if !price.IsPositive() {
		return ""
	}
	if price.LessThanOrEqual(t.StopLoss) {
		return models.ExitStopLoss
	}
	if t.TakeProfit != nil && price.GreaterThanOrEqual(*t.TakeProfit) {
		return models.ExitTakeProfit
	}
	return ""
}

// RunOnce checks every open trade against its stop and target.
func (m *PositionManager) RunOnce(ctx context.Context) (CloseResult, error) {
	var res CloseResult
	if m == nil || m.Repo == nil || m.Broker == nil {
		return res, nil
	}
	if m.Flags != nil && !m.Flags.IsEnabled(ctx, FeaturePositionManager, true) {
		return res, nil
	}
	items, err := m.Repo.ListOpenTrades(ctx)
	if err != nil || len(items) == 0 {
		return res, err
	}
	for _, t := range items {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++
		price, err := m.price(ctx, t)
		if err != nil {
			m.warn("position: price unavailable", t, err)
			continue
		}
		reason := ExitReason(t, price)
		if reason == "" {
			continue
		}
		m.closeOne(ctx, t, price, reason, &res)
	}
	return res, nil
}

// CloseAll exits every open trade with reason, used by the EOD sweep and the
// operator. A position whose price or order fails stays open for the next run.
func (m *PositionManager) CloseAll(ctx context.Context, reason string) (CloseResult, error) {
	var res CloseResult
	if m == nil || m.Repo == nil || m.Broker == nil {
		return res, nil
	}
	if reason == models.ExitEndOfDay && m.Flags != nil && !m.Flags.IsEnabled(ctx, FeatureEODSweep, true) {
		return res, nil
	}
	items, err := m.Repo.ListOpenTrades(ctx)
	if err != nil {
		return res, err
	}
	for _, t := range items {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++
		price, err := m.price(ctx, t)
		if err != nil {
			m.warn("position: price unavailable", t, err)
			res.Failed++
			continue
		}
		m.closeOne(ctx, t, price, reason, &res)
	}
	if m.Logger != nil {
		m.Logger.Info("position: close all finished",
			zap.String("reason", reason),
			zap.Int("checked", res.Checked),
			zap.Int("closed", res.Closed),
			zap.Int("failed", res.Failed),
		)
	}
	return res, nil
}

func (m *PositionManager) price(ctx context.Context, t models.TradeRecord) (decimal.Decimal, error) {
	p, err := m.Broker.LatestPrice(ctx, t.Symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if !(p > 0) {
		return decimal.Zero, fmt.Errorf("%w: %s", alpaca.ErrNoQuote, t.Symbol)
	}
	return decimal.NewFromFloat(p), nil
}

func (m *PositionManager) closeOne(ctx context.Context, t models.TradeRecord, price decimal.Decimal, reason string, res *CloseResult) {
	exitPrice := price
	if !m.DryRun && !t.DryRun {
		order, err := m.Broker.SubmitOrder(ctx, alpaca.OrderRequest{
			Symbol:        t.Symbol,
			Qty:           t.Shares,
			Side:          alpaca.SideSell,
			ClientOrderID: uuid.NewString(),
		})
		if err != nil {
			m.warn("position: exit order failed", t, err)
			res.Failed++
			return
		}
		if order.FilledAvgPrice.IsPositive() {
			exitPrice = order.FilledAvgPrice
		}
	}
	now := time.Now().UTC()
	if m.Now != nil {
		now = m.Now()
	}
	err := m.Repo.CloseTrade(ctx, t.ID, repository.TradeExit{Date: now, Price: exitPrice, Reason: reason})
	if errors.Is(err, repository.ErrTradeClosed) {
		return
	}
	if err != nil {
		m.warn("position: close record failed", t, err)
		res.Failed++
		return
	}
	_ = m.Repo.UpdateScoreState(ctx, t.FilingID, models.StateClosed, reason)
	m.Risk.Invalidate()
	m.Metrics.TradeClosed(reason)
	res.Closed++
	res.Symbols = append(res.Symbols, t.Symbol)

	pnl := exitPrice.Sub(t.EntryPrice).Mul(t.Shares).Round(2)
	if m.Logger != nil {
		m.Logger.Info("position: closed",
			zap.Uint64("trade_id", t.ID),
			zap.String("symbol", t.Symbol),
			zap.String("reason", reason),
			zap.String("exit", exitPrice.String()),
			zap.String("pnl", pnl.String()),
		)
	}
	if m.Notifier != nil {
		m.Notifier.Notify(ctx, notify.Event{
			Kind:  notify.KindTradeClosed,
			Title: fmt.Sprintf("Closed %s (%s)", t.Symbol, reason),
			Fields: map[string]any{
				"entry":  t.EntryPrice.StringFixed(2),
				"exit":   exitPrice.StringFixed(2),
				"shares": t.Shares.String(),
				"pnl":    pnl.StringFixed(2),
			},
			At: now,
		})
	}
}

func (m *PositionManager) warn(msg string, t models.TradeRecord, err error) {
	if m.Logger != nil {
		m.Logger.Warn(msg, zap.Uint64("trade_id", t.ID), zap.String("symbol", t.Symbol), zap.Error(err))
	}
}
