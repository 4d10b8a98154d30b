package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/xampla/insider-bot/internal/client/alpaca"
	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/market"
	"github.com/xampla/insider-bot/internal/metrics"
	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/notify"
	"github.com/xampla/insider-bot/internal/repository"
	"github.com/xampla/insider-bot/internal/risk"
	"github.com/xampla/insider-bot/internal/strategy"
)

// Block reasons added after the risk gates.
const (
	BlockOrderRejected   = "order_rejected"
	BlockOrderFailed     = "order_failed"
	BlockSizingFailed    = "sizing_failed"
	BlockNoBuyingPower   = "insufficient_buying_power"
	BlockQueueExpired    = "queue_expired"
	BlockMarketDataError = "market_data_unavailable"
)

// ErrCycleRunning is returned when a cycle is already in progress.
var ErrCycleRunning = errors.New("trade cycle already running")

// Broker is the order and account surface of the brokerage.
type Broker interface {
	Account(ctx context.Context) (alpaca.Account, error)
	Clock(ctx context.Context) (market.Clock, error)
	SubmitOrder(ctx context.Context, req alpaca.OrderRequest) (alpaca.Order, error)
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// GapEvaluator re-runs the benchmark gap filter for the session a trade enters.
type GapEvaluator interface {
	Evaluate(ctx context.Context, tier int, tierKnown bool, cluster bool) market.GapDecision
}

// FactorSource supplies the current performance scaling factor.
type FactorSource interface {
	Factor(ctx context.Context) float64
}

type Disposition int

const (
	DispositionWait Disposition = iota
	DispositionExecute
	DispositionExpire
)

func (d Disposition) String() string {
	switch d {
	case DispositionExecute:
		return "execute"
	case DispositionExpire:
		return "expire"
	default:
		return "wait"
	}
}

// QueueDisposition decides what to do with a queued entry. An entry is valid
// only for the open it was scheduled for; once a later open is the next one it
// expires without ever executing.
func QueueDisposition(q models.QueuedTrade, clock market.Clock, now time.Time, loc *time.Location) Disposition {
	scheduled := market.SessionDate(q.ScheduledFor, loc)
	if clock.IsOpen {
		today := market.SessionDate(now, loc)
		switch {
		case scheduled.Before(today):
			return DispositionExpire
		case scheduled.Equal(today) && !q.ScheduledFor.After(now):
			return DispositionExecute
		default:
			return DispositionWait
		}
	}
	if !clock.NextOpen.IsZero() && scheduled.Before(market.SessionDate(clock.NextOpen, loc)) {
		return DispositionExpire
	}
	return DispositionWait
}

type CycleResult struct {
	Window     market.Window           `json:"window"`
	Blocked    int                     `json:"blocked"`
	Queued     int                     `json:"queued"`
	Deferred   int                     `json:"deferred"`
	Expired    int                     `json:"expired"`
	Opened     int                     `json:"opened"`
	Allocation *risk.AllocationSummary `json:"allocation,omitempty"`
}

// TradeLifecycleManager moves scored filings through gates, the next-open queue,
// sizing, allocation and order entry. Every transition is written to the score row.
type TradeLifecycleManager struct {
	Repo      repository.Repository
	Broker    Broker
	Risk      *risk.Manager
	Sizer     *risk.Sizer
	Allocator *risk.Allocator
	Snapshots SnapshotSource
	Gap       GapEvaluator
	Season    strategy.Season
	Scaling   FactorSource
	Trading   config.TradingConfig
	Market    config.MarketConfig
	Location  *time.Location
	Flags     *SystemSettingsService
	Notifier  Notifier
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string

	running sync.Mutex
}

type candidate struct {
	score   models.StrategyScore
	queueID string
	gapMult float64
}

// gapMultiplier prefers the entry-time gap decision over the one frozen at scoring.
func (c candidate) gapMultiplier() float64 {
	if c.gapMult > 0 {
		return c.gapMult
	}
	return c.score.GapMultiplier
}

type sized struct {
	candidate
	price  decimal.Decimal
	atr    float64
	sizing risk.Sizing
}

func (m *TradeLifecycleManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *TradeLifecycleManager) newID() string {
	if m.NewID != nil {
		return m.NewID()
	}
	return uuid.NewString()
}

func (m *TradeLifecycleManager) batch() int {
	if m.Trading.QueueBatch > 0 {
		return m.Trading.QueueBatch
	}
	return 50
}

// RunCycle processes due queue entries and newly scored filings once.
func (m *TradeLifecycleManager) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult
	if m == nil || m.Repo == nil || m.Broker == nil {
		return res, nil
	}
	if m.Flags != nil && !m.Flags.IsEnabled(ctx, FeatureTradeExecutor, true) {
		return res, nil
	}
	if !m.running.TryLock() {
		return res, ErrCycleRunning
	}
	defer m.running.Unlock()
	clock, err := m.Broker.Clock(ctx)
	if err != nil {
		return res, fmt.Errorf("broker clock: %w", err)
	}
	now := m.now()
	res.Window = market.ClassifyWindow(now, clock, m.Location)
	delayed := market.InOpenDelay(now, clock, m.Market.OpenDelay, m.Location)
	late := market.InEntryCutoff(now, clock, m.Market.EntryCutoff)
	defer m.Risk.Invalidate()

	due, err := m.drainQueue(ctx, clock, now, delayed || late, &res)
	if err != nil {
		return res, err
	}

	state := models.StateScored
	asc := true
	pending, err := m.Repo.ListStrategyScores(ctx, repository.ListStrategyScoresParams{
		LifecycleState: &state,
		Limit:          m.batch(),
		OrderBy:        "id",
		Asc:            &asc,
	})
	if err != nil {
		return res, err
	}

	var admitted []candidate
	for _, c := range due {
		if a, ok := m.admit(ctx, c, &res); ok {
			admitted = append(admitted, a)
		}
	}
	for _, s := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		c := candidate{score: s}
		if r := risk.SignalGate(s); !r.Allowed {
			m.block(ctx, c, r.Reason)
			res.Blocked++
			continue
		}
		// Caps and concentration belong to the session the entry lands in, so
		// admit checks them at the scheduled open.
		if !res.Window.Tradeable() || late {
			if err := m.enqueue(ctx, s, clock, now); err != nil {
				return res, err
			}
			res.Queued++
			continue
		}
		if delayed {
			res.Deferred++
			continue
		}
		if a, ok := m.admit(ctx, c, &res); ok {
			admitted = append(admitted, a)
		}
	}
	if len(admitted) == 0 {
		return res, nil
	}
	if err := m.execute(ctx, admitted, now, &res); err != nil {
		return res, err
	}
	return res, nil
}

// admit runs every gate, including the benchmark gap of the entry session, and
// reserves the slot so later candidates in the same cycle see it.
func (m *TradeLifecycleManager) admit(ctx context.Context, c candidate, res *CycleResult) (candidate, bool) {
	r := m.Risk.Check(ctx, c.score)
	if !r.Allowed {
		m.block(ctx, c, r.Reason)
		res.Blocked++
		return c, false
	}
	if m.Gap != nil {
		d := m.Gap.Evaluate(ctx, c.score.Tier, true, c.score.Cluster())
		if !d.Allowed {
			if m.Logger != nil {
				m.Logger.Info("lifecycle: entry session gap blocks trade",
					zap.String("filing_id", c.score.FilingID),
					zap.Float64("gap_pct", d.GapPercent),
					zap.String("reason", d.Reason),
				)
			}
			m.block(ctx, c, risk.BlockSPY)
			res.Blocked++
			return c, false
		}
		c.gapMult = d.Multiplier
	}
	m.Risk.Record(models.TradeRecord{
		Symbol:        c.score.Symbol,
		Tier:          c.score.Tier,
		Sector:        c.score.Sector,
		StrategyScore: c.score.TotalScore,
	})
	return c, true
}

// drainQueue expires stale entries and returns the ones due now. hold keeps due
// entries waiting through the open delay and the pre-close cutoff.
func (m *TradeLifecycleManager) drainQueue(ctx context.Context, clock market.Clock, now time.Time, hold bool, res *CycleResult) ([]candidate, error) {
	items, err := m.Repo.ListQueuedTrades(ctx, models.QueueStatusQueued, m.batch())
	if err != nil {
		return nil, err
	}
	var due []candidate
	for _, q := range items {
		switch QueueDisposition(q, clock, now, m.Location) {
		case DispositionExpire:
			m.expire(ctx, q, now)
			res.Expired++
		case DispositionExecute:
			if hold {
				res.Deferred++
				continue
			}
			s, err := m.Repo.GetStrategyScoreByFilingID(ctx, q.FilingID)
			if err != nil {
				return nil, err
			}
			if s == nil {
				_ = m.Repo.ResolveQueuedTrade(ctx, q.QueueID, models.QueueStatusCancelled, "score missing", now)
				continue
			}
			due = append(due, candidate{score: *s, queueID: q.QueueID})
		}
	}
	return due, nil
}

func (m *TradeLifecycleManager) enqueue(ctx context.Context, s models.StrategyScore, clock market.Clock, now time.Time) error {
	scheduled := clock.NextOpen
	if scheduled.IsZero() {
		scheduled = market.RegularOpen(now.Add(24*time.Hour), m.Location)
	}
	signal, _ := json.Marshal(s)
	q := &models.QueuedTrade{
		QueueID:       m.newID(),
		Symbol:        s.Symbol,
		FilingID:      s.FilingID,
		OriginalScore: s.TotalScore,
		EnhancedScore: s.EnhancedScore,
		Cluster:       s.Cluster(),
		Signal:        datatypes.JSON(signal),
		QueuedAt:      now,
		ScheduledFor:  scheduled,
		Status:        models.QueueStatusQueued,
	}
	if err := m.Repo.InsertQueuedTrade(ctx, q); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return err
	}
	if err := m.Repo.UpdateScoreState(ctx, s.FilingID, models.StateQueued, ""); err != nil {
		return err
	}
	if m.Logger != nil {
		m.Logger.Info("lifecycle: queued for next open",
			zap.String("filing_id", s.FilingID),
			zap.String("symbol", s.Symbol),
			zap.Time("scheduled_for", scheduled),
		)
	}
	return nil
}

func (m *TradeLifecycleManager) expire(ctx context.Context, q models.QueuedTrade, now time.Time) {
	if err := m.Repo.ResolveQueuedTrade(ctx, q.QueueID, models.QueueStatusExpired, "scheduled open passed", now); err != nil {
		m.warn("lifecycle: expire queue entry failed", q.FilingID, err)
		return
	}
	_ = m.Repo.UpdateScoreState(ctx, q.FilingID, models.StateGateBlocked, BlockQueueExpired)
	m.Metrics.GateBlocked(BlockQueueExpired)
	if m.Logger != nil {
		m.Logger.Info("lifecycle: queue entry expired", zap.String("filing_id", q.FilingID), zap.String("symbol", q.Symbol), zap.Time("scheduled_for", q.ScheduledFor))
	}
	m.notify(ctx, notify.Event{
		Kind:  notify.KindQueueExpired,
		Title: fmt.Sprintf("Queued %s expired", q.Symbol),
		Fields: map[string]any{
			"filing_id":     q.FilingID,
			"scheduled_for": q.ScheduledFor.Format(time.RFC3339),
			"score":         q.OriginalScore,
		},
		At: now,
	})
}

func (m *TradeLifecycleManager) execute(ctx context.Context, admitted []candidate, now time.Time, res *CycleResult) error {
	if m.Snapshots == nil {
		return errors.New("lifecycle: no snapshot source")
	}
	acct, err := m.Broker.Account(ctx)
	if err != nil {
		return fmt.Errorf("broker account: %w", err)
	}
	factor := 1.0
	if m.Scaling != nil {
		factor = m.Scaling.Factor(ctx)
	}
	earnings := m.Season.IsEarnings(now)

	var ready []sized
	var requests []risk.AllocationRequest
	for _, c := range admitted {
		_ = m.Repo.UpdateScoreState(ctx, c.score.FilingID, models.StateSizing, "")
		snap, err := m.Snapshots.Snapshot(ctx, c.score.Symbol, now)
		if err != nil || snap == nil {
			m.warn("lifecycle: snapshot unavailable for sizing", c.score.FilingID, err)
			m.block(ctx, c, BlockMarketDataError)
			res.Blocked++
			continue
		}
		price := decimal.NewFromFloat(snap.Close)
		if !m.Trading.DryRun {
			if last, err := m.Broker.LatestPrice(ctx, c.score.Symbol); err == nil && last > 0 {
				price = decimal.NewFromFloat(last)
			}
		}
		insiders := c.score.ClusterSize
		if insiders < 1 {
			insiders = 1
		}
		sz, err := m.Sizer.Size(risk.SizingInput{
			Score:         c.score.TotalScore,
			Price:         price,
			ATR:           snap.ATR14,
			Equity:        acct.Equity,
			BuyingPower:   acct.BuyingPower,
			InsiderCount:  insiders,
			Tier:          c.score.Tier,
			ScalingFactor: factor,
			GapMultiplier: c.gapMultiplier(),
			Earnings:      earnings,
		})
		if err != nil {
			m.warn("lifecycle: sizing failed", c.score.FilingID, err)
			m.block(ctx, c, BlockSizingFailed)
			res.Blocked++
			continue
		}
		ready = append(ready, sized{candidate: c, price: price, atr: snap.ATR14, sizing: sz})
		requests = append(requests, risk.AllocationRequest{
			FilingID:      c.score.FilingID,
			Symbol:        c.score.Symbol,
			Score:         c.score.TotalScore,
			EnhancedScore: c.score.EnhancedScore,
			Price:         price,
			Shares:        sz.Shares,
		})
	}
	if len(ready) == 0 {
		return nil
	}

	alloc := m.Allocator.Allocate(requests, acct.BuyingPower)
	res.Allocation = &alloc.Summary
	if alloc.Summary.Rationed {
		m.notify(ctx, allocationEvent(alloc.Summary, now))
	}
	byFiling := make(map[string]sized, len(ready))
	for _, r := range ready {
		byFiling[r.score.FilingID] = r
	}
	for _, item := range alloc.Items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r := byFiling[item.Request.FilingID]
		if item.Status == risk.AllocationSkipped {
			m.block(ctx, r.candidate, BlockNoBuyingPower)
			res.Blocked++
			continue
		}
		opened, err := m.place(ctx, r, item.Shares, item.Status == risk.AllocationPartial, earnings, now)
		if err != nil {
			return err
		}
		if opened {
			res.Opened++
		} else {
			res.Blocked++
		}
	}
	return nil
}

// place submits the entry and records the trade. It reports false when the
// broker refused the order.
func (m *TradeLifecycleManager) place(ctx context.Context, r sized, shares decimal.Decimal, partial, earnings bool, now time.Time) (bool, error) {
	s := r.score
	if err := m.Repo.UpdateScoreState(ctx, s.FilingID, models.StateOrdered, ""); err != nil {
		return false, err
	}
	clientID := m.newID()
	fillPrice, fillQty, orderID := r.price, shares, ""
	if m.Trading.DryRun {
		m.Metrics.Order(alpaca.SideBuy, "dry_run")
	} else {
		order, err := m.Broker.SubmitOrder(ctx, alpaca.OrderRequest{
			Symbol:        s.Symbol,
			Qty:           shares,
			Side:          alpaca.SideBuy,
			ClientOrderID: clientID,
		})
		if err != nil {
			reason := BlockOrderFailed
			if errors.Is(err, alpaca.ErrOrderRejected) {
				reason = BlockOrderRejected
			}
			m.warn("lifecycle: entry order failed", s.FilingID, err)
			m.block(ctx, r.candidate, reason)
			return false, nil
		}
		orderID = order.ID
		if order.FilledAvgPrice.IsPositive() {
			fillPrice = order.FilledAvgPrice
		}
		if order.FilledQty.IsPositive() {
			fillQty = order.FilledQty
		}
	}

	stop := fillPrice.Sub(r.sizing.StopDistance)
	if floor := decimal.New(1, -2); stop.LessThan(floor) {
		stop = floor
	}
	trade := &models.TradeRecord{
		FilingID:      s.FilingID,
		Symbol:        s.Symbol,
		EntryDate:     now,
		EntryPrice:    fillPrice,
		Shares:        fillQty,
		PositionValue: fillPrice.Mul(fillQty).Round(2),
		StopLoss:      stop.Round(4),
		TakeProfit:    risk.TakeProfit(fillPrice, r.atr, s.TotalScore, earnings),
		StrategyScore: s.TotalScore,
		EnhancedScore: s.EnhancedScore,
		Tier:          s.Tier,
		Sector:        s.Sector,
		Cluster:       s.Cluster(),
		InsiderCount:  max(s.ClusterSize, 1),
		RiskFraction:  decimal.NewFromFloat(r.sizing.RiskFraction).Round(6),
		Partial:       partial,
		OrderID:       orderID,
		ClientOrderID: clientID,
		DryRun:        m.Trading.DryRun,
	}
	if err := m.Repo.InsertTrade(ctx, trade); err != nil {
		if m.Logger != nil {
			m.Logger.Error("lifecycle: order placed but trade not recorded",
				zap.String("filing_id", s.FilingID),
				zap.String("client_order_id", clientID),
				zap.Error(err),
			)
		}
		return false, err
	}
	if err := m.Repo.UpdateScoreState(ctx, s.FilingID, models.StateOpen, ""); err != nil {
		m.warn("lifecycle: open state write failed", s.FilingID, err)
	}
	m.resolveQueue(ctx, r.queueID, models.QueueStatusExecuted, "opened", now)
	if m.Logger != nil {
		m.Logger.Info("lifecycle: trade opened",
			zap.String("filing_id", s.FilingID),
			zap.String("symbol", s.Symbol),
			zap.String("shares", fillQty.String()),
			zap.String("entry", fillPrice.String()),
			zap.String("stop", trade.StopLoss.String()),
			zap.Float64("risk_fraction", r.sizing.RiskFraction),
			zap.Strings("clamps", r.sizing.Clamps),
			zap.Bool("partial", partial),
			zap.Bool("dry_run", m.Trading.DryRun),
		)
	}
	m.notify(ctx, tradeOpenedEvent(*trade, r.sizing))
	return true, nil
}

func (m *TradeLifecycleManager) block(ctx context.Context, c candidate, reason string) {
	if err := m.Repo.UpdateScoreState(ctx, c.score.FilingID, models.StateGateBlocked, reason); err != nil {
		m.warn("lifecycle: block state write failed", c.score.FilingID, err)
	}
	m.Metrics.GateBlocked(reason)
	m.resolveQueue(ctx, c.queueID, models.QueueStatusCancelled, reason, m.now())
	if !c.score.IsBuy() {
		return
	}
	m.notify(ctx, notify.Event{
		Kind:  notify.KindGateBlocked,
		Title: fmt.Sprintf("BUY %s blocked: %s", c.score.Symbol, reason),
		Fields: map[string]any{
			"filing_id": c.score.FilingID,
			"score":     c.score.TotalScore,
			"enhanced":  c.score.EnhancedScore,
			"tier":      c.score.Tier,
		},
	})
}

func (m *TradeLifecycleManager) resolveQueue(ctx context.Context, queueID, status, note string, at time.Time) {
	if queueID == "" {
		return
	}
	if err := m.Repo.ResolveQueuedTrade(ctx, queueID, status, note, at); err != nil && m.Logger != nil {
		m.Logger.Warn("lifecycle: resolve queue entry failed", zap.String("queue_id", queueID), zap.Error(err))
	}
}

func (m *TradeLifecycleManager) notify(ctx context.Context, ev notify.Event) {
	if m.Notifier != nil {
		m.Notifier.Notify(ctx, ev)
	}
}

func (m *TradeLifecycleManager) warn(msg, filingID string, err error) {
	if m.Logger != nil {
		m.Logger.Warn(msg, zap.String("filing_id", filingID), zap.Error(err))
	}
}

func allocationEvent(s risk.AllocationSummary, at time.Time) notify.Event {
	return notify.Event{
		Kind:  notify.KindAllocationSummary,
		Title: "Buying power rationed",
		Fields: map[string]any{
			"requested":       s.Requested.StringFixed(2),
			"used":            s.Used.StringFixed(2),
			"buying_power":    s.BuyingPower.StringFixed(2),
			"allocated":       s.Allocated,
			"partial":         s.Partial,
			"skipped":         s.Skipped,
			"utilization_pct": s.UtilizationPct,
		},
		At: at,
	}
}

func tradeOpenedEvent(t models.TradeRecord, sz risk.Sizing) notify.Event {
	fields := map[string]any{
		"shares":        t.Shares.String(),
		"entry":         t.EntryPrice.StringFixed(2),
		"stop":          t.StopLoss.StringFixed(2),
		"value":         t.PositionValue.StringFixed(2),
		"risk_fraction": sz.RiskFraction,
		"variant":       string(sz.Variant),
		"score":         t.StrategyScore,
		"dry_run":       t.DryRun,
	}
	if t.TakeProfit != nil {
		fields["take_profit"] = t.TakeProfit.StringFixed(2)
	}
	return notify.Event{
		Kind:   notify.KindTradeOpened,
		Title:  fmt.Sprintf("Opened %s", t.Symbol),
		Fields: fields,
		At:     t.EntryDate,
	}
}
