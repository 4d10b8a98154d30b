package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/repository"
)

// memRepo is an in-memory repository.Repository for service tests.
type memRepo struct {
	mu        sync.Mutex
	filings   []models.InsiderFiling
	docs      map[string]models.ProcessedDocument
	snapshots map[string]models.MarketSnapshot
	spy       []models.SpyCondition
	scores    map[string]*models.StrategyScore
	trades    []*models.TradeRecord
	queue     []*models.QueuedTrade
	settings  map[string]models.SystemSetting
	nextID    uint64

	failOpen error
}

var _ repository.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		docs:      map[string]models.ProcessedDocument{},
		snapshots: map[string]models.MarketSnapshot{},
		scores:    map[string]*models.StrategyScore{},
		settings:  map[string]models.SystemSetting{},
	}
}

func (r *memRepo) id() uint64 {
	r.nextID++
	return r.nextID
}

func (r *memRepo) InTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (r *memRepo) InsertFilings(_ context.Context, items []models.InsiderFiling) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, it := range items {
		dup := false
		for _, f := range r.filings {
			if f.FilingID == it.FilingID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		if err := it.Normalize(); err != nil {
			return n, err
		}
		it.ID = r.id()
		r.filings = append(r.filings, it)
		n++
	}
	return n, nil
}

func (r *memRepo) GetFilingByFilingID(_ context.Context, filingID string) (*models.InsiderFiling, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.filings {
		if f.FilingID == filingID {
			f := f
			return &f, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListUnscoredPurchases(_ context.Context, limit int) ([]models.InsiderFiling, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.InsiderFiling
	for _, f := range r.filings {
		if _, ok := r.scores[f.FilingID]; ok || !f.IsPurchase() {
			continue
		}
		out = append(out, f)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) ListPurchasesBySymbolDate(_ context.Context, symbol string, date time.Time) ([]models.InsiderFiling, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.InsiderFiling
	for _, f := range r.filings {
		if f.Symbol == symbol && f.IsPurchase() && f.TransactionDate.Format("2006-01-02") == date.Format("2006-01-02") {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memRepo) HasRecentPurchase(_ context.Context, filing models.InsiderFiling, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.filings {
		if f.AccessionNumber == filing.AccessionNumber || f.Symbol != filing.Symbol || !strings.EqualFold(f.InsiderName, filing.InsiderName) {
			continue
		}
		if d := filing.TransactionDate.Sub(f.TransactionDate); d >= 0 && d <= window {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) ListFilings(_ context.Context, _ repository.ListFilingsParams) ([]models.InsiderFiling, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.InsiderFiling(nil), r.filings...), nil
}

func (r *memRepo) CountFilings(_ context.Context, _ repository.ListFilingsParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.filings)), nil
}

func (r *memRepo) IsDocumentProcessed(_ context.Context, accession string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.docs[accession]
	return ok, nil
}

func (r *memRepo) MarkDocumentProcessed(_ context.Context, item *models.ProcessedDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[item.AccessionNumber] = *item
	return nil
}

func snapshotKey(symbol string, date time.Time) string {
	return strings.ToUpper(symbol) + "|" + date.Format("2006-01-02")
}

func (r *memRepo) GetMarketSnapshot(_ context.Context, symbol string, date time.Time) (*models.MarketSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.snapshots[snapshotKey(symbol, date)]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *memRepo) UpsertMarketSnapshot(_ context.Context, item *models.MarketSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snapshotKey(item.Symbol, item.Date)] = *item
	return nil
}

func (r *memRepo) InsertSpyCondition(_ context.Context, item *models.SpyCondition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spy = append(r.spy, *item)
	return nil
}

func (r *memRepo) ListSpyConditions(_ context.Context, _ int) ([]models.SpyCondition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SpyCondition(nil), r.spy...), nil
}

func (r *memRepo) InsertStrategyScore(_ context.Context, item *models.StrategyScore) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scores[item.FilingID]; ok {
		return false, nil
	}
	item.ID = r.id()
	cp := *item
	r.scores[item.FilingID] = &cp
	return true, nil
}

func (r *memRepo) GetStrategyScoreByFilingID(_ context.Context, filingID string) (*models.StrategyScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.scores[filingID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *memRepo) ListStrategyScores(_ context.Context, params repository.ListStrategyScoresParams) ([]models.StrategyScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.StrategyScore
	for _, s := range r.scores {
		if params.LifecycleState != nil && s.LifecycleState != *params.LifecycleState {
			continue
		}
		if params.Decision != nil && s.Decision != *params.Decision {
			continue
		}
		if params.Symbol != nil && s.Symbol != *params.Symbol {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (r *memRepo) CountStrategyScores(ctx context.Context, params repository.ListStrategyScoresParams) (int64, error) {
	params.Limit = 0
	items, err := r.ListStrategyScores(ctx, params)
	return int64(len(items)), err
}

func (r *memRepo) UpdateScoreState(_ context.Context, filingID string, state string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.scores[filingID]; ok {
		s.LifecycleState = state
		s.BlockReason = reason
	}
	return nil
}

func (r *memRepo) state(filingID string) (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.scores[filingID]; ok {
		return s.LifecycleState, s.BlockReason
	}
	return "", ""
}

func (r *memRepo) InsertTrade(_ context.Context, item *models.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trades {
		if item.ClientOrderID != "" && t.ClientOrderID == item.ClientOrderID {
			return repository.ErrDuplicate
		}
	}
	item.ID = r.id()
	cp := *item
	r.trades = append(r.trades, &cp)
	return nil
}

func (r *memRepo) GetTrade(_ context.Context, id uint64) (*models.TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trades {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListOpenTrades(_ context.Context) ([]models.TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOpen != nil {
		return nil, r.failOpen
	}
	var out []models.TradeRecord
	for _, t := range r.trades {
		if t.IsOpen() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memRepo) ListTrades(_ context.Context, params repository.ListTradesParams) ([]models.TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TradeRecord
	for _, t := range r.trades {
		if params.Open != nil && t.IsOpen() != *params.Open {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *memRepo) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	items, err := r.ListTrades(ctx, params)
	return int64(len(items)), err
}

func (r *memRepo) CloseTrade(_ context.Context, id uint64, exit repository.TradeExit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trades {
		if t.ID != id {
			continue
		}
		if !t.IsOpen() {
			return repository.ErrTradeClosed
		}
		at, price := exit.Date, exit.Price
		pnl := price.Sub(t.EntryPrice).Mul(t.Shares).Round(2)
		t.ExitDate, t.ExitPrice, t.ExitReason, t.PnL = &at, &price, exit.Reason, &pnl
		if t.EntryPrice.IsPositive() {
			pct := price.Sub(t.EntryPrice).Div(t.EntryPrice).Mul(decimal.NewFromInt(100)).Round(4)
			t.PnLPct = &pct
		}
		return nil
	}
	return nil
}

func (r *memRepo) UpdateTradeEntryFill(_ context.Context, clientOrderID string, price decimal.Decimal, shares decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trades {
		if t.ClientOrderID == clientOrderID {
			t.EntryPrice = price
			t.Shares = shares
			t.PositionValue = price.Mul(shares).Round(2)
		}
	}
	return nil
}

func (r *memRepo) CountTradesSince(_ context.Context, since time.Time, tier *int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.trades {
		if t.EntryDate.Before(since) || (tier != nil && t.Tier != *tier) {
			continue
		}
		n++
	}
	return n, nil
}

func (r *memRepo) ListClosedTradesSince(_ context.Context, since time.Time) ([]models.TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TradeRecord
	for _, t := range r.trades {
		if t.ExitDate != nil && !t.ExitDate.Before(since) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memRepo) PerformanceSummary(_ context.Context, since time.Time) (repository.PerformanceSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := repository.PerformanceSummary{TotalPnL: decimal.Zero}
	for _, t := range r.trades {
		if t.IsOpen() {
			out.OpenTrades++
			continue
		}
		if t.ExitDate.Before(since) {
			continue
		}
		out.TotalTrades++
		if t.PnL.IsPositive() {
			out.Wins++
		} else {
			out.Losses++
		}
		out.TotalPnL = out.TotalPnL.Add(*t.PnL)
	}
	if out.TotalTrades > 0 {
		out.WinRate = float64(out.Wins) / float64(out.TotalTrades)
	}
	return out, nil
}

func (r *memRepo) InsertQueuedTrade(_ context.Context, item *models.QueuedTrade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queue {
		if q.FilingID == item.FilingID {
			return repository.ErrDuplicate
		}
	}
	item.ID = r.id()
	cp := *item
	r.queue = append(r.queue, &cp)
	return nil
}

func (r *memRepo) ListQueuedTrades(_ context.Context, status string, limit int) ([]models.QueuedTrade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.QueuedTrade
	for _, q := range r.queue {
		if status == "" || q.Status == status {
			out = append(out, *q)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) ResolveQueuedTrade(_ context.Context, queueID string, status string, note string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queue {
		if q.QueueID == queueID && q.Status == models.QueueStatusQueued {
			q.Status, q.Note, q.ResolvedAt = status, note, &at
		}
	}
	return nil
}

func (r *memRepo) UpsertSystemSetting(_ context.Context, item *models.SystemSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[item.Key] = *item
	return nil
}

func (r *memRepo) GetSystemSettingByKey(_ context.Context, key string) (*models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[key]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *memRepo) ListSystemSettings(_ context.Context, _ repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SystemSetting
	for _, s := range r.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
