package risk

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/classifier"
	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/market"
	"github.com/xampla/insider-bot/internal/models"
)

// Gate block reasons, stored on the score row.
const (
	BlockDecisionPass     = "decision_pass"
	BlockDecisionSkip     = "decision_skip"
	BlockRepeat           = "repeat_purchase"
	BlockSPY              = "spy_gap_blocked"
	BlockDirectorOnly     = "director_only_exclusion"
	BlockSector           = "sector_concentration"
	BlockTier4Open        = "tier4_open_limit"
	BlockTier4Monthly     = "tier4_monthly_limit"
	BlockDailyLimit       = "daily_trade_limit"
	BlockPortfolioUnknown = "portfolio_unavailable"
)

// TradeCounter is the slice of the trade store the gates read.
type TradeCounter interface {
	ListOpenTrades(ctx context.Context) ([]models.TradeRecord, error)
	CountTradesSince(ctx context.Context, since time.Time, tier *int) (int64, error)
}

type GateResult struct {
	Allowed bool
	Reason  string
}

func allow() GateResult              { return GateResult{Allowed: true} }
func block(reason string) GateResult { return GateResult{Reason: reason} }

// Manager enforces signal and portfolio gates. Counters come from persisted
// trades so a restart does not reset them.
type Manager struct {
	Config   config.RiskConfig
	Repo     TradeCounter
	Location *time.Location
	Logger   *zap.Logger
	Now      func() time.Time

	mu             sync.Mutex
	lastExposureAt time.Time
	exposureCache  exposureSnapshot
}

type exposureSnapshot struct {
	Open             int
	OpenTier4        int
	HighConvBySector map[string]int
	TodayTrades      int64
	MonthTier4       int64
}

func (m *Manager) now() time.Time {
	if m != nil && m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *Manager) highConviction() int {
	if m != nil && m.Config.HighConviction > 0 {
		return m.Config.HighConviction
	}
	return 7
}

// Check runs every gate for one scored signal; the first failing gate wins.
func (m *Manager) Check(ctx context.Context, s models.StrategyScore) GateResult {
	if r := SignalGate(s); !r.Allowed {
		m.debug(s, r.Reason)
		return r
	}
	if m == nil || m.Repo == nil {
		return allow()
	}
	exp, err := m.exposures(ctx)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("risk: portfolio state unavailable", zap.String("filing_id", s.FilingID), zap.Error(err))
		}
		return block(BlockPortfolioUnknown)
	}
	r := m.portfolioGate(exp, s)
	if !r.Allowed {
		m.debug(s, r.Reason)
	}
	return r
}

// SignalGate covers the checks that need nothing beyond the score row.
func SignalGate(s models.StrategyScore) GateResult {
	switch {
	case s.Excluded:
		return block(BlockDirectorOnly)
	case s.RepeatPurchase:
		return block(BlockRepeat)
	case !s.SPYFilterPassed:
		return block(BlockSPY)
	case s.Decision == models.DecisionSkip:
		return block(BlockDecisionSkip)
	case s.Decision != models.DecisionBuy:
		return block(BlockDecisionPass)
	}
	return allow()
}

func (m *Manager) portfolioGate(exp exposureSnapshot, s models.StrategyScore) GateResult {
	hc := m.highConviction()
	sector := strings.ToLower(strings.TrimSpace(s.Sector))
	if s.TotalScore >= hc && sector != "" && exp.HighConvBySector[sector] > 0 {
		return block(BlockSector)
	}
	if s.Tier == classifier.Tier4 {
		// Zero is an unset struct; config validation requires at least one.
		maxOpen := m.Config.Tier4MaxOpen
		if maxOpen <= 0 {
			maxOpen = 1
		}
		if exp.OpenTier4 >= maxOpen {
			return block(BlockTier4Open)
		}
		maxMonthly := m.Config.Tier4MaxMonthly
		if maxMonthly <= 0 {
			maxMonthly = 4
		}
		if exp.MonthTier4 >= int64(maxMonthly) {
			return block(BlockTier4Monthly)
		}
	}
	if exp.TodayTrades >= int64(m.dailyLimit(s.Cluster())) {
		return block(BlockDailyLimit)
	}
	return allow()
}

func (m *Manager) dailyLimit(cluster bool) int {
	limit := m.Config.MaxDailyTrades
	if limit <= 0 {
		limit = 10
	}
	if cluster {
		limit += m.Config.ClusterExtraTrades
	}
	return limit
}

// Record folds a just-opened trade into the cached snapshot so the next check in
// the same cycle sees it.
func (m *Manager) Record(t models.TradeRecord) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastExposureAt.IsZero() {
		return
	}
	addOpen(&m.exposureCache, t, m.highConviction())
	m.exposureCache.TodayTrades++
	if t.Tier == classifier.Tier4 {
		m.exposureCache.MonthTier4++
	}
}

// Invalidate drops the cached snapshot.
func (m *Manager) Invalidate() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.lastExposureAt = time.Time{}
	m.mu.Unlock()
}

func (m *Manager) exposures(ctx context.Context) (exposureSnapshot, error) {
	now := m.now()
	m.mu.Lock()
	if !m.lastExposureAt.IsZero() && now.Sub(m.lastExposureAt) < 10*time.Second {
		c := m.exposureCache
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	open, err := m.Repo.ListOpenTrades(ctx)
	if err != nil {
		return exposureSnapshot{}, err
	}
	out := exposureSnapshot{HighConvBySector: map[string]int{}}
	hc := m.highConviction()
	for _, t := range open {
		addOpen(&out, t, hc)
	}
	out.TodayTrades, err = m.Repo.CountTradesSince(ctx, market.SessionDate(now, m.Location), nil)
	if err != nil {
		return exposureSnapshot{}, err
	}
	tier4 := classifier.Tier4
	out.MonthTier4, err = m.Repo.CountTradesSince(ctx, market.MonthStart(now, m.Location), &tier4)
	if err != nil {
		return exposureSnapshot{}, err
	}

	m.mu.Lock()
	m.lastExposureAt = now
	m.exposureCache = out
	m.mu.Unlock()
	return out, nil
}

func addOpen(exp *exposureSnapshot, t models.TradeRecord, hc int) {
	if exp.HighConvBySector == nil {
		exp.HighConvBySector = map[string]int{}
	}
	exp.Open++
	if t.Tier == classifier.Tier4 {
		exp.OpenTier4++
	}
	sector := strings.ToLower(strings.TrimSpace(t.Sector))
	if t.StrategyScore >= hc && sector != "" {
		exp.HighConvBySector[sector]++
	}
}

func (m *Manager) debug(s models.StrategyScore, reason string) {
	if m == nil || m.Logger == nil {
		return
	}
	m.Logger.Debug("risk: reject "+reason,
		zap.String("filing_id", s.FilingID),
		zap.String("symbol", s.Symbol),
		zap.Int("score", s.TotalScore),
		zap.Int("tier", s.Tier),
		zap.String("sector", s.Sector),
	)
}
