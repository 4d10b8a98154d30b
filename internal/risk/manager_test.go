package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/models"
)

type stubTrades struct {
	open      []models.TradeRecord
	today     int64
	monthTier int64
	err       error
	calls     int
}

func (s *stubTrades) ListOpenTrades(ctx context.Context) ([]models.TradeRecord, error) {
	s.calls++
	return s.open, s.err
}

func (s *stubTrades) CountTradesSince(ctx context.Context, since time.Time, tier *int) (int64, error) {
	if tier != nil {
		return s.monthTier, s.err
	}
	return s.today, s.err
}

func buyScore() models.StrategyScore {
	return models.StrategyScore{
		FilingID:           "f-1",
		Symbol:             "ZS",
		Decision:           models.DecisionBuy,
		Confidence:         models.ConfidenceHigh,
		TotalScore:         7,
		VolumeFilterPassed: true,
		ATRFilterPassed:    true,
		SPYFilterPassed:    true,
		Tier:               3,
		Sector:             "technology",
		ClusterSize:        1,
	}
}

func newManager(repo *stubTrades) *Manager {
	return &Manager{
		Config: config.RiskConfig{MaxDailyTrades: 10, ClusterExtraTrades: 3, Tier4MaxOpen: 1, Tier4MaxMonthly: 4, HighConviction: 7},
		Repo:   repo,
		Now:    func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) },
	}
}

func TestSignalGateReasons(t *testing.T) {
	s := buyScore()
	s.Excluded = true
	if r := SignalGate(s); r.Allowed || r.Reason != BlockDirectorOnly {
		t.Fatalf("result=%+v want %s", r, BlockDirectorOnly)
	}
	s = buyScore()
	s.RepeatPurchase = true
	s.Decision = models.DecisionSkip
	if r := SignalGate(s); r.Reason != BlockRepeat {
		t.Fatalf("reason=%s want %s", r.Reason, BlockRepeat)
	}
	s = buyScore()
	s.Decision = models.DecisionPass
	if r := SignalGate(s); r.Reason != BlockDecisionPass {
		t.Fatalf("reason=%s want %s", r.Reason, BlockDecisionPass)
	}
	if r := SignalGate(buyScore()); !r.Allowed {
		t.Fatalf("result=%+v want allowed", r)
	}
}

func TestSectorConcentration(t *testing.T) {
	repo := &stubTrades{open: []models.TradeRecord{{Symbol: "CRWD", StrategyScore: 8, Sector: "Technology", Tier: 3}}}
	m := newManager(repo)
	if r := m.Check(context.Background(), buyScore()); r.Allowed || r.Reason != BlockSector {
		t.Fatalf("result=%+v want %s", r, BlockSector)
	}
	low := buyScore()
	low.TotalScore = 6
	if r := m.Check(context.Background(), low); !r.Allowed {
		t.Fatalf("result=%+v want allowed for score 6", r)
	}
	other := buyScore()
	other.Sector = "healthcare"
	if r := m.Check(context.Background(), other); !r.Allowed {
		t.Fatalf("result=%+v want allowed for other sector", r)
	}
}

func TestTier4Caps(t *testing.T) {
	s := buyScore()
	s.Tier = 4
	s.Sector = ""

	repo := &stubTrades{open: []models.TradeRecord{{Symbol: "PLTR", Tier: 4}}}
	if r := newManager(repo).Check(context.Background(), s); r.Reason != BlockTier4Open {
		t.Fatalf("result=%+v want %s", r, BlockTier4Open)
	}
	repo = &stubTrades{monthTier: 4}
	if r := newManager(repo).Check(context.Background(), s); r.Reason != BlockTier4Monthly {
		t.Fatalf("result=%+v want %s", r, BlockTier4Monthly)
	}
	repo = &stubTrades{monthTier: 3}
	if r := newManager(repo).Check(context.Background(), s); !r.Allowed {
		t.Fatalf("result=%+v want allowed", r)
	}
}

func TestDailyCapClusterException(t *testing.T) {
	repo := &stubTrades{today: 10}
	m := newManager(repo)
	if r := m.Check(context.Background(), buyScore()); r.Reason != BlockDailyLimit {
		t.Fatalf("result=%+v want %s", r, BlockDailyLimit)
	}
	c := buyScore()
	c.ClusterSize = 3
	if r := m.Check(context.Background(), c); !r.Allowed {
		t.Fatalf("result=%+v want cluster allowed", r)
	}
	repo.today = 13
	m.Invalidate()
	if r := m.Check(context.Background(), c); r.Reason != BlockDailyLimit {
		t.Fatalf("result=%+v want cluster blocked at 13", r)
	}
}

func TestRecordUpdatesCachedExposure(t *testing.T) {
	repo := &stubTrades{}
	m := newManager(repo)
	if r := m.Check(context.Background(), buyScore()); !r.Allowed {
		t.Fatalf("result=%+v", r)
	}
	m.Record(models.TradeRecord{Symbol: "ZS", StrategyScore: 7, Sector: "technology"})
	second := buyScore()
	second.FilingID = "f-2"
	if r := m.Check(context.Background(), second); r.Reason != BlockSector {
		t.Fatalf("result=%+v want %s after record", r, BlockSector)
	}
	if repo.calls != 1 {
		t.Fatalf("calls=%d want=1 (cached)", repo.calls)
	}
}

func TestPortfolioErrorBlocks(t *testing.T) {
	m := newManager(&stubTrades{err: errors.New("db down")})
	if r := m.Check(context.Background(), buyScore()); r.Allowed || r.Reason != BlockPortfolioUnknown {
		t.Fatalf("result=%+v want %s", r, BlockPortfolioUnknown)
	}
}
