package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/models"
)

type ScalingAction string

const (
	ScaleUp   ScalingAction = "SCALE_UP"
	ScaleDown ScalingAction = "SCALE_DOWN"
	ScaleHold ScalingAction = "HOLD"
)

const bucketSpan = 30 * 24 * time.Hour

// Bucket is one trailing ~30 day window of closed trades.
type Bucket struct {
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	Trades     int             `json:"trades"`
	Wins       int             `json:"wins"`
	PnL        decimal.Decimal `json:"pnl"`
	Drawdown   float64         `json:"drawdown"`
	Profitable bool            `json:"profitable"`
}

type ScalingDecision struct {
	Action     ScalingAction   `json:"action"`
	Multiplier float64         `json:"multiplier"`
	Reasons    []string        `json:"reasons"`
	Buckets    []Bucket        `json:"buckets"`
	Trades     int             `json:"trades"`
	WinRate    float64         `json:"win_rate"`
	TotalPnL   decimal.Decimal `json:"total_pnl"`
	AvgPnLPct  float64         `json:"avg_pnl_pct"`
}

// Scaler recommends growing or shrinking base risk from realized results.
type Scaler struct {
	Config config.ScalingConfig
	Risk   config.RiskConfig
}

func (s *Scaler) cfg() config.ScalingConfig {
	c := config.ScalingConfig{}
	if s != nil {
		c = s.Config
	}
	if c.MinTrades <= 0 {
		c.MinTrades = 30
	}
	if c.MinWinRate <= 0 {
		c.MinWinRate = 0.60
	}
	if c.AvgLossBenchmark == 0 {
		c.AvgLossBenchmark = -2.4
	}
	if c.MaxMonthlyDrawdown <= 0 {
		c.MaxMonthlyDrawdown = 0.15
	}
	if c.UpMultiplier <= 1 {
		c.UpMultiplier = 1.10
	}
	if c.DownMultiplier <= 0 || c.DownMultiplier >= 1 {
		c.DownMultiplier = 0.80
	}
	if c.MinFactor <= 0 {
		c.MinFactor = 0.5
	}
	return c
}

func hold(reason string) ScalingDecision {
	return ScalingDecision{Action: ScaleHold, Multiplier: 1.0, Reasons: []string{reason}, TotalPnL: decimal.Zero}
}

// Evaluate buckets closed trades by exit date over the last 90 days. Bad input
// yields HOLD, never a scale-up.
func (s *Scaler) Evaluate(trades []models.TradeRecord, equity decimal.Decimal, now time.Time) ScalingDecision {
	c := s.cfg()
	if !equity.IsPositive() {
		return hold("equity unavailable")
	}

	buckets := make([]Bucket, 3)
	perBucket := make([][]models.TradeRecord, 3)
	for i := range buckets {
		end := now.Add(-time.Duration(i) * bucketSpan)
		buckets[i] = Bucket{Start: end.Add(-bucketSpan), End: end, PnL: decimal.Zero}
	}
	windowStart := buckets[2].Start

	var (
		total    int
		wins     int
		pnl      = decimal.Zero
		pctSum   float64
		pctCount int
	)
	for _, t := range trades {
		if t.ExitDate == nil || t.PnL == nil {
			continue
		}
		at := *t.ExitDate
		if at.Before(windowStart) || !at.Before(now) {
			continue
		}
		idx := int(now.Sub(at) / bucketSpan)
		if idx > 2 {
			idx = 2
		}
		perBucket[idx] = append(perBucket[idx], t)
		total++
		pnl = pnl.Add(*t.PnL)
		if t.PnL.IsPositive() {
			wins++
		}
		if t.PnLPct != nil {
			pctSum += t.PnLPct.InexactFloat64()
			pctCount++
		}
	}

	eq := equity.InexactFloat64()
	for i := range buckets {
		b := &buckets[i]
		items := perBucket[i]
		sort.Slice(items, func(a, z int) bool { return items[a].ExitDate.Before(*items[z].ExitDate) })
		cum, peak, worst := decimal.Zero, decimal.Zero, decimal.Zero
		for _, t := range items {
			b.Trades++
			if t.PnL.IsPositive() {
				b.Wins++
			}
			cum = cum.Add(*t.PnL)
			if cum.GreaterThan(peak) {
				peak = cum
			}
			if dd := peak.Sub(cum); dd.GreaterThan(worst) {
				worst = dd
			}
		}
		b.PnL = cum
		b.Profitable = cum.IsPositive()
		b.Drawdown = worst.InexactFloat64() / eq
	}

	out := ScalingDecision{Buckets: buckets, Trades: total, TotalPnL: pnl}
	if total > 0 {
		out.WinRate = float64(wins) / float64(total)
	}
	if pctCount > 0 {
		out.AvgPnLPct = pctSum / float64(pctCount)
	}

	for _, b := range buckets {
		if b.Drawdown > c.MaxMonthlyDrawdown {
			out.Action = ScaleDown
			out.Multiplier = c.DownMultiplier
			out.Reasons = []string{fmt.Sprintf("bucket ending %s drawdown %.1f%% exceeds %.0f%%", b.End.Format("2006-01-02"), b.Drawdown*100, c.MaxMonthlyDrawdown*100)}
			return out
		}
	}
	if total < c.MinTrades {
		out.Action = ScaleHold
		out.Multiplier = 1.0
		out.Reasons = []string{fmt.Sprintf("insufficient data: %d trades < %d", total, c.MinTrades)}
		return out
	}
	if !pnl.IsPositive() {
		out.Action = ScaleDown
		out.Multiplier = c.DownMultiplier
		out.Reasons = []string{fmt.Sprintf("90 day pnl %s not positive", pnl.StringFixed(2))}
		return out
	}

	var reasons []string
	if out.WinRate < c.MinWinRate {
		reasons = append(reasons, fmt.Sprintf("win rate %.1f%% < %.0f%%", out.WinRate*100, c.MinWinRate*100))
	}
	if out.AvgPnLPct <= c.AvgLossBenchmark {
		reasons = append(reasons, fmt.Sprintf("avg pnl %.2f%% <= %.2f%%", out.AvgPnLPct, c.AvgLossBenchmark))
	}
	for _, b := range buckets {
		if !b.Profitable {
			reasons = append(reasons, fmt.Sprintf("bucket ending %s not profitable", b.End.Format("2006-01-02")))
		}
		if b.Trades < c.MinTradesPerMonth {
			reasons = append(reasons, fmt.Sprintf("bucket ending %s inconsistent: %d trades", b.End.Format("2006-01-02"), b.Trades))
		}
	}
	if len(reasons) > 0 {
		out.Action = ScaleHold
		out.Multiplier = 1.0
		out.Reasons = reasons
		return out
	}
	out.Action = ScaleUp
	out.Multiplier = c.UpMultiplier
	out.Reasons = []string{"all scale-up gates passed"}
	return out
}

// Apply moves the current factor by the decision, bounded to [min, max/base].
func (s *Scaler) Apply(current float64, d ScalingDecision) float64 {
	c := s.cfg()
	if current <= 0 {
		current = 1
	}
	mult := d.Multiplier
	if mult <= 0 {
		mult = 1
	}
	next := current * mult

	upper := 2.0
	if s != nil && s.Risk.BaseRiskPct > 0 && s.Risk.MaxRiskPct > 0 {
		upper = s.Risk.MaxRiskPct / s.Risk.BaseRiskPct
	}
	if next < c.MinFactor {
		next = c.MinFactor
	}
	if next > upper {
		next = upper
	}
	return next
}
