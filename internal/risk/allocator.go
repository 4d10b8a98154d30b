package risk

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xampla/insider-bot/internal/config"
)

const (
	AllocationFull    = "allocated"
	AllocationPartial = "partial"
	AllocationSkipped = "skipped"
)

type AllocationRequest struct {
	FilingID      string
	Symbol        string
	Score         int
	EnhancedScore int
	Price         decimal.Decimal
	Shares        decimal.Decimal
}

func (r AllocationRequest) Value() decimal.Decimal {
	return r.Shares.Mul(r.Price)
}

type AllocationItem struct {
	Request AllocationRequest
	Shares  decimal.Decimal
	Value   decimal.Decimal
	Status  string
}

type AllocationSummary struct {
	Requested      decimal.Decimal `json:"requested"`
	Used           decimal.Decimal `json:"used"`
	BuyingPower    decimal.Decimal `json:"buying_power"`
	Allocated      int             `json:"allocated"`
	Partial        int             `json:"partial"`
	Skipped        int             `json:"skipped"`
	UtilizationPct float64         `json:"utilization_pct"`
	Rationed       bool            `json:"rationed"`
}

type Allocation struct {
	Items   []AllocationItem
	Summary AllocationSummary
}

// Allocator rations buying power across signals that qualify together.
type Allocator struct {
	Config config.RiskConfig
}

// Allocate grants requests in priority order. When the total fits the pool every
// request passes unchanged; otherwise the tail gets a partial fill or nothing.
func (a *Allocator) Allocate(requests []AllocationRequest, buyingPower decimal.Decimal) Allocation {
	poolPct := 0.95
	minNotional := decimal.NewFromInt(2)
	if a != nil {
		if a.Config.BuyingPowerCapPct > 0 {
			poolPct = a.Config.BuyingPowerCapPct / 100
		}
		if a.Config.MinNotionalUSD > 0 {
			minNotional = decimal.NewFromFloat(a.Config.MinNotionalUSD)
		}
	}
	if buyingPower.IsNegative() {
		buyingPower = decimal.Zero
	}
	pool := buyingPower.Mul(decimal.NewFromFloat(poolPct))

	reqs := append([]AllocationRequest(nil), requests...)
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].EnhancedScore != reqs[j].EnhancedScore {
			return reqs[i].EnhancedScore > reqs[j].EnhancedScore
		}
		if reqs[i].Score != reqs[j].Score {
			return reqs[i].Score > reqs[j].Score
		}
		return reqs[i].FilingID < reqs[j].FilingID
	})

	out := Allocation{Summary: AllocationSummary{Requested: decimal.Zero, Used: decimal.Zero, BuyingPower: buyingPower}}
	for _, r := range reqs {
		out.Summary.Requested = out.Summary.Requested.Add(r.Value())
	}
	out.Summary.Rationed = out.Summary.Requested.GreaterThan(pool)

	remaining := pool
	for _, r := range reqs {
		item := AllocationItem{Request: r, Shares: decimal.Zero, Value: decimal.Zero}
		want := r.Value()
		switch {
		case !out.Summary.Rationed || want.LessThanOrEqual(remaining):
			item.Shares = r.Shares
			item.Value = want
			item.Status = AllocationFull
			out.Summary.Allocated++
		case remaining.GreaterThanOrEqual(minNotional) && r.Price.IsPositive():
			shares := remaining.Div(r.Price).Truncate(shareDP)
			if shares.LessThan(minShares) {
				item.Status = AllocationSkipped
				out.Summary.Skipped++
				break
			}
			item.Shares = shares
			item.Value = shares.Mul(r.Price)
			item.Status = AllocationPartial
			out.Summary.Partial++
		default:
			item.Status = AllocationSkipped
			out.Summary.Skipped++
		}
		remaining = remaining.Sub(item.Value)
		out.Summary.Used = out.Summary.Used.Add(item.Value)
		out.Items = append(out.Items, item)
	}
	if buyingPower.IsPositive() {
		out.Summary.UtilizationPct = out.Summary.Used.Div(buyingPower).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return out
}
