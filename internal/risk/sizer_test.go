package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xampla/insider-bot/internal/config"
)

func TestSizeMediumConviction(t *testing.T) {
	s := &Sizer{}
	out, err := s.Size(SizingInput{
		Score:         6,
		Price:         decimal.NewFromInt(100),
		ATR:           4,
		Equity:        decimal.NewFromInt(100_000),
		BuyingPower:   decimal.NewFromInt(100_000),
		InsiderCount:  1,
		Tier:          2,
		ScalingFactor: 1,
		GapMultiplier: 1,
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if out.Variant != VariantTight {
		t.Fatalf("variant=%s want tight", out.Variant)
	}
	if !out.Shares.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("shares=%s want=750", out.Shares)
	}
	if !out.StopLoss.Equal(decimal.NewFromInt(98)) {
		t.Fatalf("stop=%s want=98", out.StopLoss)
	}
	if len(out.Clamps) != 0 {
		t.Fatalf("clamps=%v want none", out.Clamps)
	}
}

func TestSizeBuyingPowerCap(t *testing.T) {
	s := &Sizer{}
	out, err := s.Size(SizingInput{
		Score:       8,
		Price:       decimal.NewFromInt(100),
		ATR:         4,
		Equity:      decimal.NewFromInt(100_000),
		BuyingPower: decimal.NewFromInt(100_000),
		Variant:     VariantTight,
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !out.Shares.Equal(decimal.NewFromInt(950)) {
		t.Fatalf("shares=%s want=950", out.Shares)
	}
	if len(out.Clamps) != 1 || out.Clamps[0] != "buying_power_cap" {
		t.Fatalf("clamps=%v", out.Clamps)
	}
}

func TestSizeMinNotional(t *testing.T) {
	s := &Sizer{}
	out, err := s.Size(SizingInput{
		Score:       5,
		Price:       decimal.NewFromInt(1000),
		ATR:         1000,
		Equity:      decimal.NewFromInt(50),
		BuyingPower: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !out.Shares.Equal(decimal.RequireFromString("0.002")) {
		t.Fatalf("shares=%s want=0.002", out.Shares)
	}
	if out.Clamps[0] != "min_notional" {
		t.Fatalf("clamps=%v want min_notional", out.Clamps)
	}
}

func TestRiskFractionCeilingBeforeMultipliers(t *testing.T) {
	s := &Sizer{}
	in := SizingInput{Score: 9, ScalingFactor: 1.5, InsiderCount: 4, GapMultiplier: 1}
	if got := s.RiskFraction(in); math.Abs(got-0.02) > 1e-12 {
		t.Fatalf("fraction=%v want=0.02", got)
	}
	in.Tier = 4
	in.GapMultiplier = 0.25
	if got := s.RiskFraction(in); math.Abs(got-0.00125) > 1e-12 {
		t.Fatalf("fraction=%v want=0.00125", got)
	}
}

func TestRiskNeverExceedsCeiling(t *testing.T) {
	s := &Sizer{}
	for score := 0; score <= 10; score++ {
		for insiders := 1; insiders <= 5; insiders++ {
			for _, scale := range []float64{0.5, 1, 1.5, 2} {
				out, err := s.Size(SizingInput{
					Score:         score,
					Price:         decimal.NewFromInt(50),
					ATR:           3,
					Equity:        decimal.NewFromInt(1_000_000),
					BuyingPower:   decimal.NewFromInt(10_000_000),
					InsiderCount:  insiders,
					ScalingFactor: scale,
				})
				if err != nil {
					t.Fatalf("err=%v", err)
				}
				risk := out.StopDistance.Mul(out.Shares).Div(decimal.NewFromInt(1_000_000)).InexactFloat64()
				if risk > 0.02+1e-9 {
					t.Fatalf("score=%d insiders=%d scale=%v risk=%v", score, insiders, scale, risk)
				}
			}
		}
	}
}

func TestStopMultiplierOverrides(t *testing.T) {
	if got := StopMultiplier(VariantWide, true, 2); got != 0.5 {
		t.Fatalf("earnings got=%v want=0.5", got)
	}
	if got := StopMultiplier(VariantTight, true, 4); got != 1.5 {
		t.Fatalf("tier4 got=%v want=1.5", got)
	}
	if got := SelectVariant(7); got != VariantWide {
		t.Fatalf("variant=%s want wide", got)
	}
}

func TestTakeProfit(t *testing.T) {
	entry := decimal.NewFromInt(100)
	if tp := TakeProfit(entry, 4, 7, false); tp != nil {
		t.Fatalf("tp=%s want nil", tp)
	}
	tests := []struct {
		score    int
		earnings bool
		want     int64
	}{
		{6, false, 106},
		{6, true, 104},
		{5, false, 104},
		{5, true, 103},
	}
	for _, tt := range tests {
		tp := TakeProfit(entry, 4, tt.score, tt.earnings)
		if tp == nil || !tp.Equal(decimal.NewFromInt(tt.want)) {
			t.Fatalf("score=%d earnings=%v tp=%v want=%d", tt.score, tt.earnings, tp, tt.want)
		}
	}
}

func TestSizeRejectsBadInput(t *testing.T) {
	s := &Sizer{}
	_, err := s.Size(SizingInput{Score: 6, Price: decimal.NewFromInt(10), Equity: decimal.NewFromInt(1000), BuyingPower: decimal.NewFromInt(1000)})
	if !errors.Is(err, ErrInvalidSizingInput) {
		t.Fatalf("err=%v want ErrInvalidSizingInput", err)
	}
}

func TestConfiguredCeilingCannotExceedTwoPercent(t *testing.T) {
	s := &Sizer{Config: config.RiskConfig{BaseRiskPct: 1, MaxRiskPct: 5}}
	in := SizingInput{Score: 9, ScalingFactor: 2, InsiderCount: 4, GapMultiplier: 1}
	if got := s.RiskFraction(in); math.Abs(got-0.02) > 1e-12 {
		t.Fatalf("fraction=%v want=0.02", got)
	}
	lower := &Sizer{Config: config.RiskConfig{BaseRiskPct: 1, MaxRiskPct: 1.5}}
	if got := lower.RiskFraction(in); math.Abs(got-0.015) > 1e-12 {
		t.Fatalf("fraction=%v want=0.015", got)
	}
}

func TestSizeRefusesMinNotionalAboveCeiling(t *testing.T) {
	s := &Sizer{}
	_, err := s.Size(SizingInput{
		Score:       6,
		Price:       decimal.NewFromInt(10),
		ATR:         10,
		Equity:      decimal.NewFromInt(10),
		BuyingPower: decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrRiskAboveCeiling) {
		t.Fatalf("err=%v want ErrRiskAboveCeiling", err)
	}
}
