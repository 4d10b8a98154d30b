package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/xampla/insider-bot/internal/classifier"
	"github.com/xampla/insider-bot/internal/config"
)

type Variant string

const (
	VariantTight Variant = "tight"
	VariantWide  Variant = "wide"
)

const (
	tightStopATR = 0.5
	wideStopATR  = 1.5
	shareDP      = 6
	// hardCeiling bounds per-trade risk whatever the config says.
	hardCeiling = 0.02
)

var (
	ErrInvalidSizingInput = errors.New("invalid sizing input")
	// ErrRiskAboveCeiling means the smallest order the broker takes would risk
	// more than the ceiling, so the trade is refused.
	ErrRiskAboveCeiling = errors.New("minimum order exceeds risk ceiling")

	minShares = decimal.New(1, -shareDP)
)

type SizingInput struct {
	Score         int
	Price         decimal.Decimal
	ATR           float64
	Equity        decimal.Decimal
	BuyingPower   decimal.Decimal
	Variant       Variant
	InsiderCount  int
	Tier          int
	ScalingFactor float64
	GapMultiplier float64
	Earnings      bool
}

type Sizing struct {
	Shares        decimal.Decimal
	StopLoss      decimal.Decimal
	StopDistance  decimal.Decimal
	RiskFraction  float64
	DollarRisk    decimal.Decimal
	PositionValue decimal.Decimal
	Variant       Variant
	Clamps        []string
}

// Sizer turns a scored signal into a share quantity and a stop.
type Sizer struct {
	Config config.RiskConfig
}

// SelectVariant picks the stop width from conviction before any overrides.
func SelectVariant(score int) Variant {
	if score >= 7 {
		return VariantWide
	}
	return VariantTight
}

// BaseRiskFraction is the per-trade risk before scaling and boosts.
func BaseRiskFraction(score int) float64 {
	switch {
	case score >= 8:
		return 0.020
	case score >= 6:
		return 0.015
	default:
		return 0.010
	}
}

// ClusterBoost is additive to the risk fraction with diminishing returns.
func ClusterBoost(insiders int) float64 {
	switch {
	case insiders >= 4:
		return 0.010
	case insiders == 3:
		return 0.0075
	case insiders == 2:
		return 0.005
	default:
		return 0
	}
}

func (s *Sizer) ceiling() float64 {
	if s != nil && s.Config.MaxRiskPct > 0 {
		return math.Min(s.Config.MaxRiskPct/100, hardCeiling)
	}
	return hardCeiling
}

func (s *Sizer) poolFraction() decimal.Decimal {
	if s != nil && s.Config.BuyingPowerCapPct > 0 {
		return decimal.NewFromFloat(s.Config.BuyingPowerCapPct / 100)
	}
	return decimal.NewFromFloat(0.95)
}

func (s *Sizer) minNotional() decimal.Decimal {
	if s != nil && s.Config.MinNotionalUSD > 0 {
		return decimal.NewFromFloat(s.Config.MinNotionalUSD)
	}
	return decimal.NewFromInt(2)
}

func (s *Sizer) tierMultiplier(tier int) float64 {
	if tier != classifier.Tier4 {
		return 1
	}
	if s != nil && s.Config.Tier4RiskMult > 0 {
		return s.Config.Tier4RiskMult
	}
	return 0.25
}

// RiskFraction combines base risk, scaling, cluster boost and the hard ceiling,
// then applies the gap and tier multipliers, which can only shrink it.
func (s *Sizer) RiskFraction(in SizingInput) float64 {
	scale := in.ScalingFactor
	if scale <= 0 {
		scale = 1
	}
	f := BaseRiskFraction(in.Score)*scale + ClusterBoost(in.InsiderCount)
	if ceil := s.ceiling(); f > ceil {
		f = ceil
	}
	gap := in.GapMultiplier
	if gap <= 0 || gap > 1 {
		gap = 1
	}
	return f * gap * s.tierMultiplier(in.Tier)
}

// StopMultiplier resolves the ATR multiple. Earnings season forces tight;
// tier 4 forces wide and wins over earnings.
func StopMultiplier(v Variant, earnings bool, tier int) float64 {
	m := tightStopATR
	if v == VariantWide {
		m = wideStopATR
	}
	if earnings {
		m = tightStopATR
	}
	if tier == classifier.Tier4 {
		m = wideStopATR
	}
	return m
}

func (s *Sizer) Size(in SizingInput) (Sizing, error) {
	if !in.Price.IsPositive() {
		return Sizing{}, fmt.Errorf("%w: price %s", ErrInvalidSizingInput, in.Price)
	}
	if !(in.ATR > 0) {
		return Sizing{}, fmt.Errorf("%w: atr %v", ErrInvalidSizingInput, in.ATR)
	}
	if !in.Equity.IsPositive() {
		return Sizing{}, fmt.Errorf("%w: equity %s", ErrInvalidSizingInput, in.Equity)
	}
	if in.BuyingPower.IsNegative() {
		return Sizing{}, fmt.Errorf("%w: buying power %s", ErrInvalidSizingInput, in.BuyingPower)
	}

	variant := in.Variant
	if variant == "" {
		variant = SelectVariant(in.Score)
	}
	mult := StopMultiplier(variant, in.Earnings, in.Tier)
	if mult == wideStopATR {
		variant = VariantWide
	} else {
		variant = VariantTight
	}

	frac := s.RiskFraction(in)
	dollarRisk := in.Equity.Mul(decimal.NewFromFloat(frac))
	stop := decimal.NewFromFloat(in.ATR * mult)
	// value = risk / (stop/price); shares = value/price = risk/stop.
	shares := dollarRisk.Div(stop).Round(shareDP)

	out := Sizing{
		StopDistance: stop,
		RiskFraction: frac,
		DollarRisk:   dollarRisk.Round(2),
		Variant:      variant,
	}

	pool := in.BuyingPower.Mul(s.poolFraction())
	if shares.Mul(in.Price).GreaterThan(pool) {
		shares = pool.Div(in.Price).Truncate(shareDP)
		out.Clamps = append(out.Clamps, "buying_power_cap")
	}
	floored := false
	if minN := s.minNotional(); shares.Mul(in.Price).LessThan(minN) {
		shares = minN.Div(in.Price).RoundCeil(shareDP)
		out.Clamps = append(out.Clamps, "min_notional")
		floored = true
	}
	if shares.Mul(in.Price).GreaterThan(in.BuyingPower) {
		shares = in.BuyingPower.Div(in.Price).Truncate(shareDP)
		out.Clamps = append(out.Clamps, "buying_power")
	}
	if shares.LessThan(minShares) {
		shares = minShares
		out.Clamps = append(out.Clamps, "share_floor")
		floored = true
	}
	// Only the minimum-order floors can raise risk above what frac allowed.
	if limit := in.Equity.Mul(decimal.NewFromFloat(s.ceiling())); floored && shares.Mul(stop).GreaterThan(limit) {
		return Sizing{}, fmt.Errorf("%w: risk %s on equity %s", ErrRiskAboveCeiling, shares.Mul(stop).Round(2), in.Equity)
	}

	out.Shares = shares
	out.PositionValue = shares.Mul(in.Price).Round(2)
	out.StopLoss = in.Price.Sub(stop)
	if floor := decimal.New(1, -2); out.StopLoss.LessThan(floor) {
		out.StopLoss = floor
	}
	out.StopLoss = out.StopLoss.Round(4)
	return out, nil
}

// TakeProfit returns nil for high-conviction trades, which ride to the EOD exit.
func TakeProfit(entry decimal.Decimal, atr float64, score int, earnings bool) *decimal.Decimal {
	var mult float64
	switch {
	case score >= 7:
		return nil
	case score >= 6:
		mult = 1.5
		if earnings {
			mult = 1.0
		}
	default:
		mult = 1.0
		if earnings {
			mult = 0.75
		}
	}
	if !(atr > 0) || !entry.IsPositive() {
		return nil
	}
	tp := entry.Add(decimal.NewFromFloat(atr * mult)).Round(4)
	return &tp
}
