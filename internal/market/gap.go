package market

import (
	"errors"
	"fmt"
	"math"
)

const (
	mediumGapPct = 0.5
	largeGapPct  = 1.0
)

var ErrGapUnavailable = errors.New("benchmark gap inputs unavailable")

// GapInputs is today's benchmark open against the prior session close.
type GapInputs struct {
	Open      float64
	PrevClose float64
	Source    string
}

type GapDecision struct {
	GapPercent    float64
	Allowed       bool
	Multiplier    float64
	FilterApplied bool
	Reason        string
}

func (in GapInputs) percent() (float64, bool) {
	if !finitePositive(in.Open) || !finitePositive(in.PrevClose) {
		return 0, false
	}
	gap := (in.Open - in.PrevClose) / in.PrevClose * 100
	if math.IsNaN(gap) || math.IsInf(gap, 0) {
		return 0, false
	}
	return gap, true
}

// EvaluateGap applies the benchmark gap filter. tierKnown=false selects the coarse
// rule used when no tier information exists at all; tier 0 with tierKnown=true is
// an unclassified symbol.
func EvaluateGap(in GapInputs, tier int, tierKnown bool, cluster bool) GapDecision {
	gap, ok := in.percent()
	if !ok {
		return GapDecision{
			Allowed:    true,
			Multiplier: 1.0,
			Reason:     fmt.Sprintf("invalid gap inputs open=%v prev_close=%v, allowing", in.Open, in.PrevClose),
		}
	}
	abs := math.Abs(gap)
	out := GapDecision{GapPercent: gap, FilterApplied: true}

	if abs < mediumGapPct {
		out.Allowed = true
		out.Multiplier = 1.0
		out.FilterApplied = false
		out.Reason = fmt.Sprintf("gap %.2f%% normal", gap)
		return out
	}

	if !tierKnown {
		if abs < largeGapPct {
			return allow(out, 0.5, "gap %.2f%% medium, no tier info", gap)
		}
		return block(out, "gap %.2f%% large, no tier info", gap)
	}

	if abs < largeGapPct {
		switch {
		case (tier == 3 || tier == 4) && cluster:
			return allow(out, 1.0, "gap %.2f%% medium, tier %d cluster exception", gap, tier)
		default:
			return allow(out, 0.5, "gap %.2f%% medium, tier %d half risk", gap, tier)
		}
	}

	switch {
	case tier == 1 || tier == 2:
		return block(out, "gap %.2f%% large, tier %d blocked", gap, tier)
	case (tier == 3 || tier == 4) && cluster:
		return allow(out, 0.25, "gap %.2f%% large, tier %d cluster exception", gap, tier)
	case tier == 3 || tier == 4:
		return block(out, "gap %.2f%% large, tier %d without cluster", gap, tier)
	default:
		return block(out, "gap %.2f%% large, unclassified symbol", gap)
	}
}

func allow(out GapDecision, mult float64, format string, args ...any) GapDecision {
	out.Allowed = true
	out.Multiplier = mult
	out.Reason = fmt.Sprintf(format, args...)
	return out
}

func block(out GapDecision, format string, args ...any) GapDecision {
	out.Allowed = false
	out.Multiplier = 0
	out.Reason = fmt.Sprintf(format, args...)
	return out
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
