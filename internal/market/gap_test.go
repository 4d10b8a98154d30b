package market

import (
	"math"
	"testing"
)

func gapOf(pct float64) GapInputs {
	return GapInputs{PrevClose: 100, Open: 100 * (1 + pct/100)}
}

func TestEvaluateGapTable(t *testing.T) {
	tests := []struct {
		name      string
		in        GapInputs
		tier      int
		tierKnown bool
		cluster   bool
		allowed   bool
		mult      float64
		applied   bool
	}{
		{"flat", gapOf(0), 1, true, false, true, 1.0, false},
		{"small", gapOf(0.3), 1, true, false, true, 1.0, false},
		{"medium tier1", gapOf(0.75), 1, true, false, true, 0.5, true},
		{"medium tier2 negative", gapOf(-0.75), 2, true, true, true, 0.5, true},
		{"medium tier3 cluster", gapOf(0.75), 3, true, true, true, 1.0, true},
		{"medium tier4 no cluster", gapOf(0.75), 4, true, false, true, 0.5, true},
		{"medium unclassified", gapOf(0.75), 0, true, false, true, 0.5, true},
		{"large tier1", gapOf(1.5), 1, true, false, false, 0, true},
		{"large tier1 cluster", gapOf(1.5), 1, true, true, false, 0, true},
		{"large tier3 cluster", gapOf(1.5), 3, true, true, true, 0.25, true},
		{"large tier3 alone", gapOf(1.5), 3, true, false, false, 0, true},
		{"large tier4 cluster", gapOf(1.2), 4, true, true, true, 0.25, true},
		{"large unclassified cluster", gapOf(-2), 0, true, true, false, 0, true},
		{"no tier medium", gapOf(0.9), 0, false, false, true, 0.5, true},
		{"no tier large", gapOf(1.1), 0, false, true, false, 0, true},
		{"zero prev close", GapInputs{Open: 100, PrevClose: 0}, 1, true, false, true, 1.0, false},
		{"nan open", GapInputs{Open: math.NaN(), PrevClose: 100}, 1, true, false, true, 1.0, false},
		{"inf prev close", GapInputs{Open: 100, PrevClose: math.Inf(1)}, 1, true, false, true, 1.0, false},
	}
	for _, tt := range tests {
		got := EvaluateGap(tt.in, tt.tier, tt.tierKnown, tt.cluster)
		if got.Allowed != tt.allowed || got.Multiplier != tt.mult || got.FilterApplied != tt.applied {
			t.Fatalf("%s: got allowed=%v mult=%v applied=%v want allowed=%v mult=%v applied=%v",
				tt.name, got.Allowed, got.Multiplier, got.FilterApplied, tt.allowed, tt.mult, tt.applied)
		}
		if got.Reason == "" {
			t.Fatalf("%s: empty reason", tt.name)
		}
	}
}

func TestEvaluateGapPercent(t *testing.T) {
	got := EvaluateGap(GapInputs{Open: 101.2, PrevClose: 100}, 4, true, true)
	if math.Abs(got.GapPercent-1.2) > 1e-9 {
		t.Fatalf("gap=%v want=1.2", got.GapPercent)
	}
}
