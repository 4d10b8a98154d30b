package risk

import (
	"testing"

	"github.com/shopspring/decimal"
)

func req(id string, enhanced int, shares int64) AllocationRequest {
	return AllocationRequest{
		FilingID:      id,
		Symbol:        id,
		Score:         enhanced,
		EnhancedScore: enhanced,
		Price:         decimal.NewFromInt(100),
		Shares:        decimal.NewFromInt(shares),
	}
}

func TestAllocateFitsUnchanged(t *testing.T) {
	a := &Allocator{}
	out := a.Allocate([]AllocationRequest{req("a", 6, 100), req("b", 8, 100)}, decimal.NewFromInt(100_000))
	if out.Summary.Rationed || out.Summary.Allocated != 2 {
		t.Fatalf("summary=%+v want 2 allocated", out.Summary)
	}
	if out.Items[0].Request.FilingID != "b" {
		t.Fatalf("first=%s want b", out.Items[0].Request.FilingID)
	}
}

func TestAllocateRationsByPriority(t *testing.T) {
	a := &Allocator{}
	out := a.Allocate([]AllocationRequest{
		req("d", 5, 10),
		req("b", 8, 30),
		req("a", 9, 60),
		req("c", 7, 20),
	}, decimal.NewFromInt(10_000))

	want := []struct {
		id     string
		status string
		shares int64
	}{
		{"a", AllocationFull, 60},
		{"b", AllocationFull, 30},
		{"c", AllocationPartial, 5},
		{"d", AllocationSkipped, 0},
	}
	for i, w := range want {
		it := out.Items[i]
		if it.Request.FilingID != w.id || it.Status != w.status || !it.Shares.Equal(decimal.NewFromInt(w.shares)) {
			t.Fatalf("item[%d]=%s/%s/%s want %s/%s/%d", i, it.Request.FilingID, it.Status, it.Shares, w.id, w.status, w.shares)
		}
	}
	s := out.Summary
	if s.Allocated != 2 || s.Partial != 1 || s.Skipped != 1 {
		t.Fatalf("summary=%+v", s)
	}
	if !s.Used.Equal(decimal.NewFromInt(9500)) || s.UtilizationPct != 95 {
		t.Fatalf("used=%s util=%v want 9500 and 95", s.Used, s.UtilizationPct)
	}
}
