package market

import (
	"testing"
	"time"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestClassifyWindow(t *testing.T) {
	loc := newYork(t)
	at := func(day, hour, min int) time.Time {
		return time.Date(2026, time.March, day, hour, min, 0, 0, loc)
	}
	nextOpenTue := at(10, 9, 30)
	tests := []struct {
		name  string
		now   time.Time
		clock Clock
		want  Window
	}{
		{"open clock", at(10, 11, 0), Clock{IsOpen: true}, RegularHours},
		{"after close", at(9, 17, 5), Clock{NextOpen: nextOpenTue}, AfterHours},
		{"late night", at(9, 22, 0), Clock{NextOpen: nextOpenTue}, Overnight},
		{"early morning", at(10, 2, 0), Clock{NextOpen: nextOpenTue}, Overnight},
		{"premarket", at(10, 7, 45), Clock{NextOpen: nextOpenTue}, Premarket},
		{"holiday morning", at(10, 7, 45), Clock{NextOpen: at(11, 9, 30)}, Overnight},
	}
	for _, tt := range tests {
		if got := ClassifyWindow(tt.now, tt.clock, loc); got != tt.want {
			t.Fatalf("%s: window=%s want=%s", tt.name, got, tt.want)
		}
		if got := ClassifyWindow(tt.now, tt.clock, loc).Tradeable(); got != (tt.want == RegularHours) {
			t.Fatalf("%s: tradeable=%v", tt.name, got)
		}
	}
}

func TestInOpenDelay(t *testing.T) {
	loc := newYork(t)
	clock := Clock{IsOpen: true}
	if !InOpenDelay(time.Date(2026, 3, 10, 9, 40, 0, 0, loc), clock, 15*time.Minute, loc) {
		t.Fatalf("09:40 should be inside a 15m open delay")
	}
	if InOpenDelay(time.Date(2026, 3, 10, 9, 45, 0, 0, loc), clock, 15*time.Minute, loc) {
		t.Fatalf("09:45 should be outside a 15m open delay")
	}
	if InOpenDelay(time.Date(2026, 3, 10, 9, 40, 0, 0, loc), Clock{}, 15*time.Minute, loc) {
		t.Fatalf("closed market is never in open delay")
	}
}

func TestInEntryCutoff(t *testing.T) {
	loc := newYork(t)
	closeAt := time.Date(2026, 3, 10, 16, 0, 0, 0, loc)
	clock := Clock{IsOpen: true, NextClose: closeAt}
	if InEntryCutoff(time.Date(2026, 3, 10, 15, 40, 0, 0, loc), clock, 15*time.Minute) {
		t.Fatalf("15:40 should be before a 15m cutoff")
	}
	if !InEntryCutoff(time.Date(2026, 3, 10, 15, 55, 0, 0, loc), clock, 15*time.Minute) {
		t.Fatalf("15:55 should be inside a 15m cutoff")
	}
	if InEntryCutoff(time.Date(2026, 3, 10, 15, 55, 0, 0, loc), Clock{IsOpen: true}, 15*time.Minute) {
		t.Fatalf("unknown close never cuts off")
	}
}
