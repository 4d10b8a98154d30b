package market

import (
	"errors"
	"math"
	"testing"
	"time"
)

func flatBars(n int, start time.Time) []Bar {
	out := make([]Bar, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   100,
			High:   102,
			Low:    98,
			Close:  100,
			Volume: 1_000_000,
		})
	}
	return out
}

func TestBuildSnapshotIgnoresFutureBars(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(20, start)
	// A wild bar after asOf must not move the indicators.
	bars = append(bars, Bar{Date: start.AddDate(0, 0, 25), Open: 100, High: 500, Low: 1, Close: 300, Volume: 9e9})

	snap, err := BuildSnapshot("aapl", bars, start.AddDate(0, 0, 19), "test")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if snap.Symbol != "AAPL" {
		t.Fatalf("symbol=%q want AAPL", snap.Symbol)
	}
	if !snap.Date.Equal(start.AddDate(0, 0, 19)) {
		t.Fatalf("date=%v", snap.Date)
	}
	if math.Abs(snap.ATR14-4) > 1e-9 {
		t.Fatalf("atr=%v want=4", snap.ATR14)
	}
	if snap.AvgVolume30 != 1_000_000 {
		t.Fatalf("avgvol=%v want=1e6", snap.AvgVolume30)
	}
	if snap.Close != 100 {
		t.Fatalf("close=%v want=100", snap.Close)
	}
}

func TestATRUsesPreviousClose(t *testing.T) {
	bars := flatBars(15, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	// Gap up: high-low is 2 but distance from prior close is 12.
	bars[14] = Bar{Date: bars[14].Date, Open: 111, High: 112, Low: 110, Close: 111}
	got := ATR(bars, 14)
	want := (13*4.0 + 12) / 14
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("atr=%v want=%v", got, want)
	}
}

func TestATRNeedsEnoughBars(t *testing.T) {
	if got := ATR(flatBars(14, time.Now()), 14); got != 0 {
		t.Fatalf("atr=%v want=0", got)
	}
}

func TestBuildSnapshotNoBars(t *testing.T) {
	bars := flatBars(3, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	_, err := BuildSnapshot("X", bars, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "")
	if !errors.Is(err, ErrNoBars) {
		t.Fatalf("err=%v want ErrNoBars", err)
	}
}
