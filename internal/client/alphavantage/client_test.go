package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/market"
)

func dailyJSON(days int, end time.Time) string {
	var parts []string
	for i := 0; i < days; i++ {
		d := end.AddDate(0, 0, -i)
		parts = append(parts, fmt.Sprintf(`"%s": {"1. open": "100.0", "2. high": "104.0", "3. low": "96.0", "4. close": "%d.0", "5. volume": "1000000"}`, d.Format("2006-01-02"), 100+i))
	}
	return `{"Meta Data": {"2. Symbol": "ZS"}, "Time Series (Daily)": {` + strings.Join(parts, ",") + `}}`
}

func newTestClient(url string, now time.Time) *Client {
	c := New(config.AlphaVanConfig{BaseURL: url, APIKey: "demo", Timeout: 5 * time.Second}, nil, time.UTC, nil, nil)
	c.now = func() time.Time { return now }
	return c
}

func TestSnapshotFromDailySeries(t *testing.T) {
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(dailyJSON(40, end)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, end.Add(12*time.Hour))
	snap, err := c.Snapshot(context.Background(), "zs", end.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(gotQuery, "function=TIME_SERIES_DAILY") || !strings.Contains(gotQuery, "outputsize=compact") {
		t.Fatalf("query=%s", gotQuery)
	}
	if snap.Symbol != "ZS" || snap.Close != 101 || snap.Source != Source {
		t.Fatalf("snapshot=%+v", snap)
	}
	if snap.AvgVolume30 != 1_000_000 || snap.ATR14 <= 0 {
		t.Fatalf("avgvol=%v atr=%v", snap.AvgVolume30, snap.ATR14)
	}
}

func TestSessionOpenClose(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(dailyJSON(3, today)))
	}))
	defer srv.Close()

	open, prev, err := newTestClient(srv.URL, today.Add(15*time.Hour)).SessionOpenClose(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if open != 100 || prev != 101 {
		t.Fatalf("open=%v prev=%v want 100/101", open, prev)
	}

	// Before today's bar is published the open is unknown but the prior close is not.
	open, prev, err = newTestClient(srv.URL, today.AddDate(0, 0, 1).Add(15*time.Hour)).SessionOpenClose(context.Background(), "SPY")
	if err != nil || open != 0 || prev != 100 {
		t.Fatalf("open=%v prev=%v err=%v want 0/100", open, prev, err)
	}
}

func TestErrorAndThrottleResponses(t *testing.T) {
	body := `{"Error Message": "Invalid API call."}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	c := newTestClient(srv.URL, time.Now())

	if _, err := c.DailyBars(context.Background(), "NOPE", false); !errors.Is(err, market.ErrNotAvailable) {
		t.Fatalf("err=%v want ErrNotAvailable", err)
	}
	body = `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`
	if _, err := c.DailyBars(context.Background(), "ZS", false); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err=%v want ErrRateLimited", err)
	}
}
