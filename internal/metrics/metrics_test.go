package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCounters(t *testing.T) {
	r := New()
	r.Scored("BUY")
	r.GateBlocked("daily_trade_limit")
	r.FilingsIngested(3)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, want := range []string{
		`insiderbot_scores_total{decision="BUY"} 1`,
		`insiderbot_gate_blocks_total{reason="daily_trade_limit"} 1`,
		`insiderbot_filings_ingested_total 3`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.Scored("BUY")
	r.Order("buy", "ok")
	r.JobDuration("cycle", 1)
}
