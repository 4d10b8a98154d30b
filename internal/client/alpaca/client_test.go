package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"nhooyr.io/websocket"

	"github.com/xampla/insider-bot/internal/config"
)

func newTestClient(url string) *Client {
	return New(config.AlpacaConfig{
		TradingURL:      url,
		DataURL:         url,
		KeyID:           "key",
		SecretKey:       "secret",
		Timeout:         5 * time.Second,
		BreakerFailures: 3,
		BreakerTimeout:  time.Minute,
	}, nil, time.UTC, nil, nil)
}

func TestAccountAndClock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("APCA-API-KEY-ID") != "key" || r.Header.Get("APCA-API-SECRET-KEY") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/v2/account":
			_, _ = w.Write([]byte(`{"id":"a1","status":"ACTIVE","equity":"100000.50","buying_power":"200000","cash":"100000.50"}`))
		case "/v2/clock":
			_, _ = w.Write([]byte(`{"timestamp":"2026-03-10T10:00:00-04:00","is_open":true,"next_open":"2026-03-11T09:30:00-04:00","next_close":"2026-03-10T16:00:00-04:00"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	acct, err := c.Account(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !acct.Equity.Equal(decimal.RequireFromString("100000.50")) || !acct.BuyingPower.Equal(decimal.NewFromInt(200000)) {
		t.Fatalf("account=%+v", acct)
	}
	clock, err := c.Clock(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !clock.IsOpen || clock.NextClose.UTC().Hour() != 20 {
		t.Fatalf("clock=%+v", clock)
	}
}

func TestSubmitOrder(t *testing.T) {
	var got OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		if got.Symbol == "BAD" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"asset not tradable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"o1","client_order_id":"` + got.ClientOrderID + `","symbol":"` + got.Symbol + `","side":"buy","status":"accepted","qty":"1.5","filled_avg_price":null}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	order, err := c.SubmitOrder(context.Background(), OrderRequest{Symbol: "zs", Qty: decimal.RequireFromString("1.5"), Side: SideBuy, ClientOrderID: "cid-1"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if order.ID != "o1" || order.ClientOrderID != "cid-1" {
		t.Fatalf("order=%+v", order)
	}
	if got.Type != "market" || got.TimeInForce != "day" || got.Symbol != "ZS" {
		t.Fatalf("request=%+v", got)
	}

	for i := 0; i < 5; i++ {
		_, err = c.SubmitOrder(context.Background(), OrderRequest{Symbol: "BAD", Qty: decimal.NewFromInt(1), Side: SideBuy})
		if !errors.Is(err, ErrOrderRejected) {
			t.Fatalf("err=%v want ErrOrderRejected", err)
		}
	}
}

func TestSessionOpenCloseAndLatestPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/bars"):
			if r.URL.Query().Get("timeframe") != "1Day" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"symbol":"SPY","bars":[
				{"t":"2026-03-10T04:00:00Z","o":503,"h":505,"l":500,"c":504,"v":1000},
				{"t":"2026-03-09T04:00:00Z","o":495,"h":499,"l":494,"c":498,"v":1000}]}`))
		case strings.HasSuffix(r.URL.Path, "/trades/latest"):
			_, _ = w.Write([]byte(`{"symbol":"SPY","trade":{"p":503.25,"s":100,"t":"2026-03-10T14:00:00Z"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.now = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }
	open, prev, err := c.SessionOpenClose(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if open != 503 || prev != 498 {
		t.Fatalf("open=%v prev=%v want 503/498", open, prev)
	}

	// Before today's bar exists the latest bar is the prior session.
	c.now = func() time.Time { return time.Date(2026, 3, 11, 11, 0, 0, 0, time.UTC) }
	open, prev, err = c.SessionOpenClose(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if open != 0 || prev != 504 {
		t.Fatalf("open=%v prev=%v want 0/504 before today's bar", open, prev)
	}
	px, err := c.LatestPrice(context.Background(), "spy")
	if err != nil || px != 503.25 {
		t.Fatalf("price=%v err=%v", px, err)
	}
}

func TestTradeStreamDeliversFills(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
		_ = conn.Write(ctx, websocket.MessageBinary, []byte(`{"stream":"authorization","data":{"status":"authorized","action":"authenticate"}}`))
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
		_ = conn.Write(ctx, websocket.MessageBinary, []byte(`{"stream":"listening","data":{"streams":["trade_updates"]}}`))
		_ = conn.Write(ctx, websocket.MessageBinary, []byte(`{"stream":"trade_updates","data":{"event":"fill","price":"101.5","qty":"2","order":{"id":"o1","client_order_id":"cid-1","symbol":"ZS","side":"buy","filled_qty":"2","filled_avg_price":"101.5"}}}`))
		<-ctx.Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := make(chan TradeUpdate, 1)
	stream := NewTradeStream(StreamOptions{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), KeyID: "k", SecretKey: "s"})
	done := make(chan error, 1)
	go func() {
		done <- stream.Run(ctx, func(u TradeUpdate) {
			got <- u
			cancel()
		})
	}()

	select {
	case u := <-got:
		if u.Event != "fill" || u.Order.ClientOrderID != "cid-1" || !u.Price.Equal(decimal.RequireFromString("101.5")) {
			t.Fatalf("update=%+v", u)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no trade update received")
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run err=%v want canceled", err)
	}
}
