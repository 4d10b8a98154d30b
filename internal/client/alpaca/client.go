package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/httpclient"
	"github.com/xampla/insider-bot/internal/market"
	"github.com/xampla/insider-bot/internal/metrics"
)

var (
	ErrOrderRejected = errors.New("order rejected")
	ErrNoQuote       = errors.New("no quote")
)

type Client struct {
	tradingURL string
	dataURL    string
	keyID      string
	secretKey  string
	http       *http.Client
	breaker    *httpclient.Breaker
	metrics    *metrics.Recorder
	location   *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

func New(cfg config.AlpacaConfig, httpClient *http.Client, loc *time.Location, rec *metrics.Recorder, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = httpclient.New(cfg.Timeout)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		tradingURL: strings.TrimRight(cfg.TradingURL, "/"),
		dataURL:    strings.TrimRight(cfg.DataURL, "/"),
		keyID:      cfg.KeyID,
		secretKey:  cfg.SecretKey,
		http:       httpClient,
		breaker:    httpclient.NewBreaker("alpaca", cfg.BreakerFailures, cfg.BreakerTimeout, logger, rec.BreakerState),
		metrics:    rec,
		location:   loc,
		now:        time.Now,
		logger:     logger,
	}
}

func (c *Client) do(ctx context.Context, method, fullURL string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = raw
	}
	out, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("APCA-API-KEY-ID", c.keyID)
		req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return httpclient.Do(c.http, req)
	})
	if err != nil {
		c.metrics.Request("alpaca", "error")
		return nil, err
	}
	c.metrics.Request("alpaca", "ok")
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, fullURL string, dst any) error {
	body, err := c.do(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %s: %w", fullURL, err)
	}
	return nil
}

func (c *Client) Account(ctx context.Context) (Account, error) {
	var out Account
	err := c.getJSON(ctx, c.tradingURL+"/v2/account", &out)
	return out, err
}

func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var out []Position
	err := c.getJSON(ctx, c.tradingURL+"/v2/positions", &out)
	return out, err
}

func (c *Client) Clock(ctx context.Context) (market.Clock, error) {
	var out clockResponse
	if err := c.getJSON(ctx, c.tradingURL+"/v2/clock", &out); err != nil {
		return market.Clock{}, err
	}
	return market.Clock{Timestamp: out.Timestamp, IsOpen: out.IsOpen, NextOpen: out.NextOpen, NextClose: out.NextClose}, nil
}

// SubmitOrder places a day market order. Broker refusals wrap ErrOrderRejected.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if req.Type == "" {
		req.Type = "market"
	}
	if req.TimeInForce == "" {
		req.TimeInForce = "day"
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if !req.Qty.IsPositive() {
		return Order{}, fmt.Errorf("%w: qty %s", ErrOrderRejected, req.Qty)
	}
	body, err := c.do(ctx, http.MethodPost, c.tradingURL+"/v2/orders", req)
	if err != nil {
		var apiErr *httpclient.APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			c.metrics.Order(req.Side, "rejected")
			return Order{}, fmt.Errorf("%w: %v", ErrOrderRejected, err)
		}
		c.metrics.Order(req.Side, "error")
		return Order{}, err
	}
	var out Order
	if err := json.Unmarshal(body, &out); err != nil {
		return Order{}, fmt.Errorf("decode order: %w", err)
	}
	if out.Status == "rejected" || out.Status == "canceled" {
		c.metrics.Order(req.Side, "rejected")
		return out, fmt.Errorf("%w: status %s", ErrOrderRejected, out.Status)
	}
	c.metrics.Order(req.Side, "ok")
	return out, nil
}

// LatestPrice is the last trade price from the data API.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	var out latestTradeResponse
	u := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", c.dataURL, url.PathEscape(strings.ToUpper(symbol)))
	if err := c.getJSON(ctx, u, &out); err != nil {
		return 0, err
	}
	if !(out.Trade.Price > 0) {
		return 0, fmt.Errorf("%w: %s", ErrNoQuote, symbol)
	}
	return out.Trade.Price, nil
}

// DailyBars returns up to limit daily bars ending today, oldest first.
func (c *Client) DailyBars(ctx context.Context, symbol string, limit int) ([]market.Bar, error) {
	if limit <= 0 {
		limit = 2
	}
	q := url.Values{}
	q.Set("timeframe", "1Day")
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("start", time.Now().UTC().AddDate(0, 0, -limit*2-7).Format("2006-01-02"))
	q.Set("adjustment", "raw")
	u := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", c.dataURL, url.PathEscape(strings.ToUpper(symbol)), q.Encode())
	var out barsResponse
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	bars := make([]market.Bar, 0, len(out.Bars))
	for _, b := range out.Bars {
		bars = append(bars, market.Bar{Date: b.Timestamp, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// SessionOpenClose returns today's open and the previous session's close. The
// open is 0 until a bar for today's session exists, so a premarket call never
// passes yesterday's open off as today's.
func (c *Client) SessionOpenClose(ctx context.Context, symbol string) (float64, float64, error) {
	bars, err := c.DailyBars(ctx, symbol, 2)
	if err != nil {
		return 0, 0, err
	}
	if len(bars) == 0 {
		return 0, 0, fmt.Errorf("%w: no daily bars for %s", ErrNoQuote, symbol)
	}
	today := market.SessionDate(c.now(), c.location)
	last := bars[len(bars)-1]
	if !market.SessionDate(last.Date, c.location).Equal(today) {
		return 0, last.Close, nil
	}
	if len(bars) < 2 {
		return 0, 0, fmt.Errorf("%w: need 2 daily bars for %s, got %d", ErrNoQuote, symbol, len(bars))
	}
	return last.Open, bars[len(bars)-2].Close, nil
}
