package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/httpclient"
	"github.com/xampla/insider-bot/internal/market"
	"github.com/xampla/insider-bot/internal/metrics"
	"github.com/xampla/insider-bot/internal/models"
)

const (
	Source     = "alphavantage"
	seriesKey  = "Time Series (Daily)"
	compactMax = 100
)

// ErrRateLimited is the free-tier "Note"/"Information" answer.
var ErrRateLimited = errors.New("alphavantage rate limited")

type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	breaker  *httpclient.Breaker
	metrics  *metrics.Recorder
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

func New(cfg config.AlphaVanConfig, httpClient *http.Client, loc *time.Location, rec *metrics.Recorder, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = httpclient.New(cfg.Timeout)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		http:     httpClient,
		breaker:  httpclient.NewBreaker("alphavantage", 5, time.Minute, logger, rec.BreakerState),
		metrics:  rec,
		location: loc,
		now:      time.Now,
		logger:   logger,
	}
}

// DailyBars returns daily candles oldest first. full requests the 20+ year
// history instead of the last 100 sessions.
func (c *Client) DailyBars(ctx context.Context, symbol string, full bool) ([]market.Bar, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", strings.ToUpper(strings.TrimSpace(symbol)))
	q.Set("apikey", c.apiKey)
	if full {
		q.Set("outputsize", "full")
	} else {
		q.Set("outputsize", "compact")
	}
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		body, err := httpclient.Do(c.http, req)
		if err != nil {
			return nil, err
		}
		// Throttling arrives as HTTP 200; surface it so the breaker counts it.
		if limited := rateLimitMessage(body); limited != "" {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, limited)
		}
		return body, nil
	})
	if err != nil {
		c.metrics.Request(Source, "error")
		return nil, err
	}
	c.metrics.Request(Source, "ok")
	return parseDaily(body)
}

// Snapshot builds the indicator snapshot as of asOf.
func (c *Client) Snapshot(ctx context.Context, symbol string, asOf time.Time) (*models.MarketSnapshot, error) {
	full := c.now().Sub(asOf) > (compactMax-40)*24*time.Hour
	bars, err := c.DailyBars(ctx, symbol, full)
	if err != nil {
		return nil, err
	}
	return market.BuildSnapshot(symbol, bars, asOf, Source)
}

// SessionOpenClose returns today's open (0 when today's bar is not published
// yet) and the close of the last session before today.
func (c *Client) SessionOpenClose(ctx context.Context, symbol string) (float64, float64, error) {
	bars, err := c.DailyBars(ctx, symbol, false)
	if err != nil {
		return 0, 0, err
	}
	today := market.SessionDate(c.now(), c.location).Format("2006-01-02")
	var open, prevClose float64
	for i := len(bars) - 1; i >= 0; i-- {
		d := bars[i].Date.Format("2006-01-02")
		if d == today {
			open = bars[i].Open
			continue
		}
		if d < today {
			prevClose = bars[i].Close
			break
		}
	}
	if prevClose <= 0 {
		return 0, 0, fmt.Errorf("%w: no prior close for %s", market.ErrNotAvailable, symbol)
	}
	return open, prevClose, nil
}

func rateLimitMessage(body []byte) string {
	var probe struct {
		Note        string `json:"Note"`
		Information string `json:"Information"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	if probe.Note != "" {
		return probe.Note
	}
	return probe.Information
}

func parseDaily(body []byte) ([]market.Bar, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode daily series: %w", err)
	}
	if msg, ok := raw["Error Message"]; ok {
		var text string
		_ = json.Unmarshal(msg, &text)
		return nil, fmt.Errorf("%w: %s", market.ErrNotAvailable, text)
	}
	series, ok := raw[seriesKey]
	if !ok {
		return nil, fmt.Errorf("%w: response has no %q", market.ErrNotAvailable, seriesKey)
	}
	var days map[string]map[string]string
	if err := json.Unmarshal(series, &days); err != nil {
		return nil, fmt.Errorf("decode daily series: %w", err)
	}
	bars := make([]market.Bar, 0, len(days))
	for date, fields := range days {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		b := market.Bar{Date: d}
		b.Open, _ = strconv.ParseFloat(fields["1. open"], 64)
		b.High, _ = strconv.ParseFloat(fields["2. high"], 64)
		b.Low, _ = strconv.ParseFloat(fields["3. low"], 64)
		b.Close, _ = strconv.ParseFloat(fields["4. close"], 64)
		b.Volume, _ = strconv.ParseFloat(fields["5. volume"], 64)
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}
