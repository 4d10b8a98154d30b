package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/cache"
	"github.com/xampla/insider-bot/internal/models"
)

// SessionQuote is a benchmark feed: today's open and the prior session close.
type SessionQuote interface {
	SessionOpenClose(ctx context.Context, symbol string) (open float64, prevClose float64, err error)
}

// BenchmarkGapSource yields the inputs for the gap filter.
type BenchmarkGapSource interface {
	GapInputs(ctx context.Context) (GapInputs, error)
}

// HybridGapSource takes the previous close from Reference and today's open from Primary.
type HybridGapSource struct {
	Symbol    string
	Reference SessionQuote
	Primary   SessionQuote
	Logger    *zap.Logger
}

func (h *HybridGapSource) GapInputs(ctx context.Context) (GapInputs, error) {
	if h == nil {
		return GapInputs{}, ErrGapUnavailable
	}
	symbol := strings.ToUpper(strings.TrimSpace(h.Symbol))
	if symbol == "" {
		symbol = "SPY"
	}

	var refOpen, refClose float64
	var refErr error
	if h.Reference != nil {
		refOpen, refClose, refErr = h.Reference.SessionOpenClose(ctx, symbol)
	} else {
		refErr = errors.New("no reference feed")
	}
	var priOpen, priClose float64
	var priErr error
	if h.Primary != nil {
		priOpen, priClose, priErr = h.Primary.SessionOpenClose(ctx, symbol)
	} else {
		priErr = errors.New("no primary feed")
	}

	switch {
	case refErr == nil && priErr == nil && finitePositive(refClose) && finitePositive(priOpen):
		return GapInputs{Open: priOpen, PrevClose: refClose, Source: "reference_close+primary_open"}, nil
	case refErr == nil && finitePositive(refClose) && finitePositive(refOpen):
		h.warn("primary benchmark feed unavailable, using reference for both", priErr)
		return GapInputs{Open: refOpen, PrevClose: refClose, Source: "reference"}, nil
	case priErr == nil && finitePositive(priClose) && finitePositive(priOpen):
		h.warn("reference benchmark feed unavailable, using primary for both", refErr)
		return GapInputs{Open: priOpen, PrevClose: priClose, Source: "primary"}, nil
	default:
		return GapInputs{}, fmt.Errorf("%w: reference=%v primary=%v", ErrGapUnavailable, refErr, priErr)
	}
}

func (h *HybridGapSource) warn(msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn("market: "+msg, zap.Error(err))
	}
}

// ConditionRecorder persists gap evaluations.
type ConditionRecorder interface {
	InsertSpyCondition(ctx context.Context, item *models.SpyCondition) error
}

// Gateway evaluates the benchmark gap once per session date and caches the
// inputs. Before the regular open there is no gap to measure.
type Gateway struct {
	Source    BenchmarkGapSource
	Cache     cache.Store
	Recorder  ConditionRecorder
	Benchmark string
	Location  *time.Location
	Logger    *zap.Logger
	Now       func() time.Time
}

// Inputs returns the cached inputs for today's session or fetches fresh ones.
func (g *Gateway) Inputs(ctx context.Context) (GapInputs, error) {
	if g == nil || g.Source == nil {
		return GapInputs{}, ErrGapUnavailable
	}
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	if now.Before(RegularOpen(now, g.Location)) {
		return GapInputs{}, fmt.Errorf("%w: session not open yet", ErrGapUnavailable)
	}
	key := fmt.Sprintf("gap:%s:%s", strings.ToUpper(g.Benchmark), SessionDate(now, g.Location).Format("2006-01-02"))
	var cached GapInputs
	if ok, err := cache.GetJSON(ctx, g.Cache, key, &cached); err == nil && ok {
		return cached, nil
	}
	in, err := g.Source.GapInputs(ctx)
	g.record(ctx, now, in, err)
	if err != nil {
		return GapInputs{}, err
	}
	if err := cache.SetJSON(ctx, g.Cache, key, in, 12*time.Hour); err != nil && g.Logger != nil {
		g.Logger.Debug("market: gap cache write failed", zap.Error(err))
	}
	return in, nil
}

// Evaluate applies the gap filter for a symbol. Unavailable data allows trading at full size.
func (g *Gateway) Evaluate(ctx context.Context, tier int, tierKnown bool, cluster bool) GapDecision {
	in, err := g.Inputs(ctx)
	if err != nil {
		if g != nil && g.Logger != nil {
			g.Logger.Warn("market: gap inputs unavailable, allowing", zap.Error(err))
		}
		return GapDecision{Allowed: true, Multiplier: 1.0, Reason: "benchmark gap unavailable, allowing"}
	}
	return EvaluateGap(in, tier, tierKnown, cluster)
}

func (g *Gateway) record(ctx context.Context, now time.Time, in GapInputs, err error) {
	if g.Recorder == nil {
		return
	}
	row := &models.SpyCondition{
		Benchmark:     strings.ToUpper(g.Benchmark),
		SessionDate:   SessionDate(now, g.Location),
		CurrentOpen:   in.Open,
		PreviousClose: in.PrevClose,
		Source:        in.Source,
		Available:     err == nil,
	}
	if gap, ok := in.percent(); ok {
		row.GapPercent = gap
	}
	if err != nil {
		row.Reason = err.Error()
	}
	if rerr := g.Recorder.InsertSpyCondition(ctx, row); rerr != nil && g.Logger != nil {
		g.Logger.Warn("market: record spy condition failed", zap.Error(rerr))
	}
}
