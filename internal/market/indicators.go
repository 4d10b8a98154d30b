package market

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/xampla/insider-bot/internal/models"
)

const (
	atrPeriod    = 14
	volumePeriod = 30
)

var (
	ErrNotAvailable = errors.New("market data not available")
	ErrNoBars       = fmt.Errorf("%w: no bars on or before requested date", ErrNotAvailable)
)

// Bar is one daily OHLCV candle.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// BuildSnapshot derives the snapshot for asOf. Bars dated after asOf are dropped
// before any indicator is computed.
func BuildSnapshot(symbol string, bars []Bar, asOf time.Time, source string) (*models.MarketSnapshot, error) {
	cutoff := dayKey(asOf)
	usable := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if dayKey(b.Date) > cutoff {
			continue
		}
		if !(b.Close > 0) || math.IsInf(b.Close, 0) {
			continue
		}
		usable = append(usable, b)
	}
	if len(usable) == 0 {
		return nil, ErrNoBars
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].Date.Before(usable[j].Date) })

	last := usable[len(usable)-1]
	y, m, d := last.Date.Date()
	return &models.MarketSnapshot{
		Symbol:      strings.ToUpper(strings.TrimSpace(symbol)),
		Date:        time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Open:        last.Open,
		High:        last.High,
		Low:         last.Low,
		Close:       last.Close,
		Volume:      last.Volume,
		ATR14:       ATR(usable, atrPeriod),
		AvgVolume30: AverageVolume(usable, volumePeriod),
		Source:      source,
	}, nil
}

// ATR is the mean true range of the last period bars. It is zero when fewer than
// period+1 bars exist, which fails the ATR filter downstream.
func ATR(bars []Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}
	trs := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			trs[i] = b.High - b.Low
			continue
		}
		prev := bars[i-1].Close
		trs[i] = math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
	}
	var sum float64
	for _, tr := range trs[len(trs)-period:] {
		sum += tr
	}
	return sum / float64(period)
}

func AverageVolume(bars []Bar, period int) float64 {
	if len(bars) == 0 || period <= 0 {
		return 0
	}
	window := bars
	if len(window) > period {
		window = window[len(window)-period:]
	}
	var sum float64
	for _, b := range window {
		sum += b.Volume
	}
	return sum / float64(len(window))
}

func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
