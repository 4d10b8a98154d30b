package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event kinds.
const (
	KindBuyDecision       = "buy_decision"
	KindTradeOpened       = "trade_opened"
	KindTradeClosed       = "trade_closed"
	KindGateBlocked       = "gate_blocked"
	KindAllocationSummary = "allocation_summary"
	KindQueueExpired      = "queue_expired"
	KindSystemStatus      = "system_status"
	KindScalingUpdate     = "scaling_update"
)

type Event struct {
	Kind   string         `json:"kind"`
	Title  string         `json:"title"`
	Fields map[string]any `json:"fields,omitempty"`
	At     time.Time      `json:"at"`
}

// Text renders the event as a plain multi-line message.
func (e Event) Text() string {
	var b strings.Builder
	b.WriteString(e.Title)
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, e.Fields[k])
	}
	return b.String()
}

// Sink delivers one event. Implementations must honor ctx.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to every sink in the background. Delivery failures
// are logged and never reach the caller.
type Dispatcher struct {
	Sinks   []Sink
	Timeout time.Duration
	Logger  *zap.Logger

	wg sync.WaitGroup
}

func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	if d == nil || len(d.Sinks) == 0 {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	for _, sink := range d.Sinks {
		if sink == nil {
			continue
		}
		sink := sink
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
			defer cancel()
			if err := sink.Send(sendCtx, ev); err != nil && d.Logger != nil {
				d.Logger.Warn("notify: send failed", zap.String("kind", ev.Kind), zap.String("sink", fmt.Sprintf("%T", sink)), zap.Error(err))
			}
		}()
	}
}

// Close waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
