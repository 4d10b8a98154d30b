package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

var ErrUnauthorized = errors.New("stream authorization failed")

type StreamOptions struct {
	URL               string
	KeyID             string
	SecretKey         string
	HeartbeatInterval time.Duration
	PingTimeout       time.Duration
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	Logger            *zap.Logger
}

// TradeStream follows the account's trade_updates and reconnects with backoff.
type TradeStream struct {
	opts StreamOptions
}

func NewTradeStream(opts StreamOptions) *TradeStream {
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 20 * time.Second
	}
	if opts.PingTimeout == 0 {
		opts.PingTimeout = 5 * time.Second
	}
	if opts.BackoffMin == 0 {
		opts.BackoffMin = 1 * time.Second
	}
	if opts.BackoffMax == 0 {
		opts.BackoffMax = 30 * time.Second
	}
	return &TradeStream{opts: opts}
}

// Run blocks until ctx is done. Authorization failures are returned since
// retrying cannot fix them.
func (s *TradeStream) Run(ctx context.Context, onUpdate func(TradeUpdate)) error {
	if s == nil || strings.TrimSpace(s.opts.URL) == "" {
		return fmt.Errorf("trade stream url not configured")
	}
	backoff := s.opts.BackoffMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, _, err := websocket.Dial(ctx, s.opts.URL, nil)
		if err != nil {
			s.warn("alpaca stream connect failed", err)
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, s.opts.BackoffMax)
			continue
		}
		conn.SetReadLimit(1 << 20)
		if err := s.subscribe(ctx, conn); err != nil {
			_ = conn.Close(websocket.StatusPolicyViolation, "subscribe failed")
			if errors.Is(err, ErrUnauthorized) {
				return err
			}
			s.warn("alpaca stream subscribe failed", err)
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, s.opts.BackoffMax)
			continue
		}
		if s.opts.Logger != nil {
			s.opts.Logger.Info("alpaca stream listening", zap.String("stream", "trade_updates"))
		}
		backoff = s.opts.BackoffMin

		err = s.consume(ctx, conn, onUpdate)
		_ = conn.Close(websocket.StatusNormalClosure, "reconnect")
		if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return ctx.Err()
		}
		s.warn("alpaca stream dropped", err)
		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, s.opts.BackoffMax)
	}
}

func (s *TradeStream) subscribe(ctx context.Context, conn *websocket.Conn) error {
	auth := map[string]any{"action": "auth", "key": s.opts.KeyID, "secret": s.opts.SecretKey}
	if err := writeJSON(ctx, conn, auth); err != nil {
		return err
	}
	msg, err := readMessage(ctx, conn)
	if err != nil {
		return err
	}
	if msg.Stream != "authorization" || msg.Data.Status != "authorized" {
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg.Data.Status)
	}
	listen := map[string]any{"action": "listen", "data": map[string]any{"streams": []string{"trade_updates"}}}
	if err := writeJSON(ctx, conn, listen); err != nil {
		return err
	}
	msg, err = readMessage(ctx, conn)
	if err != nil {
		return err
	}
	if msg.Stream != "listening" {
		return fmt.Errorf("unexpected listen reply %q", msg.Stream)
	}
	return nil
}

func (s *TradeStream) consume(ctx context.Context, conn *websocket.Conn, onUpdate func(TradeUpdate)) error {
	heartbeatErr := make(chan error, 1)
	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(s.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				return
			case <-ticker.C:
				pingCtx, cancelPing := context.WithTimeout(heartbeatCtx, s.opts.PingTimeout)
				err := conn.Ping(pingCtx)
				cancelPing()
				if err != nil {
					heartbeatErr <- err
					cancel()
					return
				}
			}
		}
	}()

	for {
		msg, err := readMessage(heartbeatCtx, conn)
		if err != nil {
			select {
			case herr := <-heartbeatErr:
				return herr
			default:
			}
			return err
		}
		if msg.Stream != "trade_updates" {
			continue
		}
		if onUpdate != nil {
			onUpdate(msg.Data.TradeUpdate)
		}
	}
}

func (s *TradeStream) warn(msg string, err error) {
	if s.opts.Logger != nil {
		s.opts.Logger.Warn(msg, zap.Error(err))
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

// readMessage accepts text and binary frames; the trading stream sends binary.
func readMessage(ctx context.Context, conn *websocket.Conn) (streamMessage, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return streamMessage{}, err
	}
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return streamMessage{}, fmt.Errorf("decode stream message: %w", err)
	}
	return msg, nil
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(base/2) + 1))
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
