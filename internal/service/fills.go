package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/client/alpaca"
)

type FillStore interface {
	UpdateTradeEntryFill(ctx context.Context, clientOrderID string, price decimal.Decimal, shares decimal.Decimal) error
}

type TradeUpdateStream interface {
	Run(ctx context.Context, onUpdate func(alpaca.TradeUpdate)) error
}

// FillConsumer refines recorded entries with the broker's fills.
type FillConsumer struct {
	Repo   FillStore
	Stream TradeUpdateStream
	Logger *zap.Logger
}

func (c *FillConsumer) Run(ctx context.Context) error {
	if c == nil || c.Stream == nil || c.Repo == nil {
		return nil
	}
	return c.Stream.Run(ctx, func(u alpaca.TradeUpdate) {
		c.Handle(ctx, u)
	})
}

// Handle applies fill and partial_fill events of buy orders; other events are ignored.
func (c *FillConsumer) Handle(ctx context.Context, u alpaca.TradeUpdate) {
	if u.Event != "fill" && u.Event != "partial_fill" {
		return
	}
	if !strings.EqualFold(u.Order.Side, alpaca.SideBuy) || u.Order.ClientOrderID == "" {
		return
	}
	price, qty := u.Order.FilledAvgPrice, u.Order.FilledQty
	if !price.IsPositive() || !qty.IsPositive() {
		return
	}
	if err := c.Repo.UpdateTradeEntryFill(ctx, u.Order.ClientOrderID, price, qty); err != nil {
		if c.Logger != nil {
			c.Logger.Warn("fills: update entry failed", zap.String("client_order_id", u.Order.ClientOrderID), zap.Error(err))
		}
		return
	}
	if c.Logger != nil {
		c.Logger.Debug("fills: entry updated",
			zap.String("symbol", u.Order.Symbol),
			zap.String("event", u.Event),
			zap.String("price", price.String()),
			zap.String("qty", qty.String()),
		)
	}
}
