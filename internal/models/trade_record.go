package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ExitStopLoss   = "STOP_LOSS"
	ExitTakeProfit = "TAKE_PROFIT"
	ExitEndOfDay   = "END_OF_DAY"
	ExitManual     = "MANUAL"
)

// TradeRecord is one position. It is open while ExitDate is nil and is closed exactly once.
type TradeRecord struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	FilingID string `gorm:"type:varchar(200);not null;index"`
	Symbol   string `gorm:"type:varchar(16);not null;index"`

	EntryDate     time.Time        `gorm:"type:timestamptz;not null;index"`
	EntryPrice    decimal.Decimal  `gorm:"type:numeric(20,6);not null"`
	Shares        decimal.Decimal  `gorm:"type:numeric(30,6);not null"`
	PositionValue decimal.Decimal  `gorm:"type:numeric(30,2);not null"`
	StopLoss      decimal.Decimal  `gorm:"type:numeric(20,6);not null"`
	TakeProfit    *decimal.Decimal `gorm:"type:numeric(20,6)"`

	ExitDate   *time.Time       `gorm:"type:timestamptz;index"`
	ExitPrice  *decimal.Decimal `gorm:"type:numeric(20,6)"`
	ExitReason string           `gorm:"type:varchar(20)"`
	PnL        *decimal.Decimal `gorm:"column:pnl;type:numeric(30,2)"`
	PnLPct     *decimal.Decimal `gorm:"column:pnl_pct;type:numeric(12,4)"`

	StrategyScore int             `gorm:"not null;default:0"`
	EnhancedScore int             `gorm:"not null;default:0"`
	Tier          int             `gorm:"not null;default:0;index"`
	Sector        string          `gorm:"type:varchar(60);index"`
	Cluster       bool            `gorm:"not null;default:false"`
	InsiderCount  int             `gorm:"not null;default:1"`
	RiskFraction  decimal.Decimal `gorm:"type:numeric(10,6);not null;default:0"`
	Partial       bool            `gorm:"not null;default:false"`

	OrderID       string `gorm:"type:varchar(64);index"`
	ClientOrderID string `gorm:"type:varchar(64);uniqueIndex"`
	DryRun        bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}

func (t TradeRecord) IsOpen() bool {
	return t.ExitDate == nil
}
