package models

import "time"

// MarketSnapshot is daily OHLCV plus trailing indicators for one symbol.
// ATR14 and AvgVolume30 only use bars dated on or before Date.
type MarketSnapshot struct {
	ID     uint64    `gorm:"primaryKey;autoIncrement"`
	Symbol string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_snapshot_symbol_date,priority:1"`
	Date   time.Time `gorm:"type:date;not null;uniqueIndex:idx_snapshot_symbol_date,priority:2"`

	Open   float64 `gorm:"not null"`
	High   float64 `gorm:"not null"`
	Low    float64 `gorm:"not null"`
	Close  float64 `gorm:"not null"`
	Volume float64 `gorm:"not null;default:0"`

	ATR14       float64 `gorm:"column:atr_14;not null;default:0"`
	AvgVolume30 float64 `gorm:"column:avg_volume_30;not null;default:0"`
	Source      string  `gorm:"type:varchar(40)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MarketSnapshot) TableName() string {
	return "market_snapshots"
}

func (s MarketSnapshot) DollarVolume() float64 {
	return s.AvgVolume30 * s.Close
}

func (s MarketSnapshot) ATRPercent() float64 {
	if s.Close <= 0 {
		return 0
	}
	return s.ATR14 / s.Close * 100
}
