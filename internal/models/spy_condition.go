package models

import "time"

// SpyCondition records one benchmark gap evaluation for audit.
type SpyCondition struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	Benchmark     string    `gorm:"type:varchar(16);not null"`
	SessionDate   time.Time `gorm:"type:date;not null;index"`
	CurrentOpen   float64   `gorm:"not null;default:0"`
	PreviousClose float64   `gorm:"not null;default:0"`
	GapPercent    float64   `gorm:"not null;default:0"`
	Source        string    `gorm:"type:varchar(40)"`
	Available     bool      `gorm:"not null;default:false"`
	Reason        string    `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (SpyCondition) TableName() string {
	return "spy_conditions"
}
