package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	QueueStatusQueued   = "QUEUED"
	QueueStatusExecuted = "EXECUTED"
	QueueStatusExpired  = "EXPIRED"

	// QueueStatusCancelled is set when a due entry fails its re-check at the open.
	QueueStatusCancelled = "CANCELLED"
)

// QueuedTrade defers a BUY to the next session open. It is valid for that one
// open only; once a later open becomes "next" it expires.
type QueuedTrade struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	QueueID  string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Symbol   string `gorm:"type:varchar(16);not null;index"`
	FilingID string `gorm:"type:varchar(200);not null;uniqueIndex"`

	OriginalScore int            `gorm:"not null"`
	EnhancedScore int            `gorm:"not null"`
	Cluster       bool           `gorm:"not null;default:false"`
	Signal        datatypes.JSON `gorm:"type:jsonb"`

	QueuedAt     time.Time  `gorm:"type:timestamptz;not null"`
	ScheduledFor time.Time  `gorm:"type:timestamptz;not null;index"`
	Status       string     `gorm:"type:varchar(12);not null;default:'QUEUED';index"`
	ResolvedAt   *time.Time `gorm:"type:timestamptz"`
	Note         string     `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (QueuedTrade) TableName() string {
	return "queued_trades"
}
