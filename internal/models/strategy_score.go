package models

import "time"

const (
	DecisionBuy  = "BUY"
	DecisionPass = "PASS"
	DecisionSkip = "SKIP"

	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// Lifecycle states of a scored filing.
const (
	StateScored      = "SCORED"
	StateGateBlocked = "GATE_BLOCKED"
	StateQueued      = "QUEUED"
	StateSizing      = "SIZING"
	StateOrdered     = "ORDERED"
	StateOpen        = "OPEN"
	StateClosed      = "CLOSED"
)

// StrategyScore is the single scoring result for one filing.
type StrategyScore struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	FilingID string `gorm:"type:varchar(200);not null;uniqueIndex"`
	Symbol   string `gorm:"type:varchar(16);not null;index"`

	TotalScore       int `gorm:"not null;default:0;index"`
	InsiderRoleScore int `gorm:"not null;default:0"`
	OwnershipScore   int `gorm:"not null;default:0"`
	SizeScore        int `gorm:"not null;default:0"`

	VolumeFilterPassed bool `gorm:"not null;default:false"`
	ATRFilterPassed    bool `gorm:"column:atr_filter_passed;not null;default:false"`
	SPYFilterPassed    bool `gorm:"column:spy_filter_passed;not null;default:false"`

	EarningsBonus     int  `gorm:"not null;default:0"`
	MultiInsiderBonus int  `gorm:"not null;default:0"`
	RepeatPurchase    bool `gorm:"not null;default:false"`

	RoleAdjustment  int    `gorm:"not null;default:0"`
	EnhancedScore   int    `gorm:"not null;default:0"`
	Excluded        bool   `gorm:"not null;default:false"`
	ExclusionReason string `gorm:"type:varchar(60)"`

	ClusterSize   int     `gorm:"not null;default:0"`
	Tier          int     `gorm:"not null;default:0"`
	Sector        string  `gorm:"type:varchar(60)"`
	GapPercent    float64 `gorm:"not null;default:0"`
	GapMultiplier float64 `gorm:"not null;default:1"`

	Decision   string `gorm:"type:varchar(8);not null;index"`
	Confidence string `gorm:"type:varchar(8);not null"`
	Reason     string `gorm:"type:text"`

	LifecycleState string `gorm:"type:varchar(20);not null;default:'SCORED';index"`
	BlockReason    string `gorm:"type:varchar(60)"`

	AnalysisDate time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt    time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (StrategyScore) TableName() string {
	return "strategy_scores"
}

func (s StrategyScore) IsBuy() bool {
	return s.Decision == DecisionBuy
}

func (s StrategyScore) Cluster() bool {
	return s.ClusterSize >= 2
}
