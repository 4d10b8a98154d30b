package db

import (
	"github.com/xampla/insider-bot/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.InsiderFiling{},
		&models.MarketSnapshot{},
		&models.StrategyScore{},
		&models.TradeRecord{},
		&models.QueuedTrade{},
		&models.SpyCondition{},
		&models.ProcessedDocument{},
		&models.SystemSetting{},
	)
}
