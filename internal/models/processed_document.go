package models

import "time"

// ProcessedDocument marks an EDGAR accession as fetched so it is never downloaded twice.
type ProcessedDocument struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	AccessionNumber string `gorm:"type:varchar(40);not null;uniqueIndex"`
	Symbol          string `gorm:"type:varchar(16);index"`
	URL             string `gorm:"type:text"`
	Transactions    int    `gorm:"not null;default:0"`

	ProcessedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (ProcessedDocument) TableName() string {
	return "processed_documents"
}
