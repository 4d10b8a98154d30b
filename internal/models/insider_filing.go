package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TransactionPurchase = "P"
	TransactionSale     = "S"

	OwnershipDirect   = "D"
	OwnershipIndirect = "I"
)

var ErrInvalidFiling = errors.New("invalid filing")

// InsiderFiling is one Form 4 transaction. It is written once and never updated.
type InsiderFiling struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	FilingID string `gorm:"type:varchar(200);not null;uniqueIndex"`

	Symbol      string `gorm:"type:varchar(16);not null;index:idx_filing_symbol_date,priority:1"`
	CompanyName string `gorm:"type:varchar(200)"`
	CompanyCIK  string `gorm:"column:company_cik;type:varchar(20);index"`

	InsiderName  string `gorm:"type:varchar(200);not null;index"`
	InsiderTitle string `gorm:"type:varchar(200)"`

	TransactionDate time.Time `gorm:"type:date;not null;index:idx_filing_symbol_date,priority:2"`
	TransactionCode string    `gorm:"type:varchar(4);not null;index"`

	Shares           decimal.Decimal `gorm:"type:numeric(30,6);not null;default:0"`
	PricePerShare    decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	TotalValue       decimal.Decimal `gorm:"type:numeric(30,2);not null;default:0"`
	OwnershipType    string          `gorm:"type:varchar(1);not null;default:'D'"`
	SharesOwnedAfter decimal.Decimal `gorm:"type:numeric(30,6);not null;default:0"`

	FilingDate        time.Time      `gorm:"type:date;not null;index"`
	FirstTimePurchase bool           `gorm:"not null;default:false"`
	AccessionNumber   string         `gorm:"type:varchar(40);index"`
	Raw               datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (InsiderFiling) TableName() string {
	return "insider_filings"
}

// FilingInput carries parsed Form 4 fields before validation.
type FilingInput struct {
	FilingID          string
	Symbol            string
	CompanyName       string
	CompanyCIK        string
	InsiderName       string
	InsiderTitle      string
	TransactionDate   time.Time
	TransactionCode   string
	Shares            decimal.Decimal
	PricePerShare     decimal.Decimal
	OwnershipType     string
	SharesOwnedAfter  decimal.Decimal
	FilingDate        time.Time
	FirstTimePurchase bool
	AccessionNumber   string
	Raw               datatypes.JSON
}

func NewInsiderFiling(in FilingInput) (InsiderFiling, error) {
	f := InsiderFiling{
		FilingID:          strings.TrimSpace(in.FilingID),
		Symbol:            strings.ToUpper(strings.TrimSpace(in.Symbol)),
		CompanyName:       strings.TrimSpace(in.CompanyName),
		CompanyCIK:        strings.TrimSpace(in.CompanyCIK),
		InsiderName:       strings.TrimSpace(in.InsiderName),
		InsiderTitle:      strings.TrimSpace(in.InsiderTitle),
		TransactionDate:   truncateDay(in.TransactionDate),
		TransactionCode:   strings.ToUpper(strings.TrimSpace(in.TransactionCode)),
		Shares:            in.Shares,
		PricePerShare:     in.PricePerShare,
		OwnershipType:     strings.ToUpper(strings.TrimSpace(in.OwnershipType)),
		SharesOwnedAfter:  in.SharesOwnedAfter,
		FilingDate:        truncateDay(in.FilingDate),
		FirstTimePurchase: in.FirstTimePurchase,
		AccessionNumber:   strings.TrimSpace(in.AccessionNumber),
		Raw:               in.Raw,
	}
	if f.OwnershipType == "" {
		f.OwnershipType = OwnershipDirect
	}
	if f.FilingDate.IsZero() {
		f.FilingDate = f.TransactionDate
	}
	if err := f.Normalize(); err != nil {
		return InsiderFiling{}, err
	}
	return f, nil
}

// Normalize validates the record and recomputes TotalValue from shares and price.
func (f *InsiderFiling) Normalize() error {
	if f == nil {
		return fmt.Errorf("%w: nil", ErrInvalidFiling)
	}
	switch {
	case f.FilingID == "":
		return fmt.Errorf("%w: filing id required", ErrInvalidFiling)
	case f.Symbol == "":
		return fmt.Errorf("%w: symbol required", ErrInvalidFiling)
	case f.InsiderName == "":
		return fmt.Errorf("%w: insider name required", ErrInvalidFiling)
	case f.TransactionDate.IsZero():
		return fmt.Errorf("%w: transaction date required", ErrInvalidFiling)
	case f.Shares.IsNegative():
		return fmt.Errorf("%w: negative shares", ErrInvalidFiling)
	case f.PricePerShare.IsNegative():
		return fmt.Errorf("%w: negative price", ErrInvalidFiling)
	case f.OwnershipType != OwnershipDirect && f.OwnershipType != OwnershipIndirect:
		return fmt.Errorf("%w: ownership type %q", ErrInvalidFiling, f.OwnershipType)
	}
	f.TotalValue = f.Shares.Mul(f.PricePerShare).Round(2)
	return nil
}

func (f *InsiderFiling) BeforeSave(_ *gorm.DB) error {
	return f.Normalize()
}

func (f InsiderFiling) IsPurchase() bool {
	return f.TransactionCode == TransactionPurchase
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
