package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/xampla/insider-bot/internal/models"
)

var (
	ErrDuplicate   = errors.New("duplicate record")
	ErrTradeClosed = errors.New("trade already closed")
)

type FilingRepository interface {
	// InsertFilings stores new filings and skips ones whose filing id already exists.
	InsertFilings(ctx context.Context, items []models.InsiderFiling) (int64, error)
	GetFilingByFilingID(ctx context.Context, filingID string) (*models.InsiderFiling, error)
	ListUnscoredPurchases(ctx context.Context, limit int) ([]models.InsiderFiling, error)
	ListPurchasesBySymbolDate(ctx context.Context, symbol string, date time.Time) ([]models.InsiderFiling, error)
	// HasRecentPurchase reports an earlier purchase by the same insider and symbol
	// within window of the filing's transaction date, ignoring the filing's own document.
	HasRecentPurchase(ctx context.Context, filing models.InsiderFiling, window time.Duration) (bool, error)
	ListFilings(ctx context.Context, params ListFilingsParams) ([]models.InsiderFiling, error)
	CountFilings(ctx context.Context, params ListFilingsParams) (int64, error)

	IsDocumentProcessed(ctx context.Context, accession string) (bool, error)
	MarkDocumentProcessed(ctx context.Context, item *models.ProcessedDocument) error
}

type MarketRepository interface {
	GetMarketSnapshot(ctx context.Context, symbol string, date time.Time) (*models.MarketSnapshot, error)
	UpsertMarketSnapshot(ctx context.Context, item *models.MarketSnapshot) error
	InsertSpyCondition(ctx context.Context, item *models.SpyCondition) error
	ListSpyConditions(ctx context.Context, limit int) ([]models.SpyCondition, error)
}

type ScoreRepository interface {
	// InsertStrategyScore reports inserted=false when a score for the filing already exists.
	InsertStrategyScore(ctx context.Context, item *models.StrategyScore) (bool, error)
	GetStrategyScoreByFilingID(ctx context.Context, filingID string) (*models.StrategyScore, error)
	ListStrategyScores(ctx context.Context, params ListStrategyScoresParams) ([]models.StrategyScore, error)
	CountStrategyScores(ctx context.Context, params ListStrategyScoresParams) (int64, error)
	UpdateScoreState(ctx context.Context, filingID string, state string, reason string) error
}

type TradeRepository interface {
	InsertTrade(ctx context.Context, item *models.TradeRecord) error
	GetTrade(ctx context.Context, id uint64) (*models.TradeRecord, error)
	ListOpenTrades(ctx context.Context) ([]models.TradeRecord, error)
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.TradeRecord, error)
	CountTrades(ctx context.Context, params ListTradesParams) (int64, error)
	// CloseTrade sets the exit fields once; a second call returns ErrTradeClosed.
	CloseTrade(ctx context.Context, id uint64, exit TradeExit) error
	UpdateTradeEntryFill(ctx context.Context, clientOrderID string, price decimal.Decimal, shares decimal.Decimal) error
	CountTradesSince(ctx context.Context, since time.Time, tier *int) (int64, error)
	ListClosedTradesSince(ctx context.Context, since time.Time) ([]models.TradeRecord, error)
	PerformanceSummary(ctx context.Context, since time.Time) (PerformanceSummary, error)
}

type QueueRepository interface {
	InsertQueuedTrade(ctx context.Context, item *models.QueuedTrade) error
	ListQueuedTrades(ctx context.Context, status string, limit int) ([]models.QueuedTrade, error)
	ResolveQueuedTrade(ctx context.Context, queueID string, status string, note string, at time.Time) error
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

// Repository is the single persisted source of truth for filings, scores, trades and queue.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	FilingRepository
	MarketRepository
	ScoreRepository
	TradeRepository
	QueueRepository
	SettingsRepository
}

type TradeExit struct {
	Date   time.Time
	Price  decimal.Decimal
	Reason string
}

type ListFilingsParams struct {
	Limit           int
	Offset          int
	Symbol          *string
	InsiderName     *string
	TransactionCode *string
	Since           *time.Time
	Until           *time.Time
	OrderBy         string
	Asc             *bool
}

type ListStrategyScoresParams struct {
	Limit          int
	Offset         int
	Symbol         *string
	Decision       *string
	LifecycleState *string
	MinScore       *int
	Since          *time.Time
	OrderBy        string
	Asc            *bool
}

type ListTradesParams struct {
	Limit   int
	Offset  int
	Symbol  *string
	Open    *bool
	Tier    *int
	Since   *time.Time
	Until   *time.Time
	OrderBy string
	Asc     *bool
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}

type PerformanceSummary struct {
	TotalTrades int64
	Wins        int64
	Losses      int64
	WinRate     float64
	TotalPnL    decimal.Decimal
	AvgPnLPct   float64
	OpenTrades  int64
}
