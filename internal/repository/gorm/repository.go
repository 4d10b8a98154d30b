package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- filings ----------------------------------------------------------------

func (s *Store) InsertFilings(ctx context.Context, items []models.InsiderFiling) (int64, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "filing_id"}},
			DoNothing: true,
		}).
		CreateInBatches(items, 200)
	return res.RowsAffected, res.Error
}

func (s *Store) GetFilingByFilingID(ctx context.Context, filingID string) (*models.InsiderFiling, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	filingID = strings.TrimSpace(filingID)
	if filingID == "" {
		return nil, nil
	}
	var item models.InsiderFiling
	err := s.db.WithContext(ctx).Where("filing_id = ?", filingID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListUnscoredPurchases(ctx context.Context, limit int) ([]models.InsiderFiling, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.InsiderFiling
	err := s.db.WithContext(ctx).
		Model(&models.InsiderFiling{}).
		Joins("LEFT JOIN strategy_scores s ON s.filing_id = insider_filings.filing_id").
		Where("s.filing_id IS NULL").
		Where("insider_filings.transaction_code = ?", models.TransactionPurchase).
		Order("insider_filings.filing_date asc").
		Order("insider_filings.filing_id asc").
		Limit(normalizeLimit(limit, 200)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPurchasesBySymbolDate(ctx context.Context, symbol string, date time.Time) ([]models.InsiderFiling, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || date.IsZero() {
		return nil, nil
	}
	var items []models.InsiderFiling
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Where("transaction_code = ?", models.TransactionPurchase).
		Where("transaction_date = ?", dayOf(date)).
		Order("filing_id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) HasRecentPurchase(ctx context.Context, filing models.InsiderFiling, window time.Duration) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	end := dayOf(filing.TransactionDate)
	start := end.Add(-window)
	query := s.db.WithContext(ctx).
		Model(&models.InsiderFiling{}).
		Where("insider_name = ?", filing.InsiderName).
		Where("symbol = ?", filing.Symbol).
		Where("transaction_code = ?", models.TransactionPurchase).
		Where("transaction_date >= ? AND transaction_date <= ?", start, end).
		Where("filing_id <> ?", filing.FilingID)
	if acc := strings.TrimSpace(filing.AccessionNumber); acc != "" {
		query = query.Where("accession_number <> ?", acc)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

func (s *Store) ListFilings(ctx context.Context, params repository.ListFilingsParams) ([]models.InsiderFiling, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyFilingFilters(s.db.WithContext(ctx).Model(&models.InsiderFiling{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "filing_date")
	var items []models.InsiderFiling
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountFilings(ctx context.Context, params repository.ListFilingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := applyFilingFilters(s.db.WithContext(ctx).Model(&models.InsiderFiling{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyFilingFilters(query *gorm.DB, params repository.ListFilingsParams) *gorm.DB {
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.ToUpper(strings.TrimSpace(*params.Symbol)))
	}
	if params.InsiderName != nil && strings.TrimSpace(*params.InsiderName) != "" {
		query = query.Where("insider_name ILIKE ?", "%"+strings.TrimSpace(*params.InsiderName)+"%")
	}
	if params.TransactionCode != nil && strings.TrimSpace(*params.TransactionCode) != "" {
		query = query.Where("transaction_code = ?", strings.ToUpper(strings.TrimSpace(*params.TransactionCode)))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("filing_date >= ?", dayOf(*params.Since))
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("filing_date <= ?", dayOf(*params.Until))
	}
	return query
}

func (s *Store) IsDocumentProcessed(ctx context.Context, accession string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	accession = strings.TrimSpace(accession)
	if accession == "" {
		return false, nil
	}
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.ProcessedDocument{}).
		Where("accession_number = ?", accession).
		Count(&total).Error
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

func (s *Store) MarkDocumentProcessed(ctx context.Context, item *models.ProcessedDocument) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.AccessionNumber) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "accession_number"}},
		DoNothing: true,
	}).Create(item).Error
}

// --- market data ------------------------------------------------------------

func (s *Store) GetMarketSnapshot(ctx context.Context, symbol string, date time.Time) (*models.MarketSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.MarketSnapshot
	err := s.db.WithContext(ctx).
		Where("symbol = ?", strings.ToUpper(strings.TrimSpace(symbol))).
		Where("date = ?", dayOf(date)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertMarketSnapshot(ctx context.Context, item *models.MarketSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Symbol = strings.ToUpper(strings.TrimSpace(item.Symbol))
	item.Date = dayOf(item.Date)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open",
			"high",
			"low",
			"close",
			"volume",
			"atr_14",
			"avg_volume_30",
			"source",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) InsertSpyCondition(ctx context.Context, item *models.SpyCondition) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListSpyConditions(ctx context.Context, limit int) ([]models.SpyCondition, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.SpyCondition
	if err := s.db.WithContext(ctx).
		Order("created_at desc").
		Limit(normalizeLimit(limit, 50)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- scores -----------------------------------------------------------------

func (s *Store) InsertStrategyScore(ctx context.Context, item *models.StrategyScore) (bool, error) {
	if s == nil || s.db == nil || item == nil {
		return false, nil
	}
	if strings.TrimSpace(item.FilingID) == "" {
		return false, nil
	}
	if item.LifecycleState == "" {
		item.LifecycleState = models.StateScored
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "filing_id"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetStrategyScoreByFilingID(ctx context.Context, filingID string) (*models.StrategyScore, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.StrategyScore
	err := s.db.WithContext(ctx).Where("filing_id = ?", strings.TrimSpace(filingID)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListStrategyScores(ctx context.Context, params repository.ListStrategyScoresParams) ([]models.StrategyScore, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyScoreFilters(s.db.WithContext(ctx).Model(&models.StrategyScore{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "analysis_date")
	var items []models.StrategyScore
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountStrategyScores(ctx context.Context, params repository.ListStrategyScoresParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := applyScoreFilters(s.db.WithContext(ctx).Model(&models.StrategyScore{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyScoreFilters(query *gorm.DB, params repository.ListStrategyScoresParams) *gorm.DB {
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.ToUpper(strings.TrimSpace(*params.Symbol)))
	}
	if params.Decision != nil && strings.TrimSpace(*params.Decision) != "" {
		query = query.Where("decision = ?", strings.ToUpper(strings.TrimSpace(*params.Decision)))
	}
	if params.LifecycleState != nil && strings.TrimSpace(*params.LifecycleState) != "" {
		query = query.Where("lifecycle_state = ?", strings.ToUpper(strings.TrimSpace(*params.LifecycleState)))
	}
	if params.MinScore != nil {
		query = query.Where("total_score >= ?", *params.MinScore)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("analysis_date >= ?", *params.Since)
	}
	return query
}

func (s *Store) UpdateScoreState(ctx context.Context, filingID string, state string, reason string) error {
	if s == nil || s.db == nil {
		return nil
	}
	filingID = strings.TrimSpace(filingID)
	if filingID == "" || strings.TrimSpace(state) == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.StrategyScore{}).
		Where("filing_id = ?", filingID).
		Updates(map[string]any{
			"lifecycle_state": state,
			"block_reason":    reason,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// --- trades -----------------------------------------------------------------

func (s *Store) InsertTrade(ctx context.Context, item *models.TradeRecord) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_order_id"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrDuplicate
	}
	return nil
}

func (s *Store) GetTrade(ctx context.Context, id uint64) (*models.TradeRecord, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.TradeRecord
	err := s.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListOpenTrades(ctx context.Context) ([]models.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.TradeRecord
	if err := s.db.WithContext(ctx).
		Where("exit_date IS NULL").
		Order("entry_date asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyTradeFilters(s.db.WithContext(ctx).Model(&models.TradeRecord{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "entry_date")
	var items []models.TradeRecord
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := applyTradeFilters(s.db.WithContext(ctx).Model(&models.TradeRecord{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyTradeFilters(query *gorm.DB, params repository.ListTradesParams) *gorm.DB {
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.ToUpper(strings.TrimSpace(*params.Symbol)))
	}
	if params.Open != nil {
		if *params.Open {
			query = query.Where("exit_date IS NULL")
		} else {
			query = query.Where("exit_date IS NOT NULL")
		}
	}
	if params.Tier != nil {
		query = query.Where("tier = ?", *params.Tier)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("entry_date >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("entry_date < ?", *params.Until)
	}
	return query
}

func (s *Store) CloseTrade(ctx context.Context, id uint64, exit repository.TradeExit) error {
	if s == nil || s.db == nil {
		return nil
	}
	if id == 0 {
		return gorm.ErrRecordNotFound
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trade models.TradeRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&trade, id).Error; err != nil {
			return err
		}
		if trade.ExitDate != nil {
			return repository.ErrTradeClosed
		}
		pnl, pct := realizedPnL(trade.EntryPrice, exit.Price, trade.Shares)
		exitDate := exit.Date
		if exitDate.IsZero() {
			exitDate = time.Now().UTC()
		}
		res := tx.Model(&models.TradeRecord{}).
			Where("id = ? AND exit_date IS NULL", id).
			Updates(map[string]any{
				"exit_date":   exitDate,
				"exit_price":  exit.Price,
				"exit_reason": exit.Reason,
				"pnl":         pnl,
				"pnl_pct":     pct,
				"updated_at":  time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrTradeClosed
		}
		return nil
	})
}

func realizedPnL(entry, exit, shares decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	pnl := exit.Sub(entry).Mul(shares).Round(2)
	if entry.IsZero() {
		return pnl, decimal.Zero
	}
	pct := exit.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100)).Round(4)
	return pnl, pct
}

func (s *Store) UpdateTradeEntryFill(ctx context.Context, clientOrderID string, price decimal.Decimal, shares decimal.Decimal) error {
	if s == nil || s.db == nil {
		return nil
	}
	clientOrderID = strings.TrimSpace(clientOrderID)
	if clientOrderID == "" || !price.IsPositive() || !shares.IsPositive() {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.TradeRecord{}).
		Where("client_order_id = ? AND exit_date IS NULL", clientOrderID).
		Updates(map[string]any{
			"entry_price":    price,
			"shares":         shares,
			"position_value": price.Mul(shares).Round(2),
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (s *Store) CountTradesSince(ctx context.Context, since time.Time, tier *int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TradeRecord{}).Where("entry_date >= ?", since)
	if tier != nil {
		query = query.Where("tier = ?", *tier)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListClosedTradesSince(ctx context.Context, since time.Time) ([]models.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.TradeRecord
	if err := s.db.WithContext(ctx).
		Where("exit_date IS NOT NULL").
		Where("exit_date >= ?", since).
		Order("exit_date asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) PerformanceSummary(ctx context.Context, since time.Time) (repository.PerformanceSummary, error) {
	out := repository.PerformanceSummary{TotalPnL: decimal.Zero}
	if s == nil || s.db == nil {
		return out, nil
	}
	var row struct {
		Total     int64           `gorm:"column:total"`
		Wins      int64           `gorm:"column:wins"`
		Losses    int64           `gorm:"column:losses"`
		TotalPnL  decimal.Decimal `gorm:"column:total_pnl"`
		AvgPnLPct float64         `gorm:"column:avg_pnl_pct"`
	}
	err := s.db.WithContext(ctx).
		Model(&models.TradeRecord{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0) AS wins,
			COALESCE(SUM(CASE WHEN pnl <= 0 THEN 1 ELSE 0 END), 0) AS losses,
			COALESCE(SUM(pnl), 0) AS total_pnl,
			COALESCE(AVG(pnl_pct), 0)::float8 AS avg_pnl_pct`).
		Where("exit_date IS NOT NULL").
		Where("exit_date >= ?", since).
		Scan(&row).Error
	if err != nil {
		return out, err
	}
	var open int64
	if err := s.db.WithContext(ctx).Model(&models.TradeRecord{}).Where("exit_date IS NULL").Count(&open).Error; err != nil {
		return out, err
	}
	out.TotalTrades = row.Total
	out.Wins = row.Wins
	out.Losses = row.Losses
	out.TotalPnL = row.TotalPnL
	out.AvgPnLPct = row.AvgPnLPct
	out.OpenTrades = open
	if row.Total > 0 {
		out.WinRate = float64(row.Wins) / float64(row.Total)
	}
	return out, nil
}

// --- queue ------------------------------------------------------------------

func (s *Store) InsertQueuedTrade(ctx context.Context, item *models.QueuedTrade) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.Status == "" {
		item.Status = models.QueueStatusQueued
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "filing_id"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrDuplicate
	}
	return nil
}

func (s *Store) ListQueuedTrades(ctx context.Context, status string, limit int) ([]models.QueuedTrade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.QueuedTrade{})
	if status = strings.ToUpper(strings.TrimSpace(status)); status != "" {
		query = query.Where("status = ?", status)
	}
	var items []models.QueuedTrade
	if err := query.
		Order("enhanced_score desc").
		Order("original_score desc").
		Order("queued_at asc").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ResolveQueuedTrade(ctx context.Context, queueID string, status string, note string, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	queueID = strings.TrimSpace(queueID)
	if queueID == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Model(&models.QueuedTrade{}).
		Where("queue_id = ? AND status = ?", queueID, models.QueueStatusQueued).
		Updates(map[string]any{
			"status":      status,
			"note":        note,
			"resolved_at": at,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// --- settings ---------------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "key")
	var items []models.SystemSetting
	if err := query.Limit(normalizeLimit(params.Limit, 500)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
