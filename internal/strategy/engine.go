package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/classifier"
	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/market"
	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/notify"
)

const ExclusionDirectorOnly = "director_only_exclusion"

var (
	sizeLarge  = decimal.NewFromInt(100_000)
	sizeMedium = decimal.NewFromInt(50_000)
)

type RepeatChecker interface {
	HasRecentPurchase(ctx context.Context, filing models.InsiderFiling, window time.Duration) (bool, error)
}

type ScoreStore interface {
	GetStrategyScoreByFilingID(ctx context.Context, filingID string) (*models.StrategyScore, error)
	InsertStrategyScore(ctx context.Context, item *models.StrategyScore) (bool, error)
}

type SnapshotSource interface {
	Snapshot(ctx context.Context, symbol string, asOf time.Time) (*models.MarketSnapshot, error)
}

type GapEvaluator interface {
	Evaluate(ctx context.Context, tier int, tierKnown bool, cluster bool) market.GapDecision
}

type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// Inputs is everything the scoring function needs; it does no I/O.
type Inputs struct {
	Filing        models.InsiderFiling
	Snapshot      models.MarketSnapshot
	Earnings      bool
	Repeat        bool
	OtherInsiders int
	ClusterSize   int
	Gap           market.GapDecision
	Tier          int
	Sector        string
	Now           time.Time
}

// Engine scores filings. Score is pure; Analyze gathers inputs and persists.
type Engine struct {
	Config     config.StrategyConfig
	Season     Season
	Repeats    RepeatChecker
	Scores     ScoreStore
	Snapshots  SnapshotSource
	Gap        GapEvaluator
	Clusters   *ClusterDetector
	Classifier classifier.Classifier
	Notifier   Notifier
	Logger     *zap.Logger
	Now        func() time.Time
}

func (e *Engine) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// Score computes the full score record for one filing.
func (e *Engine) Score(in Inputs) models.StrategyScore {
	f := in.Filing
	s := models.StrategyScore{
		FilingID:         f.FilingID,
		Symbol:           f.Symbol,
		InsiderRoleScore: RoleScore(f.InsiderTitle),
		OwnershipScore:   OwnershipScore(f.OwnershipType),
		SizeScore:        SizeScore(f.TotalValue),
		RepeatPurchase:   in.Repeat,
		ClusterSize:      in.ClusterSize,
		Tier:             in.Tier,
		Sector:           in.Sector,
		GapPercent:       in.Gap.GapPercent,
		GapMultiplier:    in.Gap.Multiplier,
		AnalysisDate:     in.Now,
	}
	if in.Earnings {
		s.EarningsBonus = 1
	}
	s.MultiInsiderBonus = MultiInsiderBonus(in.OtherInsiders)
	s.VolumeFilterPassed = e.VolumeFilter(in.Snapshot, in.Earnings)
	s.ATRFilterPassed = ATRFilter(in.Snapshot, in.Earnings)
	s.SPYFilterPassed = in.Gap.Allowed

	s.TotalScore = s.InsiderRoleScore + s.OwnershipScore + s.SizeScore + s.EarningsBonus + s.MultiInsiderBonus
	s.Decision, s.Confidence = Decide(s.TotalScore, s.VolumeFilterPassed, s.ATRFilterPassed, s.SPYFilterPassed, s.RepeatPurchase)

	_, s.RoleAdjustment = RoleAdjustment(f.InsiderTitle)
	s.EnhancedScore = EnhancedScore(s.TotalScore, s.RoleAdjustment)

	reasons := []string{decisionReason(s)}
	if !in.Gap.Allowed || in.Gap.FilterApplied {
		reasons = append(reasons, in.Gap.Reason)
	}
	// Sub-$50k filings are normally dropped at ingestion; never let one through here.
	if f.TotalValue.LessThan(sizeMedium) && s.Decision == models.DecisionBuy {
		s.Decision = models.DecisionPass
		s.Confidence = models.ConfidenceLow
		reasons = append(reasons, "below $50k minimum value")
	}
	if DirectorOnlyExcluded(f.InsiderTitle, f.TotalValue) {
		s.Excluded = true
		s.ExclusionReason = ExclusionDirectorOnly
		if s.Decision == models.DecisionBuy {
			s.Decision = models.DecisionPass
			s.Confidence = models.ConfidenceLow
		}
		reasons = append(reasons, "director-only purchase below $100k excluded")
	}
	s.Reason = strings.Join(reasons, "; ")
	return s
}

// Decide is the decision table; the first matching row wins.
func Decide(total int, volumeOK, atrOK, spyOK, repeat bool) (string, string) {
	switch {
	case repeat:
		return models.DecisionSkip, models.ConfidenceLow
	case !spyOK:
		return models.DecisionSkip, models.ConfidenceLow
	case !volumeOK || !atrOK:
		return models.DecisionPass, models.ConfidenceLow
	case total >= 7:
		return models.DecisionBuy, models.ConfidenceHigh
	case total >= 5:
		return models.DecisionBuy, models.ConfidenceMedium
	default:
		return models.DecisionPass, models.ConfidenceLow
	}
}

func OwnershipScore(ownership string) int {
	if strings.EqualFold(strings.TrimSpace(ownership), models.OwnershipIndirect) {
		return 1
	}
	return 0
}

func SizeScore(value decimal.Decimal) int {
	switch {
	case value.GreaterThanOrEqual(sizeLarge):
		return 2
	case value.GreaterThanOrEqual(sizeMedium):
		return 1
	default:
		return 0
	}
}

// VolumeFilter checks average daily dollar volume against the seasonal band.
func (e *Engine) VolumeFilter(snap models.MarketSnapshot, earnings bool) bool {
	minV, maxV := 30e6, 10e9
	maxEarnings := 100e6
	if e != nil {
		if e.Config.MinVolumeUSD > 0 {
			minV = e.Config.MinVolumeUSD
		}
		if e.Config.MaxVolumeUSD > 0 {
			maxV = e.Config.MaxVolumeUSD
		}
		if e.Config.MaxVolumeEarnings > 0 {
			maxEarnings = e.Config.MaxVolumeEarnings
		}
	}
	if earnings {
		maxV = maxEarnings
	}
	dv := snap.DollarVolume()
	return dv >= minV && dv <= maxV
}

func ATRFilter(snap models.MarketSnapshot, earnings bool) bool {
	pct := snap.ATRPercent()
	if earnings {
		return pct >= 3.5
	}
	return pct >= 7 && pct <= 20
}

// SyntheticSkip is recorded when scoring a filing fails.
func SyntheticSkip(f models.InsiderFiling, now time.Time, err error) models.StrategyScore {
	return models.StrategyScore{
		FilingID:      f.FilingID,
		Symbol:        f.Symbol,
		Decision:      models.DecisionSkip,
		Confidence:    models.ConfidenceLow,
		GapMultiplier: 1.0,
		Reason:        fmt.Sprintf("scoring error: %v", err),
		AnalysisDate:  now,
	}
}

// Analyze scores and stores one filing. An existing score is returned unchanged
// with inserted=false. Scoring failures become a stored SKIP, except when ctx is
// done, in which case nothing is stored and the filing stays pending.
func (e *Engine) Analyze(ctx context.Context, f models.InsiderFiling) (models.StrategyScore, bool, error) {
	if e == nil || e.Scores == nil {
		return models.StrategyScore{}, false, errors.New("strategy engine not configured")
	}
	existing, err := e.Scores.GetStrategyScoreByFilingID(ctx, f.FilingID)
	if err != nil {
		return models.StrategyScore{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	now := e.now()
	score, scoreErr := e.scoreFiling(ctx, f, now)
	if scoreErr != nil {
		if ctx.Err() != nil {
			return models.StrategyScore{}, false, ctx.Err()
		}
		if e.Logger != nil {
			e.Logger.Warn("strategy: scoring failed, recording skip", zap.String("filing_id", f.FilingID), zap.String("symbol", f.Symbol), zap.Error(scoreErr))
		}
		score = SyntheticSkip(f, now, scoreErr)
	}
	score.LifecycleState = models.StateScored

	inserted, err := e.Scores.InsertStrategyScore(ctx, &score)
	if err != nil {
		return models.StrategyScore{}, false, err
	}
	if !inserted {
		existing, err := e.Scores.GetStrategyScoreByFilingID(ctx, f.FilingID)
		if err != nil || existing == nil {
			return score, false, err
		}
		return *existing, false, nil
	}
	if e.Logger != nil {
		e.Logger.Info("strategy: scored",
			zap.String("filing_id", score.FilingID),
			zap.String("symbol", score.Symbol),
			zap.Int("total", score.TotalScore),
			zap.Int("enhanced", score.EnhancedScore),
			zap.String("decision", score.Decision),
			zap.String("reason", score.Reason),
		)
	}
	if score.IsBuy() && e.Notifier != nil {
		e.Notifier.Notify(ctx, BuyEvent(f, score))
	}
	return score, true, nil
}

func (e *Engine) scoreFiling(ctx context.Context, f models.InsiderFiling, now time.Time) (models.StrategyScore, error) {
	if err := f.Normalize(); err != nil {
		return models.StrategyScore{}, err
	}
	if e.Snapshots == nil {
		return models.StrategyScore{}, errors.New("no market data source")
	}
	asOf := f.FilingDate
	if asOf.IsZero() {
		asOf = f.TransactionDate
	}
	snap, err := e.Snapshots.Snapshot(ctx, f.Symbol, asOf)
	if err != nil {
		return models.StrategyScore{}, fmt.Errorf("snapshot %s: %w", f.Symbol, err)
	}
	if snap == nil {
		return models.StrategyScore{}, fmt.Errorf("snapshot %s: not available", f.Symbol)
	}

	repeat := false
	if e.Repeats != nil {
		window := time.Duration(e.Config.RepeatWindowDays) * 24 * time.Hour
		if window <= 0 {
			window = 30 * 24 * time.Hour
		}
		repeat, err = e.Repeats.HasRecentPurchase(ctx, f, window)
		if err != nil {
			return models.StrategyScore{}, fmt.Errorf("repeat lookup: %w", err)
		}
	}

	cluster, err := e.Clusters.Detect(ctx, f.Symbol, f.TransactionDate)
	if err != nil {
		return models.StrategyScore{}, fmt.Errorf("cluster lookup: %w", err)
	}
	cluster = cluster.withFiler(f.InsiderName)

	tier, known := classifier.TierUnknown, false
	sector := ""
	if e.Classifier != nil {
		tier, known = e.Classifier.Tier(f.Symbol)
		sector = e.Classifier.Sector(f.Symbol)
	}
	gap := market.GapDecision{Allowed: true, Multiplier: 1.0}
	if e.Gap != nil {
		gap = e.Gap.Evaluate(ctx, tier, known, cluster.IsCluster())
	}

	return e.Score(Inputs{
		Filing:        f,
		Snapshot:      *snap,
		Earnings:      e.Season.IsEarnings(now),
		Repeat:        repeat,
		OtherInsiders: cluster.Others(f.InsiderName),
		ClusterSize:   cluster.Size(),
		Gap:           gap,
		Tier:          tier,
		Sector:        sector,
		Now:           now,
	}), nil
}

func decisionReason(s models.StrategyScore) string {
	switch {
	case s.RepeatPurchase:
		return "repeat purchase within window"
	case !s.SPYFilterPassed:
		return "benchmark gap blocked"
	case !s.VolumeFilterPassed && !s.ATRFilterPassed:
		return "volume and atr filters failed"
	case !s.VolumeFilterPassed:
		return "volume filter failed"
	case !s.ATRFilterPassed:
		return "atr filter failed"
	default:
		return fmt.Sprintf("score %d -> %s/%s", s.TotalScore, s.Decision, s.Confidence)
	}
}

func BuyEvent(f models.InsiderFiling, s models.StrategyScore) notify.Event {
	return notify.Event{
		Kind:  notify.KindBuyDecision,
		Title: fmt.Sprintf("BUY %s (%s)", s.Symbol, s.Confidence),
		Fields: map[string]any{
			"insider":  f.InsiderName,
			"title":    f.InsiderTitle,
			"value":    f.TotalValue.StringFixed(0),
			"score":    s.TotalScore,
			"enhanced": s.EnhancedScore,
			"role":     s.InsiderRoleScore,
			"size":     s.SizeScore,
			"volume":   s.VolumeFilterPassed,
			"atr":      s.ATRFilterPassed,
			"spy":      s.SPYFilterPassed,
			"cluster":  s.ClusterSize,
		},
		At: s.AnalysisDate,
	}
}
