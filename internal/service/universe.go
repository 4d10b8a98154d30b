package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/classifier"
	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/risk"
)

// UniverseService decides which tiers are tracked. Tiers 1 and 2 always are;
// tier 3 joins once recent results qualify; tier 4 only in sandbox mode.
type UniverseService struct {
	Config     config.UniverseConfig
	Classifier *classifier.Static
	Repo       ClosedTradeLister
	Account    AccountSource
	Scaler     *risk.Scaler
	Logger     *zap.Logger
	Now        func() time.Time

	mu    sync.RWMutex
	tier3 bool
}

// Tier3Eligible needs at least two months with trades, minProfitable profitable
// months and no month whose drawdown exceeds maxDrawdown.
func Tier3Eligible(buckets []risk.Bucket, minProfitable int, maxDrawdown float64) bool {
	withData, profitable := 0, 0
	for _, b := range buckets {
		if b.Drawdown > maxDrawdown {
			return false
		}
		if b.Trades > 0 {
			withData++
		}
		if b.Profitable {
			profitable++
		}
	}
	return withData >= 2 && profitable >= minProfitable
}

func (u *UniverseService) Symbols(_ context.Context) []string {
	if u == nil {
		return nil
	}
	tiers := []int{classifier.Tier1, classifier.Tier2}
	u.mu.RLock()
	if u.tier3 {
		tiers = append(tiers, classifier.Tier3)
	}
	u.mu.RUnlock()
	if u.Config.Tier4Sandbox {
		tiers = append(tiers, classifier.Tier4)
	}
	return u.Classifier.Symbols(tiers...)
}

func (u *UniverseService) Tier3Enabled() bool {
	if u == nil {
		return false
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.tier3
}

// Refresh re-evaluates tier 3. On error the previous answer stands.
func (u *UniverseService) Refresh(ctx context.Context) (bool, error) {
	if u == nil {
		return false, nil
	}
	now := time.Now().UTC()
	if u.Now != nil {
		now = u.Now()
	}
	eligible := false
	if u.Config.AutoExpandT3 && u.Repo != nil && u.Account != nil {
		trades, err := u.Repo.ListClosedTradesSince(ctx, now.AddDate(0, 0, -90))
		if err != nil {
			return u.Tier3Enabled(), err
		}
		acct, err := u.Account.Account(ctx)
		if err != nil {
			return u.Tier3Enabled(), err
		}
		d := u.Scaler.Evaluate(trades, acct.Equity, now)
		minProfitable := u.Config.MinProfitable
		if minProfitable <= 0 {
			minProfitable = 2
		}
		maxDD := 0.0
		if u.Scaler != nil {
			maxDD = u.Scaler.Config.MaxMonthlyDrawdown
		}
		if maxDD <= 0 {
			maxDD = 0.15
		}
		eligible = Tier3Eligible(d.Buckets, minProfitable, maxDD)
	}

	u.mu.Lock()
	changed := u.tier3 != eligible
	u.tier3 = eligible
	u.mu.Unlock()
	if changed && u.Logger != nil {
		u.Logger.Info("universe: tier 3 tracking changed", zap.Bool("enabled", eligible))
	}
	return eligible, nil
}
