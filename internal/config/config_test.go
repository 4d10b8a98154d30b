package config

import (
	"errors"
	"testing"
	"time"
)

func loadDefaults(t *testing.T) Config {
	t.Helper()
	t.Setenv("IB_DB_DSN", "postgres://localhost/insider")
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadDefaults(t)
	if cfg.Risk.MaxDailyTrades != 10 {
		t.Fatalf("max_daily_trades=%d want=10", cfg.Risk.MaxDailyTrades)
	}
	if cfg.Risk.ClusterExtraTrades != 3 {
		t.Fatalf("cluster_extra_trades=%d want=3", cfg.Risk.ClusterExtraTrades)
	}
	if len(cfg.Strategy.EarningsMonths) != 4 {
		t.Fatalf("earnings_months=%v want 4 months", cfg.Strategy.EarningsMonths)
	}
	if !cfg.Trading.DryRun {
		t.Fatalf("dry_run default should be true")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
}

func TestValidateRequiresBrokerKeysWhenLive(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Trading.DryRun = false
	if err := Validate(cfg); !errors.Is(err, ErrMissingBrokerKeys) {
		t.Fatalf("err=%v want=%v", err, ErrMissingBrokerKeys)
	}
	cfg.Alpaca.KeyID = "key"
	cfg.Alpaca.SecretKey = "secret"
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate live: %v", err)
	}
}

func TestValidateRejectsMissingDSN(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.DB.DSN = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestValidateTelegramNeedsToken(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Notify.Telegram.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for telegram without token")
	}
}

func TestValidateRiskBounds(t *testing.T) {
	cfg := loadDefaults(t)
	if cfg.Market.EntryCutoff != 15*time.Minute {
		t.Fatalf("entry_cutoff=%v want=15m", cfg.Market.EntryCutoff)
	}
	cfg.Risk.MaxRiskPct = 5
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for max_risk_pct above 2")
	}
	cfg = loadDefaults(t)
	cfg.Risk.Tier4MaxOpen = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for tier4_max_open 0")
	}
}
