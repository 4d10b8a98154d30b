package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cron     CronConfig     `mapstructure:"cron"`
	SEC      SECConfig      `mapstructure:"sec"`
	Alpaca   AlpacaConfig   `mapstructure:"alpaca"`
	AlphaVan AlphaVanConfig `mapstructure:"alphavantage"`

	Strategy StrategyConfig `mapstructure:"strategy"`
	Market   MarketConfig   `mapstructure:"market"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Scaling  ScalingConfig  `mapstructure:"scaling"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Universe UniverseConfig `mapstructure:"universe"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type AppConfig struct {
	Env string `mapstructure:"env" validate:"oneof=dev staging prod"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr" validate:"required"`

	// APIToken guards /api and /swagger with a bearer token; empty disables the check.
	APIToken     string        `mapstructure:"api_token"`
	ShutdownWait time.Duration `mapstructure:"shutdown_wait"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding" validate:"oneof=console json"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// RedisConfig is optional; an empty Addr selects the in-process cache.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type CronConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	FilingPoll    string `mapstructure:"filing_poll"`
	Cycle         string `mapstructure:"cycle"`
	PositionCheck string `mapstructure:"position_check"`
	EODSweep      string `mapstructure:"eod_sweep"`
	StatusReport  string `mapstructure:"status_report"`
	Scaling       string `mapstructure:"scaling"`
	Universe      string `mapstructure:"universe"`
}

type SECConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	DataURL      string        `mapstructure:"data_url" validate:"required,url"`
	UserAgent    string        `mapstructure:"user_agent" validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RequestsPerS float64       `mapstructure:"requests_per_second" validate:"gt=0,lte=10"`
	LookbackDays int           `mapstructure:"lookback_days" validate:"gte=1"`
	MinValueUSD  float64       `mapstructure:"min_value_usd" validate:"gte=0"`
	// CIKs maps ticker to EDGAR CIK for the tracked universe.
	CIKs map[string]string `mapstructure:"ciks"`
}

type AlpacaConfig struct {
	TradingURL string        `mapstructure:"trading_url" validate:"required,url"`
	DataURL    string        `mapstructure:"data_url" validate:"required,url"`
	StreamURL  string        `mapstructure:"stream_url"`
	KeyID      string        `mapstructure:"key_id"`
	SecretKey  string        `mapstructure:"secret_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// Breaker trips after this many consecutive failures.
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type AlphaVanConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StrategyConfig struct {
	EarningsMonths    []int   `mapstructure:"earnings_months" validate:"dive,min=1,max=12"`
	RepeatWindowDays  int     `mapstructure:"repeat_window_days" validate:"gte=1"`
	AnalysisBatchSize int     `mapstructure:"analysis_batch_size" validate:"gte=1"`
	MinVolumeUSD      float64 `mapstructure:"min_volume_usd"`
	MaxVolumeUSD      float64 `mapstructure:"max_volume_usd"`
	MaxVolumeEarnings float64 `mapstructure:"max_volume_earnings_usd"`
}

type MarketConfig struct {
	Timezone      string        `mapstructure:"timezone" validate:"required"`
	Benchmark     string        `mapstructure:"benchmark" validate:"required"`
	OpenDelay     time.Duration `mapstructure:"open_delay"`
	// EntryCutoff stops new entries this long before the close. Keep it at or
	// above the lead of cron.eod_sweep.
	EntryCutoff   time.Duration `mapstructure:"entry_cutoff"`
	SnapshotCache time.Duration `mapstructure:"snapshot_cache"`
}

type RiskConfig struct {
	BaseRiskPct        float64 `mapstructure:"base_risk_pct" validate:"gt=0"`
	MaxRiskPct         float64 `mapstructure:"max_risk_pct" validate:"gtfield=BaseRiskPct,lte=2"`
	BuyingPowerCapPct  float64 `mapstructure:"buying_power_cap_pct" validate:"gt=0,lte=100"`
	MinNotionalUSD     float64 `mapstructure:"min_notional_usd" validate:"gt=0"`
	MaxDailyTrades     int     `mapstructure:"max_daily_trades" validate:"gte=1"`
	ClusterExtraTrades int     `mapstructure:"cluster_extra_trades" validate:"gte=0"`
	Tier4MaxOpen       int     `mapstructure:"tier4_max_open" validate:"gte=1"`
	Tier4MaxMonthly    int     `mapstructure:"tier4_max_monthly" validate:"gte=1"`
	Tier4RiskMult      float64 `mapstructure:"tier4_risk_multiplier" validate:"gt=0,lte=1"`
	HighConviction     int     `mapstructure:"high_conviction_score"`
}

type ScalingConfig struct {
	LookbackDays       int     `mapstructure:"lookback_days" validate:"gte=30"`
	MinTrades          int     `mapstructure:"min_trades" validate:"gte=1"`
	MinTradesPerMonth  int     `mapstructure:"min_trades_per_month" validate:"gte=0"`
	MinWinRate         float64 `mapstructure:"min_win_rate" validate:"gte=0,lte=1"`
	AvgLossBenchmark   float64 `mapstructure:"avg_loss_benchmark_pct"`
	MaxMonthlyDrawdown float64 `mapstructure:"max_monthly_drawdown" validate:"gt=0,lte=1"`
	UpMultiplier       float64 `mapstructure:"up_multiplier" validate:"gt=1"`
	DownMultiplier     float64 `mapstructure:"down_multiplier" validate:"gt=0,lt=1"`
	MinFactor          float64 `mapstructure:"min_factor" validate:"gt=0"`
}

type TradingConfig struct {
	DryRun       bool          `mapstructure:"dry_run"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
	QueueBatch   int           `mapstructure:"queue_batch" validate:"gte=1"`
}

type UniverseConfig struct {
	Tier1         []string          `mapstructure:"tier1"`
	Tier2         []string          `mapstructure:"tier2"`
	Tier3         []string          `mapstructure:"tier3"`
	Tier4         []string          `mapstructure:"tier4"`
	Sectors       map[string]string `mapstructure:"sectors"`
	Tier4Sandbox  bool              `mapstructure:"tier4_sandbox"`
	AutoExpandT3  bool              `mapstructure:"auto_expand_tier3"`
	MinProfitable int               `mapstructure:"min_profitable_months" validate:"gte=0,lte=3"`
}

type NotifyConfig struct {
	Timeout  time.Duration  `mapstructure:"timeout"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BaseURL  string `mapstructure:"base_url"`
	BotToken string `mapstructure:"bot_token" validate:"required_if=Enabled true"`
	ChatID   string `mapstructure:"chat_id" validate:"required_if=Enabled true"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `mapstructure:"topic"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.api_token", "")
	v.SetDefault("server.shutdown_wait", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "12h")

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.filing_poll", "@every 5m")
	v.SetDefault("cron.cycle", "@every 1m")
	v.SetDefault("cron.position_check", "@every 30s")
	v.SetDefault("cron.eod_sweep", "CRON_TZ=America/New_York 0 50 15 * * MON-FRI")
	v.SetDefault("cron.status_report", "@every 30m")
	v.SetDefault("cron.scaling", "CRON_TZ=America/New_York 0 0 6 1 * *")
	v.SetDefault("cron.universe", "CRON_TZ=America/New_York 0 30 6 * * MON")

	v.SetDefault("sec.base_url", "https://www.sec.gov")
	v.SetDefault("sec.data_url", "https://data.sec.gov")
	v.SetDefault("sec.user_agent", "insider-bot admin@example.com")
	v.SetDefault("sec.timeout", "30s")
	v.SetDefault("sec.requests_per_second", 8)
	v.SetDefault("sec.lookback_days", 3)
	v.SetDefault("sec.min_value_usd", 50000)
	v.SetDefault("sec.ciks", map[string]string{
		"AAPL":  "0000320193",
		"NVDA":  "0001045810",
		"MSFT":  "0000789019",
		"TSLA":  "0001318605",
		"GOOGL": "0001652044",
		"AMZN":  "0001018724",
		"META":  "0001326801",
	})

	v.SetDefault("alpaca.trading_url", "https://paper-api.alpaca.markets")
	v.SetDefault("alpaca.data_url", "https://data.alpaca.markets")
	v.SetDefault("alpaca.stream_url", "wss://paper-api.alpaca.markets/stream")
	v.SetDefault("alpaca.timeout", "15s")
	v.SetDefault("alpaca.breaker_failures", 5)
	v.SetDefault("alpaca.breaker_timeout", "60s")
	v.SetDefault("alphavantage.base_url", "https://www.alphavantage.co")
	v.SetDefault("alphavantage.timeout", "30s")

	v.SetDefault("strategy.earnings_months", []int{2, 5, 8, 11})
	v.SetDefault("strategy.repeat_window_days", 30)
	v.SetDefault("strategy.analysis_batch_size", 100)
	v.SetDefault("strategy.min_volume_usd", 30_000_000)
	v.SetDefault("strategy.max_volume_usd", 10_000_000_000)
	v.SetDefault("strategy.max_volume_earnings_usd", 100_000_000)

	v.SetDefault("market.timezone", "America/New_York")
	v.SetDefault("market.benchmark", "SPY")
	v.SetDefault("market.open_delay", "15m")
	v.SetDefault("market.entry_cutoff", "15m")
	v.SetDefault("market.snapshot_cache", "6h")

	v.SetDefault("risk.base_risk_pct", 1.0)
	v.SetDefault("risk.max_risk_pct", 2.0)
	v.SetDefault("risk.buying_power_cap_pct", 95)
	v.SetDefault("risk.min_notional_usd", 2)
	v.SetDefault("risk.max_daily_trades", 10)
	v.SetDefault("risk.cluster_extra_trades", 3)
	v.SetDefault("risk.tier4_max_open", 1)
	v.SetDefault("risk.tier4_max_monthly", 4)
	v.SetDefault("risk.tier4_risk_multiplier", 0.25)
	v.SetDefault("risk.high_conviction_score", 7)

	v.SetDefault("scaling.lookback_days", 90)
	v.SetDefault("scaling.min_trades", 30)
	v.SetDefault("scaling.min_trades_per_month", 5)
	v.SetDefault("scaling.min_win_rate", 0.60)
	v.SetDefault("scaling.avg_loss_benchmark_pct", -2.4)
	v.SetDefault("scaling.max_monthly_drawdown", 0.15)
	v.SetDefault("scaling.up_multiplier", 1.10)
	v.SetDefault("scaling.down_multiplier", 0.80)
	v.SetDefault("scaling.min_factor", 0.5)

	v.SetDefault("trading.dry_run", true)
	v.SetDefault("trading.cycle_timeout", "45s")
	v.SetDefault("trading.queue_batch", 50)

	v.SetDefault("universe.tier1", []string{"AAPL", "NVDA", "MSFT", "GOOGL", "AMZN", "META", "TSLA"})
	v.SetDefault("universe.tier2", []string{"JPM", "JNJ", "V", "PG", "UNH", "HD", "MA", "DIS", "NFLX", "CRM"})
	v.SetDefault("universe.tier3", []string{"DDOG", "ZS", "CRWD", "TEAM", "ALGN", "ROKU", "ADBE", "PFE", "KO", "TMO", "ABT"})
	v.SetDefault("universe.tier4", []string{"PLTR", "RBLX", "FUBO", "SOFI", "OPEN", "COIN", "HOOD", "LCID"})
	v.SetDefault("universe.tier4_sandbox", false)
	v.SetDefault("universe.auto_expand_tier3", true)
	v.SetDefault("universe.min_profitable_months", 2)

	v.SetDefault("notify.timeout", "5s")
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.base_url", "https://api.telegram.org")
	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("notify.kafka.enabled", false)
	v.SetDefault("notify.kafka.topic", "insider.decisions")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
