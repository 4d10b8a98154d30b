package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/cache"
	"github.com/xampla/insider-bot/internal/classifier"
	"github.com/xampla/insider-bot/internal/client/alpaca"
	"github.com/xampla/insider-bot/internal/client/alphavantage"
	"github.com/xampla/insider-bot/internal/client/sec"
	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/db"
	"github.com/xampla/insider-bot/internal/httpclient"
	"github.com/xampla/insider-bot/internal/logger"
	"github.com/xampla/insider-bot/internal/market"
	"github.com/xampla/insider-bot/internal/metrics"
	"github.com/xampla/insider-bot/internal/notify"
	gormrepository "github.com/xampla/insider-bot/internal/repository/gorm"
	"github.com/xampla/insider-bot/internal/risk"
	"github.com/xampla/insider-bot/internal/service"
	"github.com/xampla/insider-bot/internal/strategy"
)

// app holds every wired component. Subcommands pick what they need.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	db       *db.DB
	store    *gormrepository.Store
	cache    cache.Store
	metrics  *metrics.Recorder
	location *time.Location
	notifier *notify.Dispatcher
	closers  []func() error

	alpaca   *alpaca.Client
	settings *service.SystemSettingsService
	risk     *risk.Manager
	universe *service.UniverseService
	snaps    *service.SnapshotService
	ingest   *service.FilingIngestService
	analysis *service.AnalysisService
	cycle    *service.TradeLifecycleManager
	exits    *service.PositionManager
	fills    *service.FillConsumer
	scaling  *service.ScalingService
	status   *service.StatusService
	pipeline *service.Pipeline
}

func loadConfig(path string) (config.Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("IB_CONFIG")
	}
	if path == "" {
		path = "config/config.yaml"
	}
	envOnly := false
	if raw := os.Getenv("IB_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}
	cfg, err := config.Load(path, envOnly)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log, cfg.App.Env)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market timezone %q: %w", cfg.Market.Timezone, err)
	}

	dbConn, err := db.Open(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		_ = db.Close(dbConn)
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	dispatcher, closers, err := notify.FromConfig(cfg.Notify, log)
	if err != nil {
		_ = db.Close(dbConn)
		return nil, fmt.Errorf("notify: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   log,
		db:       dbConn,
		store:    gormrepository.New(dbConn.Gorm),
		cache:    cache.New(cfg.Redis),
		metrics:  metrics.New(),
		location: loc,
		notifier: dispatcher,
		closers:  closers,
	}
	a.settings = &service.SystemSettingsService{Repo: a.store}
	if err := a.settings.EnsureDefaultSwitches(ctx); err != nil {
		log.Warn("init default system switches failed", zap.Error(err))
	}
	a.wire()
	return a, nil
}

func (a *app) wire() {
	cfg, log, store := a.cfg, a.logger, a.store

	a.alpaca = alpaca.New(cfg.Alpaca, httpclient.New(cfg.Alpaca.Timeout), a.location, a.metrics, log)
	av := alphavantage.New(cfg.AlphaVan, httpclient.New(cfg.AlphaVan.Timeout), a.location, a.metrics, log)
	edgar := sec.New(cfg.SEC, httpclient.New(cfg.SEC.Timeout), store.IsDocumentProcessed, log)

	tiers := classifier.FromConfig(cfg.Universe)
	season := strategy.SeasonFromMonths(cfg.Strategy.EarningsMonths)

	a.risk = &risk.Manager{Config: cfg.Risk, Repo: store, Location: a.location, Logger: log}
	scaler := &risk.Scaler{Config: cfg.Scaling, Risk: cfg.Risk}

	a.snaps = &service.SnapshotService{
		Repo:   store,
		Cache:  a.cache,
		Source: av,
		TTL:    cfg.Market.SnapshotCache,
		Logger: log,
	}
	gap := &market.Gateway{
		Source: &market.HybridGapSource{
			Symbol:    cfg.Market.Benchmark,
			Reference: av,
			Primary:   a.alpaca,
			Logger:    log,
		},
		Cache:     a.cache,
		Recorder:  store,
		Benchmark: cfg.Market.Benchmark,
		Location:  a.location,
		Logger:    log,
	}
	engine := &strategy.Engine{
		Config:     cfg.Strategy,
		Season:     season,
		Repeats:    store,
		Scores:     store,
		Snapshots:  a.snaps,
		Gap:        gap,
		Clusters:   &strategy.ClusterDetector{Repo: store},
		Classifier: tiers,
		Notifier:   a.notifier,
		Logger:     log,
	}

	a.universe = &service.UniverseService{
		Config:     cfg.Universe,
		Classifier: tiers,
		Repo:       store,
		Account:    a.alpaca,
		Scaler:     scaler,
		Logger:     log,
	}
	a.scaling = &service.ScalingService{
		Repo:         store,
		Settings:     a.settings,
		Account:      a.alpaca,
		Scaler:       scaler,
		LookbackDays: cfg.Scaling.LookbackDays,
		Flags:        a.settings,
		Notifier:     a.notifier,
		Metrics:      a.metrics,
		Logger:       log,
	}
	a.ingest = &service.FilingIngestService{
		Source:       edgar,
		Repo:         store,
		Universe:     a.universe,
		LookbackDays: cfg.SEC.LookbackDays,
		Flags:        a.settings,
		Metrics:      a.metrics,
		Logger:       log,
	}
	a.analysis = &service.AnalysisService{
		Engine:    engine,
		Repo:      store,
		BatchSize: cfg.Strategy.AnalysisBatchSize,
		Flags:     a.settings,
		Metrics:   a.metrics,
		Logger:    log,
	}
	a.cycle = &service.TradeLifecycleManager{
		Repo:      store,
		Broker:    a.alpaca,
		Risk:      a.risk,
		Sizer:     &risk.Sizer{Config: cfg.Risk},
		Allocator: &risk.Allocator{Config: cfg.Risk},
		Snapshots: a.snaps,
		Gap:       gap,
		Season:    season,
		Scaling:   a.scaling,
		Trading:   cfg.Trading,
		Market:    cfg.Market,
		Location:  a.location,
		Flags:     a.settings,
		Notifier:  a.notifier,
		Metrics:   a.metrics,
		Logger:    log,
		NewID:     uuid.NewString,
	}
	a.exits = &service.PositionManager{
		Repo:     store,
		Broker:   a.alpaca,
		Risk:     a.risk,
		DryRun:   cfg.Trading.DryRun,
		Flags:    a.settings,
		Notifier: a.notifier,
		Metrics:  a.metrics,
		Logger:   log,
	}
	a.fills = &service.FillConsumer{
		Repo: store,
		Stream: alpaca.NewTradeStream(alpaca.StreamOptions{
			URL:       cfg.Alpaca.StreamURL,
			KeyID:     cfg.Alpaca.KeyID,
			SecretKey: cfg.Alpaca.SecretKey,
			Logger:    log,
		}),
		Logger: log,
	}
	a.status = &service.StatusService{
		Repo:     store,
		Broker:   a.alpaca,
		Scaling:  a.scaling,
		Location: a.location,
		Flags:    a.settings,
		Notifier: a.notifier,
		Logger:   log,
	}
	a.pipeline = &service.Pipeline{
		Ingest:    a.ingest,
		Analysis:  a.analysis,
		Lifecycle: a.cycle,
		Positions: a.exits,
		Logger:    log,
	}
}

// Close drains notifications before releasing sinks and the database.
func (a *app) Close() {
	if a == nil {
		return
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("notify sink close failed", zap.Error(err))
		}
	}
	if closer, ok := a.cache.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if err := db.Close(a.db); err != nil {
		a.logger.Warn("db close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
