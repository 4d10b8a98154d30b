package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cronrunner "github.com/xampla/insider-bot/internal/cron"
	"github.com/xampla/insider-bot/internal/handler"
	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/service"

	_ "github.com/xampla/insider-bot/docs"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "insiderbot",
		Short:         "Insider purchase scoring and trading",
		Long:          "Scores SEC Form 4 open-market purchases, applies risk gates and trades the signals through Alpaca.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $IB_CONFIG or config/config.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled jobs",
		RunE:  runServe,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "cycle",
		Short: "Run one ingest, score, trade and exit pass",
		RunE:  runCycle,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current status report",
		RunE:  runStatus,
	})
	closeAll := &cobra.Command{
		Use:   "close-all",
		Short: "Close every open position",
		RunE:  runCloseAll,
	}
	closeAll.Flags().String("reason", models.ExitManual, "exit reason recorded on the trades")
	rootCmd.AddCommand(closeAll)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCycle(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()
	a, err := newApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.refreshUniverse(ctx)
	res, err := a.pipeline.RunOnce(ctx)
	if perr := printJSON(res); perr != nil {
		return perr
	}
	return err
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()
	a, err := newApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.status.Report(ctx)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runCloseAll(cmd *cobra.Command, _ []string) error {
	reason, _ := cmd.Flags().GetString("reason")
	reason = strings.ToUpper(strings.TrimSpace(reason))
	if reason == "" {
		reason = models.ExitManual
	}
	ctx, stop := signalContext()
	defer stop()
	a, err := newApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.exits.CloseAll(ctx, reason)
	if perr := printJSON(res); perr != nil {
		return perr
	}
	return err
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()
	a, err := newApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, log := a.cfg, a.logger

	if cfg.Trading.DryRun {
		log.Info("dry-run mode: orders are recorded but not sent")
	}
	a.refreshUniverse(ctx)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORSMiddleware())
	engine.Use(handler.RequireBearerMiddleware(cfg.Server.APIToken))
	engine.Use(handler.AuditMiddleware(log, a.metrics))

	engine.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	(&handler.HealthHandler{DB: a.db.Gorm, Cache: a.cache}).Register(engine)
	handler.RegisterDocs(engine)
	(&handler.FilingHandler{Repo: a.store}).Register(engine)
	(&handler.ScoreHandler{Repo: a.store}).Register(engine)
	(&handler.TradeHandler{Repo: a.store, Positions: a.exits, Logger: log}).Register(engine)
	(&handler.MarketHandler{Repo: a.store, Snapshots: a.snaps}).Register(engine)
	(&handler.SettingsHandler{Repo: a.store, Settings: a.settings}).Register(engine)
	(&handler.OpsHandler{
		Status:     a.status,
		Scaling:    a.scaling,
		Pipeline:   a.pipeline,
		RunTimeout: 2 * time.Minute,
		Logger:     log,
	}).Register(engine)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runner := cronrunner.New(log, a.metrics, ctx)
	if cfg.Cron.Enabled {
		a.registerJobs(runner)
		runner.Start()
		defer runner.Stop()
	} else {
		log.Info("cron disabled; jobs run only through the API or CLI")
	}

	if !cfg.Trading.DryRun && a.settings.IsEnabled(ctx, service.FeatureFillStream, true) {
		go func() {
			if err := a.fills.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("fill stream stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case serveErr = <-errCh:
		log.Error("server error", zap.Error(serveErr))
	}

	wait := cfg.Server.ShutdownWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	return serveErr
}

func (a *app) registerJobs(runner *cronrunner.Runner) {
	cfg, log := a.cfg, a.logger
	add := func(name, spec string, timeout time.Duration, job func(context.Context)) {
		if strings.TrimSpace(spec) == "" {
			log.Info("cron job not scheduled", zap.String("job", name))
			return
		}
		if _, err := runner.Add(name, spec, timeout, job); err != nil {
			log.Warn("cron register failed", zap.String("job", name), zap.String("spec", spec), zap.Error(err))
		}
	}

	add("filing_poll", cfg.Cron.FilingPoll, 4*time.Minute, func(ctx context.Context) {
		if _, err := a.ingest.RunOnce(ctx); err != nil {
			log.Warn("filing ingest failed", zap.Error(err))
		}
		if _, err := a.analysis.RunOnce(ctx); err != nil {
			log.Warn("analysis failed", zap.Error(err))
		}
	})
	add("trade_cycle", cfg.Cron.Cycle, cfg.Trading.CycleTimeout, func(ctx context.Context) {
		res, err := a.cycle.RunCycle(ctx)
		switch {
		case errors.Is(err, service.ErrCycleRunning):
			log.Debug("trade cycle skipped: already running")
		case err != nil:
			log.Warn("trade cycle failed", zap.Error(err))
		case res.Opened > 0 || res.Queued > 0:
			log.Info("trade cycle", zap.Int("opened", res.Opened), zap.Int("queued", res.Queued), zap.Int("blocked", res.Blocked))
		}
	})
	add("position_check", cfg.Cron.PositionCheck, 25*time.Second, func(ctx context.Context) {
		if _, err := a.exits.RunOnce(ctx); err != nil {
			log.Warn("position check failed", zap.Error(err))
		}
	})
	add("eod_sweep", cfg.Cron.EODSweep, 2*time.Minute, func(ctx context.Context) {
		res, err := a.exits.CloseAll(ctx, models.ExitEndOfDay)
		if err != nil {
			log.Warn("end of day sweep failed", zap.Error(err))
			return
		}
		log.Info("end of day sweep", zap.Int("closed", res.Closed))
	})
	add("status_report", cfg.Cron.StatusReport, time.Minute, func(ctx context.Context) {
		if _, err := a.status.Publish(ctx); err != nil {
			log.Warn("status report failed", zap.Error(err))
		}
	})
	add("performance_scaling", cfg.Cron.Scaling, 2*time.Minute, func(ctx context.Context) {
		if _, err := a.scaling.RunOnce(ctx); err != nil {
			log.Warn("performance scaling failed", zap.Error(err))
		}
	})
	add("universe_refresh", cfg.Cron.Universe, 2*time.Minute, a.refreshUniverse)
}

func (a *app) refreshUniverse(ctx context.Context) {
	if !a.settings.IsEnabled(ctx, service.FeatureUniverse, true) {
		return
	}
	enabled, err := a.universe.Refresh(ctx)
	if err != nil {
		a.logger.Warn("universe refresh failed", zap.Error(err))
		return
	}
	a.logger.Info("universe refreshed", zap.Bool("tier3", enabled), zap.Int("symbols", len(a.universe.Symbols(ctx))))
}
