package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/metrics"
)

// Runner schedules jobs on a shared base context. A job whose previous run
// is still in flight is skipped, so no phase overlaps itself.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	metrics *metrics.Recorder
	baseCtx context.Context
}

func New(logger *zap.Logger, rec *metrics.Recorder, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	cl := cronLogger{logger: logger}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		metrics: rec,
		baseCtx: baseCtx,
	}
}

// Add registers job under spec. A positive timeout bounds each run.
func (r *Runner) Add(name, spec string, timeout time.Duration, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		ctx := r.baseCtx
		if ctx == nil {
			ctx = context.Background()
		}
		if ctx.Err() != nil {
			return
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		started := time.Now()
		job(ctx)
		r.metrics.JobDuration(name, time.Since(started).Seconds())
		if r.logger != nil {
			r.logger.Debug("cron job finished", zap.String("job", name), zap.Duration("took", time.Since(started)))
		}
	})
}

func (r *Runner) Start() {
	if r.logger != nil {
		r.logger.Info("cron started", zap.Int("entries", len(r.cron.Entries())))
	}
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	if r.logger != nil {
		r.logger.Info("cron stopped")
	}
}

type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Sugar().Warnw("cron: "+msg, append(keysAndValues, "error", err)...)
}
