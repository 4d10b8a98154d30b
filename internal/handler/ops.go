package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/repository"
	"github.com/xampla/insider-bot/internal/risk"
	"github.com/xampla/insider-bot/internal/service"
)

type StatusReporter interface {
	Report(ctx context.Context) (service.StatusReport, error)
	Performance(ctx context.Context, days int) (repository.PerformanceSummary, error)
}

type ScalingPreviewer interface {
	Evaluate(ctx context.Context) (risk.ScalingDecision, error)
	Factor(ctx context.Context) float64
}

type PipelineRunner interface {
	RunOnce(ctx context.Context) (service.PipelineResult, error)
}

// OpsHandler exposes status, performance and manual pipeline runs.
type OpsHandler struct {
	Status   StatusReporter
	Scaling  ScalingPreviewer
	Pipeline PipelineRunner
	// RunTimeout bounds a manual pipeline run; the run outlives the request.
	RunTimeout time.Duration
	Logger     *zap.Logger
}

func (h *OpsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1")
	g.GET("/status", h.status)
	g.GET("/performance", h.performance)
	g.GET("/scaling", h.scaling)
	g.POST("/pipeline/run", h.runPipeline)
}

// @Summary System status
// @Tags ops
// @Success 200 {object} apiResponse
// @Router /api/v1/status [get]
func (h *OpsHandler) status(c *gin.Context) {
	if h.Status == nil {
		Error(c, http.StatusInternalServerError, "status service unavailable", nil)
		return
	}
	r, err := h.Status.Report(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, r, nil)
}

// @Summary Closed trade performance
// @Tags ops
// @Param days query int false "lookback in days (default 30)"
// @Success 200 {object} apiResponse
// @Router /api/v1/performance [get]
func (h *OpsHandler) performance(c *gin.Context) {
	if h.Status == nil {
		Error(c, http.StatusInternalServerError, "status service unavailable", nil)
		return
	}
	days := intQuery(c, "days", 30)
	if days <= 0 || days > 3650 {
		Error(c, http.StatusBadRequest, "days must be between 1 and 3650", nil)
		return
	}
	p, err := h.Status.Performance(c.Request.Context(), days)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, p, map[string]any{"days": days})
}

// @Summary Preview the scaling decision
// @Description Evaluates the last 90 days without changing the stored factor.
// @Tags ops
// @Success 200 {object} apiResponse
// @Router /api/v1/scaling [get]
func (h *OpsHandler) scaling(c *gin.Context) {
	if h.Scaling == nil {
		Error(c, http.StatusInternalServerError, "scaling service unavailable", nil)
		return
	}
	d, err := h.Scaling.Evaluate(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, d, map[string]any{"current_factor": h.Scaling.Factor(c.Request.Context())})
}

// @Summary Run one pipeline pass
// @Description Ingest, score, trade and check exits once, outside the schedule.
// @Tags ops
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/pipeline/run [post]
func (h *OpsHandler) runPipeline(c *gin.Context) {
	if h.Pipeline == nil {
		Error(c, http.StatusInternalServerError, "pipeline unavailable", nil)
		return
	}
	timeout := h.RunTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), timeout)
	defer cancel()
	res, err := h.Pipeline.RunOnce(ctx)
	if errors.Is(err, service.ErrCycleRunning) {
		Error(c, http.StatusConflict, err.Error(), nil)
		return
	}
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("manual pipeline run failed", zap.Error(err))
		}
		Fail(c, err)
		return
	}
	Ok(c, res, nil)
}
