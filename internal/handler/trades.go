package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/repository"
	"github.com/xampla/insider-bot/internal/service"
)

type PositionCloser interface {
	CloseAll(ctx context.Context, reason string) (service.CloseResult, error)
}

type TradeHandler struct {
	Repo      repository.Repository
	Positions PositionCloser
	Logger    *zap.Logger
}

func (h *TradeHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/trades")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/close-all", h.closeAll)

	r.GET("/api/v1/queue", h.queue)
}

// @Summary List trades
// @Tags trades
// @Param symbol query string false "ticker"
// @Param open query bool false "only open (true) or closed (false) trades"
// @Param tier query int false "universe tier"
// @Param since query string false "entry date from (YYYY-MM-DD)"
// @Param until query string false "entry date to (YYYY-MM-DD)"
// @Param order_by query string false "entry_date|exit_date|pnl"
// @Param asc query bool false "ascending"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/trades [get]
func (h *TradeHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListTradesParams{
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
		Symbol: upperQueryPtr(c, "symbol"),
		Open:   boolQueryPtr(c, "open"),
		Tier:   intQueryPtr(c, "tier"),
		Since:  dateQueryPtr(c, "since"),
		Until:  dateQueryPtr(c, "until"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"entry_date": "entry_date",
			"exit_date":  "exit_date",
			"pnl":        "pnl",
		}),
		Asc: boolQueryPtr(c, "asc"),
	}
	items, err := h.Repo.ListTrades(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.Repo.CountTrades(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

// @Summary Get one trade
// @Tags trades
// @Param id path int true "trade id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/trades/{id} [get]
func (h *TradeHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := parseUint64(c.Param("id"))
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetTrade(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "trade not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Close every open position
// @Description Sells each open position at the latest price with exit reason MANUAL.
// @Tags trades
// @Success 200 {object} apiResponse
// @Router /api/v1/trades/close-all [post]
func (h *TradeHandler) closeAll(c *gin.Context) {
	if h.Positions == nil {
		Error(c, http.StatusInternalServerError, "position manager unavailable", nil)
		return
	}
	res, err := h.Positions.CloseAll(c.Request.Context(), models.ExitManual)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("close all failed", zap.Error(err))
		}
		Fail(c, err)
		return
	}
	Ok(c, res, nil)
}

// @Summary List queued entries
// @Tags trades
// @Param status query string false "QUEUED|EXECUTED|EXPIRED|CANCELLED (default QUEUED)"
// @Param limit query int false "limit"
// @Success 200 {object} apiResponse
// @Router /api/v1/queue [get]
func (h *TradeHandler) queue(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	status := strings.ToUpper(strings.TrimSpace(c.DefaultQuery("status", models.QueueStatusQueued)))
	if status == "ALL" {
		status = ""
	}
	items, err := h.Repo.ListQueuedTrades(c.Request.Context(), status, intQuery(c, "limit", 100))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}
