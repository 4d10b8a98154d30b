package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/repository"
)

type SnapshotReader interface {
	Snapshot(ctx context.Context, symbol string, asOf time.Time) (*models.MarketSnapshot, error)
}

type MarketHandler struct {
	Repo      repository.MarketRepository
	Snapshots SnapshotReader
}

func (h *MarketHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/market")
	g.GET("/spy", h.spy)
	g.GET("/snapshots/:symbol", h.snapshot)
}

// @Summary Recent benchmark gap checks
// @Tags market
// @Param limit query int false "limit"
// @Success 200 {object} apiResponse
// @Router /api/v1/market/spy [get]
func (h *MarketHandler) spy(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListSpyConditions(c.Request.Context(), intQuery(c, "limit", 20))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, nil)
}

// @Summary Daily snapshot with ATR and average volume
// @Tags market
// @Param symbol path string true "ticker"
// @Param date query string false "as-of date (YYYY-MM-DD), default today"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/market/snapshots/{symbol} [get]
func (h *MarketHandler) snapshot(c *gin.Context) {
	if h.Snapshots == nil {
		Error(c, http.StatusInternalServerError, "market data unavailable", nil)
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		Error(c, http.StatusBadRequest, "invalid symbol", nil)
		return
	}
	asOf := time.Now().UTC()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		d := dateQueryPtr(c, "date")
		if d == nil {
			Error(c, http.StatusBadRequest, "invalid date", nil)
			return
		}
		asOf = *d
	}
	y, m, d := asOf.Date()
	snap, err := h.Snapshots.Snapshot(c.Request.Context(), symbol, time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, snap, map[string]any{
		"dollar_volume": snap.DollarVolume(),
		"atr_pct":       snap.ATRPercent(),
	})
}
