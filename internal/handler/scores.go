package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xampla/insider-bot/internal/repository"
)

type ScoreHandler struct {
	Repo repository.ScoreRepository
}

func (h *ScoreHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/scores")
	g.GET("", h.list)
	g.GET("/:filing_id", h.get)
}

// @Summary List strategy scores
// @Tags scores
// @Param symbol query string false "ticker"
// @Param decision query string false "BUY|PASS|SKIP"
// @Param state query string false "lifecycle state, e.g. GATE_BLOCKED"
// @Param min_score query int false "minimum total score"
// @Param since query string false "analysis date from (YYYY-MM-DD)"
// @Param order_by query string false "analysis_date|total_score|enhanced_score"
// @Param asc query bool false "ascending"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/scores [get]
func (h *ScoreHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListStrategyScoresParams{
		Limit:          intQuery(c, "limit", 50),
		Offset:         intQuery(c, "offset", 0),
		Symbol:         upperQueryPtr(c, "symbol"),
		Decision:       upperQueryPtr(c, "decision"),
		LifecycleState: upperQueryPtr(c, "state"),
		MinScore:       intQueryPtr(c, "min_score"),
		Since:          dateQueryPtr(c, "since"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"analysis_date":  "analysis_date",
			"total_score":    "total_score",
			"enhanced_score": "enhanced_score",
		}),
		Asc: boolQueryPtr(c, "asc"),
	}
	items, err := h.Repo.ListStrategyScores(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.Repo.CountStrategyScores(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

// @Summary Get the score of one filing
// @Tags scores
// @Param filing_id path string true "filing id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/scores/{filing_id} [get]
func (h *ScoreHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Repo.GetStrategyScoreByFilingID(c.Request.Context(), strings.TrimSpace(c.Param("filing_id")))
	if err != nil {
		Fail(c, err)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "score not found", nil)
		return
	}
	Ok(c, item, nil)
}
