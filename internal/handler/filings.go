package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xampla/insider-bot/internal/repository"
)

type FilingHandler struct {
	Repo repository.FilingRepository
}

func (h *FilingHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/filings")
	g.GET("", h.list)
	g.GET("/:filing_id", h.get)
}

// @Summary List insider filings
// @Tags filings
// @Param symbol query string false "ticker"
// @Param insider query string false "insider name"
// @Param code query string false "transaction code (P|S)"
// @Param since query string false "transaction date from (YYYY-MM-DD)"
// @Param until query string false "transaction date to (YYYY-MM-DD)"
// @Param order_by query string false "filing_date|transaction_date|total_value"
// @Param asc query bool false "ascending"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/filings [get]
func (h *FilingHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListFilingsParams{
		Limit:           intQuery(c, "limit", 50),
		Offset:          intQuery(c, "offset", 0),
		Symbol:          upperQueryPtr(c, "symbol"),
		InsiderName:     stringQueryPtr(c, "insider"),
		TransactionCode: upperQueryPtr(c, "code"),
		Since:           dateQueryPtr(c, "since"),
		Until:           dateQueryPtr(c, "until"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"filing_date":      "filing_date",
			"transaction_date": "transaction_date",
			"total_value":      "total_value",
		}),
		Asc: boolQueryPtr(c, "asc"),
	}
	items, err := h.Repo.ListFilings(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.Repo.CountFilings(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

// @Summary Get one filing
// @Tags filings
// @Param filing_id path string true "filing id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/filings/{filing_id} [get]
func (h *FilingHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("filing_id"))
	item, err := h.Repo.GetFilingByFilingID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "filing not found", nil)
		return
	}
	Ok(c, item, nil)
}
