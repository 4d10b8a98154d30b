package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterDocs serves the swagger UI and a short route overview.
func RegisterDocs(r *gin.Engine) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Insider Bot API

Scores SEC Form 4 insider purchases and manages the resulting trades.

## Auth

When server.api_token is set, /api/*, /swagger and /docs require
"Authorization: Bearer <token>". Health and metrics endpoints are public.

## Routes

- GET  /healthz, /readyz, /metrics
- GET  /swagger/index.html
- GET  /api/v1/filings, /api/v1/filings/:filing_id
- GET  /api/v1/scores, /api/v1/scores/:filing_id
- GET  /api/v1/trades, /api/v1/trades/:id
- POST /api/v1/trades/close-all
- GET  /api/v1/queue
- GET  /api/v1/performance?days=30
- GET  /api/v1/status
- GET  /api/v1/scaling
- POST /api/v1/pipeline/run
- GET  /api/v1/market/spy, /api/v1/market/snapshots/:symbol
- GET  /api/v1/settings, /api/v1/settings/switches
- PUT  /api/v1/settings/switches/:name
`)
	})
}
