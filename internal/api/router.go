package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/stockpulse/internal/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// DefaultRequestTimeout bounds a request when NewRouter is given no timeout.
const DefaultRequestTimeout = 10 * time.Second

// NewRouter creates a Gin engine with routes configured.
// It receives a Handler instance with all business logic already injected.
//
// Responsibilities:
//   - Registers global middlewares (RequestID, Logger, Recovery, ErrorHandler, RateLimiter).
//   - Adds request timeout handling (DefaultRequestTimeout unless overridden).
//   - Mounts Swagger docs (/swagger/*any).
//   - Configures API v1 stock routes (/api/v1/stocks).
//
// Note:
//   - Health and readiness endpoints (/healthz, /readyz) are registered in app.InitializeApp().
func NewRouter(handler *Handler, timeout time.Duration) *gin.Engine {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	router := gin.New()

	// ─── Middlewares ───────────────────────────────
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RecoveryMiddleware(),
		middleware.ErrorHandler,
		middleware.RateLimiter(),
		middleware.Timeout(timeout),
	)

	// ─── Swagger ──────────────────────────────────
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// ─── API v1 ───────────────────────────────────
	v1 := router.Group("/api/v1")
	{
		stocks := v1.Group("/stocks")
		stocks.GET("/quote/:symbol", handler.GetQuote)
		stocks.GET("/popular", handler.GetPopular)
		stocks.GET("/search", handler.Search)
		stocks.GET("/history/:symbol", handler.GetHistoricalPrice)
		stocks.GET("/symbols", handler.ListSymbols)
	}

	return router
}
