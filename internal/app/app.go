package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/stockpulse/config"
	"github.com/guttosm/stockpulse/internal/api"
	"github.com/guttosm/stockpulse/internal/middleware"
	"github.com/guttosm/stockpulse/internal/service"
	"github.com/guttosm/stockpulse/internal/storage"
)

// InitializeApp sets up all application dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Connects to PostgreSQL using InitPostgres() (symbol directory).
//   - Builds the upstream client and the quote layer (cache, fan-out, history).
//   - Composes the stock service and the HTTP handler layer.
//   - Configures the Gin router with all API routes.
//   - Registers health and readiness probes.
//   - Provides a cleanup function to close resources (e.g., DB connection).
func InitializeApp() (*gin.Engine, func(), error) {
	// Load global configuration
	cfg := config.AppConfig

	// Connect to PostgreSQL
	// indirection for unit testing
	db, err := postgresOpener(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	// Symbol directory (DB) and quote layer (upstream + cache)
	repo := storage.NewSymbolsRepository(db)
	quotes := NewQuoteService(cfg)

	svc := service.NewStockService(quotes, repo)

	// Initialize HTTP handler layer (business logic to HTTP mapping)
	handler := api.NewHandler(svc)

	middleware.SetRateLimit(cfg.Server.RateLimit)
	router := api.NewRouter(handler, cfg.Server.RequestTimeout)

	// Register health and readiness probes
	healthHandler := api.NewHealthHandler(api.Check{Name: "postgres", Ping: db.PingContext})
	healthHandler.Register(router)

	// Cleanup resources on shutdown
	cleanup := func() {
		_ = db.Close()
	}

	return router, cleanup, nil
}
