package main

//
//  @title           stockpulse API
//  @version         1.0
//  @description     Cached stock quotes, popular lists, historical prices and exchange symbol lookup.
//  @termsOfService  https://github.com/guttosm/stockpulse
//  @contact.name    API Support
//  @contact.url     https://github.com/guttosm/stockpulse
//  @contact.email   support@example.com
//  @license.name    MIT
//  @license.url     https://opensource.org/licenses/MIT
//  @host            localhost:8080
//  @BasePath        /
//  @schemes         http
//
//  @tag.name        stocks
//  @tag.description Quotes, popular stocks, search and historical prices
//
//  @tag.name        symbols
//  @tag.description Exchange symbol directory
//
//  @tag.name        health
//  @tag.description Liveness and readiness probes

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/guttosm/stockpulse/config"
	_ "github.com/guttosm/stockpulse/docs" // swagger docs
	"github.com/guttosm/stockpulse/internal/app"
	"github.com/guttosm/stockpulse/internal/ingestion"
	"github.com/guttosm/stockpulse/internal/logger"
	"github.com/guttosm/stockpulse/internal/quote"
)

// fileList collects a repeatable string flag.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

// startServer initializes and starts the HTTP server in a separate goroutine.
//
// Parameters:
//   - router (http.Handler): The HTTP router (Gin Engine) configured with all routes.
//   - port (string): The port where the server will listen for incoming requests.
//
// Returns:
//   - *http.Server: The initialized HTTP server instance.
func startServer(router http.Handler, port string) *http.Server {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server failed to start")
		}
	}()

	return server
}

// gracefulShutdown gracefully terminates the HTTP server and cleans up resources
// when an OS interrupt signal (SIGINT, SIGTERM) is received.
//
// Parameters:
//   - ctx (context.Context): A context with timeout for graceful shutdown.
//   - server (*http.Server): The HTTP server instance to shut down.
//   - cleanup (func()): Cleanup callback to release resources (e.g., DB connections).
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.L().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Fatal().Err(err).Msg("server forced to shutdown")
	}

	cleanup()
	logger.L().Info().Msg("server exited gracefully")
}

// historyResult is one line of quote-mode output when --date is set.
type historyResult struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
}

// runQuotes prints quotes (or historical prices when date is non-empty) for
// symbols as indented JSON. Symbols without data are left out, as in the API.
func runQuotes(ctx context.Context, svc *quote.Service, w io.Writer, symbols []string, sparkline bool, date string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if date != "" {
		day, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", date, err)
		}
		out := make([]historyResult, 0, len(symbols))
		for _, s := range symbols {
			price, err := svc.GetHistoricalPrice(ctx, s, day)
			if err != nil {
				logger.L().Warn().Str("symbol", s).Err(err).Msg("no historical price")
				continue
			}
			out = append(out, historyResult{Symbol: quote.NormalizeSymbol(s), Date: date, Price: price})
		}
		return enc.Encode(out)
	}

	if len(symbols) == 1 {
		q, err := svc.GetQuote(ctx, symbols[0], sparkline)
		if err != nil {
			return err
		}
		return enc.Encode(q)
	}
	return enc.Encode(svc.GetPopularQuotes(ctx, symbols))
}

// main is the entry point of the stockpulse application.
//
// Modes (selected via --mode flag):
//   - api:     Starts the REST API (quotes, popular, search, history, symbols).
//   - ingest:  Loads exchange symbol lists (--file EX=path, repeatable) into Postgres.
//   - migrate: Applies goose migrations from --migrations.
//   - quote:   Prints quotes for --symbols as JSON without touching the database.
//
// Flags:
//   - --mode:       Execution mode. Default: "api".
//   - --file:       Symbol list, "NSE=./data/EQUITY_L.csv" or a bare path (NSE). Repeatable.
//   - --migrations: Directory with goose migrations. Default: "./db/migrations".
//   - --symbols:    Comma-separated tickers for quote mode; empty means the popular list.
//   - --sparkline:  Include the one-month close series (single symbol only).
//   - --date:       YYYY-MM-DD; prints historical prices instead of quotes.
//   - --port:       Port for the API server. Defaults to value from config (SERVER_PORT).
func main() {
	ctx := context.Background()

	// Load configuration from environment or .env file
	config.LoadConfig()

	// Initialize JSON logger
	logger.Init()

	var files fileList
	mode := flag.String("mode", "api", "Mode: api, ingest, migrate or quote")
	flag.Var(&files, "file", "Symbol list as EXCHANGE=path or path (repeatable)")
	migrations := flag.String("migrations", "./db/migrations", "Directory with goose migrations")
	symbols := flag.String("symbols", "", "Comma-separated symbols for quote mode")
	sparkline := flag.Bool("sparkline", false, "Include sparkline in quote mode")
	date := flag.String("date", "", "Historical date (YYYY-MM-DD) for quote mode")
	port := flag.String("port", config.AppConfig.Server.Port, "Port for API mode")
	flag.Parse()

	switch *mode {
	case "ingest":
		logger.L().Info().Strs("files", files).Msg("running symbol ingestion")

		db, err := app.InitPostgres(config.AppConfig)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("db connect error")
		}
		defer func() { _ = db.Close() }()

		n, err := ingestion.ProcessFiles(ctx, db, files)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("ingestion failed")
		}
		logger.L().Info().Int("symbols", n).Msg("ingestion completed successfully")

	case "migrate":
		db, err := app.InitPostgres(config.AppConfig)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("db connect error")
		}
		defer func() { _ = db.Close() }()

		if err := app.Migrate(db, *migrations); err != nil {
			logger.L().Fatal().Err(err).Msg("migration failed")
		}
		logger.L().Info().Str("dir", *migrations).Msg("migrations applied")

	case "quote":
		// stdout carries the JSON result
		logger.InitWithWriter(os.Stderr)
		svc := app.NewQuoteService(config.AppConfig)
		list := config.SplitSymbols(*symbols)
		if len(list) == 0 {
			list = config.AppConfig.Quote.PopularSymbols
		}
		if err := runQuotes(ctx, svc, os.Stdout, list, *sparkline, *date); err != nil {
			logger.L().Fatal().Err(err).Msg("quote failed")
		}

	case "api":
		logger.L().Info().Msg("starting API server")

		router, cleanup, err := app.InitializeApp()
		if err != nil {
			logger.L().Fatal().Err(err).Msg("app init error")
		}

		server := startServer(router, *port)
		gracefulShutdown(ctx, server, cleanup)

	default:
		logger.L().Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}
