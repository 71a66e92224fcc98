package app

import (
	"net/http"

	"github.com/guttosm/stockpulse/config"
	"github.com/guttosm/stockpulse/internal/quote"
	"github.com/guttosm/stockpulse/internal/upstream"
)

// upstreamCtor is an indirection for building the market-data client; tests override it.
var upstreamCtor = func(cfg config.Config) upstream.Client {
	return upstream.NewYahooClient(
		upstream.WithBaseURL(cfg.Upstream.BaseURL),
		upstream.WithUserAgent(cfg.Upstream.UserAgent),
		upstream.WithHTTPClient(&http.Client{Timeout: cfg.Upstream.Timeout}),
	)
}

// NewQuoteService builds the quote layer from configuration.
//
// It needs no database: the CLI quote mode uses it on its own.
func NewQuoteService(cfg config.Config) *quote.Service {
	return quote.NewService(upstreamCtor(cfg), QuoteSettings(cfg))
}

// QuoteSettings maps configuration onto quote.Settings.
func QuoteSettings(cfg config.Config) quote.Settings {
	return quote.Settings{
		CacheTTL:          cfg.Quote.CacheTTL,
		CacheMaxEntries:   cfg.Quote.CacheMaxEntries,
		Workers:           cfg.Quote.FanoutWorkers,
		FetchTimeout:      cfg.Quote.FanoutTimeout,
		HistoryWindowDays: cfg.Quote.HistoryWindowDays,
		FallbackSuffix:    cfg.Quote.HistoryFallbackSuffix,
		PopularSymbols:    cfg.Quote.PopularSymbols,
	}
}
