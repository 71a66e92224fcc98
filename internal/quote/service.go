// Package quote turns the unreliable upstream market-data source into cached,
// normalized quote records.
//
// Data flow for a single quote: Cache (check) → upstream fast + full snapshots
// → Normalize → Cache (store). Batches go through Fetcher; historical prices
// go through History and bypass the cache.
package quote

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/guttosm/stockpulse/internal/domain/models"
	"github.com/guttosm/stockpulse/internal/logger"
	"github.com/guttosm/stockpulse/internal/upstream"
)

// Settings tunes a Service.
type Settings struct {
	CacheTTL          time.Duration
	CacheMaxEntries   int
	Workers           int
	FetchTimeout      time.Duration
	HistoryWindowDays int
	FallbackSuffix    string
	PopularSymbols    []string
}

// Service is the caller-facing quote API.
type Service struct {
	client  upstream.Client
	cache   *Cache
	fetcher *Fetcher
	history *History
	popular []string
	now     func() time.Time
	log     zerolog.Logger
}

// NewService wires a Service around an upstream client.
func NewService(client upstream.Client, s Settings) *Service {
	svc := &Service{
		client:  client,
		cache:   NewCache(s.CacheTTL, s.CacheMaxEntries),
		history: NewHistory(client, s.HistoryWindowDays, s.FallbackSuffix),
		popular: slices.Clone(s.PopularSymbols),
		now:     time.Now,
		log:     logger.Component("quote.service"),
	}
	svc.fetcher = NewFetcher(func(ctx context.Context, symbol string) (models.Quote, error) {
		return svc.GetQuote(ctx, symbol, false)
	}, s.Workers, s.FetchTimeout)
	return svc
}

// GetQuote returns the quote for symbol, from cache when fresh.
// Every error wraps ErrAbsent.
func (s *Service) GetQuote(ctx context.Context, symbol string, includeSparkline bool) (models.Quote, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return models.Quote{}, ErrInvalidSymbol
	}

	key := Key(sym, Options{Sparkline: includeSparkline})
	if q, ok := s.cache.Get(key); ok {
		return q, nil
	}

	s.log.Info().Str("symbol", sym).Bool("sparkline", includeSparkline).Msg("fetching fresh quote")

	fast, fastErr := s.client.FastSnapshot(ctx, sym)
	if fastErr != nil {
		s.log.Debug().Str("symbol", sym).Err(fastErr).Msg("fast snapshot failed, falling back")
	}
	full, fullErr := s.client.FullSnapshot(ctx, sym)
	if fullErr != nil {
		s.log.Debug().Str("symbol", sym).Err(fullErr).Msg("full snapshot failed")
	}

	q, prov, err := Normalize(sym,
		SnapshotResult{Snapshot: fast, Err: fastErr},
		SnapshotResult{Snapshot: full, Err: fullErr},
		s.now(),
	)
	if err != nil {
		s.log.Warn().Str("symbol", sym).Err(err).Msg("quote unavailable")
		return models.Quote{}, err
	}
	s.log.Debug().
		Str("symbol", sym).
		Str("price_from", prov.Price).
		Str("prev_close_from", prov.PreviousClose).
		Str("name_from", prov.Name).
		Msg("quote normalized")

	if includeSparkline {
		q.Sparkline = s.sparkline(ctx, sym)
	}

	s.cache.Put(key, q)
	return q, nil
}

// GetPopularQuotes fetches a batch concurrently; an empty list means the
// configured popular symbols. Partial results are normal.
func (s *Service) GetPopularQuotes(ctx context.Context, symbols []string) []models.Quote {
	if len(symbols) == 0 {
		symbols = s.popular
	}
	return s.fetcher.FetchAll(ctx, symbols)
}

// GetHistoricalPrice returns the low of the first trading day at or after date.
func (s *Service) GetHistoricalPrice(ctx context.Context, symbol string, date time.Time) (float64, error) {
	return s.history.PriceOn(ctx, symbol, date)
}

// Search treats the query as a ticker and returns its quote, if any.
func (s *Service) Search(ctx context.Context, query string) []models.Quote {
	q, err := s.GetQuote(ctx, query, false)
	if err != nil {
		return []models.Quote{}
	}
	return []models.Quote{q}
}

// sparkline returns the trailing month of daily closes, oldest first. Any
// failure yields an empty, non-nil slice so the quote itself still succeeds.
func (s *Service) sparkline(ctx context.Context, symbol string) []float64 {
	now := s.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, -1, 0)

	bars, err := s.client.DailyBars(ctx, symbol, start, end)
	if err != nil {
		s.log.Debug().Str("symbol", symbol).Err(err).Msg("sparkline unavailable")
		return []float64{}
	}

	bars = slices.Clone(bars)
	slices.SortStableFunc(bars, func(a, b models.Bar) int { return a.Date.Compare(b.Date) })

	out := make([]float64, 0, len(bars))
	for _, b := range bars {
		out = append(out, round2(b.Close))
	}
	return out
}
