package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/guttosm/stockpulse/internal/domain/models"
	"github.com/guttosm/stockpulse/internal/quote"
	"github.com/guttosm/stockpulse/internal/storage"
)

// ErrNoDirectory is returned by ListSymbols when no symbol repository is wired.
var ErrNoDirectory = errors.New("symbol directory not configured")

// QuoteProvider is the subset of quote.Service the facade depends on.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string, includeSparkline bool) (models.Quote, error)
	GetPopularQuotes(ctx context.Context, symbols []string) []models.Quote
	GetHistoricalPrice(ctx context.Context, symbol string, date time.Time) (float64, error)
	Search(ctx context.Context, query string) []models.Quote
}

var _ QuoteProvider = (*quote.Service)(nil)

// StockService defines the operations exposed over HTTP.
//
// Lookups that find nothing return a nil result and a nil error, so callers
// can tell "absent" from "failed".
type StockService interface {
	GetQuote(ctx context.Context, symbol string, includeSparkline bool) (*models.Quote, error)
	GetPopular(ctx context.Context) []models.Quote
	Search(ctx context.Context, query string) []models.Quote
	GetHistoricalPrice(ctx context.Context, symbol string, date time.Time) (*float64, error)
	ListSymbols(ctx context.Context, query string, limit int) ([]models.Symbol, error)
}

type stockService struct {
	quotes QuoteProvider
	repo   storage.SymbolsRepository
}

// NewStockService composes the quote layer and the symbol directory. repo may
// be nil when no database is available; ListSymbols then fails with ErrNoDirectory.
func NewStockService(quotes QuoteProvider, repo storage.SymbolsRepository) StockService {
	return &stockService{quotes: quotes, repo: repo}
}

func (s *stockService) GetQuote(ctx context.Context, symbol string, includeSparkline bool) (*models.Quote, error) {
	q, err := s.quotes.GetQuote(ctx, symbol, includeSparkline)
	if err != nil {
		if errors.Is(err, quote.ErrAbsent) {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

// GetPopular returns the configured popular quotes ordered by symbol.
func (s *stockService) GetPopular(ctx context.Context) []models.Quote {
	out := s.quotes.GetPopularQuotes(ctx, nil)
	slices.SortFunc(out, func(a, b models.Quote) int { return strings.Compare(a.Symbol, b.Symbol) })
	return out
}

func (s *stockService) Search(ctx context.Context, query string) []models.Quote {
	return s.quotes.Search(ctx, query)
}

func (s *stockService) GetHistoricalPrice(ctx context.Context, symbol string, date time.Time) (*float64, error) {
	price, err := s.quotes.GetHistoricalPrice(ctx, symbol, date)
	if err != nil {
		if errors.Is(err, quote.ErrAbsent) {
			return nil, nil
		}
		return nil, err
	}
	return &price, nil
}

func (s *stockService) ListSymbols(ctx context.Context, query string, limit int) ([]models.Symbol, error) {
	if s.repo == nil {
		return nil, ErrNoDirectory
	}
	return s.repo.ListSymbols(ctx, query, limit)
}
