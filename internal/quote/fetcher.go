package quote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/guttosm/stockpulse/internal/domain/models"
	"github.com/guttosm/stockpulse/internal/logger"
)

// ErrFetchTimeout is logged for symbols that exceeded their per-symbol budget.
var ErrFetchTimeout = errors.New("fetch timed out")

// FetchFunc retrieves one quote.
type FetchFunc func(ctx context.Context, symbol string) (models.Quote, error)

// Fetcher retrieves a batch of quotes concurrently with a bounded worker pool.
//
// Failed or timed-out symbols are dropped from the result. A timed-out call is
// abandoned rather than cancelled: it keeps running on a context detached from
// the caller and may still finish (and fill the cache) after the batch returns.
type Fetcher struct {
	fetch   FetchFunc
	workers int
	timeout time.Duration
	log     zerolog.Logger
}

// DefaultFetchTimeout is the per-symbol budget used when none is configured.
const DefaultFetchTimeout = 10 * time.Second

// NewFetcher builds a Fetcher. Non-positive workers fall back to 1 and a
// non-positive timeout to DefaultFetchTimeout.
func NewFetcher(fetch FetchFunc, workers int, timeout time.Duration) *Fetcher {
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		fetch:   fetch,
		workers: workers,
		timeout: timeout,
		log:     logger.Component("quote.fetcher"),
	}
}

type fetchResult struct {
	quote models.Quote
	err   error
}

// FetchAll returns the quotes that could be retrieved, in completion order.
// It never fails as a whole; callers needing a stable order must sort.
func (f *Fetcher) FetchAll(ctx context.Context, symbols []string) []models.Quote {
	var (
		mu  sync.Mutex
		out = make([]models.Quote, 0, len(symbols))
	)

	start := time.Now()
	f.log.Info().Int("symbols", len(symbols)).Int("workers", f.workers).Msg("batch start")

	g := new(errgroup.Group)
	g.SetLimit(f.workers)
	for _, sym := range symbols {
		g.Go(func() error {
			q, err := f.fetchOne(ctx, sym)
			if err != nil {
				f.log.Warn().Str("symbol", sym).Err(err).Msg("symbol dropped from batch")
				return nil
			}
			mu.Lock()
			out = append(out, q)
			mu.Unlock()
			f.log.Info().Str("symbol", sym).Msg("symbol fetched")
			return nil
		})
	}
	_ = g.Wait()

	f.log.Info().Int("fetched", len(out)).Int("requested", len(symbols)).Dur("elapsed", time.Since(start)).Msg("batch done")
	return out
}

// fetchOne waits for one symbol up to the per-symbol timeout. Nothing is
// started once ctx is done.
func (f *Fetcher) fetchOne(ctx context.Context, symbol string) (models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return models.Quote{}, err
	}

	done := make(chan fetchResult, 1)
	go func() {
		q, err := f.fetch(context.WithoutCancel(ctx), symbol)
		done <- fetchResult{quote: q, err: err}
	}()

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.quote, r.err
	case <-timer.C:
		return models.Quote{}, ErrFetchTimeout
	case <-ctx.Done():
		return models.Quote{}, ctx.Err()
	}
}
