package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/guttosm/stockpulse/internal/domain/models"
	"github.com/guttosm/stockpulse/internal/logger"
	"github.com/guttosm/stockpulse/internal/upstream"
)

// ErrNoHistory means neither the plain nor the suffixed symbol had bars in the window.
var ErrNoHistory = fmt.Errorf("%w: no bars in window", ErrAbsent)

// History resolves the price of a symbol on a calendar date.
//
// It does not consult a trading calendar. It reads the bars from the target
// date through the next windowDays days and takes the low of the first one,
// which approximates "the price on that day or the next trading day".
type History struct {
	client     upstream.Client
	windowDays int
	suffix     string
	log        zerolog.Logger
}

// NewHistory builds a History. suffix is the regional suffix tried once for
// plain symbols without bars (e.g. ".NS"); empty disables the retry.
func NewHistory(client upstream.Client, windowDays int, suffix string) *History {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &History{
		client:     client,
		windowDays: windowDays,
		suffix:     strings.ToUpper(suffix),
		log:        logger.Component("quote.history"),
	}
}

// HasRegionalSuffix reports whether a ticker already names its market, as in
// "RELIANCE.NS". Share classes upstream use a dash ("BRK-B"), so any dot marks a suffix.
func HasRegionalSuffix(symbol string) bool {
	return strings.Contains(symbol, ".")
}

// PriceOn returns the intraday low of the first bar at or after date.
func (h *History) PriceOn(ctx context.Context, symbol string, date time.Time) (float64, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return 0, ErrInvalidSymbol
	}
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, h.windowDays)

	bar, err := h.firstBar(ctx, sym, start, end)
	if err != nil && h.suffix != "" && !HasRegionalSuffix(sym) {
		alt := sym + h.suffix
		h.log.Debug().Str("symbol", sym).Str("retry", alt).Err(err).Msg("no bars for plain symbol")
		altBar, altErr := h.firstBar(ctx, alt, start, end)
		if altErr != nil {
			err = errors.Join(err, altErr)
		} else {
			bar, err = altBar, nil
		}
	}
	if err != nil {
		h.log.Info().Str("symbol", sym).Time("date", start).Err(err).Msg("historical price miss")
		return 0, fmt.Errorf("history %s on %s: %w", sym, start.Format(time.DateOnly), err)
	}
	return round2(bar.Low), nil
}

// firstBar queries one symbol and returns its chronologically first bar on or
// after start. Any failure, including an empty window, wraps ErrNoHistory.
func (h *History) firstBar(ctx context.Context, symbol string, start, end time.Time) (models.Bar, error) {
	bars, err := h.client.DailyBars(ctx, symbol, start, end)
	if err != nil {
		return models.Bar{}, fmt.Errorf("%w: %s: %w", ErrNoHistory, symbol, err)
	}

	var (
		first models.Bar
		found bool
	)
	for _, b := range bars {
		if b.Date.Before(start) {
			continue
		}
		if !found || b.Date.Before(first.Date) {
			first, found = b, true
		}
	}
	if !found {
		return models.Bar{}, fmt.Errorf("%w: %s", ErrNoHistory, symbol)
	}
	return first, nil
}
