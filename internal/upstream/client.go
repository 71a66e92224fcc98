// Package upstream adapts the external market-data source.
//
// The source is treated as unreliable: calls can be slow, fields can be
// missing, and symbols can be unknown. Every error returned by a Client wraps
// exactly one of ErrUnavailable, ErrNotFound or ErrMalformed.
package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/guttosm/stockpulse/internal/domain/models"
)

var (
	// ErrUnavailable covers transport failures, timeouts, throttling and 5xx answers.
	ErrUnavailable = errors.New("upstream unavailable")
	// ErrNotFound means the source has no data for the symbol.
	ErrNotFound = errors.New("symbol not found upstream")
	// ErrMalformed means the payload could not be decoded.
	ErrMalformed = errors.New("malformed upstream payload")
)

// Field names used in snapshots. Fast and full snapshots share a namespace;
// each snapshot only carries the subset its endpoint exposes.
const (
	FieldLastPrice                  = "lastPrice"
	FieldRegularMarketPrice         = "regularMarketPrice"
	FieldCurrentPrice               = "currentPrice"
	FieldPreviousClose              = "previousClose"
	FieldRegularMarketPreviousClose = "regularMarketPreviousClose"
	FieldLastVolume                 = "lastVolume"
	FieldVolume                     = "volume"
	FieldRegularMarketVolume        = "regularMarketVolume"
	FieldMarketCap                  = "marketCap"
	FieldLongName                   = "longName"
	FieldShortName                  = "shortName"
	FieldTrailingPE                 = "trailingPE"
)

// Snapshot is a raw bag of upstream fields. Values are whatever the source
// sent (usually float64 or string); absent keys and JSON nulls mean "unknown".
type Snapshot map[string]any

// Client is the capability the quote layer needs from a market-data source.
type Client interface {
	// FastSnapshot returns the lightweight, low-latency quote fields.
	FastSnapshot(ctx context.Context, symbol string) (Snapshot, error)
	// FullSnapshot returns the slower snapshot with company metadata.
	FullSnapshot(ctx context.Context, symbol string) (Snapshot, error)
	// DailyBars returns daily bars for the inclusive [start, end] date range,
	// oldest first. A known symbol without bars in the range yields an empty
	// slice; an unknown symbol yields ErrNotFound.
	DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)
}
