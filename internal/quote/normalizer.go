package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/stockpulse/internal/domain/models"
	"github.com/guttosm/stockpulse/internal/upstream"
)

var (
	// ErrAbsent means the requested quote or price could not be produced.
	// Callers treat it as "not found"; the wrapped errors say why.
	ErrAbsent = errors.New("quote absent")
	// ErrNoPrice means no link of the price chain resolved.
	ErrNoPrice = fmt.Errorf("%w: no resolvable price", ErrAbsent)
	// ErrInvalidSymbol is returned for blank symbols.
	ErrInvalidSymbol = fmt.Errorf("%w: invalid symbol", ErrAbsent)
)

// Source labels written into Provenance for values that did not come from a snapshot.
const (
	SourceDefault = "default"
	SourcePrice   = "price"
	SourceSymbol  = "symbol"
)

// Field is a value that may or may not have been resolved from a snapshot.
type Field[T any] struct {
	Value    T
	Source   string
	Resolved bool
}

// Or returns the resolved value, or def.
func (f Field[T]) Or(def T) T {
	if f.Resolved {
		return f.Value
	}
	return def
}

// SnapshotResult is the outcome of one snapshot call.
type SnapshotResult struct {
	Snapshot upstream.Snapshot
	Err      error
}

// Provenance records which link supplied each quote field, e.g. "fast.lastPrice".
type Provenance struct {
	Price         string
	PreviousClose string
	Volume        string
	MarketCap     string
	Name          string
	PERatio       string
}

// ref points at one key of one snapshot in a fallback chain.
type ref struct {
	label string
	snap  upstream.Snapshot
	key   string
}

func (r ref) source() string { return r.label + "." + r.key }

// Normalize reconciles the fast and full snapshots into a Quote.
//
// Each field walks its own fallback chain and the first resolvable link wins.
// A failed snapshot contributes nothing. The price is the only mandatory field:
// without it the result is an error wrapping ErrNoPrice and the snapshot errors.
func Normalize(symbol string, fast, full SnapshotResult, now time.Time) (models.Quote, Provenance, error) {
	symbol = NormalizeSymbol(symbol)

	var fastSnap, fullSnap upstream.Snapshot
	if fast.Err == nil {
		fastSnap = fast.Snapshot
	}
	if full.Err == nil {
		fullSnap = full.Snapshot
	}
	f := func(key string) ref { return ref{label: "fast", snap: fastSnap, key: key} }
	u := func(key string) ref { return ref{label: "full", snap: fullSnap, key: key} }

	price := firstFloat(positive,
		f(upstream.FieldLastPrice),
		f(upstream.FieldRegularMarketPrice),
		u(upstream.FieldCurrentPrice),
		u(upstream.FieldRegularMarketPrice),
	)
	if !price.Resolved {
		err := errors.Join(ErrNoPrice, fast.Err, full.Err)
		return models.Quote{}, Provenance{}, fmt.Errorf("normalize %s: %w", symbol, err)
	}

	prevClose := firstFloat(positive,
		f(upstream.FieldPreviousClose),
		u(upstream.FieldPreviousClose),
		u(upstream.FieldRegularMarketPreviousClose),
	)
	volume := firstFloat(countable,
		f(upstream.FieldLastVolume),
		f(upstream.FieldVolume),
		u(upstream.FieldVolume),
		u(upstream.FieldRegularMarketVolume),
	)
	marketCap := firstFloat(countable,
		f(upstream.FieldMarketCap),
		u(upstream.FieldMarketCap),
	)
	name := firstString(
		u(upstream.FieldLongName),
		u(upstream.FieldShortName),
	)
	pe := firstFloat(anyFinite, u(upstream.FieldTrailingPE))

	p := price.Value
	prev := prevClose.Or(p)
	change := p - prev
	changePct := 0.0
	if prev != 0 {
		changePct = change / prev * 100
	}

	q := models.Quote{
		Symbol:        symbol,
		Name:          name.Or(symbol),
		Price:         round2(p),
		Change:        round2(change),
		ChangePercent: round2(changePct),
		Volume:        int64(math.Round(volume.Or(0))),
		MarketCap:     int64(math.Round(marketCap.Or(0))),
		UpdatedAt:     now.UTC(),
	}
	if pe.Resolved {
		v := round2(pe.Value)
		q.PERatio = &v
	}

	prov := Provenance{
		Price:         price.Source,
		PreviousClose: sourceOr(prevClose, SourcePrice),
		Volume:        sourceOr(volume, SourceDefault),
		MarketCap:     sourceOr(marketCap, SourceDefault),
		Name:          sourceOr(name, SourceSymbol),
		PERatio:       pe.Source,
	}
	return q, prov, nil
}

func sourceOr[T any](f Field[T], fallback string) string {
	if f.Resolved {
		return f.Source
	}
	return fallback
}

func positive(v float64) bool { return v > 0 }
func anyFinite(float64) bool  { return true }

// countable accepts values that convert to a non-negative int64.
func countable(v float64) bool { return v >= 0 && v < math.MaxInt64 }

func firstFloat(accept func(float64) bool, refs ...ref) Field[float64] {
	for _, r := range refs {
		if r.snap == nil {
			continue
		}
		if v, ok := toFloat(r.snap[r.key]); ok && accept(v) {
			return Field[float64]{Value: v, Source: r.source(), Resolved: true}
		}
	}
	return Field[float64]{}
}

func firstString(refs ...ref) Field[string] {
	for _, r := range refs {
		if r.snap == nil {
			continue
		}
		if s, ok := r.snap[r.key].(string); ok && strings.TrimSpace(s) != "" {
			return Field[string]{Value: strings.TrimSpace(s), Source: r.source(), Resolved: true}
		}
	}
	return Field[string]{}
}

// toFloat accepts the numeric shapes a JSON decoder or an SDK may produce.
// Anything else, including NaN and infinities, is unresolved.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// round2 rounds half away from zero to 2 decimal places.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
