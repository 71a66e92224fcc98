package models

import (
	"slices"
	"time"
)

// Quote is the canonical quote record produced by the quote layer.
//
// Fields:
//   - Symbol: upper-cased ticker (e.g., "AAPL", "RELIANCE.NS").
//   - Name: company display name, or the symbol when none is known.
//   - Price: current price rounded to 2 decimals. Always present.
//   - Change / ChangePercent: difference to the previous close (zero when it is unknown).
//   - Volume / MarketCap: 0 when unavailable.
//   - PERatio: trailing P/E, nil when unknown. Zero is a valid ratio.
//   - UpdatedAt: when this record was produced, not the upstream timestamp.
//   - Sparkline: trailing month of daily closes. Nil when not requested,
//     empty when requested but unavailable.
//
// swagger:model Quote
type Quote struct {
	Symbol        string    `json:"symbol" example:"AAPL"`
	Name          string    `json:"name" example:"Apple Inc."`
	Price         float64   `json:"price" example:"150.00"`
	Change        float64   `json:"change" example:"2.00"`
	ChangePercent float64   `json:"change_percent" example:"1.35"`
	Volume        int64     `json:"volume" example:"51234000"`
	MarketCap     int64     `json:"market_cap" example:"2400000000000"`
	PERatio       *float64  `json:"pe_ratio" example:"29.4"`
	UpdatedAt     time.Time `json:"updated_at"`
	Sparkline     []float64 `json:"sparkline,omitzero"`
}

// Clone returns a deep copy so cached records can't be mutated through a caller's copy.
func (q Quote) Clone() Quote {
	out := q
	if q.PERatio != nil {
		pe := *q.PERatio
		out.PERatio = &pe
	}
	if q.Sparkline != nil {
		out.Sparkline = slices.Clone(q.Sparkline)
	}
	return out
}
