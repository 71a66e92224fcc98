package dto

import "github.com/guttosm/stockpulse/internal/domain/models"

// PopularResponse is returned by GET /api/v1/stocks/popular.
type PopularResponse struct {
	Stocks []models.Quote `json:"stocks"`
	Count  int            `json:"count" example:"5"`
}

// SearchResponse is returned by GET /api/v1/stocks/search.
type SearchResponse struct {
	Results []models.Quote `json:"results"`
	Count   int            `json:"count" example:"1"`
	Query   string         `json:"query" example:"aapl"`
}

// HistoricalPriceResponse is returned by GET /api/v1/stocks/history/{symbol}.
//
// Price is the intraday low of the first trading day on or after Date.
type HistoricalPriceResponse struct {
	Symbol string  `json:"symbol" example:"AAPL"`
	Date   string  `json:"date" example:"2024-03-02"`
	Price  float64 `json:"price" example:"171.25"`
}

// SymbolsResponse is returned by GET /api/v1/stocks/symbols.
type SymbolsResponse struct {
	Symbols []models.Symbol `json:"symbols"`
	Count   int             `json:"count" example:"100"`
}
