package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/stockpulse/internal/domain/dto"
	"github.com/guttosm/stockpulse/internal/service"
)

// Handler provides HTTP handlers for the stock quote endpoints.
//
// Responsibilities:
//   - Validate path and query parameters
//   - Call the stock service with the request context
//   - Map "absent" results to 404 and unexpected failures to the error handler
//   - Return structured JSON responses
type Handler struct {
	svc service.StockService
}

// NewHandler constructs a new Handler instance.
func NewHandler(svc service.StockService) *Handler {
	return &Handler{svc: svc}
}

// GetQuote godoc
// @Summary      Get current quote
// @Description  Returns the normalized quote for a symbol, optionally with a one-month sparkline of daily closes
// @Tags         stocks
// @Produce      json
// @Param        symbol     path      string  true   "Ticker symbol" example(AAPL)
// @Param        sparkline  query     bool    false  "Include one-month close series"
// @Success      200        {object}  models.Quote       "Success"
// @Failure      400        {object}  dto.ErrorResponse  "Bad Request"
// @Failure      404        {object}  dto.ErrorResponse  "Not Found"
// @Failure      500        {object}  dto.ErrorResponse  "Internal Error"
// @Router       /api/v1/stocks/quote/{symbol} [get]
func (h *Handler) GetQuote(c *gin.Context) {
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("symbol is required", nil))
		return
	}

	sparkline := false
	if s := c.Query("sparkline"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid sparkline flag, expected true or false", err))
			return
		}
		sparkline = v
	}

	q, err := h.svc.GetQuote(c.Request.Context(), symbol, sparkline)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if q == nil {
		msg := fmt.Sprintf("stock symbol '%s' not found or data unavailable", symbol)
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(msg, nil))
		return
	}

	c.JSON(http.StatusOK, q)
}

// GetPopular godoc
// @Summary      Popular stocks
// @Description  Returns quotes for the configured popular symbols; symbols that fail are left out
// @Tags         stocks
// @Produce      json
// @Success      200  {object}  dto.PopularResponse
// @Router       /api/v1/stocks/popular [get]
func (h *Handler) GetPopular(c *gin.Context) {
	stocks := h.svc.GetPopular(c.Request.Context())
	c.JSON(http.StatusOK, dto.PopularResponse{Stocks: stocks, Count: len(stocks)})
}

// Search godoc
// @Summary      Search stocks
// @Description  Treats the query as a ticker and returns its quote when one exists
// @Tags         stocks
// @Produce      json
// @Param        q    query     string  true  "Symbol to look up" example(aapl)
// @Success      200  {object}  dto.SearchResponse
// @Failure      400  {object}  dto.ErrorResponse  "Bad Request"
// @Router       /api/v1/stocks/search [get]
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("q is required", nil))
		return
	}

	results := h.svc.Search(c.Request.Context(), query)
	c.JSON(http.StatusOK, dto.SearchResponse{Results: results, Count: len(results), Query: query})
}

// GetHistoricalPrice godoc
// @Summary      Historical price
// @Description  Returns the intraday low of the first trading day on or after the given date
// @Tags         stocks
// @Produce      json
// @Param        symbol  path      string  true  "Ticker symbol" example(AAPL)
// @Param        date    query     string  true  "Date in YYYY-MM-DD" example(2024-03-02)
// @Success      200     {object}  dto.HistoricalPriceResponse
// @Failure      400     {object}  dto.ErrorResponse  "Bad Request"
// @Failure      404     {object}  dto.ErrorResponse  "Not Found"
// @Failure      500     {object}  dto.ErrorResponse  "Internal Error"
// @Router       /api/v1/stocks/history/{symbol} [get]
func (h *Handler) GetHistoricalPrice(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("symbol is required", nil))
		return
	}

	raw := c.Query("date")
	if raw == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("date is required", nil))
		return
	}
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid date format, expected YYYY-MM-DD", err))
		return
	}

	price, err := h.svc.GetHistoricalPrice(c.Request.Context(), symbol, date)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if price == nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse("no price data found", nil))
		return
	}

	c.JSON(http.StatusOK, dto.HistoricalPriceResponse{Symbol: symbol, Date: raw, Price: *price})
}

// ListSymbols godoc
// @Summary      Exchange symbol directory
// @Description  Lists loaded exchange symbols whose ticker or company name contains q
// @Tags         symbols
// @Produce      json
// @Param        q      query     string  false  "Filter on ticker or company name" example(reliance)
// @Param        limit  query     int     false  "Page size (default 100, max 1000)"
// @Success      200    {object}  dto.SymbolsResponse
// @Failure      400    {object}  dto.ErrorResponse  "Bad Request"
// @Failure      500    {object}  dto.ErrorResponse  "Internal Error"
// @Failure      503    {object}  dto.ErrorResponse  "Directory not configured"
// @Router       /api/v1/stocks/symbols [get]
func (h *Handler) ListSymbols(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid limit, expected an integer", err))
			return
		}
		limit = v
	}

	symbols, err := h.svc.ListSymbols(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		if errors.Is(err, service.ErrNoDirectory) {
			c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse("symbol directory unavailable", err))
			return
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SymbolsResponse{Symbols: symbols, Count: len(symbols)})
}
