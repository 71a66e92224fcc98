package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/guttosm/stockpulse/internal/domain/models"
)

// Column names as published in exchange equity lists. Headers are matched
// after trimming and upper-casing, so " SERIES" and "Series" both match.
const (
	colSymbol = "SYMBOL"
	colName   = "NAME OF COMPANY"
	colSeries = "SERIES"
)

// ErrMissingColumn is returned when a required header is not present.
var ErrMissingColumn = errors.New("missing required column")

// parseSymbolFile opens and parses one exchange list.
func parseSymbolFile(ctx context.Context, path string) ([]models.Symbol, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	return parseSymbols(ctx, f)
}

// parseSymbols reads a comma separated symbol list. It fails on:
//   - a missing SYMBOL or NAME OF COMPANY column
//   - malformed CSV
//
// It tolerates:
//   - extra columns in any order
//   - rows with an empty symbol (skipped)
//   - repeated (symbol, series) pairs (first one wins)
func parseSymbols(ctx context.Context, r io.Reader) ([]models.Symbol, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := indexHeader(header)

	symIdx, ok := idx[colSymbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colSymbol)
	}
	nameIdx, ok := idx[colName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colName)
	}
	seriesIdx, hasSeries := idx[colSeries]

	var (
		out  []models.Symbol
		seen = map[string]struct{}{}
		line = 1
	)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := cr.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read line after %d: %w", line, err)
		}
		line++

		sym := strings.ToUpper(cell(rec, symIdx))
		if sym == "" {
			continue
		}
		s := models.Symbol{Symbol: sym, Name: cell(rec, nameIdx)}
		if hasSeries {
			s.Series = cell(rec, seriesIdx)
		}

		key := s.Symbol + "|" + s.Series
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}

	return out, nil
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.ToUpper(strings.TrimSpace(h))
		if _, exists := idx[h]; !exists {
			idx[h] = i
		}
	}
	return idx
}

// cell returns the trimmed value at i, or "" for short rows.
func cell(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
