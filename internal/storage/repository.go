package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	pq "github.com/lib/pq"

	"github.com/guttosm/stockpulse/internal/domain/models"
)

const (
	// DefaultListLimit applies when ListSymbols is called with a non-positive limit.
	DefaultListLimit = 100
	// MaxListLimit caps a single ListSymbols page.
	MaxListLimit = 1000
)

// SymbolsRepository defines contract for the exchange symbol directory.
type SymbolsRepository interface {
	ReplaceSymbols(ctx context.Context, exchange string, symbols []models.Symbol) error
	ListSymbols(ctx context.Context, query string, limit int) ([]models.Symbol, error)
}

type symbolsRepository struct {
	db *sql.DB
}

func NewSymbolsRepository(db *sql.DB) SymbolsRepository {
	return &symbolsRepository{db: db}
}

// ReplaceSymbols swaps every row of one exchange for the given list in a
// single transaction, so readers see either the old list or the new one.
func (r *symbolsRepository) ReplaceSymbols(ctx context.Context, exchange string, symbols []models.Symbol) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Small optimization for bulk load
	if _, err := tx.ExecContext(ctx, `SET LOCAL synchronous_commit = OFF`); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE exchange = $1`, exchange); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear %s symbols: %w", exchange, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("symbols", "symbol", "name", "series", "exchange"))
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	for _, s := range symbols {
		if _, err := stmt.ExecContext(ctx, s.Symbol, s.Name, s.Series, exchange); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("copy symbol %s: %w", s.Symbol, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return err
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// ListSymbols returns symbols whose ticker or company name contains query,
// case-insensitively, ordered by ticker. An empty query lists everything.
func (r *symbolsRepository) ListSymbols(ctx context.Context, query string, limit int) ([]models.Symbol, error) {
	limit = ClampLimit(limit)

	// $1 is the pattern when a query is given; the limit always comes last.
	var (
		where string
		args  []interface{}
	)
	if q := strings.TrimSpace(query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		where = "WHERE symbol ILIKE $1 OR name ILIKE $1"
	}
	args = append(args, limit)

	stmt := fmt.Sprintf(`
		SELECT symbol, name, series, exchange
		FROM symbols
		%s
		ORDER BY symbol, exchange
		LIMIT $%d
	`, where, len(args))

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.Symbol, 0)
	for rows.Next() {
		var s models.Symbol
		if err := rows.Scan(&s.Symbol, &s.Name, &s.Series, &s.Exchange); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ClampLimit maps a requested page size into [1, MaxListLimit], with
// non-positive values meaning DefaultListLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
