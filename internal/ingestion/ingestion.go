package ingestion

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/stockpulse/internal/logger"
	"github.com/guttosm/stockpulse/internal/storage"
)

// DefaultExchange is assumed for file arguments without an "EXCHANGE=" prefix.
const DefaultExchange = "NSE"

// repoCtor is an indirection for creating the repository; tests can override this.
var repoCtor = func(db *sql.DB) storage.SymbolsRepository {
	return storage.NewSymbolsRepository(db)
}

// SymbolFile is one exchange list to load.
type SymbolFile struct {
	Exchange string
	Path     string
}

// ParseFileArg reads "EXCHANGE=path" or a bare path (DefaultExchange).
func ParseFileArg(arg string) (SymbolFile, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return SymbolFile{}, fmt.Errorf("empty file argument")
	}
	exchange, path, found := strings.Cut(arg, "=")
	if !found {
		return SymbolFile{Exchange: DefaultExchange, Path: arg}, nil
	}
	exchange = strings.ToUpper(strings.TrimSpace(exchange))
	path = strings.TrimSpace(path)
	if exchange == "" || path == "" {
		return SymbolFile{}, fmt.Errorf("invalid file argument %q: want EXCHANGE=path", arg)
	}
	return SymbolFile{Exchange: exchange, Path: path}, nil
}

// ProcessFiles parses the CLI file arguments and loads them into the
// database behind db. It returns the number of symbols stored.
func ProcessFiles(ctx context.Context, db *sql.DB, args []string) (int, error) {
	files := make([]SymbolFile, 0, len(args))
	for _, a := range args {
		f, err := ParseFileArg(a)
		if err != nil {
			return 0, err
		}
		files = append(files, f)
	}
	// use indirection to allow tests to swap repository constructor
	return LoadSymbolFiles(ctx, repoCtor(db), files...)
}

// LoadSymbolFiles parses every file concurrently and replaces each
// exchange's rows with the parsed list.
//
// Behavior:
//   - At most one file per exchange; duplicates fail before any work starts.
//   - Concurrency is bounded by min(len(files), NumCPU).
//   - If any file fails, the rest are cancelled and that error is returned.
//     Exchanges already replaced stay replaced.
//
// Returns:
//   - int: total number of symbols stored.
//   - error: first error encountered (if any).
func LoadSymbolFiles(ctx context.Context, repo storage.SymbolsRepository, files ...SymbolFile) (int, error) {
	if len(files) == 0 {
		return 0, fmt.Errorf("no symbol files given")
	}
	seen := make(map[string]string, len(files))
	for _, f := range files {
		if prev, dup := seen[f.Exchange]; dup {
			return 0, fmt.Errorf("exchange %s given twice (%s, %s)", f.Exchange, prev, f.Path)
		}
		seen[f.Exchange] = f.Path
	}

	maxParallel := min(len(files), runtime.NumCPU())
	log := logger.Component("ingestion")
	log.Info().Int("files", len(files)).Int("max_parallel", maxParallel).Msg("symbol load start")

	var total atomic.Int64

	// errgroup will cancel siblings on first error.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for i, f := range files {
		g.Go(func() error {
			start := time.Now()
			base := filepath.Base(f.Path)
			log.Info().Int("idx", i+1).Int("total", len(files)).Str("file", base).Str("exchange", f.Exchange).Msg("file start")

			symbols, err := parseSymbolFile(gctx, f.Path)
			if err != nil {
				log.Error().Str("file", base).Err(err).Msg("parse failed")
				return fmt.Errorf("file %s: %w", f.Path, err)
			}
			if err := repo.ReplaceSymbols(gctx, f.Exchange, symbols); err != nil {
				log.Error().Str("file", base).Err(err).Msg("store failed")
				return fmt.Errorf("file %s: store %s symbols: %w", f.Path, f.Exchange, err)
			}

			total.Add(int64(len(symbols)))
			log.Info().Str("file", base).Str("exchange", f.Exchange).Int("rows", len(symbols)).Dur("elapsed", time.Since(start)).Msg("file done")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(total.Load()), err
	}
	return int(total.Load()), nil
}
