package storage

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guttosm/stockpulse/internal/domain/models"
)

type dummyErr struct{}

func (dummyErr) Error() string { return "dummy" }

func newMockRepo(t *testing.T) (*symbolsRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	repo := &symbolsRepository{db: db}
	cleanup := func() { _ = db.Close() }
	return repo, mock, cleanup
}

func TestNewSymbolsRepository_Construct(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	if r := NewSymbolsRepository(db); r == nil {
		t.Fatalf("expected non-nil repository")
	}
}

func TestListSymbols_SQLMock(t *testing.T) {
	withQuery := `SELECT symbol, name, series, exchange\s+FROM symbols\s+WHERE symbol ILIKE \$1 OR name ILIKE \$1\s+ORDER BY symbol, exchange\s+LIMIT \$2`
	noQuery := `SELECT symbol, name, series, exchange\s+FROM symbols\s+ORDER BY symbol, exchange\s+LIMIT \$1`

	cases := []struct {
		name     string
		query    string
		limit    int
		pattern  string
		wantArgs []driver.Value
	}{
		{name: "empty query lists all with default limit", query: "", limit: 0, pattern: noQuery, wantArgs: []driver.Value{DefaultListLimit}},
		{name: "query is a contains pattern", query: " rel ", limit: 5, pattern: withQuery, wantArgs: []driver.Value{"%rel%", 5}},
		{name: "like wildcards are escaped", query: "50%_x", limit: 5, pattern: withQuery, wantArgs: []driver.Value{`%50\%\_x%`, 5}},
		{name: "limit is capped", query: "", limit: 5000, pattern: noQuery, wantArgs: []driver.Value{MaxListLimit}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock, done := newMockRepo(t)
			defer done()

			rows := sqlmock.NewRows([]string{"symbol", "name", "series", "exchange"}).
				AddRow("RELIANCE", "Reliance Industries Limited", "EQ", "NSE").
				AddRow("RELINFRA", "Reliance Infrastructure Limited", "", "NSE")
			mock.ExpectQuery(tc.pattern).WithArgs(tc.wantArgs...).WillReturnRows(rows)

			out, err := repo.ListSymbols(context.Background(), tc.query, tc.limit)
			if err != nil {
				t.Fatalf("ListSymbols: %v", err)
			}
			if len(out) != 2 || out[0].Symbol != "RELIANCE" || out[1].Series != "" {
				t.Fatalf("unexpected rows: %+v", out)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestListSymbols_EmptyResultIsNotNil(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectQuery(`SELECT symbol, name, series, exchange`).
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "name", "series", "exchange"}))

	out, err := repo.ListSymbols(context.Background(), "nothing", 10)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", out)
	}
}

func TestListSymbols_QueryError(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectQuery(`SELECT symbol`).WillReturnError(dummyErr{})
	if _, err := repo.ListSymbols(context.Background(), "", 10); err == nil {
		t.Fatalf("expected query error")
	}
}

func TestReplaceSymbols_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM symbols WHERE exchange = $1")).
		WithArgs("NSE").WillReturnResult(sqlmock.NewResult(0, 7))
	// pq.CopyIn cannot be intercepted precisely; accept any prepared statement,
	// one Exec per row, then the final flushing Exec.
	prep := mock.ExpectPrepare(".*")
	prep.ExpectExec().WithArgs("RELIANCE", "Reliance Industries Limited", "EQ", "NSE").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("TCS", "Tata Consultancy Services Limited", "EQ", "NSE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	symbols := []models.Symbol{
		{Symbol: "RELIANCE", Name: "Reliance Industries Limited", Series: "EQ"},
		{Symbol: "TCS", Name: "Tata Consultancy Services Limited", Series: "EQ"},
	}
	if err := repo.ReplaceSymbols(context.Background(), "NSE", symbols); err != nil {
		t.Fatalf("ReplaceSymbols: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceSymbols_ErrorOnBegin(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin().WillReturnError(dummyErr{})
	if err := repo.ReplaceSymbols(context.Background(), "NSE", []models.Symbol{{}}); err == nil {
		t.Fatalf("expected error on begin")
	}
}

func TestReplaceSymbols_ErrorOnDelete(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM symbols")).WillReturnError(dummyErr{})
	mock.ExpectRollback()

	if err := repo.ReplaceSymbols(context.Background(), "NSE", []models.Symbol{{Symbol: "X"}}); err == nil {
		t.Fatalf("expected error on delete")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceSymbols_ErrorOnRowExec(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM symbols")).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(".*")
	prep.ExpectExec().WillReturnError(dummyErr{})
	mock.ExpectRollback()

	if err := repo.ReplaceSymbols(context.Background(), "NSE", []models.Symbol{{Symbol: "X"}}); err == nil {
		t.Fatalf("expected error on row exec")
	}
}

func TestReplaceSymbols_ErrorOnFinalExec(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit = OFF")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM symbols")).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(".*")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(".*").WillReturnError(dummyErr{})
	mock.ExpectRollback()

	if err := repo.ReplaceSymbols(context.Background(), "NSE", []models.Symbol{{Symbol: "X"}}); err == nil {
		t.Fatalf("expected error on final exec")
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct{ in, want int }{
		{-1, DefaultListLimit},
		{0, DefaultListLimit},
		{1, 1},
		{MaxListLimit, MaxListLimit},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tc := range cases {
		if got := ClampLimit(tc.in); got != tc.want {
			t.Fatalf("ClampLimit(%d)=%d want %d", tc.in, got, tc.want)
		}
	}
}
