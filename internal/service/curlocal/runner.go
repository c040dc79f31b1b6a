// Package curlocal runs CUR queries against Cost & Usage Report exports on
// local disk with an in-memory DuckDB, for development without Athena.
package curlocal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	// Register DuckDB SQL driver.
	_ "github.com/duckdb/duckdb-go/v2"

	"cloudsathi/internal/domain"
	"cloudsathi/internal/service/cur"
)

// prestoCompat maps the Presto functions used by the CUR queries onto DuckDB.
// CUR exports store usage start either as a string or a timestamp; both cast.
const prestoCompat = `CREATE OR REPLACE MACRO date_parse(s, f) AS CAST(s AS TIMESTAMP)`

// Runner executes queries against a view over local CUR files.
type Runner struct {
	db     *sql.DB
	table  string
	source string
	logger *slog.Logger
}

// Open creates a Runner whose view named table reads source. source is a
// file path or glob; .csv and .csv.gz files are read as CSV and anything
// else as Parquet.
func Open(ctx context.Context, source, table string, logger *slog.Logger) (*Runner, error) {
	if strings.TrimSpace(source) == "" {
		return nil, domain.ErrConfiguration("aws", "CUR_LOCAL_PATH is empty")
	}
	if err := cur.ValidateIdentifier(table); err != nil {
		return nil, domain.ErrConfiguration("aws", "invalid AWS_ATHENA_TABLE: %v", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	stmts := []string{
		prestoCompat,
		fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s", cur.QuoteIdentifier(table), readerFor(source)),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, domain.ErrConfiguration("aws", "load CUR files from %s: %v", source, err)
		}
	}

	return &Runner{db: db, table: table, source: source, logger: logger.With("component", "curlocal")}, nil
}

func readerFor(source string) string {
	lower := strings.ToLower(source)
	if strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".csv.gz") {
		return fmt.Sprintf("read_csv_auto(%s, header = true)", cur.QuoteLiteral(source))
	}
	return fmt.Sprintf("read_parquet(%s, union_by_name = true)", cur.QuoteLiteral(source))
}

// Source returns the configured file path or glob.
func (r *Runner) Source() string { return filepath.Clean(r.source) }

// Close releases the database.
func (r *Runner) Close() error { return r.db.Close() }

// Check runs a trivial query against the view; it backs /readyz.
func (r *Runner) Check(ctx context.Context) error {
	var n int64
	q := fmt.Sprintf("SELECT count(*) FROM (SELECT 1 FROM %s LIMIT 1)", cur.QuoteIdentifier(r.table))
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return fmt.Errorf("read %s: %w", r.source, err)
	}
	return nil
}

// Run executes q.SQL and returns every row as strings. Database, output
// location and work group only apply to Athena and are ignored.
func (r *Runner) Run(ctx context.Context, q domain.Query) (*domain.ResultSet, error) {
	started := time.Now()
	rows, err := r.db.QueryContext(ctx, asText(q.SQL))
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.CancelledError{Err: ctx.Err()}
		}
		return nil, &domain.QueryExecutionError{State: domain.StatusFailed, Reason: err.Error()}
	}
	defer rows.Close() //nolint:errcheck

	rs, err := scanRows(rows)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &domain.CancelledError{Err: err}
		}
		return nil, &domain.ResultRetrievalError{Message: fmt.Sprintf("read local CUR rows: %v", err), Err: err}
	}
	r.logger.DebugContext(ctx, "local CUR query finished", "rows", len(rs.Records), "duration", time.Since(started))
	return rs, nil
}

// asText casts every result column to VARCHAR so values arrive as Athena
// would return them, with column names unchanged.
func asText(query string) string {
	return "SELECT COLUMNS(*)::VARCHAR FROM (\n" + strings.TrimRight(strings.TrimSpace(query), ";") + "\n)"
}

func scanRows(rows *sql.Rows) (*domain.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &domain.ResultSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(domain.Record, len(cols))
		for i, col := range cols {
			rec[col] = formatValue(vals[i])
		}
		rs.Records = append(rs.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// formatValue keeps NULL as nil.
func formatValue(v any) *string {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		s = fmt.Sprint(x)
	}
	return &s
}
