package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/askduck/askduck/internal/observability"
	"github.com/askduck/askduck/internal/query"
)

// Engine executes single statements against the dataset's backing DuckDB
// handle. Each call borrows one scoped connection and releases it on every
// exit path.
type Engine struct {
	db      *sql.DB
	timeout time.Duration
}

func NewEngine(db *sql.DB, timeout time.Duration) *Engine {
	return &Engine{db: db, timeout: timeout}
}

func (e *Engine) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	if strings.TrimSpace(sqlText) == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if e.db == nil {
		return query.Result{}, fmt.Errorf("database handle is required")
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return query.Result{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return query.Result{}, fmt.Errorf("%w after %s", query.ErrTimeout, e.timeout)
		}
		return query.Result{}, &query.ExecutionError{Message: err.Error()}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, &query.ExecutionError{Message: err.Error()}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return query.Result{}, fmt.Errorf("%w after %s", query.ErrTimeout, e.timeout)
		}
		return query.Result{}, &query.ExecutionError{Message: err.Error()}
	}

	elapsed := time.Since(start)
	observability.ObserveExecution(elapsed)
	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: elapsed,
	}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
