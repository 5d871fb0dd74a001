package query

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout marks executions cut off by the configured query deadline.
var ErrTimeout = errors.New("query timed out")

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// ExecutionError carries the backing store's rejection message verbatim. It is
// a local failure of the statement, not a process fault; callers decide
// whether to persist it for repair.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("sql execution failed: %s", e.Message)
}

type Engine interface {
	Execute(ctx context.Context, sql string) (Result, error)
}
