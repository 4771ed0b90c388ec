package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrTimeout = errors.New("query timed out")

// Record is one result row keyed by column name.
type Record map[string]any

type Result struct {
	Columns  []string      `json:"columns"`
	Rows     []Record      `json:"rows"`
	Duration time.Duration `json:"-"`
}

type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Normalizer is implemented by queryers whose driver returns values that do
// not encode naturally, such as fixed-point decimals.
type Normalizer interface {
	Normalize(value any) any
}

// Session is one request-scoped, exclusively owned engine instance.
type Session interface {
	Queryer
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	AppendRows(ctx context.Context, table string, rows [][]any) error
	TableColumns(ctx context.Context, table string) ([]string, error)
	Tables(ctx context.Context) ([]string, error)
	Close() error
}

type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// WithSession opens a fresh session, hands it to fn and closes it on every
// exit path. The session must not be retained after fn returns.
func WithSession(ctx context.Context, opener Opener, fn func(Session) error) (err error) {
	session, err := opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close session: %w", closeErr))
		}
	}()
	return fn(session)
}

// ExecutionError reports a query the engine refused or could not finish. It
// always carries the query text exactly as it was run.
type ExecutionError struct {
	SQL     string
	Message string
	Timeout bool
	Err     error
}

func (e *ExecutionError) Error() string {
	return "SQL execution failed: " + e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrTimeout && e.Timeout
}

// Execute runs sqlText unchanged and materializes every row in engine order.
func Execute(ctx context.Context, q Queryer, sqlText string) (Result, error) {
	start := time.Now()
	rows, err := q.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, executionError(ctx, sqlText, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, executionError(ctx, sqlText, fmt.Errorf("query columns: %w", err))
	}

	normalizer, _ := q.(Normalizer)
	records := make([]Record, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, executionError(ctx, sqlText, fmt.Errorf("scan row: %w", err))
		}
		record := make(Record, len(columns))
		for i, value := range normalizeValues(values, normalizer) {
			record[columns[i]] = value
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return Result{}, executionError(ctx, sqlText, fmt.Errorf("iterate rows: %w", err))
	}

	return Result{Columns: columns, Rows: records, Duration: time.Since(start)}, nil
}

func executionError(ctx context.Context, sqlText string, err error) *ExecutionError {
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	message := err.Error()
	if timeout {
		message = "query exceeded its deadline: " + message
	}
	return &ExecutionError{SQL: sqlText, Message: message, Timeout: timeout, Err: err}
}

func normalizeValues(values []any, normalizer Normalizer) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			if normalizer != nil {
				typed = normalizer.Normalize(typed)
			}
			normalized[i] = finiteOrNil(typed)
		}
	}
	return normalized
}

// finiteOrNil reports NaN and infinities as NULL; JSON has no encoding for them.
func finiteOrNil(value any) any {
	switch typed := value.(type) {
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(typed)) || math.IsInf(float64(typed), 0) {
			return nil
		}
	}
	return value
}
