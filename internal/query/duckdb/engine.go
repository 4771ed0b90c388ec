package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/schemaquery/schemaquery/internal/query"
)

type Options struct {
	Threads     int
	MemoryLimit string
}

// Engine opens isolated in-memory DuckDB instances. Every Open call creates a
// new database; nothing is shared between sessions.
type Engine struct {
	Options Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{Options: opts}
}

func (e *Engine) dsn() string {
	values := url.Values{}
	if e.Options.Threads > 0 {
		values.Set("threads", strconv.Itoa(e.Options.Threads))
	}
	if limit := strings.TrimSpace(e.Options.MemoryLimit); limit != "" {
		values.Set("memory_limit", limit)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func (e *Engine) Open(ctx context.Context) (query.Session, error) {
	connector, err := goduckdb.NewConnector(e.dsn(), nil)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = connector.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &Session{db: db, connector: connector}, nil
}

type Session struct {
	db        *sql.DB
	connector *goduckdb.Connector
}

func (s *Session) QueryContext(ctx context.Context, sqlText string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, sqlText, args...)
}

func (s *Session) ExecContext(ctx context.Context, sqlText string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, sqlText, args...)
}

// AppendRows bulk-loads rows into an existing table of the main schema.
func (s *Session) AppendRows(ctx context.Context, table string, rows [][]any) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		appender, err := goduckdb.NewAppenderFromConn(dc, "", table)
		if err != nil {
			return fmt.Errorf("create appender for %q: %w", table, err)
		}
		for i, row := range rows {
			values := make([]driver.Value, len(row))
			for j, value := range row {
				values[j] = value
			}
			if err := appender.AppendRow(values...); err != nil {
				_ = appender.Close()
				return fmt.Errorf("append row %d to %q: %w", i+1, table, err)
			}
		}
		if err := appender.Close(); err != nil {
			return fmt.Errorf("flush appender for %q: %w", table, err)
		}
		return nil
	})
}

// TableColumns lists the columns of table in declaration order. A missing
// table yields no columns and no error.
func (s *Session) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT column_name
FROM information_schema.columns
WHERE table_schema = 'main' AND lower(table_name) = lower(?)
ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("query columns of %q: %w", table, err)
	}
	return scanStrings(rows)
}

func (s *Session) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	return scanStrings(rows)
}

// Normalize converts DuckDB decimals and huge integers to plain numbers so
// results encode as JSON numbers.
func (s *Session) Normalize(value any) any {
	switch typed := value.(type) {
	case goduckdb.Decimal:
		return typed.Float64()
	case *big.Int:
		if typed.IsInt64() {
			return typed.Int64()
		}
		return typed.String()
	default:
		return value
	}
}

func (s *Session) Close() error {
	dbErr := s.db.Close()
	connErr := s.connector.Close()
	if dbErr != nil {
		return fmt.Errorf("close duckdb: %w", dbErr)
	}
	if connErr != nil {
		return fmt.Errorf("close duckdb connector: %w", connErr)
	}
	return nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer func() { _ = rows.Close() }()
	values := make([]string, 0)
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return values, nil
}
