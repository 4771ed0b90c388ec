// Package loader populates a request session with an uploaded schema and
// reports the live table the generated query should target.
package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/schemaquery/schemaquery/internal/dialect"
	"github.com/schemaquery/schemaquery/internal/observability"
	"github.com/schemaquery/schemaquery/internal/query"
	"github.com/schemaquery/schemaquery/internal/schema"
	"github.com/schemaquery/schemaquery/internal/sqltext"
)

// Failure is one translated statement the engine refused.
type Failure struct {
	Statement string `json:"statement"`
	Message   string `json:"message"`
}

type Report struct {
	Context  schema.SchemaContext `json:"context"`
	Applied  int                  `json:"applied"`
	Failures []Failure            `json:"failures,omitempty"`
	Tables   []string             `json:"tables"`
}

// Partial reports whether at least one statement was skipped.
func (r Report) Partial() bool {
	return len(r.Failures) > 0
}

// LoadTabular replaces uploaded_table with the parsed rows. The returned
// context lists the header in file order.
func LoadTabular(ctx context.Context, session query.Session, table schema.Tabular) (schema.SchemaContext, error) {
	if len(table.Columns) == 0 {
		return schema.SchemaContext{}, fmt.Errorf("load tabular data: no columns")
	}
	if _, err := session.ExecContext(ctx, createTableStatement(schema.DefaultTableName, table)); err != nil {
		return schema.SchemaContext{}, fmt.Errorf("create %s: %w", schema.DefaultTableName, err)
	}
	if len(table.Rows) > 0 {
		if err := session.AppendRows(ctx, schema.DefaultTableName, table.Rows); err != nil {
			return schema.SchemaContext{}, fmt.Errorf("load rows into %s: %w", schema.DefaultTableName, err)
		}
	}
	return table.Context(), nil
}

func createTableStatement(name string, table schema.Tabular) string {
	defs := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		columnType := schema.TypeVarchar
		if i < len(table.Types) && table.Types[i] != "" {
			columnType = table.Types[i]
		}
		defs[i] = sqltext.QuoteIdent(column) + " " + string(columnType)
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", sqltext.QuoteIdent(name), strings.Join(defs, ", "))
}

// LoadDDL translates original and applies every resulting statement in order.
// Statements the engine rejects are recorded and skipped; only a failure to
// introspect the session is returned as an error.
func LoadDDL(ctx context.Context, session query.Session, original string, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	report := Report{}
	for _, stmt := range dialect.Statements(original) {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("load schema: %w", err)
		}
		if _, err := session.ExecContext(ctx, stmt); err != nil {
			report.Failures = append(report.Failures, Failure{Statement: stmt, Message: err.Error()})
			logger.Warn("schema statement skipped", "statement", abbreviate(stmt), "error", err)
			continue
		}
		report.Applied++
	}
	observability.ObserveSchemaLoad(report.Applied, len(report.Failures))

	tableName := schema.InferTableName(original)
	columns, err := session.TableColumns(ctx, tableName)
	if err != nil {
		return report, fmt.Errorf("inspect %s: %w", tableName, err)
	}
	tables, err := session.Tables(ctx)
	if err != nil {
		return report, fmt.Errorf("list tables: %w", err)
	}
	report.Context = schema.SchemaContext{TableName: tableName, Columns: columns}
	report.Tables = tables

	if len(columns) == 0 {
		logger.Warn("target table not loaded", "table", tableName, "failed_statements", len(report.Failures))
	}
	return report, nil
}

func abbreviate(stmt string) string {
	const limit = 120
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) <= limit {
		return stmt
	}
	return stmt[:limit] + "..."
}
