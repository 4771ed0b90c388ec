package nl2sql

import (
	"fmt"
	"strings"

	"github.com/schemaquery/schemaquery/internal/schema"
)

const systemPrompt = "You are a SQL expert who converts natural language requests into a single DuckDB SQL query."

// BuildPrompt embeds the table, its columns and the literal question.
func BuildPrompt(req Request) string {
	table := strings.TrimSpace(req.Schema.TableName)
	if table == "" {
		table = schema.DefaultTableName
	}
	columns := "(unknown)"
	if len(req.Schema.Columns) > 0 {
		columns = strings.Join(req.Schema.Columns, ", ")
	}
	return fmt.Sprintf(`Convert the following natural language query to a valid DuckDB SQL query.

Schema:
- Table: %s
- Columns: %s

Natural language query: %s

Important:
1. Return ONLY the SQL query, nothing else.
2. Use DuckDB syntax.
3. Do not include explanations or markdown code blocks.
4. Ensure the query is valid and executable.

SQL:`, table, columns, req.Question)
}

var fenceTags = map[string]bool{"": true, "sql": true, "duckdb": true, "sqlite": true, "postgresql": true, "postgres": true, "mysql": true}

// CleanModelSQL strips a surrounding code fence and its language tag, trims
// whitespace and terminates the statement with a semicolon.
func CleanModelSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
		tag, rest, found := strings.Cut(trimmed, "\n")
		if found && fenceTags[strings.ToLower(strings.TrimSpace(tag))] {
			trimmed = rest
		} else if fields := strings.Fields(trimmed); len(fields) > 1 && fenceTags[strings.ToLower(fields[0])] {
			trimmed = strings.TrimSpace(trimmed)[len(fields[0]):]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	if trimmed == "" {
		return ""
	}
	if !strings.HasSuffix(trimmed, ";") {
		trimmed += ";"
	}
	return trimmed
}
