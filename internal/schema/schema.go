// Package schema extracts a preview description of an uploaded schema
// artifact (a delimited table, a Parquet file or a SQL dump) without executing
// anything.
package schema

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/schemaquery/schemaquery/internal/sqltext"
)

// DefaultTableName is the table every tabular artifact is loaded into, and the
// fallback name when a DDL artifact declares no table.
const DefaultTableName = "uploaded_table"

const (
	DefaultPreviewRows = 10
	DefaultMaxColumns  = 20
)

var (
	ErrUnsupportedFormat    = errors.New("unsupported file type: use .csv, .tsv, .parquet, .sql or .schema")
	ErrMalformedTabularData = errors.New("malformed tabular data")
)

// MalformedTabularError describes where a tabular artifact stopped parsing.
type MalformedTabularError struct {
	Line   int
	Column int
	Detail string
}

func (e *MalformedTabularError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed tabular data at line %d, column %d: %s", e.Line, e.Column, e.Detail)
	}
	return "malformed tabular data: " + e.Detail
}

func (e *MalformedTabularError) Is(target error) bool {
	return target == ErrMalformedTabularData
}

type FileKind string

const (
	KindCSV     FileKind = "csv"
	KindTSV     FileKind = "tsv"
	KindParquet FileKind = "parquet"
	KindSQL     FileKind = "sql"
)

// IsTabular reports whether artifacts of this kind load as a single table.
func (k FileKind) IsTabular() bool {
	switch k {
	case KindCSV, KindTSV, KindParquet:
		return true
	default:
		return false
	}
}

// DetectKind maps a file name to its artifact kind by extension.
func DetectKind(filename string) (FileKind, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "csv":
		return KindCSV, nil
	case "tsv":
		return KindTSV, nil
	case "parquet":
		return KindParquet, nil
	case "sql", "schema":
		return KindSQL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Base(filename))
	}
}

// Record is one row keyed by column name.
type Record map[string]any

// Table is the preview of one table found in an artifact. Tables seen only
// through INSERT statements carry just the insert summary.
type Table struct {
	Columns         []string `json:"columns,omitempty"`
	RowCount        int      `json:"row_count,omitempty"`
	SampleRows      []Record `json:"sample_rows,omitempty"`
	CreateStatement string   `json:"create_statement,omitempty"`
	InsertCount     int      `json:"insert_count,omitempty"`
	SampleInserts   string   `json:"sample_inserts,omitempty"`
}

// ExtractedSchema maps table names to their preview.
type ExtractedSchema map[string]Table

// SchemaContext is the reduced view handed to query generation.
type SchemaContext struct {
	TableName string   `json:"table_name"`
	Columns   []string `json:"columns"`
}

var createTableName = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + sqltext.QualifiedIdent)

// InferTableName returns the first table named by a CREATE TABLE statement in
// the untranslated text, or DefaultTableName.
func InferTableName(ddl string) string {
	m := createTableName.FindStringSubmatch(ddl)
	if m == nil {
		return DefaultTableName
	}
	return sqltext.Unquote(m[1])
}
