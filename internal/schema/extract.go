package schema

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Options struct {
	// Name keys a tabular preview; unnamed artifacts use DefaultTableName.
	Name        string
	PreviewRows int
	MaxColumns  int
}

func (o Options) withDefaults() Options {
	if o.PreviewRows <= 0 {
		o.PreviewRows = DefaultPreviewRows
	}
	if o.MaxColumns <= 0 {
		o.MaxColumns = DefaultMaxColumns
	}
	return o
}

// Extract builds the preview of an artifact. It never executes the content.
func Extract(content []byte, kind FileKind, opts Options) (ExtractedSchema, error) {
	opts = opts.withDefaults()
	switch {
	case kind.IsTabular():
		table, err := ParseTabular(content, kind)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", kind, err)
		}
		return ExtractedSchema{tabularKey(opts.Name): Preview(table, opts.PreviewRows)}, nil
	case kind == KindSQL:
		return extractDDL(string(content), opts.MaxColumns), nil
	default:
		return nil, fmt.Errorf("extract: %w: %q", ErrUnsupportedFormat, kind)
	}
}

// Preview describes a parsed table with at most previewRows sample rows.
func Preview(table Tabular, previewRows int) Table {
	n := min(previewRows, len(table.Rows))
	samples := make([]Record, n)
	for i := range samples {
		samples[i] = table.Record(i)
	}
	return Table{
		Columns:    table.Columns,
		RowCount:   len(table.Rows),
		SampleRows: samples,
	}
}

func tabularKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultTableName
	}
	return filepath.Base(name)
}

// Context reduces a tabular artifact to what query generation needs.
func (t Tabular) Context() SchemaContext {
	return SchemaContext{TableName: DefaultTableName, Columns: append([]string(nil), t.Columns...)}
}
