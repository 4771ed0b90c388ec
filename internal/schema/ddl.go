package schema

import (
	"fmt"
	"regexp"
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/schemaquery/schemaquery/internal/sqltext"
)

var (
	createTableHead = regexp.MustCompile(`(?is)^CREATE\s+(?:OR\s+REPLACE\s+)?(?:(?:GLOBAL|LOCAL)\s+)?(?:TEMP\s+|TEMPORARY\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + sqltext.QualifiedIdent)
	insertHead      = regexp.MustCompile(`(?is)^INSERT\s+(?:IGNORE\s+)?INTO\s+` + sqltext.QualifiedIdent)
	columnDef       = regexp.MustCompile(`^(` + sqltext.Ident + `)\s+\w+`)
)

// constraintKeywords open table-level definitions that name no column.
var constraintKeywords = map[string]bool{
	"PRIMARY":    true,
	"UNIQUE":     true,
	"KEY":        true,
	"INDEX":      true,
	"CONSTRAINT": true,
	"FOREIGN":    true,
	"CHECK":      true,
	"FULLTEXT":   true,
	"SPATIAL":    true,
	"PERIOD":     true,
}

// extractDDL previews the tables of a SQL script without executing it.
func extractDDL(script string, maxColumns int) ExtractedSchema {
	tables := ExtractedSchema{}
	var insertOrder []string
	inserts := map[string]int{}

	for _, stmt := range sqltext.Split(script) {
		switch sqltext.Classify(stmt) {
		case sqltext.KindCreateTable:
			loc := createTableHead.FindStringSubmatchIndex(stmt)
			if loc == nil {
				continue
			}
			name := sqltext.Unquote(stmt[loc[2]:loc[3]])
			tables[name] = Table{
				Columns:         createTableColumns(stmt, stmt[loc[1]:], maxColumns),
				CreateStatement: stmt,
			}
		case sqltext.KindInsert:
			m := insertHead.FindStringSubmatch(stmt)
			if m == nil {
				continue
			}
			name := sqltext.Unquote(m[1])
			if _, ok := inserts[name]; !ok {
				insertOrder = append(insertOrder, name)
			}
			inserts[name]++
		}
	}

	for _, name := range insertOrder {
		count := inserts[name]
		table := tables[name]
		table.InsertCount = count
		table.SampleInserts = fmt.Sprintf("%d INSERT statements found", count)
		tables[name] = table
	}
	return tables
}

// createTableColumns lists the declared columns of one CREATE TABLE statement.
// The MySQL grammar is tried first; statements it rejects fall back to reading
// the leading "<name> <type>" pair of every column definition.
func createTableColumns(stmt, rest string, maxColumns int) []string {
	columns, err := parsedColumns(stmt)
	if err != nil {
		columns = heuristicColumns(rest)
	}
	if maxColumns > 0 && len(columns) > maxColumns {
		columns = columns[:maxColumns]
	}
	return columns
}

func parsedColumns(stmt string) ([]string, error) {
	parsed, err := sqlparser.NewTestParser().Parse(stmt)
	if err != nil {
		return nil, fmt.Errorf("parse create table: %w", err)
	}
	create, ok := parsed.(*sqlparser.CreateTable)
	if !ok || create.TableSpec == nil {
		return nil, fmt.Errorf("parse create table: unexpected statement %T", parsed)
	}
	columns := make([]string, 0, len(create.TableSpec.Columns))
	for _, column := range create.TableSpec.Columns {
		columns = append(columns, column.Name.String())
	}
	return columns, nil
}

func heuristicColumns(rest string) []string {
	if !strings.HasPrefix(strings.TrimSpace(rest), "(") {
		return nil
	}
	_, body, _, ok := sqltext.Enclosed(rest)
	if !ok {
		return nil
	}
	var columns []string
	for _, def := range sqltext.SplitTopLevel(body, ',') {
		if constraintKeywords[strings.ToUpper(firstWord(def))] {
			continue
		}
		m := columnDef.FindStringSubmatch(def)
		if m == nil {
			continue
		}
		columns = append(columns, sqltext.Unquote(m[1]))
	}
	return columns
}

func firstWord(def string) string {
	if i := strings.IndexFunc(def, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' }); i >= 0 {
		return def[:i]
	}
	return def
}
