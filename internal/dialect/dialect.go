// Package dialect rewrites MySQL-flavoured DDL dumps into statements the
// embedded DuckDB engine accepts. Translation is best effort: constructs the
// engine cannot represent are dropped or loosened, never reported.
package dialect

import (
	"github.com/schemaquery/schemaquery/internal/sqltext"
)

// Stage is one pure rewrite step. Apply returns the statements that replace
// stmt: none to drop it, one to rewrite it, several to expand it. Script
// stages see the whole statement list instead and rewrite it in place.
type Stage struct {
	Name   string
	Kinds  []sqltext.Kind
	Apply  func(stmt string) []string
	Script func(statements []string) []string
}

func (s Stage) applies(kind sqltext.Kind) bool {
	if len(s.Kinds) == 0 {
		return true
	}
	for _, k := range s.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (s Stage) run(statements []string) (out []string, rewritten int) {
	if s.Script != nil {
		out = s.Script(statements)
		for i := range out {
			if i >= len(statements) || out[i] != statements[i] {
				rewritten++
			}
		}
		return out, rewritten
	}
	out = make([]string, 0, len(statements))
	for _, stmt := range statements {
		if !s.applies(sqltext.Classify(stmt)) {
			out = append(out, stmt)
			continue
		}
		replaced := s.Apply(stmt)
		if len(replaced) != 1 || replaced[0] != stmt {
			rewritten++
		}
		out = append(out, replaced...)
	}
	return out, rewritten
}

// Pipeline lists the stages in application order. Later stages rely on the
// normalization of earlier ones: database qualifiers are resolved before the
// database statements are dropped, the primary key idiom is matched on the
// canonical AUTOINCREMENT keyword, and lowering to sequences runs last.
var Pipeline = []Stage{
	{Name: "unqualify-database", Script: unqualifyDatabase},
	{Name: "drop-engine-selection", Kinds: []sqltext.Kind{sqltext.KindCreateDatabase, sqltext.KindUse, sqltext.KindSession}, Apply: drop},
	{Name: "quote-identifiers", Apply: quoteIdentifiers},
	{Name: "strip-table-options", Kinds: createTable, Apply: stripTableOptions},
	{Name: "enum-to-text", Kinds: createTable, Apply: enumToText},
	{Name: "column-attributes", Kinds: createTable, Apply: columnAttributes},
	{Name: "auto-increment-keyword", Kinds: createTable, Apply: autoIncrementKeyword},
	{Name: "integer-primary-key", Kinds: createTable, Apply: integerPrimaryKey},
	{Name: "strip-column-unique", Kinds: createTable, Apply: stripColumnUnique},
	{Name: "drop-alter-table-add", Kinds: []sqltext.Kind{sqltext.KindAlterTable}, Apply: dropAlterTableAdd},
	{Name: "drop-create-index", Kinds: []sqltext.Kind{sqltext.KindCreateIndex}, Apply: drop},
	{Name: "drop-table-constraints", Kinds: createTable, Apply: dropTableConstraints},
	{Name: "insert-ignore", Kinds: []sqltext.Kind{sqltext.KindInsert}, Apply: insertIgnore},
	{Name: "lower-autoincrement", Kinds: createTable, Apply: lowerAutoincrement},
	{Name: "sequence-start", Script: sequenceStart},
}

var createTable = []sqltext.Kind{sqltext.KindCreateTable}

// Statements translates ddl and returns the resulting statements, without
// terminators, in source order.
func Statements(ddl string) []string {
	statements := sqltext.Split(ddl)
	for _, stage := range Pipeline {
		statements, _ = stage.run(statements)
	}
	return statements
}

// Translate returns the translated script, one terminated statement per line.
// Translate(Translate(x)) == Translate(x).
func Translate(ddl string) string {
	return sqltext.Join(Statements(ddl))
}

type StageTrace struct {
	Stage     string `json:"stage"`
	In        int    `json:"in"`
	Out       int    `json:"out"`
	Rewritten int    `json:"rewritten"`
}

// Trace translates ddl and reports, per stage, how many statements went in
// and out and how many the stage touched.
func Trace(ddl string) ([]string, []StageTrace) {
	statements := sqltext.Split(ddl)
	traces := make([]StageTrace, 0, len(Pipeline))
	for _, stage := range Pipeline {
		in := len(statements)
		var rewritten int
		statements, rewritten = stage.run(statements)
		traces = append(traces, StageTrace{Stage: stage.Name, In: in, Out: len(statements), Rewritten: rewritten})
	}
	return statements, traces
}

func drop(string) []string { return nil }

func keep(stmt string) []string { return []string{stmt} }
