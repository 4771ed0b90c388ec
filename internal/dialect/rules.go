package dialect

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/schemaquery/schemaquery/internal/sqltext"
)

var (
	createTableHead = regexp.MustCompile(`(?is)^CREATE\s+(?:OR\s+REPLACE\s+)?(?:(?:GLOBAL|LOCAL)\s+)?(?:TEMP\s+|TEMPORARY\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + sqltext.QualifiedIdent + `\s*$`)
	alterTableAdd   = regexp.MustCompile(`(?is)^ALTER\s+TABLE\s+(?:ONLY\s+)?(?:IF\s+EXISTS\s+)?` + sqltext.QualifiedIdent + `\s+ADD\b`)
	enumCall        = regexp.MustCompile(`(?i)\b(?:ENUM|SET)\s*\(`)
	autoIncrement   = regexp.MustCompile(`(?i)\bAUTO_INCREMENT\b`)
	intPrimaryKey   = regexp.MustCompile(`(?i)\bINT(?:EGER)?\s+AUTOINCREMENT\s+PRIMARY\s+KEY\b`)
	columnUnique    = regexp.MustCompile(`(?i)\s+UNIQUE(?:\s+KEY)?\b`)
	autoincrementKw = regexp.MustCompile(`(?i)\s*\bAUTOINCREMENT\b`)
	hasDefault      = regexp.MustCompile(`(?i)\bDEFAULT\b`)
	insertIgnoreKw  = regexp.MustCompile(`(?is)^INSERT\s+IGNORE\s+INTO\b`)
	leadingIdent    = regexp.MustCompile(`^` + sqltext.Ident)
	nonSequenceChar = regexp.MustCompile(`[^a-z0-9_]+`)
	tableAutoStart  = regexp.MustCompile(`(?i)\bAUTO_INCREMENT\s*=?\s*(\d+)`)
	createSequence  = regexp.MustCompile(`^CREATE SEQUENCE IF NOT EXISTS (\w+)(?: START (\d+))?$`)
	insertInto      = regexp.MustCompile(`(?is)^INSERT\s+(?:IGNORE\s+|OR\s+\w+\s+)?INTO\s+` + sqltext.QualifiedIdent + `\s*`)
	valuesKeyword   = regexp.MustCompile(`(?is)^VALUES\b`)
	databaseName    = regexp.MustCompile(`(?is)^(?:CREATE\s+(?:DATABASE|SCHEMA)\s+(?:IF\s+NOT\s+EXISTS\s+)?|USE\s+)(` + sqltext.Ident + `)`)
	qualifiedTable  = regexp.MustCompile(`(?is)^(CREATE\s+(?:OR\s+REPLACE\s+)?(?:(?:GLOBAL|LOCAL)\s+)?(?:TEMP\s+|TEMPORARY\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?|` +
		`INSERT\s+(?:IGNORE\s+|OR\s+\w+\s+)?INTO\s+|ALTER\s+TABLE\s+(?:ONLY\s+)?(?:IF\s+EXISTS\s+)?|DROP\s+TABLE\s+(?:IF\s+EXISTS\s+)?|` +
		`CREATE\s+(?:UNIQUE\s+|FULLTEXT\s+|SPATIAL\s+)?INDEX\s+` + sqltext.Ident + `\s+ON\s+)(` + sqltext.Ident + `)\s*\.\s*`)
)

// columnAttributeRewrites loosen MySQL column attributes DuckDB rejects.
var columnAttributeRewrites = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\b(TINYINT|SMALLINT|MEDIUMINT|INT|INTEGER|BIGINT)\s*\(\s*\d+\s*\)`), "$1"},
	{regexp.MustCompile(`(?i)\bMEDIUMINT\b`), "INTEGER"},
	{regexp.MustCompile(`(?i)\s+(?:UNSIGNED|ZEROFILL)\b`), ""},
	{regexp.MustCompile(`(?i)\b(?:TINYTEXT|MEDIUMTEXT|LONGTEXT)\b`), "TEXT"},
	{regexp.MustCompile(`(?i)\b(?:TINYBLOB|MEDIUMBLOB|LONGBLOB)\b`), "BLOB"},
	{regexp.MustCompile(`(?i)\b(DATETIME|TIMESTAMP)\s*\(\s*\d+\s*\)`), "$1"},
	{regexp.MustCompile(`(?i)\b(DOUBLE|FLOAT|REAL)\s*\(\s*\d+\s*,\s*\d+\s*\)`), "$1"},
	{regexp.MustCompile(`(?i)\s+(?:CHARACTER\s+SET|CHARSET)\s*=?\s*\w+`), ""},
	{regexp.MustCompile(`(?i)\s+COLLATE\s*=?\s*\w+`), ""},
	{regexp.MustCompile(`(?i)\s+COMMENT\s+'(?:[^'\\]|\\.|'')*'`), ""},
	{regexp.MustCompile(`(?i)\s+ON\s+UPDATE\s+CURRENT_TIMESTAMP(?:\s*\(\s*\d*\s*\))?`), ""},
}

// tableConstraintKeywords open CREATE TABLE definitions dropped by
// dropTableConstraints. PRIMARY KEY and CHECK clauses are kept.
var tableConstraintKeywords = map[string]bool{
	"UNIQUE":     true,
	"KEY":        true,
	"INDEX":      true,
	"FULLTEXT":   true,
	"SPATIAL":    true,
	"CONSTRAINT": true,
	"FOREIGN":    true,
}

type tableParts struct {
	prefix string
	name   string
	defs   []string
	suffix string
}

func (p tableParts) render() string {
	return p.prefix + "(" + strings.Join(p.defs, ", ") + ")" + p.suffix
}

// splitTable breaks a CREATE TABLE statement into its head, column and
// constraint definitions and trailing options. Statements without a
// parenthesised body (CREATE TABLE ... AS SELECT) are not split.
func splitTable(stmt string) (tableParts, bool) {
	prefix, body, suffix, ok := sqltext.Enclosed(stmt)
	if !ok {
		return tableParts{}, false
	}
	m := createTableHead.FindStringSubmatch(prefix)
	if m == nil {
		return tableParts{}, false
	}
	return tableParts{
		prefix: prefix,
		name:   sqltext.Unquote(m[1]),
		defs:   sqltext.SplitTopLevel(body, ','),
		suffix: suffix,
	}, true
}

// rewriteDefs applies fn to the definitions of a CREATE TABLE statement and
// re-renders it only when a definition changed.
func rewriteDefs(stmt string, fn func(def string) string) string {
	parts, ok := splitTable(stmt)
	if !ok {
		return stmt
	}
	defs := make([]string, len(parts.defs))
	for i, def := range parts.defs {
		defs[i] = fn(def)
	}
	if reflect.DeepEqual(defs, parts.defs) {
		return stmt
	}
	parts.defs = defs
	return parts.render()
}

func firstWord(def string) string {
	if i := strings.IndexAny(def, " \t\r\n("); i >= 0 {
		return strings.ToUpper(def[:i])
	}
	return strings.ToUpper(def)
}

func isTableConstraint(def string) bool {
	word := firstWord(def)
	return tableConstraintKeywords[word] || word == "PRIMARY" || word == "CHECK"
}

func quoteIdentifiers(stmt string) []string {
	return keep(sqltext.ReplaceBackticks(stmt))
}

// stripTableOptions drops the options after the closing parenthesis of the
// table body (ENGINE, charset, collation, comments). AUTO_INCREMENT=n is kept
// for lowerAutoincrement, which turns it into the sequence start.
func stripTableOptions(stmt string) []string {
	parts, ok := splitTable(stmt)
	if !ok || strings.TrimSpace(parts.suffix) == "" {
		return keep(stmt)
	}
	_, body, _, _ := sqltext.Enclosed(stmt)
	var options string
	if m := tableAutoStart.FindStringSubmatch(parts.suffix); m != nil {
		options = " AUTO_INCREMENT=" + m[1]
	}
	return keep(parts.prefix + "(" + body + ")" + options)
}

// enumToText replaces ENUM(...) and SET(...) column types with TEXT. Value
// lists are matched with quote-aware parenthesis balancing.
func enumToText(stmt string) []string {
	return keep(rewriteDefs(stmt, func(def string) string {
		if isTableConstraint(def) {
			return def
		}
		for {
			loc := enumCall.FindStringIndex(def)
			if loc == nil {
				return def
			}
			_, _, after, ok := sqltext.Enclosed(def[loc[1]-1:])
			if !ok {
				return def
			}
			def = def[:loc[0]] + "TEXT" + after
		}
	}))
}

func columnAttributes(stmt string) []string {
	return keep(rewriteDefs(stmt, func(def string) string {
		if isTableConstraint(def) {
			return def
		}
		for _, rewrite := range columnAttributeRewrites {
			def = rewrite.pattern.ReplaceAllString(def, rewrite.replacement)
		}
		return def
	}))
}

func autoIncrementKeyword(stmt string) []string {
	return keep(rewriteDefs(stmt, func(def string) string {
		return autoIncrement.ReplaceAllString(def, "AUTOINCREMENT")
	}))
}

func integerPrimaryKey(stmt string) []string {
	return keep(rewriteDefs(stmt, func(def string) string {
		return intPrimaryKey.ReplaceAllString(def, "INTEGER PRIMARY KEY AUTOINCREMENT")
	}))
}

func stripColumnUnique(stmt string) []string {
	return keep(rewriteDefs(stmt, func(def string) string {
		if isTableConstraint(def) {
			return def
		}
		return columnUnique.ReplaceAllString(def, "")
	}))
}

func dropAlterTableAdd(stmt string) []string {
	if alterTableAdd.MatchString(stmt) {
		return nil
	}
	return keep(stmt)
}

func dropTableConstraints(stmt string) []string {
	parts, ok := splitTable(stmt)
	if !ok {
		return keep(stmt)
	}
	defs := make([]string, 0, len(parts.defs))
	for _, def := range parts.defs {
		if tableConstraintKeywords[firstWord(def)] {
			continue
		}
		defs = append(defs, def)
	}
	if len(defs) == len(parts.defs) || len(defs) == 0 {
		return keep(stmt)
	}
	parts.defs = defs
	return keep(parts.render())
}

func insertIgnore(stmt string) []string {
	return keep(insertIgnoreKw.ReplaceAllString(stmt, "INSERT OR IGNORE INTO"))
}

// lowerAutoincrement backs every AUTOINCREMENT column with a sequence, since
// DuckDB has no auto-increment column keyword. The sequence is created ahead
// of the table and starts at the table's AUTO_INCREMENT=n option when set.
func lowerAutoincrement(stmt string) []string {
	parts, ok := splitTable(stmt)
	if !ok {
		return keep(stmt)
	}
	var (
		sequences []string
		changed   bool
		start     int64
	)
	if m := tableAutoStart.FindStringSubmatch(parts.suffix); m != nil {
		start, _ = strconv.ParseInt(m[1], 10, 64)
		parts.suffix = ""
		changed = true
	}
	for i, def := range parts.defs {
		if isTableConstraint(def) || !autoincrementKw.MatchString(def) {
			continue
		}
		changed = true
		column := sqltext.Unquote(leadingIdent.FindString(def))
		def = strings.TrimSpace(autoincrementKw.ReplaceAllString(def, ""))
		if column == "" || hasDefault.MatchString(def) {
			parts.defs[i] = def
			continue
		}
		sequence := SequenceName(parts.name, column)
		sequences = append(sequences, sequenceStatement(sequence, start))
		parts.defs[i] = fmt.Sprintf("%s DEFAULT nextval('%s')", def, sequence)
	}
	if !changed {
		return keep(stmt)
	}
	return append(sequences, parts.render())
}

func sequenceStatement(sequence string, start int64) string {
	if start > 1 {
		return fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s START %d", sequence, start)
	}
	return "CREATE SEQUENCE IF NOT EXISTS " + sequence
}

// sequenceStart moves each column sequence past the highest value the script
// inserts explicitly into that column, so later rows that omit the column do
// not collide with dumped ones.
func sequenceStart(statements []string) []string {
	out := append([]string(nil), statements...)
	for i, stmt := range out {
		m := createSequence.FindStringSubmatch(stmt)
		if m == nil {
			continue
		}
		start := int64(1)
		if m[2] != "" {
			start, _ = strconv.ParseInt(m[2], 10, 64)
		}
		table, column, position, ok := sequenceColumn(out[i+1:], m[1])
		if !ok {
			continue
		}
		highest, found := highestInserted(out, table, column, position)
		if found && highest >= start {
			out[i] = sequenceStatement(m[1], highest+1)
		}
	}
	return out
}

// sequenceColumn finds the table column whose default draws from sequence and
// its position among the column definitions.
func sequenceColumn(statements []string, sequence string) (table, column string, position int, ok bool) {
	marker := "nextval('" + sequence + "')"
	for _, stmt := range statements {
		if sqltext.Classify(stmt) != sqltext.KindCreateTable {
			continue
		}
		parts, split := splitTable(stmt)
		if !split {
			continue
		}
		position = 0
		for _, def := range parts.defs {
			if isTableConstraint(def) {
				continue
			}
			if strings.Contains(def, marker) {
				return parts.name, sqltext.Unquote(leadingIdent.FindString(def)), position, true
			}
			position++
		}
	}
	return "", "", 0, false
}

// highestInserted scans INSERT ... VALUES statements into table for the
// largest integer literal given for column.
func highestInserted(statements []string, table, column string, position int) (int64, bool) {
	var (
		highest int64
		found   bool
	)
	for _, stmt := range statements {
		loc := insertInto.FindStringSubmatchIndex(stmt)
		if loc == nil || !strings.EqualFold(sqltext.Unquote(stmt[loc[2]:loc[3]]), table) {
			continue
		}
		rest := stmt[loc[1]:]
		index := position
		if strings.HasPrefix(rest, "(") {
			_, list, after, ok := sqltext.Enclosed(rest)
			if !ok {
				continue
			}
			index = -1
			for j, name := range sqltext.SplitTopLevel(list, ',') {
				if strings.EqualFold(sqltext.Unquote(name), column) {
					index = j
					break
				}
			}
			if index < 0 {
				continue
			}
			rest = strings.TrimSpace(after)
		}
		if !valuesKeyword.MatchString(rest) {
			continue
		}
		for _, tuple := range sqltext.SplitTopLevel(rest[len("VALUES"):], ',') {
			_, body, _, ok := sqltext.Enclosed(tuple)
			if !ok {
				continue
			}
			values := sqltext.SplitTopLevel(body, ',')
			if index >= len(values) {
				continue
			}
			value, err := strconv.ParseInt(strings.Trim(values[index], "'"), 10, 64)
			if err != nil {
				continue
			}
			if !found || value > highest {
				highest, found = value, true
			}
		}
	}
	return highest, found
}

// unqualifyDatabase removes the database qualifier from table references when
// the database is one the script creates or selects. Those statements are
// dropped, so the engine only knows its default schema.
func unqualifyDatabase(statements []string) []string {
	databases := map[string]bool{}
	for _, stmt := range statements {
		if m := databaseName.FindStringSubmatch(stmt); m != nil {
			databases[strings.ToLower(sqltext.Unquote(m[1]))] = true
		}
	}
	if len(databases) == 0 {
		return statements
	}
	out := make([]string, len(statements))
	for i, stmt := range statements {
		out[i] = stmt
		loc := qualifiedTable.FindStringSubmatchIndex(stmt)
		if loc != nil && databases[strings.ToLower(sqltext.Unquote(stmt[loc[4]:loc[5]]))] {
			out[i] = stmt[:loc[3]] + stmt[loc[1]:]
		}
	}
	return out
}

// SequenceName returns the sequence backing an auto-increment column.
func SequenceName(table, column string) string {
	name := strings.ToLower(table + "_" + column + "_seq")
	return strings.Trim(nonSequenceChar.ReplaceAllString(name, "_"), "_")
}
