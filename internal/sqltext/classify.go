package sqltext

import (
	"regexp"
	"strings"
)

type Kind string

const (
	KindCreateDatabase Kind = "create_database"
	KindUse            Kind = "use"
	KindSession        Kind = "session"
	KindCreateTable    Kind = "create_table"
	KindAlterTable     Kind = "alter_table"
	KindCreateIndex    Kind = "create_index"
	KindInsert         Kind = "insert"
	KindOther          Kind = "other"
)

// Ident matches a bare, backtick-quoted or double-quoted identifier.
const Ident = "(?:`[^`]+`|\"(?:[^\"]|\"\")+\"|\\w+)"

// QualifiedIdent matches an optionally schema-qualified identifier and
// captures the last component.
const QualifiedIdent = "(?:" + Ident + `\s*\.\s*)?(` + Ident + ")"

var classifiers = []struct {
	kind    Kind
	pattern *regexp.Regexp
}{
	{KindCreateDatabase, regexp.MustCompile(`(?is)^CREATE\s+(?:DATABASE|SCHEMA)\b`)},
	{KindUse, regexp.MustCompile(`(?is)^USE\b`)},
	{KindSession, regexp.MustCompile(`(?is)^(?:SET|LOCK\s+TABLES|UNLOCK\s+TABLES)\b`)},
	{KindCreateTable, regexp.MustCompile(`(?is)^CREATE\s+(?:OR\s+REPLACE\s+)?(?:(?:GLOBAL|LOCAL)\s+)?(?:TEMP\s+|TEMPORARY\s+)?TABLE\b`)},
	{KindAlterTable, regexp.MustCompile(`(?is)^ALTER\s+TABLE\b`)},
	{KindCreateIndex, regexp.MustCompile(`(?is)^CREATE\s+(?:UNIQUE\s+|FULLTEXT\s+|SPATIAL\s+)?INDEX\b`)},
	{KindInsert, regexp.MustCompile(`(?is)^INSERT\s+(?:IGNORE\s+|OR\s+\w+\s+)?INTO\b`)},
}

// Classify reports the statement kind from its leading keywords.
func Classify(stmt string) Kind {
	trimmed := strings.TrimSpace(stmt)
	for _, c := range classifiers {
		if c.pattern.MatchString(trimmed) {
			return c.kind
		}
	}
	return KindOther
}

// Unquote strips identifier quoting.
func Unquote(ident string) string {
	ident = strings.TrimSpace(ident)
	if len(ident) >= 2 {
		switch {
		case ident[0] == '`' && ident[len(ident)-1] == '`':
			return strings.ReplaceAll(ident[1:len(ident)-1], "``", "`")
		case ident[0] == '"' && ident[len(ident)-1] == '"':
			return strings.ReplaceAll(ident[1:len(ident)-1], `""`, `"`)
		}
	}
	return ident
}

// QuoteIdent renders value as a double-quoted identifier.
func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
