// Package sqltext holds the tolerant lexical helpers shared by schema
// extraction and dialect translation. Nothing here parses SQL grammar; it only
// knows about quotes, comments, parentheses and statement terminators.
package sqltext

import "strings"

// Split breaks a script into statements on ';' outside of quoted text and
// comments. Comments are removed, statements are trimmed and empty statements
// are dropped. Single-quoted strings honour MySQL backslash escapes.
func Split(script string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := skipQuoted(script, i)
			current.WriteString(script[i:end])
			i = end - 1
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			end := strings.IndexByte(script[i:], '\n')
			if end < 0 {
				i = len(script)
				continue
			}
			current.WriteByte('\n')
			i += end
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				i = len(script)
				continue
			}
			current.WriteByte(' ')
			i += end + 3
		case c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()
	return statements
}

// Join renders statements back into a script, one terminated statement per
// line. Join(Split(Join(s))) == Join(s) for statements produced by Split.
func Join(statements []string) string {
	if len(statements) == 0 {
		return ""
	}
	var b strings.Builder
	for _, stmt := range statements {
		b.WriteString(stmt)
		b.WriteString(";\n")
	}
	return b.String()
}

// skipQuoted returns the index just past the quoted run starting at start.
// An unterminated quote runs to the end of the input.
func skipQuoted(s string, start int) int {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if quote == '\'' {
				i++
			}
		case quote:
			if i+1 < len(s) && s[i+1] == quote {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(s)
}

// Enclosed locates the first parenthesised group in stmt and returns the text
// before it, its inner body and the text after the closing parenthesis.
func Enclosed(stmt string) (prefix, body, suffix string, ok bool) {
	open := -1
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		if c == '\'' || c == '"' || c == '`' {
			i = skipQuoted(stmt, i) - 1
			continue
		}
		if c == '(' {
			open = i
			break
		}
	}
	if open < 0 {
		return "", "", "", false
	}

	depth := 0
	for i := open; i < len(stmt); i++ {
		c := stmt[i]
		if c == '\'' || c == '"' || c == '`' {
			i = skipQuoted(stmt, i) - 1
			continue
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return stmt[:open], stmt[open+1 : i], stmt[i+1:], true
			}
		}
	}
	return "", "", "", false
}

// SplitTopLevel splits s on sep where sep is neither quoted nor nested inside
// parentheses. Parts are trimmed; empty parts are dropped.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(s, i) - 1
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			if part := strings.TrimSpace(s[last:i]); part != "" {
				parts = append(parts, part)
			}
			last = i + 1
		}
	}
	if part := strings.TrimSpace(s[last:]); part != "" {
		parts = append(parts, part)
	}
	return parts
}

// ReplaceBackticks rewrites MySQL backtick-quoted identifiers as standard
// double-quoted identifiers, leaving string literals untouched.
func ReplaceBackticks(stmt string) string {
	if !strings.Contains(stmt, "`") {
		return stmt
	}
	var b strings.Builder
	b.Grow(len(stmt))
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		switch c {
		case '\'', '"':
			end := skipQuoted(stmt, i)
			b.WriteString(stmt[i:end])
			i = end - 1
		case '`':
			end := skipQuoted(stmt, i)
			inner := stmt[i+1 : end]
			inner = strings.TrimSuffix(inner, "`")
			inner = strings.ReplaceAll(inner, "``", "`")
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(inner, `"`, `""`))
			b.WriteByte('"')
			i = end - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
