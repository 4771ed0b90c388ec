package schema

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

type ColumnType string

const (
	TypeBigInt  ColumnType = "BIGINT"
	TypeDouble  ColumnType = "DOUBLE"
	TypeBoolean ColumnType = "BOOLEAN"
	TypeVarchar ColumnType = "VARCHAR"
)

// Tabular is a fully parsed single-table artifact. Rows hold typed values
// (int64, float64, bool, string or nil) in column order.
type Tabular struct {
	Columns []string
	Types   []ColumnType
	Rows    [][]any
}

// Record returns row i keyed by column name.
func (t Tabular) Record(i int) Record {
	record := make(Record, len(t.Columns))
	for j, column := range t.Columns {
		record[column] = t.Rows[i][j]
	}
	return record
}

// ParseTabular parses a delimited or Parquet artifact into a typed table.
func ParseTabular(content []byte, kind FileKind) (Tabular, error) {
	switch kind {
	case KindCSV:
		return parseDelimited(content, ',')
	case KindTSV:
		return parseDelimited(content, '\t')
	case KindParquet:
		return parseParquet(content)
	default:
		return Tabular{}, fmt.Errorf("%w: %q is not tabular", ErrUnsupportedFormat, kind)
	}
}

func parseDelimited(content []byte, delimiter rune) (Tabular, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))))
	reader.Comma = delimiter

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Tabular{}, &MalformedTabularError{Detail: "missing header row"}
	}
	if err != nil {
		return Tabular{}, malformed(err)
	}

	var raw [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Tabular{}, malformed(err)
		}
		raw = append(raw, record)
	}

	columns := normalizeHeader(header)
	types := make([]ColumnType, len(columns))
	for j := range columns {
		types[j] = inferColumnType(raw, j)
	}

	rows := make([][]any, len(raw))
	for i, record := range raw {
		row := make([]any, len(columns))
		for j, cell := range record {
			row[j] = convertCell(cell, types[j])
		}
		rows[i] = row
	}
	return Tabular{Columns: columns, Types: types, Rows: rows}, nil
}

func malformed(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &MalformedTabularError{Line: parseErr.Line, Column: parseErr.Column, Detail: parseErr.Err.Error()}
	}
	return &MalformedTabularError{Detail: err.Error()}
}

// normalizeHeader names blank headers column_<n> and suffixes repeated names
// with the first free _<n>, so every column can become a distinct table
// column. Header text is otherwise kept as written.
func normalizeHeader(header []string) []string {
	names := make([]string, len(header))
	reserved := make(map[string]bool, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("column_%d", i+1)
		} else {
			reserved[strings.ToLower(name)] = true
		}
		names[i] = name
	}

	columns := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, name := range names {
		candidate := name
		if used[strings.ToLower(candidate)] {
			for n := 2; ; n++ {
				candidate = fmt.Sprintf("%s_%d", name, n)
				key := strings.ToLower(candidate)
				if !used[key] && !reserved[key] {
					break
				}
			}
		}
		used[strings.ToLower(candidate)] = true
		columns[i] = candidate
	}
	return columns
}

func inferColumnType(rows [][]string, column int) ColumnType {
	isInt, isFloat, isBool, populated := true, true, true, false
	for _, row := range rows {
		cell := strings.TrimSpace(row[column])
		if cell == "" || nonFinite(cell) {
			continue
		}
		populated = true
		if isInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(cell); !ok {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			return TypeVarchar
		}
	}
	switch {
	case !populated:
		return TypeVarchar
	case isInt:
		return TypeBigInt
	case isFloat:
		return TypeDouble
	case isBool:
		return TypeBoolean
	default:
		return TypeVarchar
	}
}

// nonFinite matches the NaN and infinity spellings ParseFloat accepts. In a
// numeric column they mark a missing value.
func nonFinite(cell string) bool {
	value, err := strconv.ParseFloat(cell, 64)
	return err == nil && (math.IsNaN(value) || math.IsInf(value, 0))
}

func parseBool(cell string) (bool, bool) {
	switch strings.ToLower(cell) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func convertCell(cell string, columnType ColumnType) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	switch columnType {
	case TypeBigInt, TypeDouble, TypeBoolean:
		if nonFinite(trimmed) {
			return nil
		}
	}
	switch columnType {
	case TypeBigInt:
		value, _ := strconv.ParseInt(trimmed, 10, 64)
		return value
	case TypeDouble:
		value, _ := strconv.ParseFloat(trimmed, 64)
		return value
	case TypeBoolean:
		value, _ := parseBool(trimmed)
		return value
	default:
		return cell
	}
}
