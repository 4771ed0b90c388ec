package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/parquet-go/parquet-go"
)

const parquetReadBatch = 256

// parseParquet reads a flat Parquet file into a typed table. Nested or
// repeated columns cannot be represented as a single table.
func parseParquet(content []byte) (Tabular, error) {
	file, err := parquet.OpenFile(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Tabular{}, &MalformedTabularError{Detail: fmt.Sprintf("open parquet: %v", err)}
	}

	fields := file.Schema().Fields()
	if len(fields) == 0 {
		return Tabular{}, &MalformedTabularError{Detail: "parquet file has no columns"}
	}
	names := make([]string, len(fields))
	types := make([]ColumnType, len(fields))
	for i, field := range fields {
		if !field.Leaf() || field.Repeated() {
			return Tabular{}, &MalformedTabularError{Detail: fmt.Sprintf("parquet column %q is nested", field.Name())}
		}
		names[i] = field.Name()
		types[i] = parquetColumnType(field.Type().Kind())
	}

	rows := make([][]any, 0, file.NumRows())
	buffer := make([]parquet.Row, parquetReadBatch)
	for _, group := range file.RowGroups() {
		groupRows := group.Rows()
		for {
			n, err := groupRows.ReadRows(buffer)
			for _, row := range buffer[:n] {
				rows = append(rows, parquetValues(row, len(fields)))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = groupRows.Close()
				return Tabular{}, &MalformedTabularError{Detail: fmt.Sprintf("read parquet rows: %v", err)}
			}
		}
		if err := groupRows.Close(); err != nil {
			return Tabular{}, fmt.Errorf("close parquet row group: %w", err)
		}
	}

	return Tabular{Columns: normalizeHeader(names), Types: types, Rows: rows}, nil
}

func parquetColumnType(kind parquet.Kind) ColumnType {
	switch kind {
	case parquet.Boolean:
		return TypeBoolean
	case parquet.Int32, parquet.Int64:
		return TypeBigInt
	case parquet.Float, parquet.Double:
		return TypeDouble
	default:
		return TypeVarchar
	}
}

func parquetValues(row parquet.Row, width int) []any {
	values := make([]any, width)
	for _, value := range row {
		column := value.Column()
		if column < 0 || column >= width || value.IsNull() {
			continue
		}
		switch value.Kind() {
		case parquet.Boolean:
			values[column] = value.Boolean()
		case parquet.Int32:
			values[column] = int64(value.Int32())
		case parquet.Int64:
			values[column] = value.Int64()
		case parquet.Float:
			values[column] = finiteFloat(float64(value.Float()))
		case parquet.Double:
			values[column] = finiteFloat(value.Double())
		case parquet.ByteArray, parquet.FixedLenByteArray:
			values[column] = string(value.ByteArray())
		default:
			values[column] = value.String()
		}
	}
	return values
}

func finiteFloat(value float64) any {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return value
}
