// Package archive keeps a copy of rows before they are deleted from the source.
package archive

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/kirby/pkg/codec"
	"github.com/TFMV/kirby/pkg/core"
)

var (
	timestampType = arrow.FixedWidthTypes.Timestamp_us
	textListType  = arrow.ListOf(arrow.BinaryTypes.String)
)

// Schema infers an Arrow schema for rows. A column maps to a typed field when
// all of its non-null values share one kind; anything else is stored as text.
func Schema(rows *core.RowSet) *arrow.Schema {
	fields := make([]arrow.Field, len(rows.Columns))
	for i, col := range rows.Columns {
		typ := arrow.DataType(arrow.BinaryTypes.String)
		if !col.JSON {
			typ = arrowType(columnKind(rows, i))
		}
		fields[i] = arrow.Field{Name: col.Name, Type: typ, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func columnKind(rows *core.RowSet, idx int) codec.Kind {
	kind := codec.Null
	for _, row := range rows.Rows {
		v := row[idx]
		if v.IsNull() {
			continue
		}
		if kind == codec.Null {
			kind = v.Kind
			continue
		}
		if kind != v.Kind {
			return codec.Text
		}
	}
	return kind
}

func arrowType(kind codec.Kind) arrow.DataType {
	switch kind {
	case codec.Int:
		return arrow.PrimitiveTypes.Int64
	case codec.Float:
		return arrow.PrimitiveTypes.Float64
	case codec.Bool:
		return arrow.FixedWidthTypes.Boolean
	case codec.Timestamp:
		return timestampType
	case codec.Array:
		return textListType
	default:
		return arrow.BinaryTypes.String
	}
}

// Record converts rows into a single Arrow record. The caller releases it.
func Record(mem memory.Allocator, rows *core.RowSet) (arrow.Record, error) {
	schema := Schema(rows)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for r, row := range rows.Rows {
		if len(row) != len(rows.Columns) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", r, len(row), len(rows.Columns))
		}
		for i, v := range row {
			if err := appendValue(b.Field(i), v); err != nil {
				return nil, fmt.Errorf("column %s: %w", rows.Columns[i].Name, err)
			}
		}
	}
	return b.NewRecord(), nil
}

func appendValue(fb array.Builder, v codec.Value) error {
	if v.IsNull() {
		fb.AppendNull()
		return nil
	}
	switch b := fb.(type) {
	case *array.Int64Builder:
		b.Append(v.Int)
	case *array.Float64Builder:
		b.Append(v.Float)
	case *array.BooleanBuilder:
		b.Append(v.Bool)
	case *array.TimestampBuilder:
		b.Append(arrow.Timestamp(v.Time.UTC().UnixMicro()))
	case *array.ListBuilder:
		b.Append(true)
		elems := b.ValueBuilder().(*array.StringBuilder)
		for _, e := range v.Elems {
			if e.IsNull() {
				elems.AppendNull()
				continue
			}
			elems.Append(codec.Display(e))
		}
	case *array.StringBuilder:
		b.Append(codec.Display(v))
	default:
		return fmt.Errorf("unsupported builder %T", fb)
	}
	return nil
}
