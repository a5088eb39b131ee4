package gpkg

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
)

// columnType maps a value kind to its FlatGeobuf column type.
func columnType(k ValueKind) flattypes.ColumnType {
	switch k {
	case ValueInteger:
		return flattypes.ColumnTypeLong
	case ValueReal:
		return flattypes.ColumnTypeDouble
	case ValueBoolean:
		return flattypes.ColumnTypeBool
	}
	return flattypes.ColumnTypeString
}

// valueKind maps a FlatGeobuf column type to the value kind it decodes to.
func valueKind(t flattypes.ColumnType) (ValueKind, bool) {
	switch t {
	case flattypes.ColumnTypeBool:
		return ValueBoolean, true
	case flattypes.ColumnTypeByte, flattypes.ColumnTypeUByte,
		flattypes.ColumnTypeShort, flattypes.ColumnTypeUShort,
		flattypes.ColumnTypeInt, flattypes.ColumnTypeUInt,
		flattypes.ColumnTypeLong, flattypes.ColumnTypeULong:
		return ValueInteger, true
	case flattypes.ColumnTypeFloat, flattypes.ColumnTypeDouble:
		return ValueReal, true
	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeJson:
		return ValueString, true
	}
	return 0, false
}

// schemaColumns builds the header columns for s.
func schemaColumns(s Schema, builder *flatbuffers.Builder) []*writer.Column {
	columns := make([]*writer.Column, 0, len(s))
	for _, d := range s {
		col := writer.NewColumn(builder)
		col.SetName(d.Name)
		col.SetTitle(d.Name)
		col.SetType(columnType(d.Kind))
		col.SetNullable(true)
		columns = append(columns, col)
	}
	return columns
}

// encodeProperties encodes attributes in FlatGeobuf property layout:
// a little-endian uint16 column index followed by the value. Nulls are
// omitted. Attributes must already be normalized against s.
func encodeProperties(attrs []Attribute, s Schema) []byte {
	var buf []byte
	for _, a := range attrs {
		if a.Value == nil {
			continue
		}
		idx := s.Index(a.Name)
		if idx < 0 {
			continue
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(idx))

		switch v := a.Value.(type) {
		case bool:
			if v {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case int64:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		case float64:
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		case string:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v)))
			buf = append(buf, v...)
		}
	}
	return buf
}

// decodeProperties decodes FlatGeobuf properties using the header columns.
func decodeProperties(data []byte, header *flattypes.Header) ([]Attribute, error) {
	var attrs []Attribute
	for off := 0; off < len(data); {
		if off+2 > len(data) {
			return nil, fmt.Errorf("%w: truncated column index", ErrTruncated)
		}
		idx := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2

		var col flattypes.Column
		if idx >= header.ColumnsLength() || !header.Columns(&col, idx) {
			return nil, fmt.Errorf("%w: column index %d", ErrFormat, idx)
		}
		v, n, err := readProperty(data[off:], col.Type())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name(), err)
		}
		off += n
		attrs = append(attrs, Attribute{Name: string(col.Name()), Value: v})
	}
	return attrs, nil
}

// readProperty reads one value and returns it with the number of bytes used.
func readProperty(data []byte, t flattypes.ColumnType) (any, int, error) {
	need := func(n int) error {
		if len(data) < n {
			return ErrTruncated
		}
		return nil
	}

	switch t {
	case flattypes.ColumnTypeBool:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		return data[0] != 0, 1, nil
	case flattypes.ColumnTypeByte:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		return int64(int8(data[0])), 1, nil
	case flattypes.ColumnTypeUByte:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		return int64(data[0]), 1, nil
	case flattypes.ColumnTypeShort:
		if err := need(2); err != nil {
			return nil, 0, err
		}
		return int64(int16(binary.LittleEndian.Uint16(data))), 2, nil
	case flattypes.ColumnTypeUShort:
		if err := need(2); err != nil {
			return nil, 0, err
		}
		return int64(binary.LittleEndian.Uint16(data)), 2, nil
	case flattypes.ColumnTypeInt:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		return int64(int32(binary.LittleEndian.Uint32(data))), 4, nil
	case flattypes.ColumnTypeUInt:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		return int64(binary.LittleEndian.Uint32(data)), 4, nil
	case flattypes.ColumnTypeLong, flattypes.ColumnTypeULong:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return int64(binary.LittleEndian.Uint64(data)), 8, nil
	case flattypes.ColumnTypeFloat:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data))), 4, nil
	case flattypes.ColumnTypeDouble:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), 8, nil
	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeJson:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		n := int(binary.LittleEndian.Uint32(data))
		if err := need(4 + n); err != nil {
			return nil, 0, err
		}
		return string(data[4 : 4+n]), 4 + n, nil
	}
	return nil, 0, fmt.Errorf("%w: unsupported column type %s", ErrFormat, flattypes.EnumNamesColumnType[t])
}
