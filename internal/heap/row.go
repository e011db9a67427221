package heap

import (
	"encoding/binary"
	"math"

	"github.com/dshills/heapdb/internal/errors"
)

// ColumnType is a recognized on-page data type. INT and TEXT are the only
// types this engine knows how to marshal; anything else fails with
// UnsupportedType at marshal time.
type ColumnType int

const (
	// INT is a 32-bit signed integer, stored two's-complement.
	INT ColumnType = iota
	// TEXT is length-prefixed raw bytes, length < 2^16.
	TEXT
)

// String implements fmt.Stringer for ColumnType.
func (t ColumnType) String() string {
	switch t {
	case INT:
		return "INT"
	case TEXT:
		return "TEXT"
	default:
		return "UNKNOWN"
	}
}

// Column is one (name, type) pair in a relation's declared schema.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is an ordered sequence of columns. The marshalled byte layout of a
// row follows this declared order.
type Schema []Column

// IndexOf returns the position of name in the schema, or -1 if absent.
func (s Schema) IndexOf(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Row is an unordered mapping from column name to typed value.
type Row map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// marshal serializes row in schema order. Every value's type must match the
// schema's declared type for that column; validate is expected to have
// already checked that every column is present.
func marshal(schema Schema, row Row) ([]byte, error) {
	buf := make([]byte, 0, 64)
	for _, col := range schema {
		v := row[col.Name]
		switch col.Type {
		case INT:
			n, ok := v.(int32)
			if !ok {
				return nil, errors.Newf(errors.UnsupportedType, "column %q: expected int32, got %T", col.Name, v)
			}
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], uint32(n))
			buf = append(buf, tmp[:]...)
		case TEXT:
			s, ok := v.(string)
			if !ok {
				return nil, errors.Newf(errors.UnsupportedType, "column %q: expected string, got %T", col.Name, v)
			}
			if len(s) > math.MaxUint16 {
				return nil, errors.Newf(errors.UnsupportedType, "column %q: text value exceeds %d bytes", col.Name, math.MaxUint16)
			}
			var tmp [2]byte
			binary.LittleEndian.PutUint16(tmp[:], uint16(len(s)))
			buf = append(buf, tmp[:]...)
			buf = append(buf, s...)
		default:
			return nil, errors.Newf(errors.UnsupportedType, "column %q has unsupported type %v", col.Name, col.Type)
		}
	}
	return buf, nil
}

// unmarshal is the mirror of marshal: it reconstructs a Row from the bytes
// marshal produced for the same schema.
func unmarshal(schema Schema, data []byte) (Row, error) {
	row := make(Row, len(schema))
	offset := 0
	for _, col := range schema {
		switch col.Type {
		case INT:
			if offset+4 > len(data) {
				return nil, errors.Newf(errors.UnsupportedType, "truncated INT column %q", col.Name)
			}
			n := int32(binary.LittleEndian.Uint32(data[offset : offset+4])) //nolint:gosec // round-trips the value marshal wrote
			row[col.Name] = n
			offset += 4
		case TEXT:
			if offset+2 > len(data) {
				return nil, errors.Newf(errors.UnsupportedType, "truncated TEXT length for column %q", col.Name)
			}
			n := int(binary.LittleEndian.Uint16(data[offset : offset+2]))
			offset += 2
			if offset+n > len(data) {
				return nil, errors.Newf(errors.UnsupportedType, "truncated TEXT payload for column %q", col.Name)
			}
			row[col.Name] = string(data[offset : offset+n])
			offset += n
		default:
			return nil, errors.Newf(errors.UnsupportedType, "column %q has unsupported type %v", col.Name, col.Type)
		}
	}
	return row, nil
}
