package sql

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrColumnNotFound is returned when a WHERE clause or column list names
// a column the table's inferred schema doesn't have.
var ErrColumnNotFound = errors.New("sql: column not found")

// ErrNoPrimaryKey is returned when a row has no integer column to serve
// as the primary key (spec.md §6: "INSERT primary key is the first
// integer column").
var ErrNoPrimaryKey = errors.New("sql: no integer column to use as primary key")

// Schema is a table's inferred column layout: names in declaration order,
// with Key the index of the first integer column (the primary key).
// Grounded on pkg/schema/record.go's Cols/Vals pairing, trimmed to a
// single in-memory schema per table since there is no catalog.
type Schema struct {
	Columns []string
	Key     int
}

// inferSchema builds a Schema from an INSERT's column names (or
// positional col0, col1, ... if none were given) and its first row,
// locating the first integer-valued column to serve as the primary key.
func inferSchema(columns []string, firstRow []Value) (Schema, error) {
	names := columns
	if names == nil {
		names = make([]string, len(firstRow))
		for i := range names {
			names[i] = fmt.Sprintf("col%d", i)
		}
	}

	key := -1
	for i, v := range firstRow {
		if v.Kind == KindInteger {
			key = i
			break
		}
	}
	if key < 0 {
		return Schema{}, ErrNoPrimaryKey
	}
	return Schema{Columns: names, Key: key}, nil
}

func (sc Schema) columnIndex(name string) (int, bool) {
	for i, c := range sc.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// encodeRow serializes a full row (including the key column, so decoding
// needs no schema lookup other than column names) as length-prefixed
// fields: per field, a 1-byte kind tag, then for integers an 8-byte
// little-endian value, for text a 4-byte length followed by the bytes.
func encodeRow(row []Value) []byte {
	buf := make([]byte, 0, len(row)*9)
	for _, v := range row {
		switch v.Kind {
		case KindInteger:
			buf = append(buf, byte(KindInteger))
			var n [8]byte
			binary.LittleEndian.PutUint64(n[:], uint64(v.Int))
			buf = append(buf, n[:]...)
		case KindText:
			buf = append(buf, byte(KindText))
			var l [4]byte
			binary.LittleEndian.PutUint32(l[:], uint32(len(v.Text)))
			buf = append(buf, l[:]...)
			buf = append(buf, v.Text...)
		}
	}
	return buf
}

// decodeRow is encodeRow's inverse, reconstructing exactly numCols
// values.
func decodeRow(data []byte, numCols int) ([]Value, error) {
	row := make([]Value, 0, numCols)
	pos := 0
	for i := 0; i < numCols; i++ {
		if pos >= len(data) {
			return nil, fmt.Errorf("sql: truncated row at field %d", i)
		}
		kind := ValueKind(data[pos])
		pos++
		switch kind {
		case KindInteger:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("sql: truncated integer field %d", i)
			}
			n := binary.LittleEndian.Uint64(data[pos : pos+8])
			pos += 8
			row = append(row, Value{Kind: KindInteger, Int: int64(n)})
		case KindText:
			if pos+4 > len(data) {
				return nil, fmt.Errorf("sql: truncated text length at field %d", i)
			}
			l := binary.LittleEndian.Uint32(data[pos : pos+4])
			pos += 4
			if pos+int(l) > len(data) {
				return nil, fmt.Errorf("sql: truncated text field %d", i)
			}
			row = append(row, Value{Kind: KindText, Text: data[pos : pos+int(l)]})
			pos += int(l)
		default:
			return nil, fmt.Errorf("sql: bad field kind 0x%02x at field %d", kind, i)
		}
	}
	return row, nil
}
