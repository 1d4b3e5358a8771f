package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ashureev/relaychat/internal/orderedjson"
)

// Row is one record of the message table. Column names are not fixed, so a
// row is an ordered list of name/value pairs rather than a struct. The order
// is the order the producer (database or JSON payload) reported.
type Row struct {
	Columns []string
	Values  []any
}

// NewRow builds a row from parallel column and value slices.
func NewRow(columns []string, values []any) Row {
	return Row{Columns: columns, Values: values}
}

// Keys returns the column names in producer order.
func (r Row) Keys() []string {
	return r.Columns
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			if i < len(r.Values) {
				return r.Values[i], true
			}
			return nil, true
		}
	}
	return nil, false
}

// MarshalJSON writes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		var v any
		if i < len(r.Values) {
			v = r.Values[i]
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", c, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping its key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	v, err := orderedjson.Parse(data)
	if err != nil {
		return err
	}
	row, err := RowFromValue(v)
	if err != nil {
		return err
	}
	*r = row
	return nil
}

// RowFromValue converts a decoded JSON object into a Row.
func RowFromValue(v orderedjson.Value) (Row, error) {
	if v.Kind != orderedjson.Object {
		return Row{}, fmt.Errorf("message row must be a JSON object")
	}
	row := Row{
		Columns: make([]string, 0, len(v.Fields)),
		Values:  make([]any, 0, len(v.Fields)),
	}
	for _, f := range v.Fields {
		row.Columns = append(row.Columns, f.Key)
		row.Values = append(row.Values, f.Value.Interface())
	}
	return row, nil
}
