package store

import (
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/tabula-cli/internal/schema"
)

// Column is one typed column of a table. Values holds nil for nulls, int64
// for Integer, float64 for Real, time.Time (UTC) for Timestamp and string
// for Text.
type Column struct {
	Name   string
	Type   schema.ColumnType
	Values []any
}

// NullCount returns the number of null cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Floats returns the non-null values of a numeric column as float64.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if f, ok := AsFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}

// Table is an in-memory copy of a stored table, columns in declared order.
type Table struct {
	Name    string
	Columns []Column
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Columns) }

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Fields returns the table schema.
func (t *Table) Fields() []schema.Field {
	out := make([]schema.Field, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = schema.Field{Name: c.Name, Type: c.Type}
	}
	return out
}

// Header returns the column names.
func (t *Table) Header() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks a column up by name, case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Row returns row i as a slice of values.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.Values[i]
	}
	return out
}

// StringRows renders every row with FormatValue.
func (t *Table) StringRows() [][]string {
	rows := make([][]string, t.NumRows())
	for i := range rows {
		row := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = FormatValue(c.Values[i])
		}
		rows[i] = row
	}
	return rows
}

// AsFloat converts an integer or real cell to float64.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}

// FormatValue renders a cell for display or export. Nulls render empty.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return schema.FormatTimestamp(x)
	case []byte:
		return string(x)
	}
	return ""
}
