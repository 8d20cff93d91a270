// Package schema infers column types from raw CSV values and converts raw
// values into their typed form.
package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
)

// StorageLayout is the textual form timestamps are persisted in.
const StorageLayout = "2006-01-02 15:04:05"

// DefaultNullValues are the tokens treated as missing in addition to empty cells.
var DefaultNullValues = []string{"NA", "N/A", "n/a", "NULL", "null", "NaN", "nan", "#N/A", "None"}

// yearFirst layouts cannot confuse day and month, so every column accepts them.
var yearFirst = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "2006-01-02 15:04", StorageLayout, "2006-01-02T15:04:05",
}

// DateOrder is how a column writes slash dates. One order is settled per
// column so an ambiguous value like 01/02/2023 is read the same way as the
// rest of its column.
type DateOrder uint8

const (
	DayFirst DateOrder = iota // 02/01/2006
	MonthFirst                // 01/02/2006, 1/2/2006 15:04
)

var orderLayouts = map[DateOrder][]string{
	DayFirst:   append(append([]string{}, yearFirst...), "02/01/2006"),
	MonthFirst: append(append([]string{}, yearFirst...), "01/02/2006", "1/2/2006 15:04", "1/2/2006 15:04:05"),
}

func (o DateOrder) String() string {
	if o == MonthFirst {
		return "month-first"
	}
	return "day-first"
}

// Parse parses s under the year-first layouts and the slash layouts of o and
// returns it in UTC.
func (o DateOrder) Parse(s string) (time.Time, bool) {
	for _, l := range orderLayouts[o] {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Options controls inference.
type Options struct {
	// SampleRows limits how many leading values are classified; 0 means all.
	SampleRows int
	// NullValues are tokens treated as missing. Nil means DefaultNullValues.
	NullValues []string
}

// Field is a named, typed column.
type Field struct {
	Name string
	Type ColumnType
	// Dates applies to Timestamp columns only.
	Dates DateOrder
}

func (o Options) nullSet() map[string]struct{} {
	vals := o.NullValues
	if vals == nil {
		vals = DefaultNullValues
	}
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

// IsNull reports whether raw is a missing value under opt.
func IsNull(raw string, opt Options) bool {
	return isNull(raw, opt.nullSet())
}

func isNull(raw string, nulls map[string]struct{}) bool {
	v := strings.TrimSpace(raw)
	if v == "" {
		return true
	}
	_, ok := nulls[v]
	return ok
}

// Infer classifies a column from its raw values. Nulls are skipped; a column
// with no non-null values, or with values of mixed kinds, is Text.
func Infer(values []string, opt Options) ColumnType {
	t, _ := infer(values, opt, opt.nullSet())
	return t
}

// infer also returns the date order every classified value agrees on. A
// column that needs day-first for some values and month-first for others is
// Text.
func infer(values []string, opt Options, nulls map[string]struct{}) (ColumnType, DateOrder) {
	if opt.SampleRows > 0 && len(values) > opt.SampleRows {
		values = values[:opt.SampleRows]
	}
	allInt, allReal := true, true
	dayOK, monthOK := true, true
	seen := 0
	for _, raw := range values {
		if isNull(raw, nulls) {
			continue
		}
		seen++
		v := strings.TrimSpace(raw)
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allReal && !allInt {
			if _, ok := parseReal(v); !ok {
				allReal = false
			}
		}
		if dayOK {
			_, dayOK = DayFirst.Parse(v)
		}
		if monthOK {
			_, monthOK = MonthFirst.Parse(v)
		}
		if !allInt && !allReal && !dayOK && !monthOK {
			return Text, DayFirst
		}
	}
	switch {
	case seen == 0:
		return Text, DayFirst
	case allInt:
		return Integer, DayFirst
	case allReal:
		return Real, DayFirst
	case dayOK:
		return Timestamp, DayFirst
	case monthOK:
		return Timestamp, MonthFirst
	default:
		return Text, DayFirst
	}
}

// InferColumns infers one Field per header column from row-major data.
func InferColumns(header []string, rows [][]string, opt Options) []Field {
	nulls := opt.nullSet()
	fields := make([]Field, len(header))
	col := make([]string, 0, len(rows))
	for j, name := range header {
		col = col[:0]
		for _, r := range rows {
			if j < len(r) {
				col = append(col, r[j])
			} else {
				col = append(col, "")
			}
		}
		typ, order := infer(col, opt, nulls)
		fields[j] = Field{Name: name, Type: typ, Dates: order}
	}
	return fields
}

// Convert turns a raw value into nil, int64, float64, time.Time or string.
// Timestamps are read day-first; ConvertRows uses each field's own order.
func Convert(raw string, t ColumnType, opt Options) (any, error) {
	return convert(raw, Field{Type: t}, opt.nullSet())
}

func convert(raw string, f Field, nulls map[string]struct{}) (any, error) {
	if isNull(raw, nulls) {
		return nil, nil
	}
	v := strings.TrimSpace(raw)
	switch f.Type {
	case Integer:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return n, nil
	case Real:
		f, ok := parseReal(v)
		if !ok {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	case Timestamp:
		ts, ok := f.Dates.Parse(v)
		if !ok {
			return nil, fmt.Errorf("%q is not a recognized %s date/time", raw, f.Dates)
		}
		return ts, nil
	default:
		return raw, nil
	}
}

// ConvertRows converts row-major raw data according to fields. A value that
// does not fit its column (possible when inference was sampled) is a
// ParseError naming the column and the 1-based data row.
func ConvertRows(fields []Field, rows [][]string, opt Options) ([][]any, error) {
	nulls := opt.nullSet()
	out := make([][]any, len(rows))
	for i, r := range rows {
		typed := make([]any, len(fields))
		for j, f := range fields {
			raw := ""
			if j < len(r) {
				raw = r[j]
			}
			v, err := convert(raw, f, nulls)
			if err != nil {
				return nil, errs.E(errs.ParseError, "schema.ConvertRows", f.Name, fmt.Errorf("row %d: %w", i+1, err))
			}
			typed[j] = v
		}
		out[i] = typed
	}
	return out, nil
}

// ParseTimestamp parses a single value with no column context, preferring
// day-first for slash dates.
func ParseTimestamp(s string) (time.Time, bool) {
	if t, ok := DayFirst.Parse(s); ok {
		return t, true
	}
	return MonthFirst.Parse(s)
}

// FormatTimestamp renders t in StorageLayout.
func FormatTimestamp(t time.Time) string { return t.UTC().Format(StorageLayout) }

// parseReal accepts finite decimal numbers only.
func parseReal(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
