// Package stats computes descriptive statistics and correlations over stored
// tables. Reports are plain values and hold no reference to the store.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/tabula-cli/internal/schema"
	"github.com/KaramelBytes/tabula-cli/internal/store"
)

// Memory estimate constants, in bytes.
const (
	cellBytes       = 8
	stringHeader    = 16
	columnOverhead  = 128
	outlierZ        = 3.5
	topCategories   = 5
	maxCategoryKeys = 10000
)

// Shape is a table's row and column count.
type Shape struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// ColumnInfo is one column's persisted type.
type ColumnInfo struct {
	Name string            `json:"name"`
	Type schema.ColumnType `json:"type"`
}

// NumericSummary describes one Integer or Real column over its non-null
// values. Std is the sample standard deviation and is NaN for fewer than two
// values; every statistic is NaN for an all-null column.
type NumericSummary struct {
	Name     string
	Count    int
	Mean     float64
	Std      float64
	Min      float64
	Q25      float64
	Q50      float64
	Q75      float64
	Max      float64
	Outliers int // robust |z| above 3.5
}

// MarshalJSON encodes NaN statistics as null.
func (n NumericSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string   `json:"name"`
		Count    int      `json:"count"`
		Mean     *float64 `json:"mean"`
		Std      *float64 `json:"std"`
		Min      *float64 `json:"min"`
		Q25      *float64 `json:"25%"`
		Q50      *float64 `json:"50%"`
		Q75      *float64 `json:"75%"`
		Max      *float64 `json:"max"`
		Outliers int      `json:"outliers"`
	}{n.Name, n.Count, nullable(n.Mean), nullable(n.Std), nullable(n.Min),
		nullable(n.Q25), nullable(n.Q50), nullable(n.Q75), nullable(n.Max), n.Outliers})
}

func nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// MissingEntry counts nulls in a column that has at least one.
type MissingEntry struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// CategoryCount is a value and how often it occurs.
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CategorySummary lists the most frequent values of a text column.
type CategorySummary struct {
	Name   string          `json:"name"`
	Unique int             `json:"unique"`
	Top    []CategoryCount `json:"top"`
}

// Report is the descriptive summary of one table.
type Report struct {
	Name        string            `json:"name"`
	Shape       Shape             `json:"shape"`
	MemoryBytes int64             `json:"memory_bytes"`
	Types       []ColumnInfo      `json:"types"`
	Numeric     []NumericSummary  `json:"numeric"`
	Missing     []MissingEntry    `json:"missing"`
	Categorical []CategorySummary `json:"categorical,omitempty"`
}

// MemoryMB returns MemoryBytes in mebibytes.
func (r *Report) MemoryMB() float64 { return float64(r.MemoryBytes) / (1024 * 1024) }

// Summarize computes the shape, memory estimate, types, numeric summary and
// missing-value counts of t. Numeric is nil when t has no numeric columns.
func Summarize(t *store.Table) *Report {
	rows := t.NumRows()
	r := &Report{
		Name:    t.Name,
		Shape:   Shape{Rows: rows, Columns: t.NumCols()},
		Types:   make([]ColumnInfo, 0, t.NumCols()),
		Missing: []MissingEntry{},
	}
	for i := range t.Columns {
		c := &t.Columns[i]
		r.Types = append(r.Types, ColumnInfo{Name: c.Name, Type: c.Type})
		r.MemoryBytes += columnMemory(c)

		if c.Type.IsNumeric() {
			r.Numeric = append(r.Numeric, summarizeNumeric(c))
		} else if c.Type == schema.Text {
			if cs, ok := summarizeCategories(c); ok {
				r.Categorical = append(r.Categorical, cs)
			}
		}
		if nulls := c.NullCount(); nulls > 0 {
			r.Missing = append(r.Missing, MissingEntry{
				Name:    c.Name,
				Count:   nulls,
				Percent: float64(nulls) * 100 / float64(rows),
			})
		}
	}
	return r
}

func columnMemory(c *store.Column) int64 {
	n := int64(columnOverhead)
	for _, v := range c.Values {
		if s, ok := v.(string); ok {
			n += stringHeader + int64(len(s))
			continue
		}
		if c.Type == schema.Text {
			n += stringHeader
			continue
		}
		n += cellBytes
	}
	return n
}

func summarizeNumeric(c *store.Column) NumericSummary {
	vals := c.Floats()
	s := NumericSummary{Name: c.Name, Count: len(vals)}
	nan := math.NaN()
	if len(vals) == 0 {
		s.Mean, s.Std, s.Min, s.Q25, s.Q50, s.Q75, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	if len(vals) < 2 {
		s.Mean, s.Std = vals[0], nan
	} else {
		s.Mean, s.Std = stat.MeanStdDev(vals, nil)
	}
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Q25 = quantile(sorted, 0.25)
	s.Q50 = quantile(sorted, 0.5)
	s.Q75 = quantile(sorted, 0.75)
	s.Outliers = countOutliers(sorted, outlierZ)
	return s
}

// countOutliers counts values whose robust z-score (0.6745*|x-median|/MAD)
// exceeds threshold. A zero MAD yields no outliers.
func countOutliers(sorted []float64, threshold float64) int {
	median, mad := medianMAD(sorted)
	if mad == 0 {
		return 0
	}
	n := 0
	for _, v := range sorted {
		if 0.6745*math.Abs(v-median)/mad > threshold {
			n++
		}
	}
	return n
}

// medianMAD computes median and MAD (median absolute deviation) of sorted values.
func medianMAD(sorted []float64) (median, mad float64) {
	if len(sorted) == 0 {
		return 0, 0
	}
	median = quantile(sorted, 0.5)
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

// quantile interpolates linearly between the closest ranks of sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

func summarizeCategories(c *store.Column) (CategorySummary, bool) {
	counts := map[string]int{}
	for _, v := range c.Values {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		if len(counts) >= maxCategoryKeys {
			if _, seen := counts[s]; !seen {
				continue
			}
		}
		counts[s]++
	}
	if len(counts) == 0 {
		return CategorySummary{}, false
	}
	top := make([]CategoryCount, 0, len(counts))
	for v, n := range counts {
		top = append(top, CategoryCount{Value: v, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count == top[j].Count {
			return top[i].Value < top[j].Value
		}
		return top[i].Count > top[j].Count
	})
	if len(top) > topCategories {
		top = top[:topCategories]
	}
	return CategorySummary{Name: c.Name, Unique: len(counts), Top: top}, true
}

// NumericColumns lists the names of t's Integer and Real columns.
func NumericColumns(t *store.Table) []string {
	var out []string
	for _, c := range t.Columns {
		if c.Type.IsNumeric() {
			out = append(out, c.Name)
		}
	}
	return out
}

// Markdown renders the report as plain text sections.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", r.Name)
	}
	fmt.Fprintf(&b, "Shape: %d rows x %d columns\n", r.Shape.Rows, r.Shape.Columns)
	fmt.Fprintf(&b, "Memory: %.2f MB\n\n", r.MemoryMB())

	b.WriteString("[COLUMN TYPES]\n")
	for _, c := range r.Types {
		fmt.Fprintf(&b, "- %s: %s\n", safeName(c.Name), c.Type)
	}

	b.WriteString("\n[NUMERIC SUMMARY]\n")
	if len(r.Numeric) == 0 {
		b.WriteString("No numeric columns.\n")
	} else {
		b.WriteString("| column | count | mean | std | min | 25% | 50% | 75% | max |\n")
		b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- | --- |\n")
		for _, n := range r.Numeric {
			fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s | %s | %s | %s |\n",
				safeVal(n.Name), n.Count, FormatFloat(n.Mean), FormatFloat(n.Std), FormatFloat(n.Min),
				FormatFloat(n.Q25), FormatFloat(n.Q50), FormatFloat(n.Q75), FormatFloat(n.Max))
		}
		for _, n := range r.Numeric {
			if n.Outliers > 0 {
				fmt.Fprintf(&b, "- %s: %d outlier(s) above |z|>%.1f\n", n.Name, n.Outliers, outlierZ)
			}
		}
	}

	b.WriteString("\n[MISSING VALUES]\n")
	if len(r.Missing) == 0 {
		b.WriteString("No missing values.\n")
	}
	for _, m := range r.Missing {
		fmt.Fprintf(&b, "- %s: %d (%.1f%%)\n", safeName(m.Name), m.Count, m.Percent)
	}

	if len(r.Categorical) > 0 {
		b.WriteString("\n[TOP VALUES]\n")
		for _, c := range r.Categorical {
			fmt.Fprintf(&b, "- %s:", safeName(c.Name))
			for i, kv := range c.Top {
				if i > 0 {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, " %s(%d)", safeVal(kv.Value), kv.Count)
			}
			if c.Unique > len(c.Top) {
				fmt.Fprintf(&b, "; unique=%d", c.Unique)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// FormatFloat renders a statistic with four significant digits; NaN renders
// as "NaN".
func FormatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return fmt.Sprintf("%.4g", f)
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
