package stats

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/schema"
	"github.com/KaramelBytes/tabula-cli/internal/store"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-4 }

func intColumn(name string, vals ...any) store.Column {
	return store.Column{Name: name, Type: schema.Integer, Values: vals}
}

func TestSummarizeBasic(t *testing.T) {
	tbl := &store.Table{Name: "scores", Columns: []store.Column{
		intColumn("x", int64(1), int64(2), int64(3), int64(4)),
		{Name: "label", Type: schema.Text, Values: []any{"a", "b", "a", nil}},
	}}
	r := Summarize(tbl)
	if r.Shape != (Shape{Rows: 4, Columns: 2}) {
		t.Fatalf("shape = %+v", r.Shape)
	}
	if len(r.Numeric) != 1 {
		t.Fatalf("numeric = %+v", r.Numeric)
	}
	n := r.Numeric[0]
	if n.Count != 4 || !approx(n.Mean, 2.5) || !approx(n.Std, 1.2910) || !approx(n.Q50, 2.5) {
		t.Fatalf("unexpected summary: %+v", n)
	}
	if !approx(n.Q25, 1.75) || !approx(n.Q75, 3.25) || n.Min != 1 || n.Max != 4 {
		t.Fatalf("unexpected quartiles: %+v", n)
	}
	if len(r.Missing) != 1 || r.Missing[0].Name != "label" || r.Missing[0].Count != 1 || r.Missing[0].Percent != 25 {
		t.Fatalf("missing = %+v", r.Missing)
	}
	if r.Types[0].Type != schema.Integer || r.Types[1].Type != schema.Text {
		t.Fatalf("types = %+v", r.Types)
	}
	if len(r.Categorical) != 1 || r.Categorical[0].Top[0] != (CategoryCount{Value: "a", Count: 2}) {
		t.Fatalf("categorical = %+v", r.Categorical)
	}
}

func TestMissingPercent(t *testing.T) {
	vals := make([]any, 50)
	for i := range vals {
		if i%17 != 0 {
			vals[i] = float64(i)
		}
	}
	tbl := &store.Table{Columns: []store.Column{{Name: "temp", Type: schema.Real, Values: vals}}}
	r := Summarize(tbl)
	if len(r.Missing) != 1 {
		t.Fatalf("missing = %+v", r.Missing)
	}
	if m := r.Missing[0]; m.Count != 3 || m.Percent != 6.0 {
		t.Fatalf("got %+v, want count 3 percent 6.0", m)
	}
}

func TestNoNumericColumns(t *testing.T) {
	tbl := &store.Table{Name: "names", Columns: []store.Column{
		{Name: "first", Type: schema.Text, Values: []any{"Ada", "Lin"}},
		{Name: "seen", Type: schema.Timestamp, Values: []any{time.Now().UTC(), nil}},
	}}
	r := Summarize(tbl)
	if r.Numeric != nil {
		t.Fatalf("expected no numeric summary, got %+v", r.Numeric)
	}
	if !strings.Contains(r.Markdown(), "No numeric columns.") {
		t.Fatalf("markdown should note missing numeric columns:\n%s", r.Markdown())
	}
	_, err := Correlate(tbl)
	if !errors.Is(err, errs.ErrInsufficientData) {
		t.Fatalf("expected InsufficientData, got %v", err)
	}
}

func TestSingleValueAndAllNull(t *testing.T) {
	tbl := &store.Table{Columns: []store.Column{
		intColumn("one", int64(7), nil),
		intColumn("none", nil, nil),
	}}
	r := Summarize(tbl)
	one, none := r.Numeric[0], r.Numeric[1]
	if one.Count != 1 || one.Mean != 7 || !math.IsNaN(one.Std) || one.Q50 != 7 {
		t.Fatalf("one = %+v", one)
	}
	if none.Count != 0 || !math.IsNaN(none.Mean) || !math.IsNaN(none.Max) {
		t.Fatalf("none = %+v", none)
	}
	b, err := json.Marshal(none)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"mean":null`) {
		t.Fatalf("NaN must encode as null: %s", b)
	}
}

func TestCorrelate(t *testing.T) {
	tbl := &store.Table{Name: "m", Columns: []store.Column{
		{Name: "a", Type: schema.Real, Values: []any{1.0, 2.0, 3.0, 4.0, nil}},
		intColumn("b", int64(2), int64(4), int64(6), int64(8), int64(100)),
		intColumn("c", int64(4), int64(3), int64(2), int64(1), nil),
		intColumn("flat", int64(5), int64(5), int64(5), int64(5), int64(5)),
		{Name: "note", Type: schema.Text, Values: []any{"", "", "", "", ""}},
	}}
	m, err := Correlate(tbl)
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if len(m.Columns) != 4 {
		t.Fatalf("columns = %v", m.Columns)
	}
	for i := range m.Columns {
		if m.Values[i][i] != 1 {
			t.Fatalf("diagonal[%d] = %v", i, m.Values[i][i])
		}
		for j := range m.Columns {
			a, b := m.Values[i][j], m.Values[j][i]
			if !(a == b || (math.IsNaN(a) && math.IsNaN(b))) {
				t.Fatalf("not symmetric at %d,%d", i, j)
			}
		}
	}
	// pairwise-complete: the outlier row in b is excluded for a~b
	if !approx(m.Values[0][1], 1) || !approx(m.Values[0][2], -1) {
		t.Fatalf("unexpected coefficients: %v", m.Values)
	}
	if !math.IsNaN(m.Values[0][3]) {
		t.Fatalf("constant column must give NaN, got %v", m.Values[0][3])
	}

	top := TopPairs(m, 2)
	if len(top) != 2 || math.Abs(top[0].R) < math.Abs(top[1].R) {
		t.Fatalf("top pairs = %+v", top)
	}

	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), "null") {
		t.Fatalf("expected null for NaN coefficient: %s", b)
	}
	if md := m.Markdown(); !strings.Contains(md, "[CORRELATIONS]") || !strings.Contains(md, "NaN") {
		t.Fatalf("markdown:\n%s", md)
	}
}

func TestQuantile(t *testing.T) {
	s := []float64{10, 20, 30, 40, 50}
	cases := map[float64]float64{0: 10, 0.1: 14, 0.5: 30, 0.9: 46, 1: 50}
	for q, want := range cases {
		if got := quantile(s, q); !approx(got, want) {
			t.Fatalf("quantile(%v) = %v, want %v", q, got, want)
		}
	}
	if !math.IsNaN(quantile(nil, 0.5)) {
		t.Fatalf("empty input should be NaN")
	}
}

func TestOutliers(t *testing.T) {
	s := []float64{9.5, 9.7, 9.8, 10, 10.1, 10.2, 10.5, 11, 50}
	if got := countOutliers(s, outlierZ); got != 1 {
		t.Fatalf("outliers = %d, want 1", got)
	}
}

func TestMemoryEstimate(t *testing.T) {
	tbl := &store.Table{Columns: []store.Column{
		intColumn("n", int64(1), nil),
		{Name: "s", Type: schema.Text, Values: []any{"abcd", nil}},
	}}
	want := int64(2*columnOverhead + 2*cellBytes + (stringHeader + 4) + stringHeader)
	if got := Summarize(tbl).MemoryBytes; got != want {
		t.Fatalf("memory = %d, want %d", got, want)
	}
}

func TestNumericColumns(t *testing.T) {
	tbl := &store.Table{Columns: []store.Column{
		{Name: "when", Type: schema.Timestamp},
		{Name: "qty", Type: schema.Integer},
		{Name: "price", Type: schema.Real},
	}}
	got := NumericColumns(tbl)
	if len(got) != 2 || got[0] != "qty" || got[1] != "price" {
		t.Fatalf("numeric columns = %v", got)
	}
}

func TestInsufficientRendering(t *testing.T) {
	if got := InsufficientMessage(1); got != "need at least 2 numeric columns, have 1" {
		t.Fatalf("message = %q", got)
	}
	if got := InsufficientMarkdown(0); got != "[CORRELATIONS]\nInsufficient numeric columns (0).\n" {
		t.Fatalf("markdown = %q", got)
	}
}
