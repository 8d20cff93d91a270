package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/store"
)

// CorrMatrix is a symmetric Pearson correlation matrix across numeric
// columns with a unit diagonal.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// MarshalJSON encodes undefined coefficients as null.
func (m *CorrMatrix) MarshalJSON() ([]byte, error) {
	vals := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		vals[i] = make([]*float64, len(row))
		for j, v := range row {
			vals[i][j] = nullable(v)
		}
	}
	return json.Marshal(struct {
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}{m.Columns, vals})
}

// PairCorr is one off-diagonal coefficient.
type PairCorr struct {
	A string  `json:"a"`
	B string  `json:"b"`
	R float64 `json:"r"`
}

// Correlate computes Pearson coefficients between every pair of numeric
// columns using the rows where both are non-null. A pair with fewer than two
// such rows, or with a constant side, is NaN. Fewer than two numeric columns
// is an InsufficientData error.
func Correlate(t *store.Table) (*CorrMatrix, error) {
	var cols []*store.Column
	for i := range t.Columns {
		if t.Columns[i].Type.IsNumeric() {
			cols = append(cols, &t.Columns[i])
		}
	}
	if len(cols) < 2 {
		return nil, errs.E(errs.InsufficientData, "stats.Correlate", t.Name,
			fmt.Errorf("need at least 2 numeric columns, have %d", len(cols)))
	}
	n := len(cols)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]float64, n)}
	for i, c := range cols {
		m.Columns[i] = c.Name
		m.Values[i] = make([]float64, n)
		m.Values[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := pairwise(cols[i], cols[j])
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m, nil
}

func pairwise(a, b *store.Column) float64 {
	xs := make([]float64, 0, len(a.Values))
	ys := make([]float64, 0, len(a.Values))
	for k := range a.Values {
		x, okx := store.AsFloat(a.Values[k])
		y, oky := store.AsFloat(b.Values[k])
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 || constant(xs) || constant(ys) {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

func constant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

// Pairs returns the upper-triangle coefficients.
func (m *CorrMatrix) Pairs() []PairCorr {
	var out []PairCorr
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			out = append(out, PairCorr{A: m.Columns[i], B: m.Columns[j], R: m.Values[i][j]})
		}
	}
	return out
}

// TopPairs returns up to n pairs ordered by |r| descending. NaN pairs are
// left out; n <= 0 returns all.
func TopPairs(m *CorrMatrix, n int) []PairCorr {
	var pairs []PairCorr
	for _, p := range m.Pairs() {
		if !math.IsNaN(p.R) {
			pairs = append(pairs, p)
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if n > 0 && len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}

// InsufficientMessage explains why no matrix was computed for a table with
// the given number of numeric columns.
func InsufficientMessage(numeric int) string {
	return fmt.Sprintf("need at least 2 numeric columns, have %d", numeric)
}

// InsufficientMarkdown is the [CORRELATIONS] section used in place of a matrix.
func InsufficientMarkdown(numeric int) string {
	return fmt.Sprintf("[CORRELATIONS]\nInsufficient numeric columns (%d).\n", numeric)
}

// Markdown renders the matrix as a table followed by the strongest pairs.
func (m *CorrMatrix) Markdown() string {
	var b strings.Builder
	b.WriteString("[CORRELATIONS]\n")
	b.WriteString("| |")
	for _, c := range m.Columns {
		fmt.Fprintf(&b, " %s |", safeVal(c))
	}
	b.WriteString("\n| --- |")
	for range m.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for i, row := range m.Values {
		fmt.Fprintf(&b, "| %s |", safeVal(m.Columns[i]))
		for _, v := range row {
			if math.IsNaN(v) {
				b.WriteString(" NaN |")
			} else {
				fmt.Fprintf(&b, " %.3f |", v)
			}
		}
		b.WriteString("\n")
	}
	if top := TopPairs(m, 10); len(top) > 0 {
		b.WriteString("\n")
		for _, p := range top {
			fmt.Fprintf(&b, "- %s ~ %s: r=%.3f\n", p.A, p.B, p.R)
		}
	}
	return b.String()
}
