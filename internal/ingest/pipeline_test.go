package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabula-cli/internal/catalog"
	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/ingest"
	"github.com/KaramelBytes/tabula-cli/internal/parser"
	"github.com/KaramelBytes/tabula-cli/internal/schema"
	"github.com/KaramelBytes/tabula-cli/internal/store"
)

func newPipeline(t *testing.T) (*ingest.Pipeline, *store.DB) {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "tabula.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return ingest.New(db, ingest.Options{}, nil), db
}

func salesSource(n int) *parser.Source {
	src := &parser.Source{Header: []string{"date", "sales", "region"}}
	regions := []string{"North", "South", "East", "West"}
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		src.Rows = append(src.Rows, []string{
			start.AddDate(0, 0, i).Format("2006-01-02"),
			fmt.Sprint(100 + i*7%900),
			regions[i%len(regions)],
		})
	}
	return src
}

// assertConsistent checks that catalog names and stored table names match.
func assertConsistent(t *testing.T, p *ingest.Pipeline, db *store.DB) {
	t.Helper()
	ctx := context.Background()
	entries, err := p.Catalog().List(ctx)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, strings.ToLower(e.Name))
	}
	tables, err := db.Tables().ListTables(ctx)
	require.NoError(t, err)
	for i := range tables {
		tables[i] = strings.ToLower(tables[i])
	}
	sort.Strings(names)
	sort.Strings(tables)
	assert.Equal(t, tables, names)
}

func TestIngestRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, db := newPipeline(t)
	src := salesSource(100)

	e, err := p.Ingest(ctx, src, "sales_data", "daily sales")
	require.NoError(t, err)
	assert.Equal(t, 100, e.RowCount)
	assert.Equal(t, 3, e.ColumnCount)

	tbl, err := db.Tables().ReadTable(ctx, "sales_data")
	require.NoError(t, err)
	assert.Equal(t, []schema.Field{
		{Name: "date", Type: schema.Timestamp},
		{Name: "sales", Type: schema.Integer},
		{Name: "region", Type: schema.Text},
	}, tbl.Fields())
	require.Equal(t, 100, tbl.NumRows())
	for i, raw := range src.Rows {
		want, _ := schema.ParseTimestamp(raw[0])
		assert.Equal(t, want, tbl.Columns[0].Values[i])
		assert.Equal(t, raw[1], store.FormatValue(tbl.Columns[1].Values[i]))
		assert.Equal(t, raw[2], tbl.Columns[2].Values[i])
	}
	assertConsistent(t, p, db)
}

func TestIngestDuplicateLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	p, db := newPipeline(t)
	first, err := p.Ingest(ctx, salesSource(100), "sales_data", "original")
	require.NoError(t, err)

	_, err = p.Ingest(ctx, salesSource(5), "Sales_Data", "replacement")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDuplicateName), "got %v", err)

	got, err := p.Catalog().Find(ctx, "sales_data")
	require.NoError(t, err)
	assert.Equal(t, first, got)
	tbl, err := db.Tables().ReadTable(ctx, "sales_data")
	require.NoError(t, err)
	assert.Equal(t, 100, tbl.NumRows())
}

func TestIngestRejectsOrphanTableName(t *testing.T) {
	ctx := context.Background()
	p, db := newPipeline(t)
	_, err := db.Tables().CreateTable(ctx, "stray", []schema.Field{{Name: "x", Type: schema.Integer}}, nil)
	require.NoError(t, err)

	_, err = p.Ingest(ctx, salesSource(2), "stray", "")
	assert.True(t, errors.Is(err, errs.ErrDuplicateName), "got %v", err)
}

func TestIngestInvalidAndParseErrors(t *testing.T) {
	ctx := context.Background()
	p, db := newPipeline(t)

	_, err := p.Ingest(ctx, salesSource(2), "   ", "")
	assert.True(t, errors.Is(err, errs.ErrInvalidName), "got %v", err)

	_, err = p.Ingest(ctx, &parser.Source{}, "empty", "")
	assert.True(t, errors.Is(err, errs.ErrParse), "got %v", err)

	// sampling sees only the integer prefix; the late text value fails conversion
	sampled := ingest.New(db, ingest.Options{Schema: schema.Options{SampleRows: 2}}, nil)
	src := &parser.Source{Header: []string{"n"}, Rows: [][]string{{"1"}, {"2"}, {"three"}}}
	_, err = sampled.Ingest(ctx, src, "numbers", "")
	assert.True(t, errors.Is(err, errs.ErrParse), "got %v", err)

	exists, err := db.Tables().TableExists(ctx, "numbers")
	require.NoError(t, err)
	assert.False(t, exists)
	assertConsistent(t, p, db)
}

func TestDropIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, db := newPipeline(t)
	_, err := p.Ingest(ctx, salesSource(10), "weather_data", "")
	require.NoError(t, err)

	existed, err := p.Drop(ctx, "weather_data")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = p.Drop(ctx, "weather_data")
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = p.Catalog().Find(ctx, "weather_data")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assertConsistent(t, p, db)
}

func TestMixedIngestAndDropStayConsistent(t *testing.T) {
	ctx := context.Background()
	p, db := newPipeline(t)
	for i := 0; i < 6; i++ {
		_, err := p.Ingest(ctx, salesSource(3), fmt.Sprintf("ds_%d", i), "")
		require.NoError(t, err)
		if i%2 == 1 {
			_, err = p.Drop(ctx, fmt.Sprintf("ds_%d", i-1))
			require.NoError(t, err)
		}
		assertConsistent(t, p, db)
	}
	entries, err := p.Catalog().List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestConcurrentDuplicateIngest(t *testing.T) {
	ctx := context.Background()
	p, db := newPipeline(t)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = p.Ingest(ctx, salesSource(20), "sales_data", "")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, errs.ErrDuplicateName), "got %v", err)
	}
	assert.Equal(t, 1, ok)
	assertConsistent(t, p, db)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	p, db := newPipeline(t)
	_, err := p.Ingest(ctx, salesSource(3), "kept", "")
	require.NoError(t, err)

	// a table nobody cataloged and an entry with no table
	_, err = db.Tables().CreateTable(ctx, "orphan", []schema.Field{{Name: "x", Type: schema.Text}}, nil)
	require.NoError(t, err)
	_, err = catalog.New(db.Queryer()).Register(ctx, catalog.Entry{Name: "ghost"})
	require.NoError(t, err)

	rep, err := p.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan"}, rep.DroppedTables)
	assert.Equal(t, []string{"ghost"}, rep.RemovedEntries)
	assertConsistent(t, p, db)

	rep, err = p.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, rep.Clean())
}

func TestIngestFileDefaultsName(t *testing.T) {
	ctx := context.Background()
	p, _ := newPipeline(t)
	path := filepath.Join(t.TempDir(), "student_scores.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,score\nAda,91.5\nLin,NA\n"), 0o644))

	e, err := p.IngestFile(ctx, path, "", "", parser.Options{})
	require.NoError(t, err)
	assert.Equal(t, "student_scores", e.Name)
	assert.Equal(t, 2, e.RowCount)

	_, err = p.IngestFile(ctx, filepath.Join(t.TempDir(), "missing.csv"), "", "", parser.Options{})
	assert.True(t, errors.Is(err, errs.ErrNotFound), "got %v", err)

	bad := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0o644))
	_, err = p.IngestFile(ctx, bad, "", "", parser.Options{})
	assert.True(t, errors.Is(err, errs.ErrParse), "got %v", err)
	assert.True(t, errors.Is(err, parser.ErrUnsupported), "got %v", err)
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "sales", ingest.DefaultName("/data/sales.csv.lz4"))
	assert.Equal(t, "Book1", ingest.DefaultName("Book1.XLSX"))
}

func TestIngestKeepsMonthFirstDates(t *testing.T) {
	ctx := context.Background()
	p, db := newPipeline(t)
	src := &parser.Source{
		Header: []string{"d"},
		Rows:   [][]string{{"01/02/2023"}, {"01/13/2023"}, {"12/31/2023"}},
	}
	_, err := p.Ingest(ctx, src, "us_dates", "")
	require.NoError(t, err)

	tbl, err := db.Tables().ReadTable(ctx, "us_dates")
	require.NoError(t, err)
	require.Equal(t, schema.Timestamp, tbl.Columns[0].Type)
	var got []string
	for _, v := range tbl.Columns[0].Values {
		got = append(got, store.FormatValue(v))
	}
	assert.Equal(t, []string{"2023-01-02 00:00:00", "2023-01-13 00:00:00", "2023-12-31 00:00:00"}, got)
}
