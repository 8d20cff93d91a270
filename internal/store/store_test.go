package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/schema"
	"github.com/KaramelBytes/tabula-cli/internal/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "tabula.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var readingFields = []schema.Field{
	{Name: "taken_at", Type: schema.Timestamp},
	{Name: "station", Type: schema.Text},
	{Name: "temp_c", Type: schema.Real},
	{Name: "humidity", Type: schema.Integer},
}

func readingRows() [][]any {
	ts := time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC)
	return [][]any{
		{ts, "north", 12.5, int64(80)},
		{ts.Add(time.Hour), "south", nil, int64(75)},
		{nil, "", 14.0, nil},
	}
}

func TestCreateAndReadTable(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tables := db.Tables()

	counts, err := tables.CreateTable(ctx, "readings", readingFields, readingRows())
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Rows: 3, Columns: 4}, counts)

	tbl, err := tables.ReadTable(ctx, "READINGS")
	require.NoError(t, err)
	assert.Equal(t, "readings", tbl.Name)
	assert.Equal(t, readingFields, tbl.Fields())
	require.Equal(t, 3, tbl.NumRows())

	assert.Equal(t, time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC), tbl.Columns[0].Values[0])
	assert.Equal(t, "north", tbl.Columns[1].Values[0])
	assert.Equal(t, 12.5, tbl.Columns[2].Values[0])
	assert.Equal(t, int64(80), tbl.Columns[3].Values[0])

	assert.Nil(t, tbl.Columns[2].Values[1])
	assert.Nil(t, tbl.Columns[0].Values[2])
	assert.Equal(t, "", tbl.Columns[1].Values[2], "empty text is a value, not a null")
	assert.Equal(t, 14.0, tbl.Columns[2].Values[2], "whole reals stay real")
	assert.Equal(t, 1, tbl.Columns[3].NullCount())
	assert.Equal(t, []float64{12.5, 14}, tbl.Columns[2].Floats())
}

func TestReadRowsLimit(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.Tables().CreateTable(ctx, "readings", readingFields, readingRows())
	require.NoError(t, err)

	tbl, err := db.Tables().ReadRows(ctx, "readings", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, "south", tbl.Columns[1].Values[1])

	empty, err := db.Tables().ReadRows(ctx, "readings", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.NumRows())
	assert.Equal(t, 4, empty.NumCols())
}

func TestCreateTableErrors(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tables := db.Tables()
	_, err := tables.CreateTable(ctx, "readings", readingFields, readingRows())
	require.NoError(t, err)

	_, err = tables.CreateTable(ctx, "Readings", readingFields, nil)
	assert.True(t, errors.Is(err, errs.ErrDuplicateName), "got %v", err)

	for _, name := range []string{"", "   ", "datasets", "sqlite_stat1", "a\x00b"} {
		_, err = tables.CreateTable(ctx, name, readingFields, nil)
		assert.True(t, errors.Is(err, errs.ErrInvalidName), "name %q: got %v", name, err)
	}

	_, err = tables.CreateTable(ctx, "dupcols", []schema.Field{{Name: "a"}, {Name: "A"}}, nil)
	assert.True(t, errors.Is(err, errs.ErrParse), "got %v", err)

	_, err = tables.CreateTable(ctx, "ragged", readingFields, [][]any{{"x"}})
	assert.True(t, errors.Is(err, errs.ErrParse), "got %v", err)
	exists, err := tables.TableExists(ctx, "ragged")
	require.NoError(t, err)
	assert.False(t, exists, "failed create must leave no table behind")
}

func TestQuotedIdentifiers(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	fields := []schema.Field{{Name: `say "hi"`, Type: schema.Text}, {Name: "select", Type: schema.Integer}}
	_, err := db.Tables().CreateTable(ctx, `odd "name"; drop`, fields, [][]any{{"x", 1}})
	require.NoError(t, err)

	tbl, err := db.Tables().ReadTable(ctx, `odd "name"; drop`)
	require.NoError(t, err)
	assert.Equal(t, fields, tbl.Fields())
	assert.Equal(t, int64(1), tbl.Columns[1].Values[0])
}

func TestDropAndList(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tables := db.Tables()
	for _, n := range []string{"b_data", "a_data"} {
		_, err := tables.CreateTable(ctx, n, readingFields, nil)
		require.NoError(t, err)
	}

	names, err := tables.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_data", "b_data"}, names)

	dropped, err := tables.DropTable(ctx, "A_DATA")
	require.NoError(t, err)
	assert.True(t, dropped)

	dropped, err = tables.DropTable(ctx, "a_data")
	require.NoError(t, err)
	assert.False(t, dropped)

	_, err = tables.ReadTable(ctx, "a_data")
	assert.True(t, errors.Is(err, errs.ErrNotFound), "got %v", err)
}

func TestInTxRollback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	boom := errors.New("boom")
	err := db.InTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.Tables().CreateTable(ctx, "staged", readingFields, readingRows()); err != nil {
			return err
		}
		tbl, err := tx.Tables().ReadTable(ctx, "staged")
		require.NoError(t, err)
		assert.Equal(t, 3, tbl.NumRows())
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := db.Tables().TableExists(ctx, "staged")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.Tables().CreateTable(ctx, "readings", readingFields, readingRows())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl, err := db.Tables().ReadTable(ctx, "readings")
			if err == nil {
				assert.Equal(t, 3, tbl.NumRows())
			} else {
				assert.True(t, errors.Is(err, errs.ErrNotFound), "got %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := db.Tables().DropTable(ctx, "readings")
		assert.NoError(t, err)
	}()
	wg.Wait()
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", store.FormatValue(nil))
	assert.Equal(t, "42", store.FormatValue(int64(42)))
	assert.Equal(t, "2.5", store.FormatValue(2.5))
	assert.Equal(t, "2024-01-02 03:04:05", store.FormatValue(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}
