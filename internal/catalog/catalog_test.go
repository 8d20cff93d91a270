package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabula-cli/internal/catalog"
	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/store"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newCatalog(t *testing.T, clock *fakeClock) *catalog.Catalog {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "tabula.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return catalog.New(db.Queryer(), catalog.WithClock(clock.now))
}

func TestRegisterAndFind(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 123456789, time.FixedZone("CEST", 2*3600))}
	cat := newCatalog(t, clock)

	e, err := cat.Register(ctx, catalog.Entry{Name: "sales_data", Description: "Sample sales", RowCount: 100, ColumnCount: 5})
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.Equal(t, time.Date(2024, 5, 1, 7, 0, 0, 123456000, time.UTC), e.CreatedAt)

	got, err := cat.Find(ctx, "SALES_DATA")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = cat.Register(ctx, catalog.Entry{Name: "Sales_Data"})
	assert.True(t, errors.Is(err, errs.ErrDuplicateName), "got %v", err)

	_, err = cat.Register(ctx, catalog.Entry{Name: "  "})
	assert.True(t, errors.Is(err, errs.ErrInvalidName), "got %v", err)

	_, err = cat.Find(ctx, "missing")
	assert.True(t, errors.Is(err, errs.ErrNotFound), "got %v", err)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: base}
	cat := newCatalog(t, clock)

	for i, name := range []string{"first", "second", "third"} {
		clock.t = base.Add(time.Duration(i) * time.Millisecond)
		_, err := cat.Register(ctx, catalog.Entry{Name: name})
		require.NoError(t, err)
	}
	// same timestamp: ties go to the higher id
	_, err := cat.Register(ctx, catalog.Entry{Name: "fourth"})
	require.NoError(t, err)

	list, err := cat.List(ctx)
	require.NoError(t, err)
	var names []string
	for _, e := range list {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"fourth", "third", "second", "first"}, names)
}

func TestUnregisterIdempotent(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t, &fakeClock{t: time.Now()})
	_, err := cat.Register(ctx, catalog.Entry{Name: "weather_data"})
	require.NoError(t, err)

	removed, err := cat.Unregister(ctx, "Weather_Data")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = cat.Unregister(ctx, "weather_data")
	require.NoError(t, err)
	assert.False(t, removed)

	list, err := cat.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
