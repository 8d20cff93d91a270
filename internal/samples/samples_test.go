package samples_test

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/KaramelBytes/tabula-cli/internal/ingest"
	"github.com/KaramelBytes/tabula-cli/internal/samples"
	"github.com/KaramelBytes/tabula-cli/internal/schema"
	"github.com/KaramelBytes/tabula-cli/internal/store"
)

func TestGenerateShapes(t *testing.T) {
	want := map[string][2]int{
		"sales_data":   {100, 5},
		"student_data": {50, 6},
		"weather_data": {30, 5},
	}
	for _, ds := range samples.Generate(1) {
		shape, ok := want[ds.Name]
		if !ok {
			t.Fatalf("unexpected dataset %q", ds.Name)
		}
		if ds.Source.NumRows() != shape[0] || len(ds.Source.Header) != shape[1] {
			t.Fatalf("%s: got %dx%d, want %dx%d", ds.Name, ds.Source.NumRows(), len(ds.Source.Header), shape[0], shape[1])
		}
	}
	if !reflect.DeepEqual(samples.Generate(7), samples.Generate(7)) {
		t.Fatalf("same seed must generate the same data")
	}
}

func TestSeedSkipsExisting(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "tabula.db"), store.Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	p := ingest.New(db, ingest.Options{}, nil)

	res, err := samples.Seed(ctx, p, 42)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(res.Added) != 3 || len(res.Skipped) != 0 {
		t.Fatalf("first seed = %+v", res)
	}
	res, err = samples.Seed(ctx, p, 43)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if len(res.Added) != 0 || len(res.Skipped) != 3 {
		t.Fatalf("second seed = %+v", res)
	}

	tbl, err := db.Tables().ReadTable(ctx, "sales_data")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := []schema.ColumnType{}
	for _, f := range tbl.Fields() {
		got = append(got, f.Type)
	}
	want := []schema.ColumnType{schema.Timestamp, schema.Text, schema.Integer, schema.Real, schema.Text}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sales_data types = %v, want %v", got, want)
	}
}
