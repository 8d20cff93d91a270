// Package ingest turns tokenized tables into stored, cataloged datasets and
// keeps the catalog and the table store in agreement.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/KaramelBytes/tabula-cli/internal/catalog"
	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/logging"
	"github.com/KaramelBytes/tabula-cli/internal/parser"
	"github.com/KaramelBytes/tabula-cli/internal/schema"
	"github.com/KaramelBytes/tabula-cli/internal/store"
	"github.com/KaramelBytes/tabula-cli/internal/utils"
)

// Options configures a Pipeline.
type Options struct {
	Schema schema.Options
}

// Pipeline ingests and removes datasets.
type Pipeline struct {
	db   *store.DB
	opts Options
	log  *slog.Logger
}

// New returns a Pipeline writing to db.
func New(db *store.DB, opts Options, log *slog.Logger) *Pipeline {
	return &Pipeline{db: db, opts: opts, log: logging.OrDiscard(log)}
}

// Catalog returns an autocommit catalog over the pipeline's store.
func (p *Pipeline) Catalog() *catalog.Catalog {
	return catalog.New(p.db.Queryer())
}

// Ingest stores src as a new table called name and registers it. Either
// both the table and its catalog entry exist afterwards, or neither does.
func (p *Pipeline) Ingest(ctx context.Context, src *parser.Source, name, description string) (*catalog.Entry, error) {
	const op = "ingest.Ingest"
	name = strings.TrimSpace(name)
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	if src == nil || len(src.Header) == 0 {
		return nil, errs.E(errs.ParseError, op, name, errors.New("source has no columns"))
	}
	runID := uuid.NewString()
	log := p.log.With("run_id", runID, "dataset", name)

	var entry *catalog.Entry
	err := p.db.InTx(ctx, func(tx *store.Tx) error {
		cat := catalog.New(tx.Queryer())
		if _, err := cat.Find(ctx, name); err == nil {
			return errs.E(errs.DuplicateName, op, name, errors.New("dataset already exists"))
		} else if !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		exists, err := tx.Tables().TableExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			return errs.E(errs.DuplicateName, op, name, errors.New("an uncataloged table has this name; run reconcile"))
		}

		fields := schema.InferColumns(src.Header, src.Rows, p.opts.Schema)
		log.Debug("schema inferred", "fields", fieldSummary(fields))
		rows, err := schema.ConvertRows(fields, src.Rows, p.opts.Schema)
		if err != nil {
			return err
		}
		counts, err := tx.Tables().CreateTable(ctx, name, fields, rows)
		if err != nil {
			return err
		}
		entry, err = cat.Register(ctx, catalog.Entry{
			Name:        name,
			Description: description,
			RowCount:    counts.Rows,
			ColumnCount: counts.Columns,
		})
		return err
	})
	if err != nil {
		log.Debug("ingest failed", "err", err)
		return nil, err
	}
	log.Info("dataset ingested", "rows", entry.RowCount, "columns", entry.ColumnCount)
	return entry, nil
}

func fieldSummary(fields []schema.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + ":" + f.Type.String()
	}
	return strings.Join(parts, ",")
}

// DefaultName derives a dataset name from a file path by stripping the
// directory and every known extension.
func DefaultName(path string) string {
	return utils.BaseName(path, parser.Extensions...)
}

// IngestFile reads path with the parser registry and ingests it. An empty
// name defaults to DefaultName(path).
func (p *Pipeline) IngestFile(ctx context.Context, path, name, description string, popt parser.Options) (*catalog.Entry, error) {
	const op = "ingest.IngestFile"
	if strings.TrimSpace(name) == "" {
		name = DefaultName(path)
	}
	if err := store.ValidateName(strings.TrimSpace(name)); err != nil {
		return nil, err
	}
	src, err := parser.ReadFile(path, popt)
	if err != nil {
		switch {
		case errs.KindOf(err) != errs.KindUnknown:
			return nil, err
		case errors.Is(err, fs.ErrNotExist):
			return nil, errs.E(errs.NotFound, op, path, err)
		default:
			return nil, errs.E(errs.ParseError, op, path, err)
		}
	}
	return p.Ingest(ctx, src, name, description)
}

// Drop removes the table and the catalog entry for name in one transaction.
// It reports whether either existed; dropping an absent dataset is a no-op.
func (p *Pipeline) Drop(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	var existed bool
	err := p.db.InTx(ctx, func(tx *store.Tx) error {
		dropped, err := tx.Tables().DropTable(ctx, name)
		if err != nil {
			return err
		}
		removed, err := catalog.New(tx.Queryer()).Unregister(ctx, name)
		if err != nil {
			return err
		}
		existed = dropped || removed
		return nil
	})
	if err != nil {
		return false, err
	}
	if existed {
		p.log.Info("dataset dropped", "dataset", name)
	}
	return existed, nil
}

// ReconcileReport lists what a reconciliation pass repaired.
type ReconcileReport struct {
	DroppedTables  []string `json:"dropped_tables"`
	RemovedEntries []string `json:"removed_entries"`
}

// Clean reports whether nothing needed repair.
func (r ReconcileReport) Clean() bool {
	return len(r.DroppedTables) == 0 && len(r.RemovedEntries) == 0
}

func (r ReconcileReport) String() string {
	if r.Clean() {
		return "catalog and store agree"
	}
	return fmt.Sprintf("dropped %d orphan table(s), removed %d dangling entr(ies)",
		len(r.DroppedTables), len(r.RemovedEntries))
}

// Reconcile drops tables with no catalog entry and removes entries whose
// table is missing, restoring a one-to-one catalog and store.
func (p *Pipeline) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	err := p.db.InTx(ctx, func(tx *store.Tx) error {
		rep = ReconcileReport{}
		cat := catalog.New(tx.Queryer())
		entries, err := cat.List(ctx)
		if err != nil {
			return err
		}
		tables, err := tx.Tables().ListTables(ctx)
		if err != nil {
			return err
		}
		cataloged := make(map[string]bool, len(entries))
		for _, e := range entries {
			cataloged[strings.ToLower(e.Name)] = true
		}
		stored := make(map[string]bool, len(tables))
		for _, t := range tables {
			stored[strings.ToLower(t)] = true
			if cataloged[strings.ToLower(t)] {
				continue
			}
			if _, err := tx.Tables().DropTable(ctx, t); err != nil {
				return err
			}
			rep.DroppedTables = append(rep.DroppedTables, t)
		}
		for _, e := range entries {
			if stored[strings.ToLower(e.Name)] {
				continue
			}
			if _, err := cat.Unregister(ctx, e.Name); err != nil {
				return err
			}
			rep.RemovedEntries = append(rep.RemovedEntries, e.Name)
		}
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}
	if !rep.Clean() {
		p.log.Warn("store reconciled", "dropped_tables", rep.DroppedTables, "removed_entries", rep.RemovedEntries)
	}
	return rep, nil
}
