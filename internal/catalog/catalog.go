// Package catalog keeps the registry of datasets: one entry per ingested
// table, stored in the reserved datasets table.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/store"
)

// createdLayout keeps microseconds so entries created in the same second
// still order by time.
const createdLayout = "2006-01-02 15:04:05.000000"

// Entry describes one registered dataset.
type Entry struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	RowCount    int       `json:"row_count" yaml:"row_count"`
	ColumnCount int       `json:"column_count" yaml:"column_count"`
}

// Catalog reads and writes entries through q, which may be a transaction.
type Catalog struct {
	q   store.Queryer
	now func() time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// New returns a Catalog over q.
func New(q store.Queryer, opts ...Option) *Catalog {
	c := &Catalog{q: q, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Register adds e. ID and CreatedAt are assigned; the stored entry is returned.
func (c *Catalog) Register(ctx context.Context, e Entry) (*Entry, error) {
	const op = "catalog.Register"
	if strings.TrimSpace(e.Name) == "" {
		return nil, errs.E(errs.InvalidName, op, e.Name, errors.New("name is empty"))
	}
	if _, err := c.Find(ctx, e.Name); err == nil {
		return nil, errs.E(errs.DuplicateName, op, e.Name, errors.New("dataset already registered"))
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	e.CreatedAt = c.now().UTC().Truncate(time.Microsecond)
	res, err := c.q.ExecContext(ctx,
		`INSERT INTO datasets (name, description, created_at, row_count, column_count) VALUES (?, ?, ?, ?, ?)`,
		e.Name, e.Description, e.CreatedAt.Format(createdLayout), e.RowCount, e.ColumnCount)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errs.E(errs.DuplicateName, op, e.Name, err)
		}
		return nil, errs.Storage(op, e.Name, err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return nil, errs.Storage(op, e.Name, err)
	}
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// Unregister removes the entry for name. It reports whether one existed.
func (c *Catalog) Unregister(ctx context.Context, name string) (bool, error) {
	res, err := c.q.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return false, errs.Storage("catalog.Unregister", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.Storage("catalog.Unregister", name, err)
	}
	return n > 0, nil
}

const selectEntry = `SELECT id, name, COALESCE(description, ''), created_at, COALESCE(row_count, 0), COALESCE(column_count, 0) FROM datasets`

// List returns all entries, newest first.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.q.QueryContext(ctx, selectEntry+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, errs.Storage("catalog.List", "", err)
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errs.Storage("catalog.List", "", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("catalog.List", "", err)
	}
	return out, nil
}

// Find returns the entry for name, compared case-insensitively.
func (c *Catalog) Find(ctx context.Context, name string) (*Entry, error) {
	row := c.q.QueryRowContext(ctx, selectEntry+` WHERE name = ?`, name)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.E(errs.NotFound, "catalog.Find", name, errors.New("no such dataset"))
	}
	if err != nil {
		return nil, errs.Storage("catalog.Find", name, err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e       Entry
		created any
	)
	if err := s.Scan(&e.ID, &e.Name, &e.Description, &created, &e.RowCount, &e.ColumnCount); err != nil {
		return nil, err
	}
	ts, err := parseCreated(created)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = ts
	return &e, nil
}

// parseCreated accepts both the text we write and the time.Time the driver
// produces for TIMESTAMP columns.
func parseCreated(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case []byte:
		return parseCreated(string(x))
	case string:
		for _, layout := range []string{createdLayout, "2006-01-02 15:04:05.999999999", time.RFC3339Nano} {
			if t, err := time.Parse(layout, x); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("bad created_at %q", x)
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("bad created_at type %T", v)
}
