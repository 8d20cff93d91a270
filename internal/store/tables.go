package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/schema"
)

// Counts reports the shape of a created table.
type Counts struct {
	Rows    int
	Columns int
}

// TableStore creates, reads and drops dataset tables. A TableStore from
// DB.Tables runs each mutation in its own transaction; one from Tx.Tables
// joins the caller's transaction.
type TableStore struct {
	db *DB
	tx *Tx
}

func (s *TableStore) q() Queryer {
	if s.tx != nil {
		return s.tx.tx
	}
	return s.db.sql
}

// lock takes the name lock for the duration of one call. Inside a
// transaction, write locks are kept until the transaction ends and a name the
// transaction already holds is not locked again.
func (s *TableStore) lock(name string, write bool) (unlock func()) {
	noop := func() {}
	if s.tx == nil {
		return s.db.locks.acquire(name, write)
	}
	key := lockKey(name)
	if held, ok := s.tx.held[key]; ok && (held || !write) {
		return noop
	}
	rel := s.db.locks.acquire(name, write)
	if !write {
		return rel
	}
	s.tx.held[key] = true
	s.tx.releases = append(s.tx.releases, rel)
	return noop
}

// ValidateName reports whether name can identify a dataset table.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errs.E(errs.InvalidName, "store.ValidateName", name, errors.New("name is empty"))
	case strings.ContainsRune(name, 0):
		return errs.E(errs.InvalidName, "store.ValidateName", name, errors.New("name contains NUL"))
	case strings.HasPrefix(strings.ToLower(name), "sqlite_"):
		return errs.E(errs.InvalidName, "store.ValidateName", name, errors.New("sqlite_ prefix is reserved"))
	case strings.EqualFold(name, CatalogTable):
		return errs.E(errs.InvalidName, "store.ValidateName", name, errors.New("name is reserved for the catalog"))
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CreateTable creates name with the given columns and inserts rows, each of
// which must have one value per column. Creation and inserts are atomic.
func (s *TableStore) CreateTable(ctx context.Context, name string, fields []schema.Field, rows [][]any) (Counts, error) {
	const op = "store.CreateTable"
	if err := ValidateName(name); err != nil {
		return Counts{}, err
	}
	if err := validateFields(fields); err != nil {
		return Counts{}, errs.E(errs.ParseError, op, name, err)
	}
	if s.tx == nil {
		var c Counts
		err := s.db.InTx(ctx, func(tx *Tx) error {
			var err error
			c, err = tx.Tables().CreateTable(ctx, name, fields, rows)
			return err
		})
		return c, err
	}

	defer s.lock(name, true)()
	if _, found, err := s.canonical(ctx, name); err != nil {
		return Counts{}, errs.Storage(op, name, err)
	} else if found {
		return Counts{}, errs.E(errs.DuplicateName, op, name, errors.New("table already exists"))
	}

	cols := make([]string, len(fields))
	names := make([]string, len(fields))
	marks := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f.Name) + " " + f.Type.SQLType()
		names[i] = quoteIdent(f.Name)
		marks[i] = "?"
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
	if _, err := s.q().ExecContext(ctx, ddl); err != nil {
		return Counts{}, errs.Storage(op, name, fmt.Errorf("create: %w", err))
	}

	ins := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(name), strings.Join(names, ", "), strings.Join(marks, ", "))
	stmt, err := s.q().PrepareContext(ctx, ins)
	if err != nil {
		return Counts{}, errs.Storage(op, name, fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()
	args := make([]any, len(fields))
	for i, row := range rows {
		if len(row) != len(fields) {
			return Counts{}, errs.E(errs.ParseError, op, name,
				fmt.Errorf("row %d has %d values, table has %d columns", i+1, len(row), len(fields)))
		}
		for j, v := range row {
			args[j] = bindValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return Counts{}, errs.Storage(op, name, fmt.Errorf("insert row %d: %w", i+1, err))
		}
	}
	s.db.log.Debug("table created", "table", name, "rows", len(rows), "columns", len(fields))
	return Counts{Rows: len(rows), Columns: len(fields)}, nil
}

func validateFields(fields []schema.Field) error {
	if len(fields) == 0 {
		return errors.New("table has no columns")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return errors.New("column name is empty")
		}
		key := strings.ToLower(f.Name)
		if seen[key] {
			return fmt.Errorf("duplicate column %q", f.Name)
		}
		seen[key] = true
	}
	return nil
}

func bindValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return schema.FormatTimestamp(x)
	case int:
		return int64(x)
	}
	return v
}

// canonical returns the stored spelling of a table name.
func (s *TableStore) canonical(ctx context.Context, name string) (string, bool, error) {
	var stored string
	err := s.q().QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`, name).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return stored, true, nil
}

// TableExists reports whether a dataset table called name exists.
func (s *TableStore) TableExists(ctx context.Context, name string) (bool, error) {
	if ValidateName(name) != nil {
		return false, nil
	}
	_, found, err := s.canonical(ctx, name)
	if err != nil {
		return false, errs.Storage("store.TableExists", name, err)
	}
	return found, nil
}

// ListTables returns dataset table names in name order. The catalog and
// SQLite's internal tables are excluded.
func (s *TableStore) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.q().QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' AND name <> ? COLLATE NOCASE ORDER BY name`,
		CatalogTable)
	if err != nil {
		return nil, errs.Storage("store.ListTables", "", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errs.Storage("store.ListTables", "", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("store.ListTables", "", err)
	}
	return out, nil
}

// ReadTable returns the full table with its persisted schema.
func (s *TableStore) ReadTable(ctx context.Context, name string) (*Table, error) {
	return s.read(ctx, "store.ReadTable", name, -1)
}

// ReadRows returns at most limit rows in insertion order. The schema is
// always returned, even when limit is zero.
func (s *TableStore) ReadRows(ctx context.Context, name string, limit int) (*Table, error) {
	if limit < 0 {
		limit = 0
	}
	return s.read(ctx, "store.ReadRows", name, limit)
}

func (s *TableStore) read(ctx context.Context, op, name string, limit int) (*Table, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	defer s.lock(name, false)()

	stored, found, err := s.canonical(ctx, name)
	if err != nil {
		return nil, errs.Storage(op, name, err)
	}
	if !found {
		return nil, errs.E(errs.NotFound, op, name, errors.New("no such table"))
	}
	t := &Table{Name: stored}
	if t.Columns, err = s.columns(ctx, stored); err != nil {
		return nil, errs.Storage(op, name, err)
	}

	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = quoteIdent(c.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(names, ", "), quoteIdent(stored))
	if limit >= 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.q().QueryContext(ctx, query)
	if err != nil {
		return nil, errs.Storage(op, name, err)
	}
	defer rows.Close()

	raw := make([]any, len(t.Columns))
	ptrs := make([]any, len(t.Columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errs.Storage(op, name, err)
		}
		for i := range t.Columns {
			t.Columns[i].Values = append(t.Columns[i].Values, decodeValue(raw[i], t.Columns[i].Type))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, name, err)
	}
	return t, nil
}

// columns reads the declared schema back; types are never re-inferred.
func (s *TableStore) columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.q().QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Column
	for rows.Next() {
		var (
			cid     int
			name    string
			decl    sql.NullString
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &decl, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		out = append(out, Column{Name: name, Type: schema.ParseSQLType(decl.String), Values: []any{}})
	}
	return out, rows.Err()
}

// decodeValue maps a driver value onto the column's declared type.
func decodeValue(v any, t schema.ColumnType) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch t {
	case schema.Integer:
		switch x := v.(type) {
		case int64:
			return x
		case float64:
			return int64(x)
		}
	case schema.Real:
		if f, ok := AsFloat(v); ok {
			return f
		}
	case schema.Timestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC()
		case string:
			if ts, ok := schema.ParseTimestamp(x); ok {
				return ts
			}
			return nil
		}
	case schema.Text:
		if s, ok := v.(string); ok {
			return s
		}
		return FormatValue(v)
	}
	return v
}

// DropTable removes name. It reports false, with no error, when no such
// table exists.
func (s *TableStore) DropTable(ctx context.Context, name string) (bool, error) {
	const op = "store.DropTable"
	if err := ValidateName(name); err != nil {
		return false, err
	}
	if s.tx == nil {
		var dropped bool
		err := s.db.InTx(ctx, func(tx *Tx) error {
			var err error
			dropped, err = tx.Tables().DropTable(ctx, name)
			return err
		})
		return dropped, err
	}

	defer s.lock(name, true)()
	stored, found, err := s.canonical(ctx, name)
	if err != nil {
		return false, errs.Storage(op, name, err)
	}
	if !found {
		return false, nil
	}
	if _, err := s.q().ExecContext(ctx, "DROP TABLE "+quoteIdent(stored)); err != nil {
		return false, errs.Storage(op, name, err)
	}
	s.db.log.Debug("table dropped", "table", stored)
	return true, nil
}
