// Package store persists named, typed tables in a single SQLite file and
// provides the transactions the catalog and the ingestion pipeline share.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/logging"
	"github.com/KaramelBytes/tabula-cli/internal/utils"
	_ "modernc.org/sqlite"
)

// CatalogTable is the reserved table holding dataset metadata.
const CatalogTable = "datasets"

const catalogDDL = `CREATE TABLE IF NOT EXISTS datasets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE,
	description TEXT,
	created_at TIMESTAMP NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	column_count INTEGER NOT NULL DEFAULT 0
)`

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Options tunes Open.
type Options struct {
	// BusyTimeout is how long SQLite waits on a locked database. Default 5s.
	BusyTimeout time.Duration
	Logger      *slog.Logger
}

// DB is an open store file.
type DB struct {
	sql   *sql.DB
	path  string
	locks *nameLocks
	log   *slog.Logger
}

// Open opens (creating if needed) the store file at path and ensures the
// catalog table exists.
func Open(ctx context.Context, path string, opt Options) (*DB, error) {
	if path == "" {
		return nil, errs.E(errs.StorageFailure, "store.Open", "", fmt.Errorf("empty store path"))
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, errs.E(errs.StorageFailure, "store.Open", path, err)
	}
	busy := opt.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(FULL)")
	q.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + q.Encode()

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.E(errs.StorageFailure, "store.Open", path, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errs.E(errs.StorageFailure, "store.Open", path, err)
	}
	if _, err := sqlDB.ExecContext(ctx, catalogDDL); err != nil {
		_ = sqlDB.Close()
		return nil, errs.E(errs.StorageFailure, "store.Open", path, fmt.Errorf("create catalog table: %w", err))
	}
	db := &DB{sql: sqlDB, path: path, locks: newNameLocks(), log: logging.OrDiscard(opt.Logger)}
	db.log.Debug("store opened", "path", path)
	return db, nil
}

// Path returns the store file location.
func (db *DB) Path() string { return db.path }

// Close closes the underlying database.
func (db *DB) Close() error {
	if err := db.sql.Close(); err != nil {
		return errs.E(errs.StorageFailure, "store.Close", db.path, err)
	}
	return nil
}

// Queryer returns an autocommit handle for callers that run single statements.
func (db *DB) Queryer() Queryer { return db.sql }

// Tables returns a TableStore whose mutations each commit before returning.
func (db *DB) Tables() *TableStore { return &TableStore{db: db} }

// Tx is a store transaction. Name locks taken for writes are held until the
// transaction ends.
type Tx struct {
	db       *DB
	tx       *sql.Tx
	held     map[string]bool // lock key -> write
	releases []func()
}

// Queryer returns the transaction handle.
func (tx *Tx) Queryer() Queryer { return tx.tx }

// Tables returns a TableStore bound to the transaction.
func (tx *Tx) Tables() *TableStore { return &TableStore{db: tx.db, tx: tx} }

func (tx *Tx) release() {
	for i := len(tx.releases) - 1; i >= 0; i-- {
		tx.releases[i]()
	}
	tx.releases = nil
}

// InTx runs fn in a single SQLite transaction. It commits when fn returns nil
// and rolls back otherwise; nothing fn wrote is visible unless it commits.
func (db *DB) InTx(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return errs.E(errs.StorageFailure, "store.InTx", "", fmt.Errorf("begin: %w", err))
	}
	tx := &Tx{db: db, tx: sqlTx, held: map[string]bool{}}
	defer tx.release()
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			db.log.Warn("rollback failed", "err", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return errs.E(errs.StorageFailure, "store.InTx", "", fmt.Errorf("commit: %w", err))
	}
	return nil
}
