// Package session holds the currently selected dataset for an interactive
// caller and runs statistics against it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/KaramelBytes/tabula-cli/internal/catalog"
	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/ingest"
	"github.com/KaramelBytes/tabula-cli/internal/logging"
	"github.com/KaramelBytes/tabula-cli/internal/stats"
	"github.com/KaramelBytes/tabula-cli/internal/store"
)

// Selection is a loaded dataset: its catalog entry and table contents.
type Selection struct {
	Entry catalog.Entry
	Table *store.Table
}

// Session tracks one selection at a time. It is safe for concurrent use.
type Session struct {
	ID string

	db       *store.DB
	pipeline *ingest.Pipeline
	log      *slog.Logger

	mu     sync.RWMutex
	active *Selection
}

// New starts a session over db. Drops go through pipeline.
func New(db *store.DB, pipeline *ingest.Pipeline, log *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:       id,
		db:       db,
		pipeline: pipeline,
		log:      logging.OrDiscard(log).With("session", id),
	}
}

var errNoSelection = errs.E(errs.NotFound, "session", "", errors.New("no dataset selected"))

// Select loads name and makes it the active selection. On error the
// previous selection is kept.
func (s *Session) Select(ctx context.Context, name string) (*Selection, error) {
	e, err := catalog.New(s.db.Queryer()).Find(ctx, name)
	if err != nil {
		return nil, err
	}
	t, err := s.db.Tables().ReadTable(ctx, e.Name)
	if err != nil {
		return nil, err
	}
	sel := &Selection{Entry: *e, Table: t}
	s.mu.Lock()
	s.active = sel
	s.mu.Unlock()
	s.log.Debug("dataset selected", "dataset", e.Name, "rows", t.NumRows())
	return sel, nil
}

// Active returns the current selection, if any.
func (s *Session) Active() (*Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.active != nil
}

// Clear drops the current selection.
func (s *Session) Clear() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
}

// Summarize reports on the active selection.
func (s *Session) Summarize() (*stats.Report, error) {
	sel, ok := s.Active()
	if !ok {
		return nil, errNoSelection
	}
	return stats.Summarize(sel.Table), nil
}

// Correlate computes the correlation matrix of the active selection.
func (s *Session) Correlate() (*stats.CorrMatrix, error) {
	sel, ok := s.Active()
	if !ok {
		return nil, errNoSelection
	}
	return stats.Correlate(sel.Table)
}

// Preview reads up to limit rows of the active selection from the store.
func (s *Session) Preview(ctx context.Context, limit int) (*store.Table, error) {
	sel, ok := s.Active()
	if !ok {
		return nil, errNoSelection
	}
	return s.db.Tables().ReadRows(ctx, sel.Entry.Name, limit)
}

// Peek reads the catalog entry and up to limit rows of name without loading
// the whole table or touching the active selection.
func (s *Session) Peek(ctx context.Context, name string, limit int) (*catalog.Entry, *store.Table, error) {
	e, err := catalog.New(s.db.Queryer()).Find(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.db.Tables().ReadRows(ctx, e.Name, limit)
	if err != nil {
		return nil, nil, err
	}
	return e, t, nil
}

// Drop removes name and clears the selection if it was active.
func (s *Session) Drop(ctx context.Context, name string) (bool, error) {
	existed, err := s.pipeline.Drop(ctx, name)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	if s.active != nil && strings.EqualFold(s.active.Entry.Name, strings.TrimSpace(name)) {
		s.active = nil
	}
	s.mu.Unlock()
	return existed, nil
}
