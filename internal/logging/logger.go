// Package logging owns the process-wide slog logger used by the CLI and the
// core packages.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu      sync.RWMutex
	logger  = slog.New(slog.NewTextHandler(io.Discard, nil))
	logFile *os.File
)

// Config holds logger configuration.
type Config struct {
	Level      string // debug|info|warn|error
	Format     string // text|json
	OutputPath string // empty means stderr
}

// ParseLevel maps a level name to a slog.Level; unknown names map to warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Init replaces the global logger. It may be called again; a previously
// opened log file is closed.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	var w io.Writer = os.Stderr
	var f *os.File
	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o750); err != nil {
			return fmt.Errorf("mkdir log dir: %w", err)
		}
		var err error
		f, err = os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = f
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	logger = slog.New(h)
	return nil
}

// Logger returns the current logger. Before Init it discards everything.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// WithDataset returns a logger annotated with the dataset name.
//
//	log := logging.WithDataset("sales_data")
//	log.Info("ingested", "rows", 100)
func WithDataset(name string) *slog.Logger {
	return Logger().With("dataset", name)
}

// Close releases the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
