package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabula-cli/internal/ingest"
	"github.com/KaramelBytes/tabula-cli/internal/logging"
	"github.com/KaramelBytes/tabula-cli/internal/session"
	"github.com/KaramelBytes/tabula-cli/internal/store"
)

// app bundles the store handles one command needs.
type app struct {
	db       *store.DB
	pipeline *ingest.Pipeline
	session  *session.Session
	log      *slog.Logger
}

// openApp opens the configured store. With reconcile set and
// reconcile_on_open enabled, catalog/table mismatches are repaired first.
func openApp(ctx context.Context, reconcile bool) (*app, error) {
	if cfg == nil {
		loadConfig()
	}
	log := logging.Logger()
	db, err := store.Open(ctx, cfg.StorePath, store.Options{Logger: log})
	if err != nil {
		return nil, err
	}
	p := ingest.New(db, ingest.Options{Schema: cfg.SchemaOptions()}, log)
	a := &app{db: db, pipeline: p, session: session.New(db, p, log), log: log}
	if reconcile && cfg.ReconcileOnOpen {
		rep, err := p.Reconcile(ctx)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if !rep.Clean() {
			fmt.Fprintf(color.Error, "⚠ Store repaired on open: %s\n", rep)
		}
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("close store", "err", err)
	}
}

// outputMode resolves --json against the configured output.
func outputMode() string {
	if jsonOut {
		return "json"
	}
	if cfg != nil && cfg.Output != "" {
		return cfg.Output
	}
	return "table"
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func success(cmd *cobra.Command, format string, a ...any) {
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ "+format+"\n", a...)
}

func notice(cmd *cobra.Command, format string, a ...any) {
	color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "⚠ "+format+"\n", a...)
}

// renderTable prints header and rows with pterm, or as a markdown table when
// the output mode is markdown.
func renderTable(w io.Writer, header []string, rows [][]string) error {
	if outputMode() == "markdown" {
		fmt.Fprintln(w, "| "+strings.Join(header, " | ")+" |")
		sep := make([]string, len(header))
		for i := range sep {
			sep[i] = "---"
		}
		fmt.Fprintln(w, "| "+strings.Join(sep, " | ")+" |")
		for _, r := range rows {
			fmt.Fprintln(w, "| "+strings.Join(r, " | ")+" |")
		}
		return nil
	}
	data := pterm.TableData{header}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// sectionTitle prints a section heading above a table.
func sectionTitle(w io.Writer, title string) {
	if outputMode() == "markdown" {
		fmt.Fprintf(w, "\n## %s\n\n", title)
		return
	}
	fmt.Fprintln(w, pterm.Bold.Sprint(title))
}

var errNoArgs = errors.New("no input files matched")
