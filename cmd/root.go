package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/tabula-cli/internal/config"
	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/logging"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	storePath string
	jsonOut   bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "tabula",
	Short: "Tabula: a local catalog of tabular datasets",
	Long: `Tabula ingests CSV, TSV and XLSX files into a single SQLite store, infers
column types, keeps a catalog of datasets and reports descriptive statistics
and correlations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logging.Close()
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "✗ Error:", err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "  "+hint)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.tabula/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "store file (overrides config store_path)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults so config commands can repair the file
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{PreviewRows: 10, Output: "table", LogLevel: "warn", LogFormat: "text", ReconcileOnOpen: true}
		if dir, derr := cfgpkg.Dir(); derr == nil {
			c.StorePath = dir + string(os.PathSeparator) + "tabula.db"
		}
	}
	cfg = c
	if storePath != "" {
		cfg.StorePath = storePath
	}

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	if err := logging.Init(logging.Config{Level: level, Format: cfg.LogFormat, OutputPath: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to init logging: %v\n", err)
	}
}

// errorHint suggests a next step for errors the user can act on.
func errorHint(err error) string {
	switch errs.KindOf(err) {
	case errs.DuplicateName:
		var e *errs.Error
		if errors.As(err, &e) && e.Name != "" {
			return fmt.Sprintf("choose another --name or run `tabula drop %s` first", e.Name)
		}
		return "choose another --name"
	case errs.NotFound:
		return "run `tabula list` to see available datasets"
	case errs.InvalidName:
		return "dataset names must be non-empty and must not start with sqlite_"
	case errs.StorageFailure:
		return "the store may be damaged; `tabula reconcile` repairs catalog and table mismatches"
	}
	return ""
}
