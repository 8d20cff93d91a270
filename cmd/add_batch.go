package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabula-cli/internal/catalog"
	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/ingest"
)

var (
	abDescription string
	abDelimiter   string
	abSheetName   string
	abSheetIndex  int
	abSuffix      bool
	abQuiet       bool
)

var addBatchCmd = &cobra.Command{
	Use:   "add-batch <files...>",
	Short: "Ingest multiple CSV/TSV/XLSX files (globs allowed) with progress",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return errNoArgs
		}
		popt, err := parserOptions(abDelimiter, abSheetName, abSheetIndex)
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		var added []*catalog.Entry
		failed := 0
		total := len(files)
		for i, path := range files {
			if !abQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			name := ingest.DefaultName(path)
			e, err := a.pipeline.IngestFile(cmd.Context(), path, name, abDescription, popt)
			for n := 2; abSuffix && errors.Is(err, errs.ErrDuplicateName); n++ {
				e, err = a.pipeline.IngestFile(cmd.Context(), path, fmt.Sprintf("%s__%d", name, n), abDescription, popt)
			}
			if err != nil {
				if !errs.Recoverable(err) {
					return err
				}
				failed++
				notice(cmd, "Skipped %s: %v", filepath.Base(path), err)
				continue
			}
			added = append(added, e)
			if !abQuiet {
				success(cmd, "Dataset added: %s (%d rows, %d columns)", e.Name, e.RowCount, e.ColumnCount)
			}
		}
		if outputMode() == "json" {
			return printJSON(cmd.OutOrStdout(), added)
		}
		success(cmd, "Batch complete: %d added, %d skipped", len(added), failed)
		return nil
	},
}

// expandInputs resolves globs, keeps literal paths that exist, drops
// duplicates and sorts the result.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func init() {
	rootCmd.AddCommand(addBatchCmd)
	addBatchCmd.Flags().StringVar(&abDescription, "desc", "", "description for every dataset")
	addBatchCmd.Flags().StringVar(&abDelimiter, "delimiter", "", "CSV delimiter: ',', ';', 'tab' (default: detect)")
	addBatchCmd.Flags().StringVar(&abSheetName, "sheet", "", "XLSX sheet name")
	addBatchCmd.Flags().IntVar(&abSheetIndex, "sheet-index", 0, "XLSX sheet index, 1-based (default: first)")
	addBatchCmd.Flags().BoolVar(&abSuffix, "suffix-duplicates", false, "on a name collision, retry as name__2, name__3, ...")
	addBatchCmd.Flags().BoolVarP(&abQuiet, "quiet", "q", false, "only print the final summary")
}
