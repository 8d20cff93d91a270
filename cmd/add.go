package cmd

import (
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/tabula-cli/internal/config"
	"github.com/KaramelBytes/tabula-cli/internal/ingest"
	"github.com/KaramelBytes/tabula-cli/internal/parser"
)

var (
	addName       string
	addDesc       string
	addDelimiter  string
	addSampleRows int
	addSheetName  string
	addSheetIndex int
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Ingest a CSV, TSV or XLSX file as a new dataset",
	Long: `Ingest a file as a new dataset. Column types are inferred from the values
(integer, real, timestamp, else text). The dataset name defaults to the file
name without its extensions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		popt, err := parserOptions(addDelimiter, addSheetName, addSheetIndex)
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		if cmd.Flags().Changed("sample-rows") {
			opt := cfg.SchemaOptions()
			opt.SampleRows = addSampleRows
			a.pipeline = ingest.New(a.db, ingest.Options{Schema: opt}, a.log)
		}

		e, err := a.pipeline.IngestFile(cmd.Context(), file, addName, addDesc, popt)
		if err != nil {
			return err
		}
		if debug {
			if t, err := a.db.Tables().ReadRows(cmd.Context(), e.Name, 0); err == nil {
				spew.Fdump(os.Stderr, t.Fields())
			}
		}
		if outputMode() == "json" {
			return printJSON(cmd.OutOrStdout(), e)
		}
		success(cmd, "Dataset added: %s (%d rows, %d columns)", e.Name, e.RowCount, e.ColumnCount)
		return nil
	},
}

// parserOptions merges command flags over the configured delimiter.
func parserOptions(delim, sheet string, sheetIndex int) (parser.Options, error) {
	if delim == "" && cfg != nil {
		delim = cfg.Delimiter
	}
	r, err := cfgpkg.ParseDelimiter(delim)
	if err != nil {
		return parser.Options{}, err
	}
	return parser.Options{Delimiter: r, SheetName: sheet, SheetIndex: sheetIndex}, nil
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVarP(&addName, "name", "n", "", "dataset name (default: file name)")
	addCmd.Flags().StringVar(&addDesc, "desc", "", "dataset description")
	addCmd.Flags().StringVar(&addDelimiter, "delimiter", "", "CSV delimiter: ',', ';', 'tab' (default: detect)")
	addCmd.Flags().IntVar(&addSampleRows, "sample-rows", 0, "infer types from the first N rows only (0 = all)")
	addCmd.Flags().StringVar(&addSheetName, "sheet", "", "XLSX sheet name")
	addCmd.Flags().IntVar(&addSheetIndex, "sheet-index", 0, "XLSX sheet index, 1-based (default: first)")
}
