package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabula-cli/internal/parser"
	"github.com/KaramelBytes/tabula-cli/internal/utils"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Write a dataset to CSV; a .lz4 suffix compresses the output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportOutput == "" {
			return fmt.Errorf("--output is required")
		}
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		t, err := a.db.Tables().ReadTable(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if err := utils.EnsureDir(filepath.Dir(exportOutput)); err != nil {
			return err
		}
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		compress := strings.HasSuffix(strings.ToLower(exportOutput), ".lz4")
		if err := parser.WriteCSV(f, t.Header(), t.StringRows(), compress); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
		success(cmd, "Exported %s (%d rows) to %s", t.Name, t.NumRows(), exportOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (.csv or .csv.lz4)")
}
