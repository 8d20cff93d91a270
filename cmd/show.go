package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabula-cli/internal/catalog"
	"github.com/KaramelBytes/tabula-cli/internal/schema"
	"github.com/KaramelBytes/tabula-cli/internal/store"
)

var showRows int

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Preview the first rows of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		limit := cfg.PreviewRows
		if cmd.Flags().Changed("rows") {
			limit = showRows
		}
		e, t, err := a.session.Peek(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if outputMode() == "json" {
			return printJSON(w, previewJSON(*e, t))
		}
		fmt.Fprintf(w, "%s: %d rows x %d columns", e.Name, e.RowCount, e.ColumnCount)
		if e.Description != "" {
			fmt.Fprintf(w, " (%s)", e.Description)
		}
		fmt.Fprintln(w)
		header := make([]string, 0, t.NumCols())
		for _, c := range t.Columns {
			header = append(header, fmt.Sprintf("%s (%s)", c.Name, c.Type))
		}
		return renderTable(w, header, t.StringRows())
	},
}

type preview struct {
	Dataset catalog.Entry    `json:"dataset"`
	Columns []map[string]any `json:"columns"`
	Rows    [][]any          `json:"rows"`
}

func previewJSON(e catalog.Entry, t *store.Table) preview {
	p := preview{Dataset: e, Rows: make([][]any, t.NumRows())}
	for _, c := range t.Columns {
		p.Columns = append(p.Columns, map[string]any{"name": c.Name, "type": c.Type.String()})
	}
	for i := range p.Rows {
		row := t.Row(i)
		for j, v := range row {
			if v != nil && t.Columns[j].Type == schema.Timestamp {
				row[j] = store.FormatValue(v)
			}
		}
		p.Rows[i] = row
	}
	return p
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&showRows, "rows", "r", 10, "number of rows to preview (default: preview_rows)")
}
