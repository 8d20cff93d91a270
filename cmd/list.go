package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		entries, err := a.pipeline.Catalog().List(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if outputMode() == "json" {
			return printJSON(w, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(w, "(no datasets)")
			return nil
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.Name,
				e.Description,
				strconv.Itoa(e.RowCount),
				strconv.Itoa(e.ColumnCount),
				e.CreatedAt.Local().Format("2006-01-02 15:04"),
			})
		}
		return renderTable(w, []string{"name", "description", "rows", "columns", "created"}, rows)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
