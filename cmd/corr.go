package cmd

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/stats"
)

var corrTop int

var corrCmd = &cobra.Command{
	Use:   "corr <name>",
	Short: "Pearson correlation matrix of a dataset's numeric columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		sel, err := a.session.Select(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		m, err := a.session.Correlate()
		if errors.Is(err, errs.ErrInsufficientData) {
			numeric := len(stats.NumericColumns(sel.Table))
			switch outputMode() {
			case "json":
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"correlations":      nil,
					"insufficient_data": stats.InsufficientMessage(numeric),
				})
			case "markdown":
				fmt.Fprint(cmd.OutOrStdout(), stats.InsufficientMarkdown(numeric))
				return nil
			}
			notice(cmd, "Correlation needs at least 2 numeric columns; %s has %d", sel.Entry.Name, numeric)
			return nil
		}
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		switch outputMode() {
		case "json":
			return printJSON(w, map[string]any{"correlations": m, "top_pairs": stats.TopPairs(m, corrTop)})
		case "markdown":
			fmt.Fprint(w, m.Markdown())
			return nil
		}
		return renderCorr(w, m, corrTop)
	},
}

func renderCorr(w io.Writer, m *stats.CorrMatrix, top int) error {
	sectionTitle(w, "Correlations")
	header := append([]string{""}, m.Columns...)
	rows := make([][]string, len(m.Columns))
	for i, vals := range m.Values {
		row := []string{m.Columns[i]}
		for _, v := range vals {
			if math.IsNaN(v) {
				row = append(row, "NaN")
			} else {
				row = append(row, fmt.Sprintf("%.3f", v))
			}
		}
		rows[i] = row
	}
	if err := renderTable(w, header, rows); err != nil {
		return err
	}
	pairs := stats.TopPairs(m, top)
	if len(pairs) == 0 {
		return nil
	}
	sectionTitle(w, "Strongest pairs")
	prow := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		prow = append(prow, []string{p.A, p.B, fmt.Sprintf("%.3f", p.R)})
	}
	return renderTable(w, []string{"a", "b", "r"}, prow)
}

func init() {
	rootCmd.AddCommand(corrCmd)
	corrCmd.Flags().IntVar(&corrTop, "top", 5, "strongest pairs to list (0 = all)")
}
