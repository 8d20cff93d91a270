package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/KaramelBytes/tabula-cli/internal/stats"
	"github.com/KaramelBytes/tabula-cli/internal/utils"
)

var (
	anaCorr       bool
	anaTop        int
	anaOutputPath string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <name>",
	Short: "Describe a dataset: shape, memory, types, numeric summary, missing values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		if _, err := a.session.Select(cmd.Context(), args[0]); err != nil {
			return err
		}
		rep, err := a.session.Summarize()
		if err != nil {
			return err
		}
		var corr *stats.CorrMatrix
		insufficient := false
		if anaCorr {
			corr, err = a.session.Correlate()
			if errors.Is(err, errs.ErrInsufficientData) {
				insufficient = true
			} else if err != nil {
				return err
			}
		}

		numeric := len(rep.Numeric)
		if anaOutputPath != "" {
			md := rep.Markdown()
			if corr != nil {
				md += "\n" + corr.Markdown()
			} else if insufficient {
				md += "\n" + stats.InsufficientMarkdown(numeric)
			}
			if err := utils.EnsureDir(filepath.Dir(anaOutputPath)); err != nil {
				return err
			}
			if err := utils.SafeWriteFile(anaOutputPath, []byte(md)); err != nil {
				return err
			}
			success(cmd, "Report written: %s", anaOutputPath)
			if insufficient {
				notice(cmd, "Correlation skipped: %s", stats.InsufficientMessage(numeric))
			}
			return nil
		}

		w := cmd.OutOrStdout()
		switch outputMode() {
		case "json":
			out := map[string]any{"report": rep}
			if corr != nil {
				out["correlations"] = corr
				out["top_pairs"] = stats.TopPairs(corr, anaTop)
			} else if insufficient {
				out["correlations"] = nil
				out["insufficient_data"] = stats.InsufficientMessage(numeric)
			}
			return printJSON(w, out)
		case "markdown":
			fmt.Fprint(w, rep.Markdown())
			if corr != nil {
				fmt.Fprint(w, "\n"+corr.Markdown())
			} else if insufficient {
				fmt.Fprint(w, "\n"+stats.InsufficientMarkdown(numeric))
			}
			return nil
		default:
			if err := renderReport(w, rep); err != nil {
				return err
			}
			if corr != nil {
				if err := renderCorr(w, corr, anaTop); err != nil {
					return err
				}
			}
		}
		if insufficient {
			notice(cmd, "Correlation needs at least 2 numeric columns; %s has %d", rep.Name, numeric)
		}
		return nil
	},
}

func renderReport(w io.Writer, rep *stats.Report) error {
	fmt.Fprintf(w, "%s: %d rows x %d columns, ~%.2f MB in memory\n\n",
		rep.Name, rep.Shape.Rows, rep.Shape.Columns, rep.MemoryMB())

	sectionTitle(w, "Column types")
	types := make([][]string, 0, len(rep.Types))
	for _, c := range rep.Types {
		types = append(types, []string{c.Name, c.Type.String()})
	}
	if err := renderTable(w, []string{"column", "type"}, types); err != nil {
		return err
	}

	sectionTitle(w, "Numeric summary")
	if len(rep.Numeric) == 0 {
		fmt.Fprintln(w, "No numeric columns.")
	} else {
		rows := make([][]string, 0, len(rep.Numeric))
		for _, n := range rep.Numeric {
			rows = append(rows, []string{
				n.Name, strconv.Itoa(n.Count),
				stats.FormatFloat(n.Mean), stats.FormatFloat(n.Std), stats.FormatFloat(n.Min),
				stats.FormatFloat(n.Q25), stats.FormatFloat(n.Q50), stats.FormatFloat(n.Q75),
				stats.FormatFloat(n.Max), strconv.Itoa(n.Outliers),
			})
		}
		header := []string{"column", "count", "mean", "std", "min", "25%", "50%", "75%", "max", "outliers"}
		if err := renderTable(w, header, rows); err != nil {
			return err
		}
	}

	sectionTitle(w, "Missing values")
	if len(rep.Missing) == 0 {
		fmt.Fprintln(w, "No missing values.")
	} else {
		rows := make([][]string, 0, len(rep.Missing))
		for _, m := range rep.Missing {
			rows = append(rows, []string{m.Name, strconv.Itoa(m.Count), fmt.Sprintf("%.1f%%", m.Percent)})
		}
		if err := renderTable(w, []string{"column", "missing", "percent"}, rows); err != nil {
			return err
		}
	}

	if len(rep.Categorical) > 0 {
		sectionTitle(w, "Top values")
		rows := make([][]string, 0, len(rep.Categorical))
		for _, c := range rep.Categorical {
			parts := make([]string, 0, len(c.Top))
			for _, kv := range c.Top {
				parts = append(parts, fmt.Sprintf("%s (%d)", kv.Value, kv.Count))
			}
			rows = append(rows, []string{c.Name, strconv.Itoa(c.Unique), strings.Join(parts, ", ")})
		}
		if err := renderTable(w, []string{"column", "unique", "top"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&anaCorr, "correlations", false, "also compute the correlation matrix")
	analyzeCmd.Flags().IntVar(&anaTop, "top", 5, "strongest correlation pairs to list")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "write the markdown report to a file")
}
