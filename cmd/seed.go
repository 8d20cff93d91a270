package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabula-cli/internal/samples"
)

var seedValue uint64

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample datasets (sales_data, student_data, weather_data)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := samples.Seed(cmd.Context(), a.pipeline, seedValue)
		if err != nil {
			return err
		}
		if outputMode() == "json" {
			return printJSON(cmd.OutOrStdout(), res)
		}
		printSeedResult(cmd, res)
		return nil
	},
}

func printSeedResult(cmd *cobra.Command, res samples.Result) {
	if len(res.Added) > 0 {
		success(cmd, "Sample datasets loaded: %s", strings.Join(res.Added, ", "))
	}
	if len(res.Skipped) > 0 {
		notice(cmd, "Already present, left unchanged: %s", strings.Join(res.Skipped, ", "))
	}
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Uint64Var(&seedValue, "seed", 42, "random seed for sample data")
}
