package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabula-cli/internal/logging"
)

var dropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Delete a dataset and its catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		name := args[0]
		existed, err := a.session.Drop(cmd.Context(), name)
		if err != nil {
			return err
		}
		if outputMode() == "json" {
			return printJSON(cmd.OutOrStdout(), map[string]any{"name": name, "dropped": existed})
		}
		if !existed {
			logging.WithDataset(name).Debug("drop: nothing to do")
			notice(cmd, "No dataset named %s; nothing to drop", name)
			return nil
		}
		success(cmd, "Dataset dropped: %s", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dropCmd)
}
