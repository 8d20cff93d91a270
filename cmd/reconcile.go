package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair mismatches between the catalog and stored tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()
		rep, err := a.pipeline.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		if outputMode() == "json" {
			return printJSON(cmd.OutOrStdout(), rep)
		}
		if rep.Clean() {
			success(cmd, "Catalog and store agree")
			return nil
		}
		if len(rep.DroppedTables) > 0 {
			notice(cmd, "Dropped uncataloged tables: %s", strings.Join(rep.DroppedTables, ", "))
		}
		if len(rep.RemovedEntries) > 0 {
			notice(cmd, "Removed entries without a table: %s", strings.Join(rep.RemovedEntries, ", "))
		}
		success(cmd, "Store reconciled")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
