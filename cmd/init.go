package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/tabula-cli/internal/config"
	"github.com/KaramelBytes/tabula-cli/internal/samples"
)

var (
	initSamples bool
	initSeed    uint64
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config file and the dataset store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath := cfgFile
		if cfgPath == "" {
			dir, err := cfgpkg.Dir()
			if err != nil {
				return err
			}
			cfgPath = filepath.Join(dir, "config.yaml")
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			if err := cfgpkg.Save(cfg, cfgFile); err != nil {
				return err
			}
			success(cmd, "Config written: %s", cfgPath)
		}

		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()
		success(cmd, "Store ready: %s", a.db.Path())

		if initSamples {
			res, err := samples.Seed(cmd.Context(), a.pipeline, initSeed)
			if err != nil {
				return err
			}
			printSeedResult(cmd, res)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initSamples, "samples", false, "load the sample datasets")
	initCmd.Flags().Uint64Var(&initSeed, "seed", 42, "random seed for sample data")
}
