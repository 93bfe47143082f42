package cmd

import (
	"fmt"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the lazyscroll config profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := config.LoadMerged(config.Flags{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
			LogJSON:      flagLogJSON,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Loaded config from:\n  %s\n\n", used)
		cfg.Print()

		if err := config.Validate(cfg.Options()); err != nil {
			fmt.Printf("\nwarning: %v\n", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
