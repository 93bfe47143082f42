package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"
)

var flagResetLoaderOnly bool

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the active config to defaults",
	Long: "Reset the active config to defaults.\n\n" +
		"With --loader-only the selectors and page options are dropped while the\n" +
		"default URL, credentials and output settings are kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		activePath, err := config.ActiveConfigPath()
		if err != nil {
			return fmt.Errorf("%w; run `lazyscroll config init` first", err)
		}

		if err := config.ResetProfile(activePath, flagResetLoaderOnly); err != nil {
			return err
		}

		what := "config"
		if flagResetLoaderOnly {
			what = "loader options of"
		}
		fmt.Printf("Reset %s %s\n", what, activePath)
		return nil
	},
}

func init() {
	configResetCmd.Flags().BoolVar(&flagResetLoaderOnly, "loader-only", false, "only reset the loader options")
	configCmd.AddCommand(configResetCmd)
}
