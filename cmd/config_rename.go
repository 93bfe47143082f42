package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"
)

var configRenameCmd = &cobra.Command{
	Use:   "rename <old_label> <new_label>",
	Short: "Rename a config profile, keeping it active if it was",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to := args[0], args[1]
		if err := config.CheckLabel(to); err != nil {
			return err
		}
		if from == to {
			return fmt.Errorf("config %q already has that label", from)
		}

		active, _ := config.CurrentLabel()
		if err := config.RenameConfig(from, to); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Renamed config %q to %q\n", from, to)
		if active == from {
			fmt.Fprintf(out, "%q is still the active config\n", to)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configRenameCmd)
}
