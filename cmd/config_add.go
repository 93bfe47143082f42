package cmd

import (
	"fmt"
	"strings"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var configAddCopy bool

var configAddCmd = &cobra.Command{
	Use:   "add [label]",
	Short: "Create a new config profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string
		if len(args) == 1 {
			label = args[0]
		} else {
			prompt := promptui.Prompt{
				Label: "Label for new config",
				Validate: func(s string) error {
					return config.CheckLabel(strings.TrimSpace(s))
				},
			}

			var err error
			if label, err = prompt.Run(); err != nil {
				return fmt.Errorf("creation cancelled")
			}
			label = strings.TrimSpace(label)
		}

		base := config.DefaultConfig()
		if configAddCopy {
			current, _, err := config.LoadMerged(config.Flags{})
			if err != nil {
				return err
			}
			base = current
		}

		path, err := config.CreateConfig(label, base)
		if err != nil {
			return err
		}

		fmt.Printf("Created new config: %s\n", path)
		fmt.Printf("Activate it with `lazyscroll config switch %s`.\n", label)
		return nil
	},
}

func init() {
	configAddCmd.Flags().BoolVar(&configAddCopy, "copy", false, "start from the active config instead of the defaults")
	configCmd.AddCommand(configAddCmd)
}
