package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"

	"github.com/spf13/cobra"
)

var configEditCmd = &cobra.Command{
	Use:   "edit [label]",
	Short: "Open the active or the named config in $EDITOR",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := ""
		if len(args) == 1 {
			label = args[0]
		} else {
			var err error
			if label, err = config.CurrentLabel(); err != nil {
				return fmt.Errorf("failed to get current config label: %w", err)
			}
		}

		path, err := config.ConfigPathByLabel(label)
		if err != nil {
			return err
		}

		editor := exec.Command(editorCommand(), path)
		editor.Stdin = os.Stdin
		editor.Stdout = os.Stdout
		editor.Stderr = os.Stderr

		if err := editor.Run(); err != nil {
			return fmt.Errorf("failed to open editor: %w", err)
		}

		if _, _, err := config.LoadMerged(config.Flags{}); err != nil {
			fmt.Printf("warning: %v\n", err)
		}
		return nil
	},
}

func editorCommand() string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if e := os.Getenv(env); e != "" {
			return e
		}
	}
	if runtime.GOOS == "windows" {
		return "notepad"
	}

	return "vi"
}

func init() {
	configCmd.AddCommand(configEditCmd)
}
