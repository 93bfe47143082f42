package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siit-dev/lazy-infinite-scroll/internal/fetch"
	"github.com/siit-dev/lazy-infinite-scroll/internal/scroll"
)

func init() {
	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Print the next-page URL the loader would follow from a page",
		RunE:  runNext,
	}

	addPageFlags(nextCmd, false)
	rootCmd.AddCommand(nextCmd)
}

var errNoNext = errors.New("no next page")

func runNext(cmd *cobra.Command, _ []string) error {
	s, err := newSession(pageFlags(cmd))
	if err != nil {
		return err
	}
	if s.cfg.DefaultURL == "" {
		return fmt.Errorf("missing --url and no default_url in config")
	}

	ctx := cmd.Context()
	fc := fetch.New(s.client)

	page, _, err := openPage(ctx, fc, s.cfg.DefaultURL)
	if err != nil {
		return err
	}
	root, err := findRoot(page, s.cfg.Root)
	if err != nil {
		return err
	}

	l, err := scroll.Attach(ctx, page, root, s.cfg.Loader,
		scroll.WithFetcher(fc),
		scroll.WithLogger(s.log.Zerolog("next")),
	)
	if err != nil {
		return err
	}

	next, ok := l.NextPageURL()
	if !ok {
		return fmt.Errorf("%s: %w", l.Location(), errNoNext)
	}

	fmt.Fprintln(cmd.OutOrStdout(), next)
	return nil
}
