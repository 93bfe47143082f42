package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/siit-dev/lazy-infinite-scroll/internal/fetch"
	"github.com/siit-dev/lazy-infinite-scroll/internal/scroll"
	"github.com/siit-dev/lazy-infinite-scroll/internal/util"
)

var (
	flagTo      string
	flagNavOut  string
	flagTrigger string
)

func init() {
	navigateCmd := &cobra.Command{
		Use:   "navigate",
		Short: "Replace the listing of a page with another page's, like a filter or page link would",
		RunE:  runNavigate,
	}

	addPageFlags(navigateCmd, false)
	navigateCmd.Flags().StringVar(&flagTo, "to", "", "address to load in place of the current listing")
	navigateCmd.Flags().StringVar(&flagTrigger, "trigger", "", "selector of an element to click or change instead of --to")
	navigateCmd.Flags().StringVar(&flagNavOut, "output", "", "file the resulting document is written to")

	rootCmd.AddCommand(navigateCmd)
}

func runNavigate(cmd *cobra.Command, _ []string) error {
	if (flagTo == "") == (flagTrigger == "") {
		return fmt.Errorf("exactly one of --to or --trigger is required")
	}

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

	var items int
	l, err := scroll.Attach(ctx, page, root, s.cfg.Loader,
		scroll.WithFetcher(fc),
		scroll.WithLogger(s.log.Zerolog("navigate")),
		scroll.WithHandler(scroll.EventNewItems, func(ev *scroll.Event) bool {
			items = ev.Items.Length()
			return true
		}),
	)
	if err != nil {
		return err
	}

	if flagTo != "" {
		if _, err := l.Navigate(ctx, flagTo); err != nil {
			return err
		}
	} else if err := trigger(cmd, l, flagTrigger); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Location: %s\n", l.Location())
	fmt.Fprintf(out, "Items:    %d\n", items)
	fmt.Fprintf(out, "Page:     %d\n", l.CurrentPage())
	fmt.Fprintln(out, "History:")
	for i, h := range page.History() {
		fmt.Fprintf(out, "%3d) %s\n", i+1, h)
	}

	if flagNavOut == "" {
		return nil
	}

	page.Lock()
	markup, err := page.HTML()
	page.Unlock()
	if err != nil {
		return err
	}
	if err := util.WriteFileAtomic(filepath.Clean(flagNavOut), []byte(markup)); err != nil {
		return err
	}
	fmt.Fprintf(out, "Written:  %s (%s)\n", flagNavOut, humanize.Bytes(uint64(len(markup))))

	return nil
}

// trigger clicks the element matched by selector, or fires a change on it
// when it is a full-page select.
func trigger(cmd *cobra.Command, l *scroll.Loader, selector string) error {
	l.Page().Lock()
	el := l.Root().Find(selector).First()
	l.Page().Unlock()

	if el.Length() == 0 {
		return fmt.Errorf("trigger %q not found", selector)
	}

	handled, err := l.Change(cmd.Context(), el)
	if !handled {
		handled, err = l.Click(cmd.Context(), el)
	}
	if err != nil {
		return err
	}
	if !handled {
		return fmt.Errorf("trigger %q is not a load button, pagination link or full-page control", selector)
	}

	return nil
}
