package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"
	"github.com/siit-dev/lazy-infinite-scroll/internal/dom"
	"github.com/siit-dev/lazy-infinite-scroll/internal/fetch"
	"github.com/siit-dev/lazy-infinite-scroll/internal/scroll"
	"github.com/siit-dev/lazy-infinite-scroll/internal/ui"
	"github.com/siit-dev/lazy-infinite-scroll/internal/util"
	"github.com/siit-dev/lazy-infinite-scroll/internal/viewport"
)

var (
	flagMode        string
	flagMaxPages    int
	flagWorkers     int
	flagOutput      string
	flagMetricsFile string
	flagDryRun      bool
)

var errStalled = errors.New("loading stopped before the last page")

func init() {
	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load every page of a paginated listing into one document. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:  runLoad,
	}

	addPageFlags(loadCmd, true)

	// runtime
	loadCmd.Flags().StringVar(&flagMode, "mode", "", "how loads are triggered: scroll (viewport) or click (load-more button)")
	loadCmd.Flags().IntVar(&flagMaxPages, "max-pages", 0, "stop after this many additional pages, 0 for no limit")
	loadCmd.Flags().IntVar(&flagWorkers, "workers", 0, "number of URLs loaded in parallel")
	loadCmd.Flags().StringVar(&flagOutput, "output", "", "folder the merged documents are written to")
	loadCmd.Flags().StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	loadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show the resolved options and the first next-page URL, don't load")

	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, _ []string) error {
	f := pageFlags(cmd)
	f.Mode = flagMode
	f.MaxPages = flagMaxPages
	f.Workers = flagWorkers
	f.Output = flagOutput

	s, err := newSession(f)
	if err != nil {
		return err
	}
	cfg := s.cfg

	if cfg.Mode != config.ModeScroll && cfg.Mode != config.ModeClick {
		return fmt.Errorf("unknown mode %q (want %s or %s)", cfg.Mode, config.ModeScroll, config.ModeClick)
	}
	if cfg.Mode == config.ModeScroll && cfg.Loader.LoadOnScroll == nil {
		cfg.Loader.LoadOnScroll = config.Ptr(true)
	}
	if err := config.Validate(cfg.Options()); err != nil {
		return err
	}

	targets := flagURLs
	if len(targets) == 0 && cfg.DefaultURL != "" {
		targets = []string{cfg.DefaultURL}
	}
	if len(targets) == 0 {
		return fmt.Errorf("missing --url and no default_url in config")
	}

	if cfg.Debug {
		fmt.Println("Full config:")
		cfg.Print()
		fmt.Println()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if flagDryRun {
		return dryRun(ctx, s, targets)
	}

	if cfg.Output != "" {
		if err := os.MkdirAll(cfg.Output, 0755); err != nil {
			return fmt.Errorf("cannot create output folder: %w", err)
		}
	}
	stop := util.SetupInterruptHandler(cancel, cfg.Output)
	defer stop()

	pm := ui.NewProgressManager(os.Stdout)
	stats := &ui.Stats{}
	start := time.Now()

	sem := make(chan struct{}, max(1, cfg.Workers))
	var wg sync.WaitGroup

	for _, target := range targets {
		target := target // per-iteration copy (go 1.21 loop semantics)
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			run := &loadRun{
				session: s,
				target:  target,
				stats:   stats,
				handle:  pm.Register(barLabel(target)),
				log:     s.log.Zerolog("load").With().Str("run", uuid.NewString()).Str("start_url", target).Logger(),
			}
			if err := run.do(ctx); err != nil {
				stats.Failures.Add(1)
				s.log.Errorf("%s: %v", target, err)
			}
		}()
	}
	wg.Wait()
	pm.Close()

	if cfg.Output != "" && ctx.Err() != nil {
		util.RemoveIfEmpty(cfg.Output)
	}

	if flagMetricsFile != "" {
		if err := prometheus.WriteToTextfile(flagMetricsFile, prometheus.DefaultGatherer); err != nil {
			s.log.Errorf("cannot write metrics: %v", err)
		}
	}

	fmt.Println()
	fmt.Println("Load Summary:")
	fmt.Printf("Documents: %d\n", stats.Documents.Load())
	fmt.Printf("Pages:     %d\n", stats.Pages.Load())
	fmt.Printf("Items:     %s\n", humanize.Comma(stats.Items.Load()))
	fmt.Printf("Data:      %s\n", humanize.Bytes(uint64(stats.Bytes.Load())))
	fmt.Printf("Time:      %s\n", time.Since(start).Round(time.Millisecond))
	if n := stats.Failures.Load(); n > 0 {
		return fmt.Errorf("%d of %d URLs failed", n, len(targets))
	}

	fmt.Println("\nAll done.")
	return nil
}

// loadRun drives one loader from its start URL to the last page.
type loadRun struct {
	*session
	target string
	stats  *ui.Stats
	handle *ui.ProgressHandle
	log    zerolog.Logger

	pages atomic.Int64
	items atomic.Int64
}

func (r *loadRun) do(ctx context.Context) error {
	defer r.handle.MarkDone()

	fc := fetch.New(r.client, fetch.WithProgress(r.byteCounter()))

	page, _, err := openPage(ctx, fc, r.target)
	if err != nil {
		return err
	}

	root, err := findRoot(page, r.cfg.Root)
	if err != nil {
		return err
	}

	l, err := scroll.Attach(ctx, page, root, r.cfg.Loader,
		scroll.WithFetcher(fc),
		scroll.WithLogger(r.log),
		scroll.WithLayout(scroll.FoundationLayout{}),
		scroll.WithHandler(scroll.EventNewItems, func(ev *scroll.Event) bool {
			r.items.Store(int64(ev.Items.Length()))
			return true
		}),
		scroll.WithHandler(scroll.EventLoadedPage, func(*scroll.Event) bool {
			n := r.items.Load()
			r.pages.Add(1)
			r.stats.Pages.Add(1)
			r.stats.Items.Add(n)
			r.handle.PageLoaded(int(n))
			return true
		}),
	)
	if err != nil {
		return err
	}

	opts := l.Options()
	if opts.NumberOfPages > 0 {
		r.handle.SetTotal(opts.NumberOfPages - l.CurrentPage())
	}
	r.log.Info().
		Str("loader", l.ID().String()).
		Str("mode", r.cfg.Mode).
		Int("page", l.CurrentPage()).
		Msg("loader bound")

	switch r.cfg.Mode {
	case config.ModeClick:
		err = r.clickAll(ctx, l)
	default:
		err = r.scrollAll(ctx, l)
	}
	if err != nil && !errors.Is(err, errStalled) {
		return err
	}

	if r.cfg.Output != "" {
		if werr := r.write(page, l.Location()); werr != nil {
			return werr
		}
	}
	r.stats.Documents.Add(1)

	return err
}

// scrollAll reveals the pagination until nothing new arrives.
func (r *loadRun) scrollAll(ctx context.Context, l *scroll.Loader) error {
	vp, ok := l.Viewport().(*viewport.Manual)
	if !ok {
		return fmt.Errorf("scroll mode needs a manual viewport")
	}
	if !l.Options().LoadOnScroll {
		return fmt.Errorf("the page disables loadOnScroll, use --mode %s", config.ModeClick)
	}

	for r.withinLimit() {
		if err := ctx.Err(); err != nil {
			return err
		}

		before := r.pages.Load()
		if vp.Reveal() == 0 || r.pages.Load() == before {
			return r.finished(ctx, l)
		}
	}

	return nil
}

// clickAll presses the load-more button, or follows the next link when the
// page has none, until the loader runs out of pages.
func (r *loadRun) clickAll(ctx context.Context, l *scroll.Loader) error {
	for r.withinLimit() {
		if err := ctx.Err(); err != nil {
			return err
		}

		button := findButton(l)

		var err error
		if button != nil {
			var handled bool
			handled, err = l.Click(ctx, button)
			if err == nil && !handled {
				return nil
			}
		} else {
			_, err = l.LoadNextPage(ctx)
		}

		switch {
		case errors.Is(err, scroll.ErrNoNextPage):
			return nil
		case err != nil:
			return err
		}
	}

	return nil
}

func (r *loadRun) withinLimit() bool {
	return r.cfg.MaxPages <= 0 || r.pages.Load() < int64(r.cfg.MaxPages)
}

// finished tells a clean end of the listing from a load that failed.
func (r *loadRun) finished(ctx context.Context, l *scroll.Loader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if next, ok := l.NextPageURL(); ok {
		r.log.Warn().Str("next", next).Int("page", l.CurrentPage()).Msg("next page did not load")
		return errStalled
	}

	return nil
}

func (r *loadRun) write(page *dom.Page, location string) error {
	page.Lock()
	markup, err := page.HTML()
	page.Unlock()
	if err != nil {
		return err
	}

	path := filepath.Join(r.cfg.Output, util.OutputName(location))
	if err := util.WriteFileAtomic(path, []byte(markup)); err != nil {
		return err
	}

	r.log.Info().Str("path", path).Str("size", humanize.Bytes(uint64(len(markup)))).Msg("document written")
	return nil
}

// byteCounter turns the running per-response totals of the fetcher into
// increments for the stats and the progress bar.
func (r *loadRun) byteCounter() func(url string, done int64) {
	var (
		mu   sync.Mutex
		last string
		prev int64
	)

	return func(u string, done int64) {
		mu.Lock()
		if u != last {
			last, prev = u, 0
		}
		delta := done - prev
		prev = done
		mu.Unlock()

		r.stats.Bytes.Add(delta)
		r.handle.AddBytes(delta)
	}
}

func findRoot(page *dom.Page, selector string) (*goquery.Selection, error) {
	page.Lock()
	defer page.Unlock()

	root := page.Document().Find(selector).First()
	if root.Length() == 0 {
		return nil, fmt.Errorf("root %q not found", selector)
	}

	return root, nil
}

func findButton(l *scroll.Loader) *goquery.Selection {
	sel := l.Options().LoadButton
	if sel == "" {
		return nil
	}

	l.Page().Lock()
	defer l.Page().Unlock()

	b := l.Root().Find(sel).First()
	if b.Length() == 0 {
		return nil
	}
	return b
}

func barLabel(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}

	return runewidth.Truncate(u.Host+u.Path, 40, "...")
}

func dryRun(ctx context.Context, s *session, targets []string) error {
	fc := fetch.New(s.client)

	for _, target := range targets {
		page, size, err := openPage(ctx, fc, target)
		if err != nil {
			return err
		}

		root, err := findRoot(page, s.cfg.Root)
		if err != nil {
			return err
		}

		l, err := scroll.Attach(ctx, page, root, s.cfg.Loader, scroll.WithFetcher(fc))
		if err != nil {
			return err
		}

		next, ok := l.NextPageURL()
		if !ok {
			next = "(none)"
		}
		opts := l.Options()
		fmt.Printf("%s  [%s]\n", page.Location(), humanize.Bytes(uint64(size)))
		fmt.Printf("    container: %s  item: %s  page: %d\n", opts.ContainerSelector, opts.ItemSelector, l.CurrentPage())
		fmt.Printf("    next:      %s\n", next)
	}

	return nil
}
