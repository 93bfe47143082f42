package scroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"
	"github.com/siit-dev/lazy-infinite-scroll/internal/dom"
)

// Result describes a merged page.
type Result struct {
	// Requested is the absolute address the load was started for.
	Requested string
	// URL is the effective address after redirects.
	URL string
	// Items is the number of items inserted into the container.
	Items int
	// Page is the page counter after the load.
	Page  int
	Reset bool
	Bytes int
}

// NextPageURL returns the first pagination link that points somewhere other
// than the recorded location.
func (l *Loader) NextPageURL() (string, bool) {
	l.page.Lock()
	defer l.page.Unlock()

	return l.nextPageURL()
}

func (l *Loader) nextPageURL() (string, bool) {
	cfg := l.Options()
	if cfg.PaginationLinksSelector == "" {
		return "", false
	}

	current := l.Location()
	base := l.page.Location()

	var next string
	l.root.Find(cfg.PaginationLinksSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		raw, ok := a.Attr("href")
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			return true
		}

		abs := dom.Resolve(base, raw)
		if abs != current && raw != current {
			next = abs
			return false
		}
		return true
	})

	return next, next != ""
}

// LoadNextPage appends the next page. It returns ErrNoNextPage when no link
// qualifies or the configured page total is reached, ErrBusy while another
// load runs and ErrCanceled when a handler vetoes EventLoadingPage.
func (l *Loader) LoadNextPage(ctx context.Context) (*Result, error) {
	if !l.isInitialized() {
		return nil, ErrNotInitialized
	}
	if l.Busy() {
		return nil, ErrBusy
	}

	cfg := l.Options()
	if cfg.NumberOfPages > 0 && l.CurrentPage() >= cfg.NumberOfPages {
		return nil, ErrNoNextPage
	}

	next, ok := l.NextPageURL()
	if !ok {
		return nil, ErrNoNextPage
	}

	if !l.events.dispatch(&Event{Kind: EventLoadingPage, Loader: l, URL: next, Reset: false}) {
		LoadsCanceled.Inc()
		l.log.Debug().Str("url", next).Msg("page load vetoed")
		return nil, ErrCanceled
	}

	return l.LoadPage(ctx, next, false)
}

// LoadPage fetches target and merges it into the live page. With reset the
// container content is replaced instead of extended and the loader starts
// over from page 1 at the effective address.
func (l *Loader) LoadPage(ctx context.Context, target string, reset bool) (*Result, error) {
	if !l.isInitialized() {
		return nil, ErrNotInitialized
	}

	res, err := l.load(ctx, target, reset)
	if err != nil {
		return nil, err
	}

	l.events.dispatch(&Event{Kind: EventLoadedPage, Loader: l, URL: res.URL, Reset: reset})
	l.events.dispatch(&Event{Kind: EventPostLoad, Loader: l, URL: res.URL, Reset: reset})

	return res, nil
}

// load runs one fetch and merge while holding the busy flag. The flag is
// released before any completion event goes out.
func (l *Loader) load(ctx context.Context, target string, reset bool) (*Result, error) {
	target = dom.Resolve(l.page.Location(), target)
	if !l.acquire() {
		return nil, ErrBusy
	}
	defer l.release()

	LoadsInFlight.Inc()
	defer LoadsInFlight.Dec()

	start := time.Now()
	log := l.log.With().Str("url", target).Bool("reset", reset).Logger()
	log.Debug().Msg("loading page")

	l.setLoading(reset)

	resp, err := l.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, l.fail(log, target, err)
	}

	effective := target
	if resp.URL != "" && resp.Redirected() {
		effective = dom.Resolve(target, resp.URL)
		log.Debug().Str("final_url", effective).Msg("followed redirect")
	}

	doc, err := dom.ParseDocument(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, l.fail(log, target, err)
	}

	res, err := l.merge(doc, effective, reset)
	if err != nil {
		return nil, l.fail(log, target, err)
	}
	res.Requested = target
	res.Bytes = len(resp.Body)

	mode := "append"
	if reset {
		mode = "replace"
	}
	LoadDuration.Observe(time.Since(start).Seconds())
	PagesLoaded.WithLabelValues(mode).Inc()
	ItemsInserted.Add(float64(res.Items))

	log.Info().
		Str("final_url", res.URL).
		Int("items", res.Items).
		Int("page", res.Page).
		Dur("took", time.Since(start)).
		Msg("page loaded")

	return res, nil
}

// merge splices the parsed document into the live page under the tree lock.
func (l *Loader) merge(doc *goquery.Document, effective string, reset bool) (*Result, error) {
	l.page.Lock()
	defer l.page.Unlock()

	cfg := l.Options()
	container := first(l.root, cfg.ContainerSelector)
	if container == nil {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, cfg.ContainerSelector)
	}

	nodes := append([]*html.Node(nil), doc.Find(cfg.ContainerSelector+" "+cfg.ItemSelector).Nodes...)
	nodes = outermost(nodes)

	if reset {
		container.Empty()
	}
	container.AppendNodes(nodes...)
	items := container.FindNodes(nodes...)

	l.events.dispatch(&Event{Kind: EventNewItems, Loader: l, URL: effective, Reset: reset, Items: items})

	if l.layout != nil && l.layout.Present(l.page.Document()) {
		l.layout.Reinit(items)
	}

	merger := l.currentMerger()
	if live := first(l.root, cfg.PaginationContainerSelector); live != nil {
		if incoming := first(doc.Selection, cfg.PaginationContainerSelector); incoming != nil {
			merger.Merge(live, incoming)
			l.armViewport()
		} else {
			live.Empty()
		}
	}

	for _, sel := range cfg.SyncSelectors {
		live := first(l.root, sel)
		incoming := first(doc.Selection, sel)
		if live != nil && incoming != nil {
			merger.Merge(live, incoming)
		}
	}

	var page int
	if reset {
		l.events.dispatch(&Event{Kind: EventFullPageContent, Loader: l, URL: effective, Reset: true, Items: items, Document: doc})
		l.reloadInline()

		l.mu.Lock()
		l.st.page = 1
		l.st.location = effective
		page = l.st.page
		l.mu.Unlock()

		if l.Options().UpdateURL {
			l.page.PushState(effective)
		}
		l.armViewport()
	} else {
		l.mu.Lock()
		l.st.page++
		page = l.st.page
		l.mu.Unlock()

		if cfg.NumberOfPages > 0 && page >= cfg.NumberOfPages {
			if pag := first(l.root, cfg.PaginationContainerSelector); pag != nil {
				l.unobserve()
				pag.Remove()
			}
		}
	}

	l.root.RemoveClass(ClassLoading, ClassLoadingNew)

	return &Result{
		URL:   effective,
		Items: len(nodes),
		Page:  page,
		Reset: reset,
	}, nil
}

// reloadInline re-reads data-options after a full-page load. Bad markup keeps
// the previous configuration. The caller holds the page lock.
func (l *Loader) reloadInline() {
	raw, _ := l.root.Attr(AttrOptions)
	inline, err := config.ParseInline(raw)
	if err != nil {
		l.log.Warn().Err(err).Msg("ignoring inline options")
		return
	}

	next := config.Merge(l.Options(), config.Overrides{}, inline)
	if err := config.Validate(next); err != nil {
		l.log.Warn().Err(err).Msg("ignoring inline options")
		return
	}

	l.mu.Lock()
	l.cfg = next
	l.mu.Unlock()
}

func (l *Loader) setLoading(reset bool) {
	l.page.Lock()
	defer l.page.Unlock()

	l.root.AddClass(ClassLoading)
	if reset {
		l.root.AddClass(ClassLoadingNew)
	}
}

// fail clears the loading markers so the next trigger can retry.
func (l *Loader) fail(log zerolog.Logger, target string, err error) error {
	LoadFailures.Inc()

	l.page.Lock()
	l.root.RemoveClass(ClassLoading, ClassLoadingNew)
	l.page.Unlock()

	if errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Msg("page load interrupted")
	} else {
		log.Error().Err(err).Msg("There has been an error loading the next page.")
	}

	return fmt.Errorf("load %s: %w", target, err)
}

// outermost drops nodes nested inside other matched nodes, which would
// otherwise be detached from their matched ancestor on append.
func outermost(nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}

	set := make(map[*html.Node]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}

	out := nodes[:0]
	for _, n := range nodes {
		nested := false
		for p := n.Parent; p != nil; p = p.Parent {
			if _, ok := set[p]; ok {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, n)
		}
	}

	return out
}
