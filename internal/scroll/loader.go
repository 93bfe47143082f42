package scroll

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"
	"github.com/siit-dev/lazy-infinite-scroll/internal/dom"
	"github.com/siit-dev/lazy-infinite-scroll/internal/fetch"
	"github.com/siit-dev/lazy-infinite-scroll/internal/viewport"
)

const (
	ClassLoading    = "loading"
	ClassLoadingNew = "loading-new"

	AttrOptions            = "data-options"
	AttrCurrentLocation    = "data-current-location"
	AttrLoadFullPage       = "data-load-full-page"
	AttrLoadFullPageSelect = "data-load-full-page-select"

	// ScrollMargin is how many pixels before the viewport the pagination
	// already counts as visible.
	ScrollMargin = 200
)

// Fetcher retrieves the markup of a page.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*fetch.Response, error)
}

// Viewport signals when an observed element scrolls into view.
type Viewport interface {
	Observe(target *html.Node, margin int, onVisible func())
	Unobserve(target *html.Node)
}

type Option func(*Loader)

// WithFetcher replaces the default jar-backed fetcher. Nil is ignored.
func WithFetcher(f Fetcher) Option {
	return func(l *Loader) {
		if f != nil {
			l.fetcher = f
		}
	}
}

// WithViewport replaces the default viewport.Manual.
func WithViewport(v Viewport) Option {
	return func(l *Loader) { l.viewport = v }
}

// WithMerger overrides the merge strategy named in the options.
func WithMerger(m Merger) Option {
	return func(l *Loader) { l.merger = m }
}

// WithLayout replaces FoundationLayout. Nil turns layout re-runs off.
func WithLayout(ly Layout) Option {
	return func(l *Loader) { l.layout = ly }
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithHandler registers a handler before Init runs, so it sees EventInit.
func WithHandler(kind EventKind, h Handler) Option {
	return func(l *Loader) { l.events.add(kind, h) }
}

// Loader is the incremental page loader bound to one root element.
type Loader struct {
	id   uuid.UUID
	page *dom.Page
	root *goquery.Selection

	fetcher  Fetcher
	viewport Viewport
	merger   Merger
	layout   Layout
	log      zerolog.Logger
	events   handlers

	mu          sync.Mutex
	cfg         config.Options
	st          state
	ctx         context.Context
	observed    *html.Node
	initialized bool
}

type state struct {
	page     int
	busy     bool
	location string
}

// New creates a loader for root, or the document body when root is nil. The
// inline data-options of root are merged over ctor. The loader is bound to
// root right away; a second New on the same root fails with ErrAlreadyBound.
func New(page *dom.Page, root *goquery.Selection, ctor config.Overrides, opts ...Option) (*Loader, error) {
	root = rootOf(page, root)
	if root.Length() == 0 {
		return nil, fmt.Errorf("%w: document has no root element", ErrContainerNotFound)
	}

	page.Lock()
	raw, _ := root.Attr(AttrOptions)
	page.Unlock()

	inline, err := config.ParseInline(raw)
	if err != nil {
		return nil, err
	}

	cfg := config.Merge(config.Defaults(), ctor, inline)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	l := &Loader{
		id:       uuid.New(),
		page:     page,
		root:     root,
		fetcher:  fetch.New(nil),
		viewport: viewport.NewManual(),
		layout:   FoundationLayout{},
		log:      zerolog.Nop(),
		cfg:      cfg,
		st:       state{page: cfg.CurrentPageNumber},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With().Str("loader", l.id.String()).Logger()

	if _, ok := page.Bind(root.Get(0), l); !ok {
		return nil, ErrAlreadyBound
	}

	return l, nil
}

// Attach returns the loader already bound to root, initialising it if
// needed, or creates and initialises a new one.
func Attach(ctx context.Context, page *dom.Page, root *goquery.Selection, ctor config.Overrides, opts ...Option) (*Loader, error) {
	root = rootOf(page, root)
	if root.Length() > 0 {
		if v, ok := page.Binding(root.Get(0)); ok {
			if l, ok := v.(*Loader); ok {
				if l.isInitialized() {
					return l, nil
				}
				return l, l.Init(ctx)
			}
		}
	}

	l, err := New(page, root, ctor, opts...)
	if err != nil {
		return nil, err
	}

	return l, l.Init(ctx)
}

func rootOf(page *dom.Page, root *goquery.Selection) *goquery.Selection {
	if root == nil || root.Length() == 0 {
		page.Lock()
		defer page.Unlock()
		return page.Document().Find("body").First()
	}

	return root.First()
}

// Init locates the container, records the current location and starts
// observing the pagination when auto-loading is on. It fails with
// ErrContainerNotFound when the container selector matches nothing.
func (l *Loader) Init(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	l.page.Lock()
	cfg := l.Options()
	if first(l.root, cfg.ContainerSelector) == nil {
		l.page.Unlock()
		return fmt.Errorf("%w: %s", ErrContainerNotFound, cfg.ContainerSelector)
	}

	location := l.page.Location()
	if v, ok := l.root.Attr(AttrCurrentLocation); ok && strings.TrimSpace(v) != "" {
		location = dom.Resolve(location, v)
	}

	l.mu.Lock()
	l.ctx = ctx
	l.st.location = dom.Resolve(location, location)
	l.initialized = true
	l.mu.Unlock()

	l.armViewport()
	l.page.Unlock()

	l.log.Debug().
		Str("location", location).
		Bool("load_on_scroll", cfg.LoadOnScroll).
		Msg("loader initialized")

	l.events.dispatch(&Event{Kind: EventInit, Loader: l})
	return nil
}

// On registers a handler for kind.
func (l *Loader) On(kind EventKind, h Handler) {
	l.events.add(kind, h)
}

func (l *Loader) ID() uuid.UUID { return l.id }

func (l *Loader) Page() *dom.Page { return l.page }

func (l *Loader) Root() *goquery.Selection { return l.root }

// Viewport is the viewport the pagination is observed through.
func (l *Loader) Viewport() Viewport { return l.viewport }

// Options returns a copy of the active configuration.
func (l *Loader) Options() config.Options {
	l.mu.Lock()
	defer l.mu.Unlock()

	o := l.cfg
	o.SyncSelectors = append([]string(nil), l.cfg.SyncSelectors...)
	return o
}

// CurrentPage is the page counter: the starting page plus every successful
// incremental load, back to 1 after a full-page load.
func (l *Loader) CurrentPage() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.st.page
}

// Location is the address next-page links are compared against.
func (l *Loader) Location() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.st.location
}

// Busy reports whether a load is in flight.
func (l *Loader) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.st.busy
}

func (l *Loader) isInitialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.initialized
}

func (l *Loader) context() context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ctx == nil {
		return context.Background()
	}
	return l.ctx
}

func (l *Loader) acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.st.busy {
		return false
	}
	l.st.busy = true
	return true
}

func (l *Loader) release() {
	l.mu.Lock()
	l.st.busy = false
	l.mu.Unlock()
}

func (l *Loader) currentMerger() Merger {
	if l.merger != nil {
		return l.merger
	}

	m, err := MergerByName(l.Options().Merge)
	if err != nil {
		return MergeContent
	}
	return m
}

// armViewport observes the current pagination element when auto-loading is
// on and drops any observation that no longer applies. The caller holds the
// page lock.
func (l *Loader) armViewport() {
	if l.viewport == nil {
		return
	}

	cfg := l.Options()
	var node *html.Node
	if cfg.LoadOnScroll {
		if pag := first(l.root, cfg.PaginationContainerSelector); pag != nil {
			node = pag.Get(0)
		}
	}

	l.mu.Lock()
	prev := l.observed
	l.observed = node
	l.mu.Unlock()

	if prev != nil && prev != node {
		l.viewport.Unobserve(prev)
	}
	if node != nil {
		l.viewport.Observe(node, ScrollMargin, l.onVisible)
	}
}

func (l *Loader) unobserve() {
	l.mu.Lock()
	prev := l.observed
	l.observed = nil
	l.mu.Unlock()

	if prev != nil && l.viewport != nil {
		l.viewport.Unobserve(prev)
	}
}

// onVisible is the viewport callback for the pagination element.
func (l *Loader) onVisible() {
	if !l.Options().LoadOnScroll {
		return
	}

	if _, err := l.LoadNextPage(l.context()); err != nil {
		l.log.Debug().Err(err).Msg("scroll load skipped")
	}
}

// first returns the first match of selector under sel, or nil when the
// selector is disabled or matches nothing.
func first(sel *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" || sel == nil {
		return nil
	}

	found := sel.Find(selector).First()
	if found.Length() == 0 {
		return nil
	}
	return found
}
