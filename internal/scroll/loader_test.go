package scroll

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"
	"github.com/siit-dev/lazy-infinite-scroll/internal/dom"
	"github.com/siit-dev/lazy-infinite-scroll/internal/fetch"
	"github.com/siit-dev/lazy-infinite-scroll/internal/viewport"
)

func TestLoadNextPage_AppendsItems(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 5), pagination("/page/3")),
	})
	page := newPage(t, s, "/page/1", listing("", articles("p1", 10), pagination("/page/2")))
	l := newLoader(t, s, page, config.Overrides{})

	rec := &recorder{}
	rec.listen(l, EventLoadingPage, EventNewItems, EventLoadedPage, EventPostLoad)

	res, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 15, count(l, ".articles-wrapper article"))
	assert.Equal(t, 5, res.Items)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 2, l.CurrentPage())
	assert.Equal(t, s.URL+"/page/2", res.URL)
	assert.False(t, res.Reset)

	assert.Equal(t, 1, count(l, ".page-pagination"), "pagination stays when the total is unknown")
	next, ok := l.NextPageURL()
	require.True(t, ok)
	assert.Equal(t, s.URL+"/page/3", next)

	assert.False(t, l.Busy())
	assert.False(t, l.Root().HasClass(ClassLoading))
	assert.False(t, l.Root().HasClass(ClassLoadingNew))

	assert.Equal(t, []EventKind{EventLoadingPage, EventNewItems, EventLoadedPage, EventPostLoad}, rec.seen())
}

func TestLoadNextPage_KeepsLocation(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 1), pagination("/page/3")),
	})
	page := newPage(t, s, "/page/1", listing("", articles("p1", 1), pagination("/page/2")))
	l := newLoader(t, s, page, config.Overrides{})

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, s.URL+"/page/1", l.Location())
	assert.Equal(t, []string{s.URL + "/page/1"}, page.History())
}

func TestNextPageURL(t *testing.T) {
	tests := []struct {
		name  string
		links []string
		want  string
		ok    bool
	}{
		{name: "skips current page", links: []string{"/page/1", "/page/2", "/page/3"}, want: "/page/2", ok: true},
		{name: "first differing link wins", links: []string{"/page/7", "/page/2"}, want: "/page/7", ok: true},
		{name: "all point at current page", links: []string{"/page/1", "/page/1"}},
		{name: "no links"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSite(t, nil)
			page := newPage(t, s, "/page/1", listing("", articles("p1", 1), pagination(tt.links...)))
			l := newLoader(t, s, page, config.Overrides{})

			got, ok := l.NextPageURL()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, s.URL+tt.want, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestNextPageURL_AbsoluteCurrentLink(t *testing.T) {
	s := newSite(t, nil)
	page := newPage(t, s, "/page/1", listing("", articles("p1", 1), pagination(s.URL+"/page/1", "/page/2")))
	l := newLoader(t, s, page, config.Overrides{})

	got, ok := l.NextPageURL()
	require.True(t, ok)
	assert.Equal(t, s.URL+"/page/2", got)
}

func TestLoadNextPage_NoNextPage(t *testing.T) {
	s := newSite(t, nil)
	page := newPage(t, s, "/page/1", listing("", articles("p1", 3), pagination("/page/1")))
	l := newLoader(t, s, page, config.Overrides{})

	_, err := l.LoadNextPage(context.Background())
	assert.ErrorIs(t, err, ErrNoNextPage)
	assert.Equal(t, int32(0), s.hits.Load())
}

func TestLoadNextPage_Vetoed(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 5), ""),
	})
	page := newPage(t, s, "/page/1", listing("", articles("p1", 2), pagination("/page/2")))
	l := newLoader(t, s, page, config.Overrides{})

	rec := &recorder{}
	l.On(EventLoadingPage, func(ev *Event) bool {
		assert.Equal(t, s.URL+"/page/2", ev.URL)
		return false
	})
	rec.listen(l, EventLoadingPage, EventNewItems, EventLoadedPage)

	before := testutil.ToFloat64(LoadsCanceled)
	_, err := l.LoadNextPage(context.Background())
	require.ErrorIs(t, err, ErrCanceled)

	assert.Equal(t, int32(0), s.hits.Load(), "vetoed load must not fetch")
	assert.Equal(t, 2, count(l, "article"))
	assert.Equal(t, 1, l.CurrentPage())
	assert.Equal(t, []EventKind{EventLoadingPage}, rec.seen(), "later handlers still run")
	assert.Equal(t, before+1, testutil.ToFloat64(LoadsCanceled))
}

func TestLoadPage_BusyRejectsOverlap(t *testing.T) {
	s := newSite(t, nil)
	page := newPage(t, s, "/page/1", listing("", articles("p1", 1), pagination("/page/2")))
	f := newBlockingFetcher(listing("", articles("p2", 2), pagination("/page/3")))
	l := newLoader(t, s, page, config.Overrides{}, WithFetcher(f))

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = l.LoadNextPage(context.Background())
	}()

	<-f.entered
	assert.True(t, l.Busy())

	page.Lock()
	assert.True(t, l.Root().HasClass(ClassLoading))
	assert.False(t, l.Root().HasClass(ClassLoadingNew), "loading-new marks full replaces only")
	page.Unlock()

	_, err := l.LoadNextPage(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = l.LoadPage(context.Background(), "/page/9", true)
	assert.ErrorIs(t, err, ErrBusy)

	close(f.release)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.False(t, l.Busy())
	assert.Equal(t, 2, l.CurrentPage())
	assert.Equal(t, 3, count(l, "article"))
}

func TestLoadPage_FailureClearsBusy(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 4), pagination("/page/3")),
	})
	s.setStatus("/page/2", http.StatusInternalServerError)

	page := newPage(t, s, "/page/1", listing("", articles("p1", 3), pagination("/page/2")))
	l := newLoader(t, s, page, config.Overrides{})

	rec := &recorder{}
	rec.listen(l, EventNewItems, EventLoadedPage, EventPostLoad)

	before := testutil.ToFloat64(LoadFailures)
	_, err := l.LoadNextPage(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fetch.ErrStatus)

	assert.False(t, l.Busy())
	assert.False(t, l.Root().HasClass(ClassLoading))
	assert.False(t, l.Root().HasClass(ClassLoadingNew))
	assert.Equal(t, 3, count(l, "article"))
	assert.Equal(t, 1, l.CurrentPage())
	assert.Empty(t, rec.seen())
	assert.Equal(t, before+1, testutil.ToFloat64(LoadFailures))

	s.setStatus("/page/2", 0)
	_, err = l.LoadNextPage(context.Background())
	require.NoError(t, err, "a failed load must not block the next one")
	assert.Equal(t, 7, count(l, "article"))
}

func TestLoadPage_TotalReachedRemovesPagination(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 2), pagination("/page/3")),
	})
	page := newPage(t, s, "/page/1",
		listing(`{"numberOfPages": 2, "loadOnScroll": true}`, articles("p1", 2), pagination("/page/2")))

	vp := viewport.NewManual()
	l := newLoader(t, s, page, config.Overrides{}, WithViewport(vp))
	require.Len(t, vp.Observed(), 1)

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, l.CurrentPage())
	assert.Equal(t, 0, count(l, ".page-pagination"))
	assert.Empty(t, vp.Observed())

	_, err = l.LoadNextPage(context.Background())
	assert.ErrorIs(t, err, ErrNoNextPage)
}

func TestLoadPage_EmptyPaginationInResponse(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 1), ""),
	})
	page := newPage(t, s, "/page/1", listing("", articles("p1", 1), pagination("/page/2")))
	l := newLoader(t, s, page, config.Overrides{})

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, count(l, ".page-pagination"))
	assert.Equal(t, 0, count(l, ".page-pagination a"))

	_, err = l.LoadNextPage(context.Background())
	assert.ErrorIs(t, err, ErrNoNextPage)
}

func TestScrollTriggersLoad(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 3), pagination("/page/3")),
		"/page/3": listing("", articles("p3", 3), ""),
	})
	page := newPage(t, s, "/page/1", listing("", articles("p1", 3), pagination("/page/2")))

	vp := viewport.NewManual()
	l := newLoader(t, s, page, config.Overrides{LoadOnScroll: config.Ptr(true)}, WithViewport(vp))

	observed := vp.Observed()
	require.Len(t, observed, 1)
	margin, ok := vp.Margin(observed[0])
	require.True(t, ok)
	assert.Equal(t, ScrollMargin, margin)

	assert.Equal(t, 1, vp.Reveal())
	assert.Equal(t, 2, l.CurrentPage())
	assert.Equal(t, 6, count(l, "article"))

	vp.Reveal()
	assert.Equal(t, 3, l.CurrentPage())
	assert.Equal(t, 9, count(l, "article"))

	vp.Reveal()
	assert.Equal(t, 3, l.CurrentPage(), "nothing left to load")
}

func TestInlineOptionsOverrideConstructor(t *testing.T) {
	s := newSite(t, nil)
	page := newPage(t, s, "/page/1",
		listing(`{"loadOnScroll": false, "paginationLinksSelector": ".page-pagination a.next"}`, articles("p1", 1), pagination("/page/2")))

	vp := viewport.NewManual()
	l := newLoader(t, s, page, config.Overrides{
		LoadOnScroll:            config.Ptr(true),
		PaginationLinksSelector: config.Ptr(config.Selector("nav a")),
	}, WithViewport(vp))

	opts := l.Options()
	assert.False(t, opts.LoadOnScroll)
	assert.Equal(t, ".page-pagination a.next", opts.PaginationLinksSelector)
	assert.Empty(t, vp.Observed())
}

func TestInlineFalseDisablesSelector(t *testing.T) {
	s := newSite(t, nil)
	page := newPage(t, s, "/page/1",
		listing(`{"paginationContainerSelector": false, "paginationLinksSelector": false}`, articles("p1", 1), pagination("/page/2")))
	l := newLoader(t, s, page, config.Overrides{LoadOnScroll: config.Ptr(true)})

	_, ok := l.NextPageURL()
	assert.False(t, ok)

	_, err := l.LoadNextPage(context.Background())
	assert.ErrorIs(t, err, ErrNoNextPage)
}

func TestNew_InvalidInlineOptions(t *testing.T) {
	s := newSite(t, nil)
	page := newPage(t, s, "/", listing(`{"itemSelector": 12`, articles("p1", 1), ""))

	_, err := New(page, nil, config.Overrides{})
	assert.Error(t, err)
}

func TestInit_ContainerMissing(t *testing.T) {
	s := newSite(t, nil)
	page := newPage(t, s, "/", `<html><body><ul class="list"></ul></body></html>`)

	l, err := New(page, nil, config.Overrides{})
	require.NoError(t, err)

	err = l.Init(context.Background())
	assert.ErrorIs(t, err, ErrContainerNotFound)

	_, err = l.LoadNextPage(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInit_CurrentLocationAttribute(t *testing.T) {
	s := newSite(t, nil)
	markup := `<html><body data-current-location="/page/2"><div class="articles-wrapper"></div>` +
		pagination("/page/2", "/page/3") + `</body></html>`
	page := newPage(t, s, "/page/1", markup)
	l := newLoader(t, s, page, config.Overrides{})

	assert.Equal(t, s.URL+"/page/2", l.Location())

	next, ok := l.NextPageURL()
	require.True(t, ok)
	assert.Equal(t, s.URL+"/page/3", next)
}

func TestNew_AlreadyBound(t *testing.T) {
	s := newSite(t, nil)
	page := newPage(t, s, "/", listing("", articles("p1", 1), ""))

	_, err := New(page, nil, config.Overrides{})
	require.NoError(t, err)

	_, err = New(page, nil, config.Overrides{})
	assert.ErrorIs(t, err, ErrAlreadyBound)
}

func TestAttach_ReturnsExistingLoader(t *testing.T) {
	s := newSite(t, nil)
	page := newPage(t, s, "/", listing("", articles("p1", 1), ""))

	inits := 0
	onInit := WithHandler(EventInit, func(*Event) bool {
		inits++
		return true
	})

	a, err := Attach(context.Background(), page, nil, config.Overrides{}, onInit)
	require.NoError(t, err)

	b, err := Attach(context.Background(), page, nil, config.Overrides{}, onInit)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, inits)
}

func TestSyncSelectors(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 2), pagination("/page/3")+`<p class="count">4 of 9</p>`),
	})
	page := newPage(t, s, "/page/1",
		listing(`{"syncSelectors": [".count", ".missing"]}`, articles("p1", 2), pagination("/page/2")+`<p class="count">2 of 9</p>`))
	l := newLoader(t, s, page, config.Overrides{})

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)

	page.Lock()
	defer page.Unlock()
	assert.Equal(t, "4 of 9", l.Root().Find(".count").Text())
}

func TestMergeElementCopiesAttributes(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 1), `<nav class="page-pagination" data-page="2"><a href="/page/3">3</a></nav>`),
	})
	page := newPage(t, s, "/page/1",
		listing(`{"merge": "element"}`, articles("p1", 1), `<nav class="page-pagination" data-page="1"><a href="/page/2">2</a></nav>`))

	vp := viewport.NewManual()
	l := newLoader(t, s, page, config.Overrides{LoadOnScroll: config.Ptr(true)}, WithViewport(vp))
	before := vp.Observed()

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)

	page.Lock()
	pag := l.Root().Find(".page-pagination")
	v, _ := pag.Attr("data-page")
	page.Unlock()

	assert.Equal(t, "2", v)
	assert.Equal(t, before, vp.Observed(), "the live pagination node is kept")
}

func TestWithMerger(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 1), pagination("/page/3")),
	})
	page := newPage(t, s, "/page/1", listing("", articles("p1", 1), pagination("/page/2")))

	var merged []string
	m := MergerFunc(func(live, incoming *goquery.Selection) {
		merged = append(merged, goquery.NodeName(live))
		MergeContent(live, incoming)
	})
	l := newLoader(t, s, page, config.Overrides{}, WithMerger(m))

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"nav"}, merged)
}

func TestLayoutReinit(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 2), ""),
	})
	markup := `<html><head><script src="/js/foundation.min.js"></script></head><body><div class="articles-wrapper">` +
		articles("p1", 1) + `</div>` + pagination("/page/2") + `</body></html>`
	page := newPage(t, s, "/page/1", markup)
	l := newLoader(t, s, page, config.Overrides{}, WithLayout(FoundationLayout{}))

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, count(l, "article[data-foundation-reinit]"))
	assert.Equal(t, 0, count(l, "#p1-1[data-foundation-reinit]"))
}

func TestLayoutAbsent(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 2), ""),
	})
	page := newPage(t, s, "/page/1", listing("", articles("p1", 1), pagination("/page/2")))

	called := false
	l := newLoader(t, s, page, config.Overrides{}, WithLayout(FoundationLayout{
		OnReinit: func(*goquery.Selection) { called = true },
	}))

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.False(t, called)
}

func TestNewItemsHandlerSeesInsertedItems(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 3), ""),
	})
	page := newPage(t, s, "/page/1", listing("", articles("p1", 2), pagination("/page/2")))
	l := newLoader(t, s, page, config.Overrides{})

	var ids []string
	l.On(EventNewItems, func(ev *Event) bool {
		ev.Items.Each(func(_ int, item *goquery.Selection) {
			id, _ := item.Attr("id")
			ids = append(ids, id)
			assert.True(t, dom.Attached(item.Get(0)))
		})
		return true
	})

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p2-1", "p2-2", "p2-3"}, ids)
}

func TestNew_DefaultFetcherKeepsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page/2", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sess", Value: "abc", Path: "/"})
		_, _ = io.WriteString(w, listing("", articles("p2", 2), pagination("/page/3")))
	})
	mux.HandleFunc("/page/3", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sess")
		if err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, listing("", articles("p3", 2), ""))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := dom.ParseString(listing("", articles("p1", 1), pagination("/page/2")), srv.URL+"/page/1")
	require.NoError(t, err)

	l, err := New(page, nil, config.Overrides{})
	require.NoError(t, err)
	require.NoError(t, l.Init(context.Background()))

	_, err = l.LoadNextPage(context.Background())
	require.NoError(t, err)
	_, err = l.LoadNextPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, l.CurrentPage())
	assert.Equal(t, 5, count(l, "article"))
}

func TestWithFetcher_NilKeepsDefault(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 2), ""),
	})
	page := newPage(t, s, "/page/1", listing("", articles("p1", 1), pagination("/page/2")))

	l, err := New(page, nil, config.Overrides{}, WithFetcher(nil))
	require.NoError(t, err)
	require.NoError(t, l.Init(context.Background()))

	require.NotPanics(t, func() {
		_, err = l.LoadNextPage(context.Background())
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count(l, "article"))
}

func TestLayoutDefaultsToFoundation(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 3), ""),
	})
	markup := `<html><head><script src="/js/foundation.js"></script></head><body><div class="articles-wrapper">` +
		articles("p1", 1) + `</div>` + pagination("/page/2") + `</body></html>`
	page := newPage(t, s, "/page/1", markup)
	l := newLoader(t, s, page, config.Overrides{})

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count(l, "article[data-foundation-reinit]"))
}

func TestWithLayout_NilDisables(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 1), ""),
	})
	markup := `<html><head><script src="/js/foundation.js"></script></head><body><div class="articles-wrapper">` +
		articles("p1", 1) + `</div>` + pagination("/page/2") + `</body></html>`
	page := newPage(t, s, "/page/1", markup)
	l := newLoader(t, s, page, config.Overrides{}, WithLayout(nil))

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count(l, "article[data-foundation-reinit]"))
}

func TestLoadingEventsCarryReset(t *testing.T) {
	s := newSite(t, map[string]string{
		"/page/2": listing("", articles("p2", 1), pagination("/page/3")),
		"/page/9": listing("", articles("p9", 1), ""),
	})
	page := newPage(t, s, "/page/1", listing("", articles("p1", 1), pagination("/page/2")))
	l := newLoader(t, s, page, config.Overrides{})

	rec := &recorder{}
	rec.listen(l, EventLoadingPage, EventLoadingFullPage)

	_, err := l.LoadNextPage(context.Background())
	require.NoError(t, err)
	_, err = l.Navigate(context.Background(), "/page/9")
	require.NoError(t, err)

	require.Equal(t, []EventKind{EventLoadingPage, EventLoadingFullPage}, rec.seen())
	assert.False(t, rec.events[0].Reset)
	assert.True(t, rec.events[1].Reset)
	assert.Equal(t, s.URL+"/page/9", rec.events[1].URL)
}
