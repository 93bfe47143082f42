package scroll

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"
	"github.com/siit-dev/lazy-infinite-scroll/internal/dom"
	"github.com/siit-dev/lazy-infinite-scroll/internal/fetch"
)

// site serves fixed markup per path and counts requests.
type site struct {
	*httptest.Server
	mu    sync.Mutex
	pages map[string]string
	codes map[string]int
	hits  atomic.Int32
}

func newSite(t *testing.T, pages map[string]string) *site {
	t.Helper()

	s := &site{pages: pages, codes: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page/5", http.StatusFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)

		s.mu.Lock()
		body, ok := s.pages[r.URL.Path]
		code := s.codes[r.URL.Path]
		s.mu.Unlock()

		if code != 0 {
			w.WriteHeader(code)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

func (s *site) setStatus(path string, code int) {
	s.mu.Lock()
	s.codes[path] = code
	s.mu.Unlock()
}

func articles(prefix string, n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<article id="%s-%d">%s %d</article>`, prefix, i, prefix, i)
	}
	return b.String()
}

func pagination(hrefs ...string) string {
	var b strings.Builder
	b.WriteString(`<nav class="page-pagination">`)
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, h, h)
	}
	b.WriteString(`</nav>`)
	return b.String()
}

// listing renders a page body. opts is the raw data-options value.
func listing(opts, items, extra string) string {
	attr := ""
	if opts != "" {
		attr = fmt.Sprintf(` data-options='%s'`, opts)
	}
	return fmt.Sprintf(`<html><head></head><body%s><div class="articles-wrapper">%s</div>%s</body></html>`, attr, items, extra)
}

func newPage(t *testing.T, s *site, path, markup string) *dom.Page {
	t.Helper()

	page, err := dom.ParseString(markup, s.URL+path)
	require.NoError(t, err)
	return page
}

func newLoader(t *testing.T, s *site, page *dom.Page, ctor config.Overrides, opts ...Option) *Loader {
	t.Helper()

	opts = append([]Option{WithFetcher(fetch.New(s.Client()))}, opts...)
	l, err := New(page, nil, ctor, opts...)
	require.NoError(t, err)
	require.NoError(t, l.Init(context.Background()))
	return l
}

func count(l *Loader, selector string) int {
	l.Page().Lock()
	defer l.Page().Unlock()

	return l.Root().Find(selector).Length()
}

// recorder collects event kinds in dispatch order.
type recorder struct {
	mu     sync.Mutex
	kinds  []EventKind
	events []*Event
}

func (r *recorder) handler(ev *Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds = append(r.kinds, ev.Kind)
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) listen(l *Loader, kinds ...EventKind) {
	for _, k := range kinds {
		l.On(k, r.handler)
	}
}

func (r *recorder) seen() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]EventKind(nil), r.kinds...)
}

// blockingFetcher parks every fetch until release is closed.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
	body    string
	once    sync.Once
}

func newBlockingFetcher(body string) *blockingFetcher {
	return &blockingFetcher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		body:    body,
	}
}

func (f *blockingFetcher) Fetch(ctx context.Context, target string) (*fetch.Response, error) {
	f.once.Do(func() { close(f.entered) })

	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &fetch.Response{Requested: target, URL: target, Body: []byte(f.body)}, nil
}
