package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"
	"github.com/siit-dev/lazy-infinite-scroll/internal/dom"
	"github.com/siit-dev/lazy-infinite-scroll/internal/fetch"
	"github.com/siit-dev/lazy-infinite-scroll/internal/ui"
)

// Flags shared by every command that binds a loader.
var (
	flagURLs       []string
	flagRoot       string
	flagTimeout    string
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
	flagCloudflare bool

	flagContainer   string
	flagItem        string
	flagPagination  string
	flagLinks       string
	flagLoadButton  string
	flagSync        []string
	flagPages       int
	flagStartPage   int
	flagOnScroll    bool
	flagNoUpdateURL bool
	flagMerge       string
)

func addPageFlags(c *cobra.Command, multi bool) {
	if multi {
		c.Flags().StringSliceVar(&flagURLs, "url", nil, "page URL to start from (repeatable)")
	} else {
		c.Flags().StringSliceVar(&flagURLs, "url", nil, "page URL to start from")
	}
	c.Flags().StringVar(&flagRoot, "root", "", "selector of the element the loader binds to (default body)")
	c.Flags().StringVar(&flagTimeout, "timeout", "", "HTTP timeout per request, e.g. 30s")

	// headers/auth
	c.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	c.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	c.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
	c.Flags().BoolVar(&flagCloudflare, "cloudflare", false, "send browser-like headers accepted by Cloudflare")

	// loader options; "false" disables a selector
	c.Flags().StringVar(&flagContainer, "container", "", "container selector")
	c.Flags().StringVar(&flagItem, "item", "", "item selector, relative to the container")
	c.Flags().StringVar(&flagPagination, "pagination", "", "pagination container selector")
	c.Flags().StringVar(&flagLinks, "links", "", "pagination links selector")
	c.Flags().StringVar(&flagLoadButton, "load-button", "", "load-more button selector")
	c.Flags().StringSliceVar(&flagSync, "sync", nil, "extra selectors refreshed on every load")
	c.Flags().IntVar(&flagPages, "pages", 0, "total number of pages, 0 if unknown")
	c.Flags().IntVar(&flagStartPage, "start-page", 0, "page number of the start URL")
	c.Flags().BoolVar(&flagOnScroll, "on-scroll", false, "load when the pagination becomes visible")
	c.Flags().BoolVar(&flagNoUpdateURL, "no-update-url", false, "do not push history entries on full-page loads")
	c.Flags().StringVar(&flagMerge, "merge", "", "merge strategy for pagination and sync regions: content or element")
}

// loaderOverrides turns the loader flags that were actually set into
// constructor options.
func loaderOverrides(c *cobra.Command) config.Overrides {
	var o config.Overrides
	f := c.Flags()

	if f.Changed("container") {
		o.ContainerSelector = config.Ptr(flagContainer)
	}
	if f.Changed("item") {
		o.ItemSelector = config.Ptr(flagItem)
	}
	if f.Changed("pagination") {
		o.PaginationContainerSelector = selectorFlag(flagPagination)
	}
	if f.Changed("links") {
		o.PaginationLinksSelector = selectorFlag(flagLinks)
	}
	if f.Changed("load-button") {
		o.LoadButton = selectorFlag(flagLoadButton)
	}
	if f.Changed("sync") {
		list := config.SelectorList(flagSync)
		o.SyncSelectors = &list
	}
	if f.Changed("pages") {
		o.NumberOfPages = config.Ptr(config.Count(flagPages))
	}
	if f.Changed("start-page") {
		o.CurrentPageNumber = config.Ptr(config.Count(flagStartPage))
	}
	if f.Changed("on-scroll") {
		o.LoadOnScroll = config.Ptr(flagOnScroll)
	}
	if f.Changed("no-update-url") {
		o.UpdateURL = config.Ptr(!flagNoUpdateURL)
	}
	if f.Changed("merge") {
		o.Merge = config.Ptr(flagMerge)
	}

	return o
}

func selectorFlag(v string) *config.Selector {
	if strings.EqualFold(strings.TrimSpace(v), "false") {
		v = ""
	}
	return config.Ptr(config.Selector(v))
}

func pageFlags(c *cobra.Command) config.Flags {
	f := config.Flags{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		LogJSON:      flagLogJSON,
		Root:         flagRoot,
		Timeout:      flagTimeout,
		Cookie:       flagCookie,
		CookieFile:   flagCookieFile,
		UserAgent:    flagUserAgent,
		Cloudflare:   flagCloudflare,
		Loader:       loaderOverrides(c),
	}
	if len(flagURLs) > 0 {
		f.DefaultURL = flagURLs[0]
	}

	return f
}

// session is what every page command needs: the merged config, a logger and
// a credentialed HTTP client.
type session struct {
	cfg    *config.Config
	source string
	log    *ui.Logger
	client *http.Client
}

func newSession(f config.Flags) (*session, error) {
	cfg, used, err := config.LoadMerged(f)
	if err != nil {
		return nil, err
	}

	logSvc := ui.NewLoggerTo(os.Stderr, cfg.Debug, cfg.LogJSON)
	logSvc.Debugf("Config file: %s", strings.TrimSpace(used))

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout %q: %w", cfg.Timeout, err)
	}

	var debugLog interface{ Debugf(string, ...any) }
	if cfg.Debug {
		debugLog = logSvc
	}

	client, err := fetch.NewHTTPClient(fetch.HTTPClientOptions{
		Timeout:     timeout,
		UserAgent:   cfg.UserAgent,
		Cookie:      cfg.Cookie,
		CookieFile:  cfg.CookieFile,
		Cloudflare:  cfg.Cloudflare,
		DebugLogger: debugLog,
	})
	if err != nil {
		return nil, err
	}

	return &session{cfg: cfg, source: used, log: logSvc, client: client}, nil
}

// openPage fetches target and parses it into a page located at the address
// the server finally answered from.
func openPage(ctx context.Context, f *fetch.Client, target string) (*dom.Page, int, error) {
	resp, err := f.Fetch(ctx, target)
	if err != nil {
		return nil, 0, err
	}

	page, err := dom.Parse(bytes.NewReader(resp.Body), resp.URL)
	if err != nil {
		return nil, 0, err
	}

	return page, len(resp.Body), nil
}
