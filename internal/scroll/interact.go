package scroll

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/siit-dev/lazy-infinite-scroll/internal/dom"
)

// Click handles a click on target and reports whether the loader acted on
// it. At most one action runs per click, checked in this order:
//
//   - an element inside the root carrying data-load-full-page replaces the
//     page with the address it names (falling back to href, then value);
//   - the configured load button loads the next page;
//   - a pagination link replaces the page with its href.
func (l *Loader) Click(ctx context.Context, target *goquery.Selection) (bool, error) {
	if target == nil || target.Length() == 0 || !l.isInitialized() {
		return false, nil
	}
	target = target.First()
	cfg := l.Options()

	l.page.Lock()
	inRoot := dom.Contains(l.root.Get(0), target.Get(0))

	var fullPage string
	if inRoot && dom.Matches(target, "["+AttrLoadFullPage+"]") {
		fullPage = dom.Target(target, AttrLoadFullPage)
	}
	isButton := dom.Matches(target, cfg.LoadButton)

	var link string
	if dom.Matches(target, cfg.PaginationLinksSelector) {
		link = dom.Target(target, "")
	}
	l.page.Unlock()

	switch {
	case fullPage != "":
		return true, l.loadFullPage(ctx, fullPage, target)
	case isButton:
		_, err := l.LoadNextPage(ctx)
		return true, err
	case link != "":
		return true, l.loadFullPage(ctx, link, target)
	}

	return false, nil
}

// Change handles a change on a data-load-full-page-select control inside the
// root by loading the address of its current value.
func (l *Loader) Change(ctx context.Context, target *goquery.Selection) (bool, error) {
	if target == nil || target.Length() == 0 || !l.isInitialized() {
		return false, nil
	}
	target = target.First()

	l.page.Lock()
	var addr string
	if dom.Contains(l.root.Get(0), target.Get(0)) && dom.Matches(target, "["+AttrLoadFullPageSelect+"]") {
		addr = dom.Target(target, AttrLoadFullPage)
	}
	l.page.Unlock()

	if addr == "" {
		return false, nil
	}

	return true, l.loadFullPage(ctx, addr, target)
}

// Navigate replaces the page with target as if a full-page link had been
// followed. A vetoed EventLoadingFullPage yields ErrCanceled.
func (l *Loader) Navigate(ctx context.Context, target string) (*Result, error) {
	if !l.isInitialized() {
		return nil, ErrNotInitialized
	}

	addr := dom.Resolve(l.page.Location(), target)
	if !l.events.dispatch(&Event{Kind: EventLoadingFullPage, Loader: l, URL: addr, Reset: true}) {
		LoadsCanceled.Inc()
		return nil, ErrCanceled
	}

	return l.LoadPage(ctx, addr, true)
}

func (l *Loader) loadFullPage(ctx context.Context, target string, trigger *goquery.Selection) error {
	addr := dom.Resolve(l.page.Location(), target)
	if !l.events.dispatch(&Event{Kind: EventLoadingFullPage, Loader: l, URL: addr, Reset: true, Trigger: trigger}) {
		LoadsCanceled.Inc()
		l.log.Debug().Str("url", addr).Msg("full-page load vetoed")
		return ErrCanceled
	}

	_, err := l.LoadPage(ctx, addr, true)
	return err
}
