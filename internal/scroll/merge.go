package scroll

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/siit-dev/lazy-infinite-scroll/internal/config"
	"github.com/siit-dev/lazy-infinite-scroll/internal/dom"
)

// Merger brings a live region in line with its counterpart from freshly
// fetched markup. It is used for the pagination element and every sync
// selector. Implementations may move nodes out of incoming.
type Merger interface {
	Merge(live, incoming *goquery.Selection)
}

type MergerFunc func(live, incoming *goquery.Selection)

func (f MergerFunc) Merge(live, incoming *goquery.Selection) {
	f(live, incoming)
}

// MergeContent replaces the inner content of live wholesale.
var MergeContent = MergerFunc(func(live, incoming *goquery.Selection) {
	dom.ReplaceChildren(live, incoming)
})

// MergeElement also takes over the attributes of incoming, so class or data
// changes on the region itself come through. The live node keeps its
// identity, which keeps viewport observation valid.
var MergeElement = MergerFunc(func(live, incoming *goquery.Selection) {
	dom.CopyAttributes(live.Get(0), incoming.Get(0))
	dom.ReplaceChildren(live, incoming)
})

// MergerByName maps the configuration names to the built-in strategies.
func MergerByName(name string) (Merger, error) {
	switch name {
	case "", config.MergeContent:
		return MergeContent, nil
	case config.MergeElement:
		return MergeElement, nil
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", name)
	}
}
