package scroll

import "github.com/PuerkitoBio/goquery"

// Layout is an optional grid or layout library that has to be re-run on
// freshly inserted items. Present is checked against the live document on
// every load.
type Layout interface {
	Present(doc *goquery.Document) bool
	Reinit(items *goquery.Selection)
}

// FoundationLayout targets pages that ship the Foundation framework. Inserted
// items are tagged with data-foundation-reinit so the page bootstrap can run
// Foundation on exactly those nodes once the merged document is rendered.
type FoundationLayout struct {
	// OnReinit, when set, is called instead of tagging the items.
	OnReinit func(items *goquery.Selection)
}

func (f FoundationLayout) Present(doc *goquery.Document) bool {
	return doc.Find(`script[src*="foundation"]`).Length() > 0
}

func (f FoundationLayout) Reinit(items *goquery.Selection) {
	if f.OnReinit != nil {
		f.OnReinit(items)
		return
	}

	items.SetAttr("data-foundation-reinit", "")
}
