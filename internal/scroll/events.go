package scroll

import (
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// EventKind names a loader notification. The values match the DOM event
// names scripts listen for.
type EventKind string

const (
	EventInit            EventKind = "infiniteScrollInit"
	EventLoadingPage     EventKind = "infiniteScrollLoadingPage"
	EventLoadingFullPage EventKind = "infiniteScrollLoadingFullPage"
	EventNewItems        EventKind = "infiniteScrollNewItems"
	EventFullPageContent EventKind = "infiniteScrollFullPageContent"
	EventLoadedPage      EventKind = "infiniteScrollLoadedPage"
	EventPostLoad        EventKind = "post-load"
)

// Cancelable reports whether a handler returning false stops the action the
// event announces.
func (k EventKind) Cancelable() bool {
	return k == EventLoadingPage || k == EventLoadingFullPage
}

// Event is passed to every handler. Fields not relevant to Kind are zero.
//
// EventNewItems and EventFullPageContent are delivered while the page tree
// is locked; their handlers may read and modify Items and Document but must
// not call Page.Lock or start another load synchronously.
type Event struct {
	Kind   EventKind
	Loader *Loader

	// URL is the page being loaded.
	URL string
	// Reset is true for every event of a full-page replacement, starting with
	// EventLoadingFullPage, and false for incremental loads.
	Reset bool
	// Items are the inserted items, already part of the live document.
	Items *goquery.Selection
	// Document is the parsed markup of a full-page load.
	Document *goquery.Document
	// Trigger is the element whose interaction started the load.
	Trigger *goquery.Selection
}

// Handler reacts to an event. Returning false vetoes cancelable events and is
// ignored for the others.
type Handler func(ev *Event) bool

type handlers struct {
	mu sync.RWMutex
	m  map[EventKind][]Handler
}

func (h *handlers) add(kind EventKind, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.m == nil {
		h.m = map[EventKind][]Handler{}
	}
	h.m[kind] = append(h.m[kind], fn)
}

// dispatch runs every handler registered for the event, even after a veto,
// and reports whether the action may proceed.
func (h *handlers) dispatch(ev *Event) bool {
	h.mu.RLock()
	fns := append([]Handler(nil), h.m[ev.Kind]...)
	h.mu.RUnlock()

	proceed := true
	for _, fn := range fns {
		if !fn(ev) && ev.Kind.Cancelable() {
			proceed = false
		}
	}

	return proceed
}
