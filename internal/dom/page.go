package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a live HTML document together with the navigation state a browser
// window would hold for it: the current location and the history stack.
//
// The tree itself is guarded by Lock/Unlock; callers that read or mutate
// Document() from more than one goroutine must hold it. Location, history and
// bindings have their own lock and are safe to use at any time.
type Page struct {
	tree sync.Mutex

	mu      sync.RWMutex
	doc     *goquery.Document
	history []string
	bound   map[*html.Node]any
}

func NewPage(doc *goquery.Document, location string) *Page {
	return &Page{
		doc:     doc,
		history: []string{location},
		bound:   map[*html.Node]any{},
	}
}

// Parse reads markup into a new Page located at location.
func Parse(r io.Reader, location string) (*Page, error) {
	doc, err := ParseDocument(r)
	if err != nil {
		return nil, err
	}

	return NewPage(doc, location), nil
}

func ParseString(markup, location string) (*Page, error) {
	return Parse(strings.NewReader(markup), location)
}

// ParseDocument parses markup into a detached document.
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	return doc, nil
}

func (p *Page) Lock()   { p.tree.Lock() }
func (p *Page) Unlock() { p.tree.Unlock() }

func (p *Page) Document() *goquery.Document {
	return p.doc
}

// Location is the address of the page currently displayed.
func (p *Page) Location() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.history[len(p.history)-1]
}

// PushState records a new history entry without touching the document.
func (p *Page) PushState(location string) {
	p.mu.Lock()
	p.history = append(p.history, location)
	p.mu.Unlock()
}

func (p *Page) History() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]string(nil), p.history...)
}

// Bind associates v with node unless something is already bound to it, in
// which case the existing value is returned with ok false.
func (p *Page) Bind(node *html.Node, v any) (existing any, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, found := p.bound[node]; found {
		return cur, false
	}
	p.bound[node] = v

	return v, true
}

func (p *Page) Binding(node *html.Node) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v, ok := p.bound[node]
	return v, ok
}

// HTML renders the whole document. The caller must hold the tree lock if
// loads may be running.
func (p *Page) HTML() (string, error) {
	var buf bytes.Buffer
	for _, n := range p.doc.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}

	return buf.String(), nil
}
