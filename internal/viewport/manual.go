// Package viewport provides the visibility primitive the loader observes
// pagination through. Without a rendering engine there is no real geometry,
// so Manual lets the driver decide when the user has scrolled far enough.
package viewport

import (
	"sync"

	"golang.org/x/net/html"
)

type entry struct {
	margin    int
	onVisible func()
}

// Manual is a viewport whose observed elements become visible when Reveal is
// called, as if the user had scrolled to the end of the page.
type Manual struct {
	mu      sync.Mutex
	order   []*html.Node
	entries map[*html.Node]entry
}

func NewManual() *Manual {
	return &Manual{entries: map[*html.Node]entry{}}
}

// Observe registers target. Observing the same node again replaces its
// callback and keeps its position.
func (m *Manual) Observe(target *html.Node, margin int, onVisible func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[target]; !ok {
		m.order = append(m.order, target)
	}
	m.entries[target] = entry{margin: margin, onVisible: onVisible}
}

func (m *Manual) Unobserve(target *html.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[target]; !ok {
		return
	}
	delete(m.entries, target)

	for i, n := range m.order {
		if n == target {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Observed lists the watched nodes in registration order.
func (m *Manual) Observed() []*html.Node {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*html.Node(nil), m.order...)
}

// Margin returns the margin target was registered with.
func (m *Manual) Margin(target *html.Node) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[target]
	return e.margin, ok
}

// Reveal fires the callback of every observed node and reports how many
// fired. Callbacks run outside the lock so they may observe or unobserve.
func (m *Manual) Reveal() int {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.order))
	for _, n := range m.order {
		fns = append(fns, m.entries[n].onVisible)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}

	return len(fns)
}
