// Package scroll implements the incremental page loader: it appends the items
// of following pages to a container of a live document, or swaps the whole
// page content for full-page navigations, keeping pagination and synced
// regions consistent with the fetched markup.
//
// A Loader is bound to one root element of a dom.Page. Loads are triggered
// by the viewport (pagination scrolled into view), by interactions passed to
// Click and Change, or directly through LoadNextPage and LoadPage. At most one
// load per loader is in flight at any time.
package scroll
