package dom

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Resolve turns href into an absolute address relative to base. Unparsable
// input is returned unchanged.
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return base
	}

	u, err := url.Parse(href)
	if err == nil && u.IsAbs() {
		return u.String()
	}
	if err != nil {
		return href
	}

	b, err := url.Parse(base)
	if err != nil {
		return href
	}

	return b.ResolveReference(u).String()
}

// Matches reports whether the first node of sel matches selector.
func Matches(sel *goquery.Selection, selector string) bool {
	if selector == "" || sel == nil || sel.Length() == 0 {
		return false
	}

	m, err := cascadia.ParseGroup(selector)
	if err != nil {
		return false
	}

	return m.Match(sel.Get(0))
}

// Attached reports whether n still hangs off a document root.
func Attached(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type == html.DocumentNode {
			return true
		}
	}

	return false
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}

	return false
}

// ReplaceChildren empties dst and moves every child of src into it.
func ReplaceChildren(dst, src *goquery.Selection) {
	dst.Empty()
	dst.AppendSelection(src.Contents())
}

// CopyAttributes makes dst carry exactly the attributes of src.
func CopyAttributes(dst, src *html.Node) {
	dst.Attr = append(dst.Attr[:0:0], src.Attr...)
}

// Target returns the address an interactive element points at: the named
// attribute if present, then href, then value.
func Target(sel *goquery.Selection, attr string) string {
	if attr != "" {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if v, ok := sel.Attr("href"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}

	return strings.TrimSpace(Value(sel))
}

// Value is the current value of a form control. For select elements it is the
// value of the selected option, falling back to the first option.
func Value(sel *goquery.Selection) string {
	if goquery.NodeName(sel) != "select" {
		v, _ := sel.Attr("value")
		return v
	}

	opt := sel.Find("option[selected]").First()
	if opt.Length() == 0 {
		opt = sel.Find("option").First()
	}
	if v, ok := opt.Attr("value"); ok {
		return v
	}

	return strings.TrimSpace(opt.Text())
}
