package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

const (
	MergeContent = "content"
	MergeElement = "element"
)

// Options is the fully resolved loader configuration. Empty selectors mean
// the feature is disabled, NumberOfPages 0 means the total is unknown.
type Options struct {
	ContainerSelector           string
	ItemSelector                string
	PaginationContainerSelector string
	PaginationLinksSelector     string
	LoadButton                  string
	LoadOnScroll                bool
	NumberOfPages               int
	CurrentPageNumber           int
	SyncSelectors               []string
	UpdateURL                   bool
	Merge                       string
}

func Defaults() Options {
	return Options{
		ContainerSelector:           ".articles-wrapper",
		ItemSelector:                "article",
		PaginationContainerSelector: ".page-pagination",
		PaginationLinksSelector:     ".page-pagination a",
		LoadButton:                  "",
		LoadOnScroll:                false,
		NumberOfPages:               0,
		CurrentPageNumber:           1,
		SyncSelectors:               []string{},
		UpdateURL:                   true,
		Merge:                       MergeContent,
	}
}

// Overrides is a partial Options. Nil fields leave the underlying value
// untouched. It decodes both the inline data-options JSON (camelCase) and
// profile YAML (snake_case); selectors, counts and lists accept false.
type Overrides struct {
	ContainerSelector           *string       `json:"containerSelector,omitempty" yaml:"container_selector,omitempty"`
	ItemSelector                *string       `json:"itemSelector,omitempty" yaml:"item_selector,omitempty"`
	PaginationContainerSelector *Selector     `json:"paginationContainerSelector,omitempty" yaml:"pagination_container_selector,omitempty"`
	PaginationLinksSelector     *Selector     `json:"paginationLinksSelector,omitempty" yaml:"pagination_links_selector,omitempty"`
	LoadButton                  *Selector     `json:"loadButton,omitempty" yaml:"load_button,omitempty"`
	LoadOnScroll                *bool         `json:"loadOnScroll,omitempty" yaml:"load_on_scroll,omitempty"`
	NumberOfPages               *Count        `json:"numberOfPages,omitempty" yaml:"number_of_pages,omitempty"`
	CurrentPageNumber           *Count        `json:"currentPageNumber,omitempty" yaml:"current_page_number,omitempty"`
	SyncSelectors               *SelectorList `json:"syncSelectors,omitempty" yaml:"sync_selectors,omitempty"`
	UpdateURL                   *bool         `json:"updateUrl,omitempty" yaml:"update_url,omitempty"`
	Merge                       *string       `json:"merge,omitempty" yaml:"merge,omitempty"`
}

// Over returns o with every field set in top replacing its counterpart.
func (o Overrides) Over(top Overrides) Overrides {
	if top.ContainerSelector != nil {
		o.ContainerSelector = top.ContainerSelector
	}
	if top.ItemSelector != nil {
		o.ItemSelector = top.ItemSelector
	}
	if top.PaginationContainerSelector != nil {
		o.PaginationContainerSelector = top.PaginationContainerSelector
	}
	if top.PaginationLinksSelector != nil {
		o.PaginationLinksSelector = top.PaginationLinksSelector
	}
	if top.LoadButton != nil {
		o.LoadButton = top.LoadButton
	}
	if top.LoadOnScroll != nil {
		o.LoadOnScroll = top.LoadOnScroll
	}
	if top.NumberOfPages != nil {
		o.NumberOfPages = top.NumberOfPages
	}
	if top.CurrentPageNumber != nil {
		o.CurrentPageNumber = top.CurrentPageNumber
	}
	if top.SyncSelectors != nil {
		o.SyncSelectors = top.SyncSelectors
	}
	if top.UpdateURL != nil {
		o.UpdateURL = top.UpdateURL
	}
	if top.Merge != nil {
		o.Merge = top.Merge
	}

	return o
}

// Apply writes the set fields of o onto base.
func (o Overrides) Apply(base Options) Options {
	if o.ContainerSelector != nil {
		base.ContainerSelector = *o.ContainerSelector
	}
	if o.ItemSelector != nil {
		base.ItemSelector = *o.ItemSelector
	}
	if o.PaginationContainerSelector != nil {
		base.PaginationContainerSelector = string(*o.PaginationContainerSelector)
	}
	if o.PaginationLinksSelector != nil {
		base.PaginationLinksSelector = string(*o.PaginationLinksSelector)
	}
	if o.LoadButton != nil {
		base.LoadButton = string(*o.LoadButton)
	}
	if o.LoadOnScroll != nil {
		base.LoadOnScroll = *o.LoadOnScroll
	}
	if o.NumberOfPages != nil {
		base.NumberOfPages = int(*o.NumberOfPages)
	}
	if o.CurrentPageNumber != nil {
		base.CurrentPageNumber = int(*o.CurrentPageNumber)
	}
	if o.SyncSelectors != nil {
		base.SyncSelectors = append([]string(nil), *o.SyncSelectors...)
	}
	if o.UpdateURL != nil {
		base.UpdateURL = *o.UpdateURL
	}
	if o.Merge != nil {
		base.Merge = *o.Merge
	}

	return base
}

// Merge resolves the final options: constructor values over defaults, inline
// values over both.
func Merge(defaults Options, ctor, inline Overrides) Options {
	out := ctor.Over(inline).Apply(defaults)
	if out.CurrentPageNumber <= 0 {
		out.CurrentPageNumber = 1
	}
	if out.NumberOfPages < 0 {
		out.NumberOfPages = 0
	}
	if out.SyncSelectors == nil {
		out.SyncSelectors = []string{}
	}

	return out
}

// ParseInline decodes a data-options attribute value. An empty value yields
// no overrides.
func ParseInline(raw string) (Overrides, error) {
	var o Overrides
	if len(bytes.TrimSpace([]byte(raw))) == 0 {
		return o, nil
	}
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return Overrides{}, fmt.Errorf("invalid inline options: %w", err)
	}

	return o, nil
}

var ErrInvalidOptions = errors.New("invalid options")

// Validate compiles every enabled selector so a bad one fails at startup
// rather than on the first load.
func Validate(o Options) error {
	if o.ContainerSelector == "" {
		return fmt.Errorf("%w: container selector is required", ErrInvalidOptions)
	}
	if o.ItemSelector == "" {
		return fmt.Errorf("%w: item selector is required", ErrInvalidOptions)
	}

	check := []string{
		o.ContainerSelector,
		o.ItemSelector,
		o.ContainerSelector + " " + o.ItemSelector,
		o.PaginationContainerSelector,
		o.PaginationLinksSelector,
		o.LoadButton,
	}
	check = append(check, o.SyncSelectors...)

	for _, sel := range check {
		if sel == "" {
			continue
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return fmt.Errorf("%w: selector %q: %v", ErrInvalidOptions, sel, err)
		}
	}

	switch o.Merge {
	case MergeContent, MergeElement:
	default:
		return fmt.Errorf("%w: unknown merge strategy %q", ErrInvalidOptions, o.Merge)
	}

	if o.CurrentPageNumber < 1 {
		return fmt.Errorf("%w: current page number must be positive", ErrInvalidOptions)
	}

	return nil
}

// Selector is a CSS selector that may be switched off with false.
type Selector string

func (s *Selector) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "false" {
		*s = ""
		return nil
	}

	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("selector must be a string or false: %w", err)
	}
	*s = Selector(v)

	return nil
}

func (s Selector) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("false"), nil
	}

	return json.Marshal(string(s))
}

func (s *Selector) UnmarshalYAML(n *yaml.Node) error {
	if isFalse(n) {
		*s = ""
		return nil
	}

	var v string
	if err := n.Decode(&v); err != nil {
		return err
	}
	*s = Selector(v)

	return nil
}

func (s Selector) MarshalYAML() (any, error) {
	if s == "" {
		return false, nil
	}

	return string(s), nil
}

// Count is a page count or number where false means unknown.
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "false" {
		*c = 0
		return nil
	}

	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("count must be a number or false: %w", err)
	}
	*c = Count(v)

	return nil
}

func (c *Count) UnmarshalYAML(n *yaml.Node) error {
	if isFalse(n) {
		*c = 0
		return nil
	}

	var v int
	if err := n.Decode(&v); err != nil {
		return err
	}
	*c = Count(v)

	return nil
}

// SelectorList is a list of selectors where false means empty.
type SelectorList []string

func (l *SelectorList) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "false" {
		*l = SelectorList{}
		return nil
	}

	var v []string
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("sync selectors must be a list or false: %w", err)
	}
	*l = SelectorList(v)

	return nil
}

func (l *SelectorList) UnmarshalYAML(n *yaml.Node) error {
	if isFalse(n) {
		*l = SelectorList{}
		return nil
	}

	var v []string
	if err := n.Decode(&v); err != nil {
		return err
	}
	*l = SelectorList(v)

	return nil
}

func isFalse(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!bool" && (n.Value == "false" || n.Value == "False" || n.Value == "FALSE")
}

// Ptr is a helper for building Overrides literals.
func Ptr[T any](v T) *T {
	return &v
}
