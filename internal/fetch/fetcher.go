// Package fetch is the markup transport used by the page loader: one
// credentialed GET per load, redirects followed, the final address reported
// back so callers can record where they actually ended up.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
)

var ErrStatus = errors.New("unexpected HTTP status")

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Response is a fully read page.
type Response struct {
	// Requested is the address that was asked for.
	Requested string
	// URL is the final address after redirects.
	URL  string
	Body []byte
}

// Redirected reports whether the final address differs from the requested one.
func (r *Response) Redirected() bool {
	return r.URL != r.Requested
}

type Client struct {
	http     *http.Client
	progress func(url string, done int64)
}

type Option func(*Client)

// WithProgress reports body bytes as they are read.
func WithProgress(fn func(url string, done int64)) Option {
	return func(c *Client) {
		c.progress = fn
	}
}

// New wraps hc. A nil hc gets a client of its own with a cookie jar, so
// session cookies set by one page are sent with the next.
func New(hc *http.Client, opts ...Option) *Client {
	if hc == nil {
		var err error
		if hc, err = NewHTTPClient(HTTPClientOptions{}); err != nil {
			hc = http.DefaultClient
		}
	}

	c := &Client{http: hc}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch retrieves target and reads the whole body.
func (c *Client) Fetch(ctx context.Context, target string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	final := target
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: final, Code: resp.StatusCode}
	}

	var progress func(int64)
	if c.progress != nil {
		progress = func(done int64) { c.progress(final, done) }
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if _, err := copyWithProgress(&buf, resp.Body, progress); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", final, err)
	}

	return &Response{
		Requested: req.URL.String(),
		URL:       final,
		Body:      buf.Bytes(),
	}, nil
}
