package util

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// TempSuffix marks files that are still being written.
const TempSuffix = ".lazyscroll-tmp"

// WriteFileAtomic writes data next to path and renames it into place, so
// readers never see a half-written document.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*"+TempSuffix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	fail := func(err error) error {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}

	if _, err := f.Write(data); err != nil {
		return fail(fmt.Errorf("write %s: %w", tmp, err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("sync %s: %w", tmp, err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := os.Chmod(tmp, 0644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}

	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// OutputName derives a file name from a page address, e.g.
// https://shop.example/news/?page=2 becomes shop.example_news_page_2.html.
func OutputName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return sanitize(rawURL) + ".html"
	}

	parts := []string{u.Host}
	if p := strings.Trim(u.Path, "/"); p != "" {
		parts = append(parts, p)
	}
	if u.RawQuery != "" {
		parts = append(parts, u.RawQuery)
	}

	return sanitize(strings.Join(parts, "_")) + ".html"
}

func sanitize(s string) string {
	s = unsafeName.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_.")
	if s == "" {
		return "page"
	}

	return s
}
