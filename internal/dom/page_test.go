package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage_History(t *testing.T) {
	page, err := ParseString(`<html><body></body></html>`, "https://example.com/1")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/1", page.Location())

	page.PushState("https://example.com/2")
	assert.Equal(t, "https://example.com/2", page.Location())
	assert.Equal(t, []string{"https://example.com/1", "https://example.com/2"}, page.History())
}

func TestPage_Bind(t *testing.T) {
	page, err := ParseString(`<html><body></body></html>`, "https://example.com/")
	require.NoError(t, err)

	body := page.Document().Find("body").Get(0)

	_, ok := page.Binding(body)
	assert.False(t, ok)

	got, ok := page.Bind(body, "first")
	assert.True(t, ok)
	assert.Equal(t, "first", got)

	got, ok = page.Bind(body, "second")
	assert.False(t, ok)
	assert.Equal(t, "first", got)

	v, ok := page.Binding(body)
	assert.True(t, ok)
	assert.Equal(t, "first", v)
}

func TestPage_HTML(t *testing.T) {
	page, err := ParseString(`<p class="x">hi</p>`, "https://example.com/")
	require.NoError(t, err)

	out, err := page.HTML()
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `<p class="x">hi</p>`))
	assert.True(t, strings.HasPrefix(out, "<html>"))
}
