package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!doctype html>
<html>
<head><title>  Shipping Agents Faster </title><style>body{color:red}</style></head>
<body>
  <script>var tracking = true;</script>
  <h1>Shipping Agents Faster</h1>
  <p>Agents   automate
  toil.</p>
  <h2>Why it matters</h2>
  <ul><li>Less toil</li><li>Why it matters</li></ul>
  <a href="/docs">Docs</a>
  <a href="https://example.com/docs">Docs again</a>
  <a href="https://other.example/x"></a>
  <noscript>enable js</noscript>
  <svg><text>logo</text></svg>
</body>
</html>`

func TestFetchParsesArticle(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	page, err := New().Fetch(context.Background(), srv.URL+"/blog/post")
	require.NoError(t, err)

	assert.Equal(t, UserAgent, gotUA)
	assert.Equal(t, "Shipping Agents Faster", page.Title)
	assert.NotContains(t, page.Text, "tracking")
	assert.NotContains(t, page.Text, "enable js")
	assert.NotContains(t, page.Text, "logo")
	assert.Contains(t, page.Text, "Agents   automate\ntoil.")

	assert.Equal(t, []string{"Shipping Agents Faster", "Why it matters", "Less toil"}, page.MainPoints)

	require.Len(t, page.Links, 3)
	assert.Equal(t, srv.URL+"/docs", page.Links[0].URL)
	assert.Equal(t, "Docs", page.Links[0].Text)
	assert.Equal(t, "https://example.com/docs", page.Links[1].URL)
	assert.Equal(t, "https://other.example/x", page.Links[2].Text, "empty anchor text falls back to the URL")

	assert.Contains(t, page.Markdown, "# Shipping Agents Faster")
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New().Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, srv.URL, httpErr.URL)
}

func TestParseDefaults(t *testing.T) {
	words := strings.Repeat("w ", 80)
	page, err := New().Parse(strings.NewReader("<html><body><p>"+words+"</p></body></html>"), "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, "Untitled", page.Title)
	require.Len(t, page.MainPoints, 1)
	assert.Len(t, strings.Fields(page.MainPoints[0]), 60)
	assert.Empty(t, page.Links)
}

func TestParseCapsMainPoints(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "<h2>Section %d</h2>", i)
	}
	b.WriteString("<h3>" + strings.Repeat("long ", 60) + "</h3>")
	b.WriteString("</body></html>")

	page, err := New().Parse(strings.NewReader(b.String()), "https://example.com")
	require.NoError(t, err)
	assert.Len(t, page.MainPoints, 8)
	assert.Equal(t, "Section 0", page.MainPoints[0])
}

func TestParseTruncatesLongPoints(t *testing.T) {
	long := strings.Repeat("abcd ", 60)
	page, err := New().Parse(strings.NewReader("<html><body><h2>"+long+"</h2></body></html>"), "https://example.com")
	require.NoError(t, err)
	require.Len(t, page.MainPoints, 1)
	assert.True(t, strings.HasSuffix(page.MainPoints[0], "…"))
	assert.LessOrEqual(t, len([]rune(page.MainPoints[0])), 238)
}
