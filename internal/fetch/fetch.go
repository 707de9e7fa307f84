// Package fetch downloads an article page and extracts the pieces the
// summarizer needs: title, readable text, links and main points.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/raphaelgruber/docrelay/internal/models"
	"golang.org/x/net/html"
)

const (
	// UserAgent is sent with every page request; some blogs reject unknown agents.
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X) AppleWebKit/537.36 (KHTML, like Gecko) Chrome Safari"

	defaultTimeout = 20 * time.Second
	maxLinkText    = 200
	maxPointLen    = 240
	maxMainPoints  = 8
	fallbackWords  = 60
)

// HTTPError represents a non-2xx response.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Page is the extracted content of one article.
type Page struct {
	Title      string
	Text       string
	Links      []models.Link
	MainPoints []string
	Markdown   string
}

// Fetcher retrieves and parses article pages.
type Fetcher struct {
	client    *http.Client
	converter *md.Converter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New creates a Fetcher with a 20s request timeout.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: defaultTimeout},
		converter: md.NewConverter("", true, nil),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads pageURL and extracts its content. Non-2xx responses return *HTTPError.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	page, err := f.Parse(resp.Body, pageURL)
	if err != nil {
		return nil, err
	}
	slog.Debug("fetched page", "url", pageURL, "title", page.Title, "links", len(page.Links), "points", len(page.MainPoints))
	return page, nil
}

// Parse extracts a Page from an HTML document. baseURL resolves relative links.
func (f *Fetcher) Parse(r io.Reader, baseURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{Title: extractTitle(doc)}

	doc.Find("script, style, noscript, svg").Remove()

	page.Text = extractText(doc)
	page.Links = extractLinks(doc, baseURL)
	page.MainPoints = extractMainPoints(doc, page.Text)

	if body, err := doc.Find("body").Html(); err == nil && strings.TrimSpace(body) != "" {
		markdown, convErr := f.converter.ConvertString(body)
		if convErr != nil {
			slog.Warn("html to markdown conversion failed", "url", baseURL, "error", convErr)
		} else {
			page.Markdown = strings.TrimSpace(markdown)
		}
	}

	return page, nil
}

func extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return "Untitled"
	}
	return title
}

// extractText joins every text node on its own line, dropping blank lines.
func extractText(doc *goquery.Document) string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			for _, line := range strings.Split(n.Data, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					lines = append(lines, line)
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(lines, "\n")
}

func extractLinks(doc *goquery.Document, baseURL string) []models.Link {
	base, _ := url.Parse(baseURL)
	seen := make(map[string]bool)
	var links []models.Link

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := resolve(base, href)
		if seen[abs] {
			return
		}
		seen[abs] = true

		text := strings.TrimSpace(a.Text())
		if text == "" {
			text = abs
		}
		links = append(links, models.Link{Text: models.Truncate(text, maxLinkText, maxLinkText, ""), URL: abs})
	})
	return links
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func extractMainPoints(doc *goquery.Document, text string) []string {
	var points []string
	add := func(s string) {
		clean := models.Truncate(models.CollapseSpace(s), maxPointLen, maxPointLen-3, "…")
		if clean == "" {
			return
		}
		for _, p := range points {
			if p == clean {
				return
			}
		}
		points = append(points, clean)
	}

	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		add(h.Text())
		return len(points) < maxMainPoints
	})
	if len(points) < maxMainPoints {
		doc.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
			add(li.Text())
			return len(points) < maxMainPoints
		})
	}

	if len(points) == 0 {
		words := strings.Fields(text)
		if len(words) > fallbackWords {
			words = words[:fallbackWords]
		}
		if len(words) > 0 {
			add(strings.Join(words, " "))
		}
	}
	return points
}
