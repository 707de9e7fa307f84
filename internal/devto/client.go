// Package devto publishes articles through the Dev.to (Forem) REST API.
package devto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://dev.to"
	requestTimeout = 20 * time.Second

	// Forem throttles article creation.
	defaultInterval = 5 * time.Second
)

var (
	// ErrMissingAPIKey is returned when no DEVTO_API_KEY is configured.
	ErrMissingAPIKey = errors.New("DEVTO_API_KEY missing")
	// ErrCanonicalTaken is returned when another article already claims the canonical URL.
	ErrCanonicalTaken = errors.New("canonical url has already been taken")
)

// APIError is a non-2xx response from Dev.to.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Dev.to publish failed (%d): %s", e.StatusCode, e.Body)
}

// Article is the publish payload.
type Article struct {
	Title        string   `json:"title"`
	BodyMarkdown string   `json:"body_markdown"`
	Tags         []string `json:"tags"`
	Published    bool     `json:"published"`
	CanonicalURL string   `json:"canonical_url,omitempty"`
}

// Published is the subset of the create-article response we use.
type Published struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// Client posts articles to Dev.to.
type Client struct {
	apiKey     string
	baseURL    string
	company    string
	blurb      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Forem instance.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimSpace(u); u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithAbout sets the About section appended to every article.
func WithAbout(company, blurb string) Option {
	return func(c *Client) { c.company, c.blurb = company, strings.TrimSpace(blurb) }
}

// WithLimiter replaces the request pacing limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New creates a client. An empty apiKey yields ErrMissingAPIKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Every(defaultInterval), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Publish creates an article. The About section is appended when the body lacks it.
func (c *Client) Publish(ctx context.Context, a Article) (*Published, error) {
	if c.blurb != "" && !strings.Contains(a.BodyMarkdown, c.blurb) {
		a.BodyMarkdown = strings.TrimRight(a.BodyMarkdown, " \t\r\n") + "\n\n\n\n## About " + c.company + "\n\n" + c.blurb
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}

	raw, err := json.Marshal(map[string]Article{"article": a})
	if err != nil {
		return nil, fmt.Errorf("encode article: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/articles", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.forem.api-v1+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post article: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		if resp.StatusCode == http.StatusUnprocessableEntity && a.CanonicalURL != "" &&
			strings.Contains(strings.ToLower(apiErr.Body), ErrCanonicalTaken.Error()) {
			return nil, fmt.Errorf("%w: %w", ErrCanonicalTaken, apiErr)
		}
		return nil, apiErr
	}

	var out Published
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	slog.Info("published article", "title", a.Title, "url", out.URL, "published", a.Published)
	return &out, nil
}
