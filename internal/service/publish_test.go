package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raphaelgruber/docrelay/internal/banner"
	"github.com/raphaelgruber/docrelay/internal/devto"
	"github.com/raphaelgruber/docrelay/internal/fetch"
	"github.com/raphaelgruber/docrelay/internal/summarize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	page *fetch.Page
	err  error
}

func (f *stubFetcher) Fetch(context.Context, string) (*fetch.Page, error) {
	return f.page, f.err
}

type stubBanners struct {
	req banner.Request
	url string
}

func (b *stubBanners) Produce(_ context.Context, req banner.Request) (string, error) {
	b.req = req
	return b.url, nil
}

type stubSummarizer struct {
	in  summarize.Input
	out string
}

func (s *stubSummarizer) Summarize(_ context.Context, in summarize.Input) (string, error) {
	s.in = in
	return s.out, nil
}

type stubPublisher struct {
	article devto.Article
	calls   int
	err     error
}

func (p *stubPublisher) Publish(_ context.Context, a devto.Article) (*devto.Published, error) {
	p.calls++
	p.article = a
	if p.err != nil {
		return nil, p.err
	}
	return &devto.Published{ID: 7, URL: "https://dev.to/acme/post"}, nil
}

func testPage() *fetch.Page {
	return &fetch.Page{
		Title:      "Page Title",
		Text:       "plain text",
		Markdown:   "# Page Title\n\nmarkdown body",
		MainPoints: []string{"one", "two"},
	}
}

func testSettings() PublishSettings {
	return PublishSettings{
		Caption:      "caption",
		CompanyName:  "Infrasity",
		CompanyBlurb: "Infrasity blurb.",
	}
}

func TestPublishServiceDryRun(t *testing.T) {
	sum := &stubSummarizer{out: "# Page Title\n\n## Intro\nHello"}
	pub := &stubPublisher{}
	svc := NewPublishService(&stubFetcher{page: testPage()}, nil, sum, pub, testSettings())

	res, err := svc.Run(context.Background(), PublishOptions{URL: "https://example.com/post", Tags: []string{"go"}})
	require.NoError(t, err)

	assert.Nil(t, res.Published)
	assert.Zero(t, pub.calls)
	assert.Equal(t, "Page Title", res.Draft.Title)
	assert.False(t, res.Draft.LockTitle)
	assert.Equal(t, "https://example.com/post", res.Draft.CanonicalURL)
	assert.Equal(t, "plain text", sum.in.Content)
	assert.Equal(t, []string{"one", "two"}, sum.in.MainPoints)
	assert.Equal(t, "## Intro\nHello\n\n---\n\n## About Infrasity\n\nInfrasity blurb.", res.Draft.Body)
}

func TestPublishServicePublishesWithBanner(t *testing.T) {
	banners := &stubBanners{url: "https://cdn.example/banner-1.png"}
	sum := &stubSummarizer{out: "## Intro\nHello"}
	pub := &stubPublisher{}
	settings := testSettings()
	settings.InlineBanner = true
	settings.CanonicalURL = "https://env.example/canonical"
	svc := NewPublishService(&stubFetcher{page: testPage()}, banners, sum, pub, settings)

	res, err := svc.Run(context.Background(), PublishOptions{
		URL:           "https://example.com/post",
		Title:         "Custom Title",
		AutoBanner:    true,
		BannerBaseURL: "http://localhost:5000/static/banners",
		Publish:       true,
	})
	require.NoError(t, err)

	assert.True(t, res.Draft.LockTitle, "an explicit title locks it")
	assert.True(t, sum.in.LockTitle)
	assert.Equal(t, "https://cdn.example/banner-1.png", sum.in.BannerURL)
	assert.Contains(t, banners.req.Prompt, "blog banner for 'Custom Title'")
	assert.Equal(t, "Custom Title", banners.req.Title)
	assert.Equal(t, "http://localhost:5000/static/banners", banners.req.BaseURL)

	body := pub.article.BodyMarkdown
	assert.True(t, strings.HasPrefix(body, "---\ncover_image: https://cdn.example/banner-1.png\n---\n\n![Banner](https://cdn.example/banner-1.png)\n\n## Intro"), body)
	assert.Equal(t, "Custom Title", pub.article.Title)
	assert.Equal(t, "https://env.example/canonical", pub.article.CanonicalURL)
	assert.True(t, pub.article.Published)
	require.NotNil(t, res.Published)
	assert.Equal(t, "https://dev.to/acme/post", res.Published.URL)
}

func TestPublishServiceExplicitBannerSkipsProducer(t *testing.T) {
	sum := &stubSummarizer{out: "body"}
	svc := NewPublishService(&stubFetcher{page: testPage()}, nil, sum, nil, testSettings())

	res, err := svc.Run(context.Background(), PublishOptions{
		URL:        "https://example.com/post",
		Banner:     "https://cdn.example/given.png",
		AutoBanner: true,
		Canonical:  "https://flag.example/c",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/given.png", res.Draft.BannerURL)
	assert.Equal(t, "https://flag.example/c", res.Draft.CanonicalURL)
	assert.NotContains(t, res.Draft.Body, "![Banner]", "inline banner is off by default")
}

func TestPublishServiceMarkdownInput(t *testing.T) {
	sum := &stubSummarizer{out: "body"}
	settings := testSettings()
	settings.SummaryInput = "markdown"
	svc := NewPublishService(&stubFetcher{page: testPage()}, nil, sum, nil, settings)

	_, err := svc.Run(context.Background(), PublishOptions{URL: "https://example.com/post"})
	require.NoError(t, err)
	assert.Equal(t, "# Page Title\n\nmarkdown body", sum.in.Content)
}

func TestPublishServiceErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewPublishService(&stubFetcher{page: testPage()}, nil, &stubSummarizer{}, nil, testSettings())
	_, err := svc.Run(ctx, PublishOptions{URL: "https://example.com", Publish: true})
	assert.ErrorIs(t, err, devto.ErrMissingAPIKey)

	_, err = svc.Run(ctx, PublishOptions{})
	assert.ErrorContains(t, err, "url is required")

	_, err = svc.Run(ctx, PublishOptions{URL: "https://example.com", AutoBanner: true})
	assert.ErrorContains(t, err, "no banner producer")

	httpErr := &fetch.HTTPError{StatusCode: 404, URL: "https://example.com"}
	svc = NewPublishService(&stubFetcher{err: httpErr}, nil, &stubSummarizer{}, nil, testSettings())
	_, err = svc.Run(ctx, PublishOptions{URL: "https://example.com"})
	var target *fetch.HTTPError
	assert.True(t, errors.As(err, &target))

	pub := &stubPublisher{err: devto.ErrCanonicalTaken}
	svc = NewPublishService(&stubFetcher{page: testPage()}, nil, &stubSummarizer{out: "x"}, pub, testSettings())
	_, err = svc.Run(ctx, PublishOptions{URL: "https://example.com", Publish: true})
	assert.ErrorIs(t, err, devto.ErrCanonicalTaken)
}
