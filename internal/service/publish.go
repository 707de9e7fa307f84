package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/docrelay/internal/banner"
	"github.com/raphaelgruber/docrelay/internal/config"
	"github.com/raphaelgruber/docrelay/internal/devto"
	"github.com/raphaelgruber/docrelay/internal/fetch"
	"github.com/raphaelgruber/docrelay/internal/models"
	"github.com/raphaelgruber/docrelay/internal/parser"
	"github.com/raphaelgruber/docrelay/internal/summarize"
)

// PageFetcher retrieves a source article.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// BannerProducer creates a banner and returns its public URL.
type BannerProducer interface {
	Produce(ctx context.Context, req banner.Request) (string, error)
}

// Summarizer writes the cross-post markdown.
type Summarizer interface {
	Summarize(ctx context.Context, in summarize.Input) (string, error)
}

// ArticlePublisher posts a finished article.
type ArticlePublisher interface {
	Publish(ctx context.Context, a devto.Article) (*devto.Published, error)
}

// PublishSettings are the configuration values the pipeline reads.
type PublishSettings struct {
	Caption      string
	PromptStyle  string
	CompanyName  string
	CompanyBlurb string
	CanonicalURL string
	InlineBanner bool
	SummaryInput string
}

// SettingsFromConfig extracts PublishSettings from cfg.
func SettingsFromConfig(cfg config.Config) PublishSettings {
	return PublishSettings{
		Caption:      cfg.BannerCaption,
		PromptStyle:  cfg.BannerPromptStyle,
		CompanyName:  cfg.CompanyName,
		CompanyBlurb: cfg.CompanyBlurb,
		CanonicalURL: cfg.CanonicalURL,
		InlineBanner: cfg.InlineBanner,
		SummaryInput: cfg.SummaryInput,
	}
}

// PublishOptions mirror the publish command flags.
type PublishOptions struct {
	URL           string
	Title         string
	Tags          []string
	LockTitle     bool
	Banner        string
	Canonical     string
	AutoBanner    bool
	BannerPrompt  string
	BannerBaseURL string
	Publish       bool
}

// PublishResult is the outcome of one pipeline run.
type PublishResult struct {
	Draft     *models.Draft
	Published *devto.Published // nil on dry runs
}

// PublishService runs fetch, banner, summarize, post-process and publish for one URL.
type PublishService struct {
	fetcher    PageFetcher
	banners    BannerProducer
	summarizer Summarizer
	publisher  ArticlePublisher
	settings   PublishSettings
}

// NewPublishService wires the pipeline. banners and publisher may be nil when
// the run never needs them; requesting them then fails with a clear error.
func NewPublishService(fetcher PageFetcher, banners BannerProducer, summarizer Summarizer, publisher ArticlePublisher, settings PublishSettings) *PublishService {
	return &PublishService{
		fetcher:    fetcher,
		banners:    banners,
		summarizer: summarizer,
		publisher:  publisher,
		settings:   settings,
	}
}

// Run executes the pipeline. Without opts.Publish the final markdown is returned unsent.
func (s *PublishService) Run(ctx context.Context, opts PublishOptions) (*PublishResult, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("url is required")
	}
	if opts.Publish && s.publisher == nil {
		return nil, devto.ErrMissingAPIKey
	}

	draft, err := s.draft(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := s.attachBanner(ctx, draft, opts); err != nil {
		return nil, err
	}

	input := draft.Text
	if s.settings.SummaryInput == "markdown" && draft.Markdown != "" {
		input = draft.Markdown
	}
	summary, err := s.summarizer.Summarize(ctx, summarize.Input{
		Title:      draft.Title,
		URL:        draft.SourceURL,
		Content:    input,
		MainPoints: draft.MainPoints,
		Links:      draft.Links,
		BannerURL:  draft.BannerURL,
		LockTitle:  draft.LockTitle,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	draft.Body = s.postProcess(summary, draft)
	result := &PublishResult{Draft: draft}

	if !opts.Publish {
		slog.Info("dry run, article not sent", "url", draft.SourceURL, "title", draft.Title)
		return result, nil
	}

	published, err := s.publisher.Publish(ctx, devto.Article{
		Title:        draft.Title,
		BodyMarkdown: draft.Body,
		Tags:         draft.Tags,
		Published:    true,
		CanonicalURL: draft.CanonicalURL,
	})
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	result.Published = published
	return result, nil
}

func (s *PublishService) draft(ctx context.Context, opts PublishOptions) (*models.Draft, error) {
	page, err := s.fetcher.Fetch(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = page.Title
	}
	canonical := firstNonEmpty(opts.Canonical, s.settings.CanonicalURL, opts.URL)

	return &models.Draft{
		SourceURL:    opts.URL,
		Title:        title,
		LockTitle:    opts.LockTitle || strings.TrimSpace(opts.Title) != "",
		Text:         page.Text,
		Markdown:     page.Markdown,
		MainPoints:   page.MainPoints,
		Links:        page.Links,
		Tags:         opts.Tags,
		CanonicalURL: canonical,
		BannerURL:    strings.TrimSpace(opts.Banner),
	}, nil
}

func (s *PublishService) attachBanner(ctx context.Context, draft *models.Draft, opts PublishOptions) error {
	if draft.BannerURL != "" || !opts.AutoBanner {
		return nil
	}
	if s.banners == nil {
		return errors.New("auto banner requested but no banner producer is configured")
	}

	prompt := strings.TrimSpace(opts.BannerPrompt)
	if prompt == "" {
		prompt = banner.BuildPrompt(draft.Title, draft.Text, draft.Tags, s.settings.Caption, s.settings.PromptStyle)
	}
	url, err := s.banners.Produce(ctx, banner.Request{
		Prompt:  prompt,
		Title:   draft.Title,
		Caption: s.settings.Caption,
		BaseURL: opts.BannerBaseURL,
	})
	if err != nil {
		return fmt.Errorf("generate banner: %w", err)
	}
	draft.BannerURL = url
	return nil
}

// postProcess applies the markdown transforms in their fixed order.
func (s *PublishService) postProcess(summary string, draft *models.Draft) string {
	body := parser.RemoveLeadingTitle(summary, draft.Title)
	if draft.BannerURL != "" {
		body = parser.EnsureCoverImage(body, draft.BannerURL)
		if s.settings.InlineBanner {
			body = parser.EnsureBanner(body, draft.BannerURL)
		}
	}

	if meta, err := parser.ParseFrontMatter(body); err != nil {
		slog.Warn("generated front matter is not valid YAML", "error", err)
	} else if t, ok := meta["title"].(string); ok && t != draft.Title {
		slog.Warn("front matter title differs from article title", "front_matter", t, "title", draft.Title)
	}

	return parser.AppendAbout(body, s.settings.CompanyName, s.settings.CompanyBlurb)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
