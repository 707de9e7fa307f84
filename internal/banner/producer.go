// Package banner produces article banners: rendered locally, generated via
// OpenAI Images, or both, then published under a base URL or uploaded to GitHub.
package banner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/docrelay/internal/config"
)

// ErrMissingAPIKey is returned when hosted generation is selected without an OpenAI key.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY missing. Set it or choose BANNER_PROVIDER=local.")

// ErrEmptyPrompt is returned when there is nothing to generate from.
var ErrEmptyPrompt = errors.New("banner prompt is empty")

// Mode selects the banner source.
type Mode string

// Banner modes.
const (
	ModeLocal  Mode = "local"
	ModeOpenAI Mode = "openai"
	ModeAuto   Mode = "auto"
)

const uploadProviderGitHub = "github"

// Uploader publishes a local banner file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// ImageGenerator creates a banner file from a prompt and returns its path.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request describes one banner to produce.
type Request struct {
	Prompt string
	// Title is drawn by the local renderer. When empty it is recovered from Prompt.
	Title   string
	Caption string
	// BaseURL overrides BANNER_BASE_URL for this request.
	BaseURL string
}

// Producer creates a banner and returns the URL it is reachable at.
type Producer struct {
	mode           Mode
	local          *LocalRenderer
	hosted         ImageGenerator
	baseURL        string
	uploadProvider string
	uploader       Uploader
	uploaderErr    error
}

// Option customizes a Producer.
type Option func(*Producer)

// WithHosted replaces the hosted generator.
func WithHosted(g ImageGenerator) Option {
	return func(p *Producer) { p.hosted = g }
}

// WithUploader replaces the uploader.
func WithUploader(u Uploader) Option {
	return func(p *Producer) { p.uploader, p.uploaderErr = u, nil }
}

// NewProducer wires a Producer from cfg.
func NewProducer(cfg config.Config, opts ...Option) (*Producer, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(cfg.BannerProvider)))
	if mode == "" {
		mode = ModeAuto
	}
	switch mode {
	case ModeLocal, ModeOpenAI, ModeAuto:
	default:
		return nil, fmt.Errorf("unsupported BANNER_PROVIDER %q (expected local, openai or auto)", cfg.BannerProvider)
	}

	p := &Producer{
		mode:           mode,
		local:          NewLocalRenderer(cfg.BannerDir),
		baseURL:        cfg.BannerBaseURL,
		uploadProvider: cfg.BannerUploadProvider,
	}
	if cfg.OpenAIAPIKey != "" {
		p.hosted = NewHostedGenerator(NewOpenAIClient(cfg.OpenAIAPIKey, ""), HostedConfig{
			Model:      cfg.OpenAIImageModel,
			Size:       cfg.OpenAIImageSize,
			OutputSize: cfg.BannerOutputSize,
			DumpJSON:   cfg.BannerDumpJSON,
			Dir:        cfg.BannerDir,
		})
	}
	if p.uploadProvider == "" || p.uploadProvider == uploadProviderGitHub {
		// Configuration errors surface only when an upload is actually needed.
		p.uploader, p.uploaderErr = NewGitHubUploader(GitHubConfig{
			Token:      cfg.GitHubToken,
			Repo:       cfg.GitHubRepo,
			Branch:     cfg.GitHubBranch,
			PathPrefix: cfg.GitHubPathPrefix,
		})
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Produce creates the banner per the configured mode and returns its URL.
func (p *Producer) Produce(ctx context.Context, req Request) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	if p.mode == ModeOpenAI || p.mode == ModeAuto {
		if p.hosted == nil {
			return "", ErrMissingAPIKey
		}
		url, err := p.produceHosted(ctx, prompt, req.BaseURL)
		if err == nil {
			return url, nil
		}
		if p.mode == ModeOpenAI {
			return "", err
		}
		slog.Warn("hosted banner failed, falling back to local renderer", "error", err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = titleFromPrompt(prompt)
	}
	path, err := p.local.Render(title, req.Caption)
	if err != nil {
		return "", err
	}
	return p.publish(ctx, path, req.BaseURL)
}

func (p *Producer) produceHosted(ctx context.Context, prompt, baseURL string) (string, error) {
	path, err := p.hosted.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return p.publish(ctx, path, baseURL)
}

// publish maps a local file to a public URL: base URL join, or upload.
func (p *Producer) publish(ctx context.Context, path, baseURL string) (string, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = strings.TrimSpace(p.baseURL)
	}
	if base != "" {
		return JoinURL(base, filepath.Base(path)), nil
	}

	if p.uploader == nil && p.uploaderErr == nil {
		return "", errors.New("BANNER_BASE_URL is empty and no supported BANNER_UPLOAD_PROVIDER is configured. " +
			"Set BANNER_BASE_URL to a public URL, or set BANNER_UPLOAD_PROVIDER=github with GITHUB_TOKEN+GITHUB_REPO.")
	}
	if p.uploaderErr != nil {
		return "", p.uploaderErr
	}
	return p.uploader.Upload(ctx, path)
}

// JoinURL appends filename to base with exactly one slash.
func JoinURL(base, filename string) string {
	return strings.TrimRight(base, "/") + "/" + filename
}
