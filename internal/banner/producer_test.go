package banner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raphaelgruber/docrelay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	dir   string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.dir, "banner-openai-1.png")
	return path, os.WriteFile(path, []byte("png"), 0o644)
}

type fakeUploader struct {
	paths []string
}

func (f *fakeUploader) Upload(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	return "https://raw.example/" + filepath.Base(path), nil
}

func bannerConfig(t *testing.T, provider string) config.Config {
	t.Helper()
	return config.Config{
		BannerProvider:       provider,
		BannerDir:            t.TempDir(),
		BannerUploadProvider: "github",
		GitHubBranch:         "main",
		GitHubPathPrefix:     "banners",
	}
}

func TestProducerLocalWithBaseURL(t *testing.T) {
	cfg := bannerConfig(t, "local")
	cfg.BannerBaseURL = "https://cdn.example/banners/"

	p, err := NewProducer(cfg)
	require.NoError(t, err)

	url, err := p.Produce(context.Background(), Request{Prompt: "Wide banner for 'Hello'", Title: "Hello"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example/banners/banner-"), url)
	assert.True(t, strings.HasSuffix(url, ".png"))

	entries, err := os.ReadDir(cfg.BannerDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestProducerRequestBaseURLWins(t *testing.T) {
	cfg := bannerConfig(t, "local")
	cfg.BannerBaseURL = "https://env.example"

	p, err := NewProducer(cfg)
	require.NoError(t, err)

	url, err := p.Produce(context.Background(), Request{Prompt: "banner", BaseURL: "http://localhost:5000/static/banners"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:5000/static/banners/banner-"), url)
}

func TestProducerUploadsWithoutBaseURL(t *testing.T) {
	uploader := &fakeUploader{}
	p, err := NewProducer(bannerConfig(t, "local"), WithUploader(uploader))
	require.NoError(t, err)

	url, err := p.Produce(context.Background(), Request{Prompt: "banner titled 'Uploads'"})
	require.NoError(t, err)
	require.Len(t, uploader.paths, 1)
	assert.Equal(t, "https://raw.example/"+filepath.Base(uploader.paths[0]), url)
}

func TestProducerUploadConfigErrors(t *testing.T) {
	p, err := NewProducer(bannerConfig(t, "local"))
	require.NoError(t, err)
	_, err = p.Produce(context.Background(), Request{Prompt: "banner"})
	assert.ErrorContains(t, err, "GITHUB_TOKEN missing")

	cfg := bannerConfig(t, "local")
	cfg.BannerUploadProvider = "s3"
	p, err = NewProducer(cfg)
	require.NoError(t, err)
	_, err = p.Produce(context.Background(), Request{Prompt: "banner"})
	assert.ErrorContains(t, err, "no supported BANNER_UPLOAD_PROVIDER")
}

func TestProducerMissingKey(t *testing.T) {
	for _, mode := range []string{"openai", "auto"} {
		p, err := NewProducer(bannerConfig(t, mode))
		require.NoError(t, err)
		_, err = p.Produce(context.Background(), Request{Prompt: "banner"})
		assert.ErrorIs(t, err, ErrMissingAPIKey, mode)
	}
}

func TestProducerHostedModes(t *testing.T) {
	t.Run("openai surfaces failures", func(t *testing.T) {
		cfg := bannerConfig(t, "openai")
		gen := &fakeGenerator{dir: cfg.BannerDir, err: errors.New("content policy")}
		p, err := NewProducer(cfg, WithHosted(gen), WithUploader(&fakeUploader{}))
		require.NoError(t, err)

		_, err = p.Produce(context.Background(), Request{Prompt: "banner"})
		assert.ErrorContains(t, err, "content policy")
	})

	t.Run("auto falls back to local", func(t *testing.T) {
		cfg := bannerConfig(t, "auto")
		cfg.BannerBaseURL = "https://cdn.example"
		gen := &fakeGenerator{dir: cfg.BannerDir, err: errors.New("timeout")}
		p, err := NewProducer(cfg, WithHosted(gen))
		require.NoError(t, err)

		url, err := p.Produce(context.Background(), Request{Prompt: "banner for 'Fallback'"})
		require.NoError(t, err)
		assert.Equal(t, 1, gen.calls)
		assert.NotContains(t, url, "openai")
	})

	t.Run("hosted success", func(t *testing.T) {
		cfg := bannerConfig(t, "openai")
		cfg.BannerBaseURL = "https://cdn.example"
		gen := &fakeGenerator{dir: cfg.BannerDir}
		p, err := NewProducer(cfg, WithHosted(gen))
		require.NoError(t, err)

		url, err := p.Produce(context.Background(), Request{Prompt: "banner"})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example/banner-openai-1.png", url)
	})
}

func TestProducerRejectsInput(t *testing.T) {
	_, err := NewProducer(bannerConfig(t, "midjourney"))
	assert.ErrorContains(t, err, "unsupported BANNER_PROVIDER")

	p, err := NewProducer(bannerConfig(t, "local"))
	require.NoError(t, err)
	_, err = p.Produce(context.Background(), Request{Prompt: "   "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://a.example/b/c.png", JoinURL("https://a.example/b///", "c.png"))
	assert.Equal(t, "https://a.example/c.png", JoinURL("https://a.example", "c.png"))
}
