package banner

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sashabaranov/go-openai"
)

const (
	hostedTimeout   = 120 * time.Second
	maxPromptLen    = 2000
	defaultImgModel = "dall-e-3"
	defaultImgSize  = openai.CreateImageSize1024x1024
)

var supportedSizes = map[string]bool{
	openai.CreateImageSize1024x1024: true,
	openai.CreateImageSize1024x1792: true,
	openai.CreateImageSize1792x1024: true,
}

// ImageClient is the subset of the OpenAI client used for image generation.
type ImageClient interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// HostedConfig configures the OpenAI Images generator.
type HostedConfig struct {
	Model      string
	Size       string
	OutputSize string // optional WxH center-crop target
	DumpJSON   string // optional path for the raw response
	Dir        string
}

// HostedGenerator creates banners through the OpenAI Images API.
type HostedGenerator struct {
	client     ImageClient
	httpClient *http.Client
	cfg        HostedConfig
	now        func() time.Time
}

// NewHostedGenerator creates a generator backed by client.
func NewHostedGenerator(client ImageClient, cfg HostedConfig) *HostedGenerator {
	if cfg.Model == "" {
		cfg.Model = defaultImgModel
	}
	if !supportedSizes[cfg.Size] {
		if cfg.Size != "" {
			slog.Warn("unsupported image size, using default", "size", cfg.Size, "default", defaultImgSize)
		}
		cfg.Size = defaultImgSize
	}
	return &HostedGenerator{
		client:     client,
		httpClient: &http.Client{Timeout: hostedTimeout},
		cfg:        cfg,
		now:        time.Now,
	}
}

// NewOpenAIClient builds an OpenAI client for apiKey. baseURL overrides the API root when set.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Generate requests one image for prompt and saves it as banner-openai-<unix>.png.
func (g *HostedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, hostedTimeout)
	defer cancel()

	if r := []rune(prompt); len(r) > maxPromptLen {
		prompt = string(r[:maxPromptLen])
	}

	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.cfg.Model,
		N:              1,
		Size:           g.cfg.Size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI Images failed: %w", err)
	}
	g.dump(resp)

	if len(resp.Data) == 0 {
		return "", errors.New("OpenAI Images returned no data")
	}
	data, err := g.imageBytes(ctx, resp.Data[0])
	if err != nil {
		return "", err
	}
	data = g.fit(data)

	if err := os.MkdirAll(g.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create banner dir: %w", err)
	}
	path := filepath.Join(g.cfg.Dir, fmt.Sprintf("banner-openai-%d.png", g.now().Unix()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save banner: %w", err)
	}

	slog.Info("generated hosted banner", "path", path, "model", g.cfg.Model, "size", g.cfg.Size)
	return path, nil
}

func (g *HostedGenerator) imageBytes(ctx context.Context, item openai.ImageResponseDataInner) ([]byte, error) {
	switch {
	case item.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode base64 image: %w", err)
		}
		return data, nil

	case item.URL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(item.URL), nil)
		if err != nil {
			return nil, fmt.Errorf("build image download request: %w", err)
		}
		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download image: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("download image: HTTP %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return nil, errors.New("OpenAI Images response missing image content")
}

// fit center-crops and resizes to OutputSize. Any failure keeps the original bytes.
func (g *HostedGenerator) fit(data []byte) []byte {
	if g.cfg.OutputSize == "" {
		return data
	}
	w, h, err := ParseSize(g.cfg.OutputSize)
	if err != nil {
		slog.Warn("ignoring invalid BANNER_OUTPUT_SIZE", "value", g.cfg.OutputSize, "error", err)
		return data
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Warn("could not decode generated image for resize", "error", err)
		return data
	}
	fitted := imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		slog.Warn("could not encode resized image", "error", err)
		return data
	}
	return buf.Bytes()
}

func (g *HostedGenerator) dump(resp openai.ImageResponse) {
	if g.cfg.DumpJSON == "" {
		return
	}
	raw, err := json.MarshalIndent(resp, "", "  ")
	if err == nil {
		err = os.WriteFile(g.cfg.DumpJSON, raw, 0o644)
	}
	if err != nil {
		slog.Warn("could not write image response dump", "path", g.cfg.DumpJSON, "error", err)
	}
}

// ParseSize parses "WxH" into positive dimensions.
func ParseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q must be WxH", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q must be positive", s)
	}
	return w, h, nil
}
