package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/docrelay/internal/config"
	"github.com/raphaelgruber/docrelay/internal/metrics"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder wraps langchaingo embeddings with dimension validation.
// It satisfies embeddings.Embedder so it can back a vector store directly.
type Embedder struct {
	model     embeddings.Embedder
	modelName string
	metrics   *metrics.Collector

	mu        sync.Mutex
	dimension int // 0 until the first vector is seen
}

var _ embeddings.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embedder for the configured provider.
// Only ollama and openai expose an embeddings endpoint through langchaingo.
func NewEmbedder(provider config.Provider, cfg config.Config) (*Embedder, error) {
	var client embeddings.EmbedderClient

	switch provider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithModel(cfg.EmbedModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		client = llm

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY missing: %w", ErrMissingCredential)
		}
		llm, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.EmbedModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		client = llm

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}

	return NewEmbedderFrom(client, cfg.EmbedModel, 0)
}

// NewEmbedderFrom wraps an embeddings client. A zero dimension is learned from the first response.
func NewEmbedderFrom(client embeddings.EmbedderClient, modelName string, dimension int) (*Embedder, error) {
	model, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Embedder{
		model:     model,
		modelName: modelName,
		dimension: dimension,
	}, nil
}

// WithMetrics records embedding timings into c.
func (e *Embedder) WithMetrics(c *metrics.Collector) *Embedder {
	e.metrics = c
	return e
}

// EmbedQuery generates an embedding vector for a single query text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	textLen := len(text)
	slog.Debug("embedding text", "model", e.modelName, "text_len", textLen)

	start := time.Now()
	vector, err := e.model.EmbedQuery(ctx, text)
	duration := time.Since(start)
	e.record(duration)

	if err != nil {
		slog.Warn("embedding failed", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, wrapError("embed query", err)
	}
	if err := e.checkDimension(0, vector); err != nil {
		return nil, err
	}

	slog.Debug("embedding complete", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds())
	return vector, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	vectors, err := e.model.EmbedDocuments(ctx, texts)
	e.record(time.Since(start))
	if err != nil {
		return nil, wrapError("embed documents", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("count mismatch: got %d, want %d", len(vectors), len(texts))
	}

	for i, v := range vectors {
		if err := e.checkDimension(i, v); err != nil {
			return nil, err
		}
	}

	return vectors, nil
}

func (e *Embedder) checkDimension(i int, v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("embedding %d is empty", i)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		e.dimension = len(v)
		return nil
	}
	if len(v) != e.dimension {
		return fmt.Errorf("embedding %d dimension mismatch: got %d, want %d", i, len(v), e.dimension)
	}
	return nil
}

func (e *Embedder) record(d time.Duration) {
	if e.metrics != nil {
		e.metrics.RecordTiming(metrics.OpEmbedding, d)
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.modelName
}

// Dimension returns the embedding dimension, or 0 before the first call.
func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}
