package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/docrelay/internal/models"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// SourceKey is the document metadata key copied into the chunk source column.
const SourceKey = "source"

// Store is a langchaingo vector store over the chunk table.
// Search is a brute-force cosine scan, which is fine for a docs-sized corpus.
type Store struct {
	client   *Client
	embedder embeddings.Embedder
}

var _ vectorstores.VectorStore = (*Store)(nil)

// NewStore creates a vector store using embedder for documents and queries.
func NewStore(client *Client, embedder embeddings.Embedder) *Store {
	return &Store{client: client, embedder: embedder}
}

// Client returns the underlying database client.
func (s *Store) Client() *Client {
	return s.client
}

// AddDocuments embeds and stores docs, returning the new chunk IDs.
func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	opts := s.options(options)

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vectors, err := opts.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	now := time.Now().UTC()
	positions := map[string]int{}
	chunks := make([]models.Chunk, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		source, _ := d.Metadata[SourceKey].(string)
		ids[i] = uuid.NewString()
		chunks[i] = models.Chunk{
			ID:        ids[i],
			Source:    source,
			Position:  positions[source],
			Content:   d.PageContent,
			Metadata:  d.Metadata,
			Embedding: vectors[i],
			CreatedAt: now,
		}
		positions[source]++
	}

	if err := s.client.QueryInsertChunks(ctx, chunks); err != nil {
		return nil, err
	}
	slog.Debug("stored chunks", "count", len(chunks))
	return ids, nil
}

// SimilaritySearch returns the numDocuments chunks closest to query by cosine similarity.
// Filters match metadata values by equality. ScoreThreshold drops weaker hits.
func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return []schema.Document{}, nil
	}
	opts := s.options(options)

	queryVec, err := opts.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var hits []schema.Document
	seen := 0
	err = s.client.QueryAllChunks(ctx, func(ch models.Chunk) error {
		seen++
		if len(ch.Embedding) != len(queryVec) || !matchFilters(ch.Metadata, opts.Filters) {
			return nil
		}
		score := cosine(queryVec, ch.Embedding)
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			return nil
		}
		meta := ch.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		if _, ok := meta[SourceKey]; !ok {
			meta[SourceKey] = ch.Source
		}
		hits = append(hits, schema.Document{PageContent: ch.Content, Metadata: meta, Score: score})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if seen == 0 {
		return nil, ErrEmptyIndex
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > numDocuments {
		hits = hits[:numDocuments]
	}
	if hits == nil {
		hits = []schema.Document{}
	}
	return hits, nil
}

func (s *Store) options(options []vectorstores.Option) vectorstores.Options {
	opts := vectorstores.Options{Embedder: s.embedder}
	for _, o := range options {
		o(&opts)
	}
	if opts.Embedder == nil {
		opts.Embedder = s.embedder
	}
	return opts
}

func matchFilters(meta map[string]any, filters any) bool {
	want, ok := filters.(map[string]any)
	if !ok || len(want) == 0 {
		return true
	}
	for k, v := range want {
		if meta[k] != v {
			return false
		}
	}
	return true
}

// cosine returns the cosine similarity of a and b, or 0 for a zero vector.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// IsEmpty reports whether err signals an empty index.
func IsEmpty(err error) bool {
	return errors.Is(err, ErrEmptyIndex)
}
