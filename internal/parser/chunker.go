package parser

import (
	"fmt"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// ChunkConfig defines chunking parameters.
type ChunkConfig struct {
	// Size is the maximum chunk length in runes.
	Size int
	// Overlap is the rune overlap carried between adjacent chunks.
	Overlap int
	// Separators are tried in order; the empty string splits between runes.
	Separators []string
}

// DefaultChunkConfig returns the docs index defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:       500,
		Overlap:    50,
		Separators: []string{"\n\n", "\n", " ", ""},
	}
}

// Validate rejects settings the splitter cannot honour.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.Size, c.Overlap)
	}
	return nil
}

// SplitDocuments splits each document into overlapping windows, copying its
// metadata onto every chunk.
func SplitDocuments(docs []schema.Document, cfg ChunkConfig) ([]schema.Document, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	separators := cfg.Separators
	if len(separators) == 0 {
		separators = DefaultChunkConfig().Separators
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.Size),
		textsplitter.WithChunkOverlap(cfg.Overlap),
		textsplitter.WithSeparators(separators),
	)

	chunks, err := textsplitter.SplitDocuments(splitter, docs)
	if err != nil {
		return nil, fmt.Errorf("split documents: %w", err)
	}
	return chunks, nil
}
