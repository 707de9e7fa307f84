package models

import "time"

// Chunk is a bounded window of a documentation file, the unit of embedding and retrieval.
// Chunks are written once per index build and never updated in place.
type Chunk struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"` // path of the originating file
	Position  int            `json:"position"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Source is a citation returned alongside an answer.
type Source struct {
	File    string `json:"file"`
	Preview string `json:"preview"`
}
