package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/docrelay/internal/db"
	"github.com/raphaelgruber/docrelay/internal/metrics"
	"github.com/raphaelgruber/docrelay/internal/parser"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
)

// embedBatchSize bounds how many chunks go to the embedder per call.
const embedBatchSize = 64

// stagingSuffix names the database a build writes before it replaces index.db.
const stagingSuffix = ".tmp"

// DocumentLoader produces the documents an index is built from.
type DocumentLoader interface {
	Load(ctx context.Context) ([]schema.Document, error)
}

// IndexService opens the persisted vector index, building it when needed.
type IndexService struct {
	dir      string
	embedder embeddings.Embedder
	loader   DocumentLoader
	chunking parser.ChunkConfig
	metrics  *metrics.Collector
}

// NewIndexService creates an index service rooted at dir.
func NewIndexService(dir string, embedder embeddings.Embedder, loader DocumentLoader, chunking parser.ChunkConfig, m *metrics.Collector) *IndexService {
	return &IndexService{
		dir:      dir,
		embedder: embedder,
		loader:   loader,
		chunking: chunking,
		metrics:  m,
	}
}

// IndexInfo describes the opened index.
type IndexInfo struct {
	Path    string
	Chunks  int
	Rebuilt bool
}

// Open returns a vector store over the index. An existing non-empty index is
// reloaded without touching the loader. A failed reload, an empty index, or
// rebuild forces a build from scratch. Callers close the store's client.
func (s *IndexService) Open(ctx context.Context, rebuild bool) (*db.Store, *IndexInfo, error) {
	if !rebuild && s.exists() {
		store, n, err := s.reload(ctx)
		if err == nil {
			slog.Info("loaded existing index", "path", store.Client().Path(), "chunks", n)
			return store, &IndexInfo{Path: store.Client().Path(), Chunks: n}, nil
		}
		slog.Warn("index reload failed, rebuilding", "dir", s.dir, "error", err)
	}
	return s.build(ctx)
}

func (s *IndexService) exists() bool {
	_, err := os.Stat(filepath.Join(s.dir, db.FileName))
	return err == nil
}

func (s *IndexService) reload(ctx context.Context) (*db.Store, int, error) {
	client, err := db.Open(ctx, s.dir)
	if err != nil {
		return nil, 0, err
	}
	n, err := client.QueryCountChunks(ctx)
	if err != nil {
		client.Close()
		return nil, 0, err
	}
	if n == 0 {
		client.Close()
		return nil, 0, db.ErrEmptyIndex
	}
	return db.NewStore(client, s.embedder), n, nil
}

func (s *IndexService) build(ctx context.Context) (*db.Store, *IndexInfo, error) {
	if s.loader == nil {
		return nil, nil, errors.New("index build requested but no document loader is configured")
	}
	start := time.Now()

	docs, err := s.loader.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("no documents found to index in %s", s.dir)
	}
	chunks, err := parser.SplitDocuments(docs, s.chunking)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("building index", "documents", len(docs), "chunks", len(chunks))

	store, err := s.write(ctx, chunks)
	if err != nil {
		return nil, nil, err
	}
	client := store.Client()

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpIndexBuild, duration)
	}
	slog.Info("index built", "path", client.Path(), "chunks", len(chunks), "duration_ms", duration.Milliseconds())
	return store, &IndexInfo{Path: client.Path(), Chunks: len(chunks), Rebuilt: true}, nil
}

// write embeds chunks into a staging database and moves it over index.db
// only once every batch is stored. A failed build leaves no index behind.
func (s *IndexService) write(ctx context.Context, chunks []schema.Document) (*db.Store, error) {
	final := filepath.Join(s.dir, db.FileName)
	staging := final + stagingSuffix
	if err := removeDBFiles(staging); err != nil {
		return nil, err
	}

	client, err := db.OpenPath(ctx, staging)
	if err != nil {
		return nil, err
	}
	store := db.NewStore(client, s.embedder)
	fail := func(err error) (*db.Store, error) {
		client.Close()
		if rmErr := removeDBFiles(staging); rmErr != nil {
			slog.Warn("remove staging index", "path", staging, "error", rmErr)
		}
		return nil, err
	}

	for i := 0; i < len(chunks); i += embedBatchSize {
		end := min(i+embedBatchSize, len(chunks))
		if _, err := store.AddDocuments(ctx, chunks[i:end]); err != nil {
			return fail(fmt.Errorf("index chunks %d-%d: %w", i, end, err))
		}
		slog.Debug("indexed batch", "done", end, "total", len(chunks))
	}

	// Closing checkpoints the WAL into the staging file before the rename.
	if err := client.Close(); err != nil {
		return fail(fmt.Errorf("close staging index: %w", err))
	}
	if err := removeDBFiles(final); err != nil {
		return fail(err)
	}
	if err := os.Rename(staging, final); err != nil {
		return fail(fmt.Errorf("install index: %w", err))
	}
	_ = removeDBFiles(staging)

	client, err = db.Open(ctx, s.dir)
	if err != nil {
		return nil, err
	}
	return db.NewStore(client, s.embedder), nil
}

// removeDBFiles deletes the database at base and its WAL side files.
func removeDBFiles(base string) error {
	for _, p := range []string{base, base + "-wal", base + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}
