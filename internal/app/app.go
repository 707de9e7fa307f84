// Package app wires configuration into the services behind each entry point.
// It serves as dependency injection for the CLI and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/docrelay/internal/banner"
	"github.com/raphaelgruber/docrelay/internal/config"
	"github.com/raphaelgruber/docrelay/internal/corpus"
	"github.com/raphaelgruber/docrelay/internal/db"
	"github.com/raphaelgruber/docrelay/internal/devto"
	"github.com/raphaelgruber/docrelay/internal/fetch"
	"github.com/raphaelgruber/docrelay/internal/llm"
	"github.com/raphaelgruber/docrelay/internal/metrics"
	"github.com/raphaelgruber/docrelay/internal/parser"
	"github.com/raphaelgruber/docrelay/internal/server"
	"github.com/raphaelgruber/docrelay/internal/service"
	"github.com/raphaelgruber/docrelay/internal/summarize"
	"github.com/tmc/langchaingo/vectorstores"
)

// Index is an opened vector index with the collector it reports into.
type Index struct {
	Store    *db.Store
	Info     *service.IndexInfo
	Metrics  *metrics.Collector
	Embedder *llm.Embedder
}

// Close closes the index database.
func (i *Index) Close() error {
	return i.Store.Client().Close()
}

// OpenIndex opens the docs index, building it when missing, empty, or when rebuild is set.
func OpenIndex(ctx context.Context, cfg config.Config, rebuild bool) (*Index, error) {
	mc := metrics.NewCollector()

	embedder, err := llm.NewEmbedder(config.ProviderOllama, cfg)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	embedder.WithMetrics(mc)

	chunking := parser.DefaultChunkConfig()
	chunking.Size = cfg.ChunkSize
	chunking.Overlap = cfg.ChunkOverlap

	loader := corpus.NewLoader(cfg.DocsRoot, cfg.DocsGlob, cfg.IndexDir)
	store, info, err := service.NewIndexService(cfg.IndexDir, embedder, loader, chunking, mc).Open(ctx, rebuild)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Index{Store: store, Info: info, Metrics: mc, Embedder: embedder}, nil
}

// QA holds the docs question-answering backend.
type QA struct {
	*Index
	Responder *service.Responder
	Suggester *service.Suggester
	cfg       config.Config
}

// NewQA opens the index and the local model.
func NewQA(ctx context.Context, cfg config.Config, rebuild bool) (*QA, error) {
	idx, err := OpenIndex(ctx, cfg, rebuild)
	if err != nil {
		return nil, err
	}

	model, err := llm.NewModel(ctx, llm.LocalOptions(cfg))
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("init model: %w", err)
	}
	model.WithMetrics(idx.Metrics)

	retriever := vectorstores.ToRetriever(idx.Store, cfg.RetrievalK)
	slog.Info("docs QA ready", "chunks", idx.Info.Chunks, "model", cfg.LLMModel, "k", cfg.RetrievalK)

	return &QA{
		Index:     idx,
		Responder: service.NewResponder(retriever, model, cfg.ProductName, cfg.DocsRoot, idx.Metrics),
		Suggester: service.NewSuggester(retriever, model, cfg.ProductName),
		cfg:       cfg,
	}, nil
}

// ServerApp returns the handler dependencies for the HTTP server.
func (q *QA) ServerApp(logger *slog.Logger) *server.App {
	return &server.App{
		Answerer:  q.Responder,
		Suggester: q.Suggester,
		Metrics:   q.Metrics,
		Logger:    logger,
		Health: server.HealthInfo{
			Product:    q.cfg.ProductName,
			LLMModel:   q.cfg.LLMModel,
			EmbedModel: q.cfg.EmbedModel,
			FileType:   "mdx",
			Database:   q.Store.Client().Path(),
		},
	}
}

// PublishNeeds says which optional collaborators a publish run uses.
type PublishNeeds struct {
	Banner  bool
	Publish bool
}

// NewPublishService wires the cross-posting pipeline. Collaborators the run
// does not need are left unset so their credentials are not required.
func NewPublishService(ctx context.Context, cfg config.Config, needs PublishNeeds) (*service.PublishService, error) {
	summarizer, err := summarize.NewFromModel(ctx, llm.SummaryOptions(cfg), cfg.PrimaryKeyword)
	if err != nil {
		return nil, err
	}

	var banners service.BannerProducer
	if needs.Banner {
		p, err := banner.NewProducer(cfg)
		if err != nil {
			return nil, err
		}
		banners = p
	}

	var publisher service.ArticlePublisher
	if needs.Publish {
		c, err := devto.New(cfg.DevtoAPIKey,
			devto.WithBaseURL(cfg.DevtoBaseURL),
			devto.WithAbout(cfg.CompanyName, cfg.CompanyBlurb),
		)
		if err != nil {
			return nil, err
		}
		publisher = c
	}

	return service.NewPublishService(fetch.New(), banners, summarizer, publisher, service.SettingsFromConfig(cfg)), nil
}
