// Package server exposes the docs QA backend over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/docrelay/internal/metrics"
	"github.com/raphaelgruber/docrelay/internal/service"
)

// Answerer answers a documentation question.
type Answerer interface {
	Ask(ctx context.Context, question string) (*service.Answer, error)
}

// QuestionSuggester produces follow-up and starter questions.
type QuestionSuggester interface {
	FollowUps(ctx context.Context, question string) []string
	SampleQuestions(ctx context.Context) []string
}

// HealthInfo is the static part of the health response.
type HealthInfo struct {
	Product    string
	LLMModel   string
	EmbedModel string
	FileType   string
	Database   string
}

// App holds everything the handlers need. It is built once at startup and
// read-only afterwards.
type App struct {
	Answerer  Answerer
	Suggester QuestionSuggester
	Metrics   *metrics.Collector
	Health    HealthInfo
	Logger    *slog.Logger
}

// NewRouter builds the gin engine with middleware and routes for app.
func NewRouter(app *App) *gin.Engine {
	logger := app.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware())
	r.Use(LoggingMiddleware(logger, app.Metrics))

	h := &handlers{app: app, logger: logger}
	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.POST("/ask", h.ask)
		api.POST("/suggestions", h.suggestions)
		api.POST("/sample-questions", h.sampleQuestions)
	}
	return r
}

// Server wraps the HTTP server with lifecycle management.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// New creates a server listening on addr.
func New(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 120 * time.Second, // local model answers are slow
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
