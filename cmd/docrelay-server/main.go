// Package main provides the HTTP docs QA server for docrelay.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/docrelay/internal/app"
	"github.com/raphaelgruber/docrelay/internal/config"
	"github.com/raphaelgruber/docrelay/internal/server"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "discard the existing index and rebuild it on startup")
	flag.Parse()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	slog.Info("starting docrelay-server", "port", cfg.Port, "docs", cfg.DocsRoot, "index", cfg.IndexDir)

	// Building the index can take minutes on a large docs tree.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	qa, err := app.NewQA(ctx, cfg, *rebuild)
	cancel()
	if err != nil {
		slog.Error("failed to initialize docs QA", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := qa.Close(); err != nil {
			slog.Error("failed to close index", "error", err)
		}
	}()

	srv := server.New(":"+cfg.Port, server.NewRouter(qa.ServerApp(logger)), logger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(runCtx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
