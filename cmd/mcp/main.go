package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/regulation-rag/internal/adapters/mcp"
	"github.com/kirillkom/regulation-rag/internal/bootstrap"
	"github.com/kirillkom/regulation-rag/internal/config"
	"github.com/kirillkom/regulation-rag/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	// stdout carries the MCP protocol.
	logger := logging.Setup(os.Stderr, "mcp", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.WithService("mcp"))
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Loader.Refresh(ctx); err != nil {
		logger.Warn("initial corpus load failed; serving empty corpus", "error", err)
	}
	go func() {
		if err := app.Loader.Watch(ctx, app.Queue); err != nil {
			logger.Error("corpus watch stopped", "error", err)
		}
	}()

	tools := mcpadapter.NewTools(app.Analyzer, app.Router, cfg.RetrieverKFinal, logger)
	s := mcpadapter.NewServer("regulation-rag", version, tools)
	if err := server.ServeStdio(s, server.WithErrorLogger(log.New(os.Stderr, "mcp: ", log.LstdFlags))); err != nil {
		logger.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
