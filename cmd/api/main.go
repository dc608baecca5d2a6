package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/kirillkom/regulation-rag/internal/adapters/http"
	"github.com/kirillkom/regulation-rag/internal/bootstrap"
	"github.com/kirillkom/regulation-rag/internal/config"
	"github.com/kirillkom/regulation-rag/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(os.Stdout, "api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.WithService("api"))
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Loader.Refresh(ctx); err != nil {
		logger.Warn("initial corpus load failed; serving empty corpus", "error", err)
	}

	router, err := httpadapter.NewRouter(httpadapter.Options{
		Service:         app.Service,
		DefaultK:        cfg.RetrieverKFinal,
		MaxQueryLength:  cfg.MaxQueryLength,
		RateLimitRPS:    cfg.APIRateLimitRPS,
		RateLimitBurst:  cfg.APIRateLimitBurst,
		MaxInFlight:     cfg.APIMaxInFlight,
		ValidateOpenAPI: cfg.APIValidateOpenAPI,
		Metrics:         app.HTTPMetrics,
		HealthChecks:    app.HealthChecks,
		Logger:          logger,
	}, app.Analyzer, app.Router, app.ChatUC, app.IngestUC, app.IngestUC, app.Corpus)
	if err != nil {
		logger.Error("http router error", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("listen", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.APIMaxConnections)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", "addr", ln.Addr().String(), "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return app.Loader.Watch(gctx, app.Queue)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("api stopped with error", "error", err)
		os.Exit(1)
	}
}
