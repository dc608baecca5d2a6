// Command ingest parses a regulation file locally. With -dry-run it only
// validates and reports; otherwise it publishes the corpus through the
// same pipeline the worker uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/kirillkom/regulation-rag/internal/bootstrap"
	"github.com/kirillkom/regulation-rag/internal/config"
	"github.com/kirillkom/regulation-rag/internal/core/structure"
	"github.com/kirillkom/regulation-rag/internal/core/usecase"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/regulation-rag/internal/observability/logging"
)

func main() {
	var (
		file       = flag.String("file", "", "path to the regulation (.pdf or .txt)")
		reportPath = flag.String("report", "", "write an .xlsx structure report to this path")
		dryRun     = flag.Bool("dry-run", false, "parse and validate without publishing")
		version    = flag.String("version", "", "corpus version to publish under (default: random id)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(os.Stderr, "ingest", cfg.LogLevel)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -file <path> [-report out.xlsx] [-dry-run]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *file, *reportPath, *version, *dryRun); err != nil {
		logger.Error("ingest failed", "file", *file, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, file, reportPath, version string, dryRun bool) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	pages, err := extractor.PagesFromBytes(ctx, filepath.Base(file), raw)
	if err != nil {
		return err
	}
	logger.Info("pages extracted", "file", file, "pages", len(pages))

	var build *usecase.CorpusBuild
	if dryRun {
		parser := structure.NewParser(
			structure.WithTitleMaxLen(cfg.ParserTitleMaxLen),
			structure.WithLogger(logger),
		)
		build, err = usecase.BuildCorpus(parser, pages)
	} else {
		var app *bootstrap.App
		app, err = bootstrap.New(ctx, cfg, logger, bootstrap.WithService("ingest"))
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		defer app.Close()
		if version == "" {
			version = uuid.NewString()
		}
		build, err = app.ProcessUC.Publish(ctx, version, pages)
	}

	if build != nil && reportPath != "" {
		if werr := writeReport(reportPath, build); werr != nil {
			logger.Error("write report failed", "path", reportPath, "error", werr)
		} else {
			logger.Info("report written", "path", reportPath)
		}
	}
	if err != nil {
		return err
	}

	logger.Info("corpus built",
		"dry_run", dryRun,
		"version", version,
		"recitals", build.Report.Recitals,
		"articles", build.Report.Articles,
		"chunks", len(build.Chunks),
		"warnings", len(build.Report.Warnings),
	)
	return nil
}

func writeReport(path string, build *usecase.CorpusBuild) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := xlsx.WriteReport(f, build.Structures, build.Chunks, build.Report); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
