package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/regulation-rag/internal/config"
	"github.com/kirillkom/regulation-rag/internal/core/ports"
	"github.com/kirillkom/regulation-rag/internal/core/retrieval"
	"github.com/kirillkom/regulation-rag/internal/core/structure"
	"github.com/kirillkom/regulation-rag/internal/core/usecase"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/resilience"
	sessionmemory "github.com/kirillkom/regulation-rag/internal/infrastructure/session/memory"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/storage/localfs"
	vectormemory "github.com/kirillkom/regulation-rag/internal/infrastructure/vector/memory"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/regulation-rag/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Service string

	Queue     *nats.Queue
	Repo      ports.DocumentRepository
	Chunks    ports.ChunkRepository
	Corpus    *retrieval.Corpus
	Loader    *CorpusLoader
	Analyzer  *retrieval.Analyzer
	Router    *retrieval.Router
	IngestUC  *usecase.IngestDocumentUseCase
	ProcessUC *usecase.ProcessDocumentUseCase
	ChatUC    *usecase.ChatUseCase

	HTTPMetrics  *metrics.HTTPServerMetrics
	Resilience   *resilience.Executor
	HealthChecks map[string]func(ctx context.Context) error

	closeFn func()
}

type Option func(*settings)

type settings struct {
	service     string
	onPublished func(version string, build *usecase.CorpusBuild)
}

// WithService names the process in metrics labels and logs.
func WithService(name string) Option {
	return func(s *settings) {
		s.service = name
	}
}

// WithPublishHook observes every corpus version this process publishes.
func WithPublishHook(fn func(version string, build *usecase.CorpusBuild)) Option {
	return func(s *settings) {
		s.onPublished = fn
	}
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	st := settings{service: "api"}
	for _, opt := range opts {
		opt(&st)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, error) {
		closeAll()
		return nil, err
	}

	executor := resilience.NewExecutor(resilience.FromLimits(
		cfg.ResilienceMaxRetries,
		time.Duration(cfg.ResilienceBaseBackoffMS)*time.Millisecond,
		time.Duration(cfg.ResilienceMaxBackoffMS)*time.Millisecond,
		cfg.ResilienceBreakerFailures,
		time.Duration(cfg.ResilienceBreakerTimeoutMS)*time.Millisecond,
	)).WithLogger(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return fail(fmt.Errorf("open postgres: %w", err))
	}
	closers = append(closers, func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return fail(fmt.Errorf("ensure schema: %w", err))
	}
	repo := postgres.NewDocumentRepository(db)
	chunkRepo := postgres.NewChunkRepository(db)

	sessions, err := newSessionStore(cfg, db)
	if err != nil {
		return fail(err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return fail(fmt.Errorf("init object storage: %w", err))
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSIngestSubject, cfg.NATSCorpusSubject, nats.Options{
		Name:               "regulation-rag-" + st.service,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return fail(fmt.Errorf("init message queue: %w", err))
	}
	closers = append(closers, queue.Close)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
	embedder, err := ollama.NewEmbedder(ollamaClient, cfg.EmbedCacheSize)
	if err != nil {
		return fail(fmt.Errorf("init embedder: %w", err))
	}
	generator := ollama.NewGenerator(ollamaClient)

	healthChecks := map[string]func(context.Context) error{
		"postgres": db.PingContext,
		"ollama":   ollamaClient.Ping,
		"nats": func(context.Context) error {
			if !queue.Connected() {
				return errors.New("not connected")
			}
			return nil
		},
	}

	var index ports.VectorIndex
	switch cfg.VectorBackend {
	case "memory":
		index = vectormemory.New()
	case "qdrant", "":
		qc := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithExecutor(executor))
		healthChecks["qdrant"] = qc.Ping
		index = qc
	default:
		return fail(fmt.Errorf("unknown vector backend %q", cfg.VectorBackend))
	}

	var graph ports.HierarchyGraph
	if cfg.Neo4jURI != "" {
		g, err := neo4j.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			return fail(fmt.Errorf("init neo4j: %w", err))
		}
		closers = append(closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = g.Close(closeCtx)
		})
		graph = g
	}

	httpMetrics := metrics.NewHTTPServerMetrics(st.service)
	corpus := retrieval.NewCorpus()
	loader := NewCorpusLoader(chunkRepo, corpus, httpMetrics, st.service, logger)

	vocab := retrieval.AnalyzerVocabulary(cfg.Analyzer).Merge(retrieval.DefaultVocabulary())
	analyzer := retrieval.NewAnalyzer(vocab)
	semantic := retrieval.NewSemanticRetriever(embedder, index, retrieval.NewLexicalReranker(), retrieval.SemanticOptions{
		KBase:      cfg.RetrieverKBase,
		RerankTopN: cfg.RerankTopN,
		Version:    corpus.Version,
		Logger:     logger,
	})
	router := retrieval.NewRouter(
		analyzer,
		retrieval.NewExactRetriever(corpus, logger),
		retrieval.NewHierarchyRetriever(corpus, logger),
		semantic,
		retrieval.WithObserver(httpMetrics.RouteObserver(st.service)),
		retrieval.WithDefaultK(cfg.RetrieverKFinal),
		retrieval.WithRouterLogger(logger),
	)

	parser := structure.NewParser(
		structure.WithTitleMaxLen(cfg.ParserTitleMaxLen),
		structure.WithLogger(logger),
	)
	processUC := usecase.NewProcessDocumentUseCase(
		repo,
		extractor.New(storage),
		parser,
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		index,
		chunkRepo,
		queue,
		usecase.ProcessOptions{
			Logger:      logger,
			Graph:       graph,
			OnPublished: st.onPublished,
		},
	)
	chatUC := usecase.NewChatUseCase(router, generator, sessions, usecase.ChatOptions{
		FinalK:       cfg.RetrieverKFinal,
		HistoryLimit: cfg.SessionHistoryMessages,
		MaxQueryLen:  cfg.MaxQueryLength,
		Logger:       logger,
	})

	return &App{
		Config:  cfg,
		Logger:  logger,
		Service: st.service,

		Queue:     queue,
		Repo:      repo,
		Chunks:    chunkRepo,
		Corpus:    corpus,
		Loader:    loader,
		Analyzer:  analyzer,
		Router:    router,
		IngestUC:  usecase.NewIngestDocumentUseCase(repo, storage, queue),
		ProcessUC: processUC,
		ChatUC:    chatUC,

		HTTPMetrics:  httpMetrics,
		Resilience:   executor,
		HealthChecks: healthChecks,

		closeFn: closeAll,
	}, nil
}

func newSessionStore(cfg config.Config, db *sql.DB) (ports.SessionStore, error) {
	switch cfg.SessionBackend {
	case "memory":
		store, err := sessionmemory.New(cfg.SessionCacheSize, cfg.SessionHistoryMessages*4)
		if err != nil {
			return nil, fmt.Errorf("init session store: %w", err)
		}
		return store, nil
	case "postgres", "":
		return postgres.NewSessionRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
