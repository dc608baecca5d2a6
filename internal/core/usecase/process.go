package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
	"github.com/kirillkom/regulation-rag/internal/core/ports"
	"github.com/kirillkom/regulation-rag/internal/core/structure"
)

const (
	defaultEmbedBatchSize   = 32
	defaultEmbedConcurrency = 4
)

// CorpusBuild is the parsed, validated corpus of one source document.
type CorpusBuild struct {
	Structures []domain.ArticleStructure
	Chunks     []domain.DocumentChunk
	Report     structure.Report
}

// ChunksByLevel counts chunks per chunk level.
func (b *CorpusBuild) ChunksByLevel() map[string]int {
	out := make(map[string]int, 4)
	for _, c := range b.Chunks {
		out[string(c.Level)]++
	}
	return out
}

type ProcessOptions struct {
	EmbedBatchSize   int
	EmbedConcurrency int
	Logger           *slog.Logger
	// Graph is optional; a failed hierarchy sync is logged and does not
	// fail the ingestion.
	Graph ports.HierarchyGraph
	// OnPublished runs after a corpus version becomes current.
	OnPublished func(version string, build *CorpusBuild)
}

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.PageExtractor
	parser    *structure.Parser
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorIndex
	chunks    ports.ChunkRepository
	queue     ports.MessageQueue
	graph     ports.HierarchyGraph
	logger    *slog.Logger
	published func(string, *CorpusBuild)

	batchSize   int
	concurrency int
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.PageExtractor,
	parser *structure.Parser,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorIndex,
	chunks ports.ChunkRepository,
	queue ports.MessageQueue,
	opts ProcessOptions,
) *ProcessDocumentUseCase {
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = defaultEmbedBatchSize
	}
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = defaultEmbedConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if parser == nil {
		parser = structure.NewParser(structure.WithLogger(opts.Logger))
	}
	return &ProcessDocumentUseCase{
		repo:        repo,
		extractor:   extractor,
		parser:      parser,
		chunker:     chunker,
		embedder:    embedder,
		vectorDB:    vectorDB,
		chunks:      chunks,
		queue:       queue,
		graph:       opts.Graph,
		logger:      opts.Logger,
		published:   opts.OnPublished,
		batchSize:   opts.EmbedBatchSize,
		concurrency: opts.EmbedConcurrency,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	build, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.MarkReady(ctx, documentID, len(build.Chunks), build.Report.Warnings); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*CorpusBuild, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	pages, err := uc.extractPages(ctx, doc)
	if err != nil {
		return nil, err
	}
	return uc.Publish(ctx, doc.ID, pages)
}

// BuildCorpus parses pages into a validated corpus without side effects.
// The build is returned even when validation fails so callers can report it.
func BuildCorpus(parser *structure.Parser, pages []domain.Page) (*CorpusBuild, error) {
	structures := parser.Parse(pages)
	chunks := structure.BuildChunks(structures)
	report, err := structure.Validate(structures, chunks)
	return &CorpusBuild{Structures: structures, Chunks: chunks, Report: report}, err
}

func (uc *ProcessDocumentUseCase) Build(pages []domain.Page) (*CorpusBuild, error) {
	build, err := BuildCorpus(uc.parser, pages)
	if err != nil {
		return build, err
	}
	for _, w := range build.Report.Warnings {
		uc.logger.Warn("corpus validation warning", "warning", w)
	}
	return build, nil
}

// Publish builds the corpus, indexes it under version and makes it the
// current corpus. Nothing is published when parsing or validation fails.
func (uc *ProcessDocumentUseCase) Publish(ctx context.Context, version string, pages []domain.Page) (*CorpusBuild, error) {
	build, err := uc.Build(pages)
	if err != nil {
		return build, err
	}

	previous, err := uc.chunks.CurrentVersion(ctx)
	if err != nil {
		return build, fmt.Errorf("read current corpus version: %w", err)
	}

	vectors, err := uc.embed(ctx, build.Chunks)
	if err != nil {
		return build, err
	}
	if err := uc.index(ctx, version, build.Chunks, vectors); err != nil {
		return build, err
	}
	uc.syncGraph(ctx, version, build.Structures)

	if err := uc.chunks.ReplaceCorpus(ctx, version, build.Chunks); err != nil {
		return build, fmt.Errorf("persist chunk corpus: %w", err)
	}

	keep := []string{version}
	if previous != "" && previous != version {
		keep = append(keep, previous)
	}
	if err := uc.vectorDB.PruneVersions(ctx, keep); err != nil {
		uc.logger.Warn("prune stale vector versions failed", "version", version, "error", err)
	}
	if err := uc.queue.PublishCorpusPublished(ctx, version); err != nil {
		uc.logger.Warn("publish corpus event failed", "version", version, "error", err)
	}

	uc.logger.Info("corpus published",
		"version", version,
		"recitals", build.Report.Recitals,
		"articles", build.Report.Articles,
		"chunks", len(build.Chunks),
	)
	if uc.published != nil {
		uc.published(version, build)
	}
	return build, nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	pages, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrParsing, "extract pages", err)
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrParsing, "extract pages", errors.New("document has no pages"))
	}
	return pages, nil
}

// embed vectorises every chunk. Text longer than one chunker window is split
// and the window vectors are mean-pooled, so each chunk keeps one vector.
func (uc *ProcessDocumentUseCase) embed(ctx context.Context, chunks []domain.DocumentChunk) ([][]float32, error) {
	var (
		windows []string
		owner   []int
	)
	for i, c := range chunks {
		parts := uc.chunker.Split(c.EmbeddingText())
		if len(parts) == 0 {
			parts = []string{c.ChunkID}
		}
		for _, p := range parts {
			windows = append(windows, p)
			owner = append(owner, i)
		}
	}

	windowVectors := make([][]float32, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for start := 0; start < len(windows); start += uc.batchSize {
		end := min(start+uc.batchSize, len(windows))
		g.Go(func() error {
			vectors, err := uc.embedder.Embed(gctx, windows[start:end])
			if err != nil {
				return fmt.Errorf("embed chunks: %w", err)
			}
			if len(vectors) != end-start {
				return domain.WrapError(
					domain.ErrInvalidInput,
					"embed chunks",
					fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), end-start),
				)
			}
			copy(windowVectors[start:end], vectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meanPool(windowVectors, owner, len(chunks)), nil
}

func meanPool(vectors [][]float32, owner []int, n int) [][]float32 {
	out := make([][]float32, n)
	counts := make([]int, n)
	for i, v := range vectors {
		o := owner[i]
		if out[o] == nil {
			out[o] = make([]float32, len(v))
		}
		for j := range v {
			if j < len(out[o]) {
				out[o][j] += v[j]
			}
		}
		counts[o]++
	}
	for i := range out {
		if counts[i] > 1 {
			for j := range out[i] {
				out[i][j] /= float32(counts[i])
			}
		}
	}
	return out
}

func (uc *ProcessDocumentUseCase) index(ctx context.Context, version string, chunks []domain.DocumentChunk, vectors [][]float32) error {
	if err := uc.vectorDB.IndexChunks(ctx, version, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) syncGraph(ctx context.Context, version string, structures []domain.ArticleStructure) {
	if uc.graph == nil {
		return
	}
	if err := uc.graph.SyncHierarchy(ctx, version, structures); err != nil {
		uc.logger.Warn("hierarchy graph sync failed", "version", version, "error", err)
	}
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
