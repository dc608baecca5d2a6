package retrieval

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
	"github.com/kirillkom/regulation-rag/internal/core/ports"
)

const (
	DefaultKBase      = 10
	DefaultRerankTopN = 5

	boostExactArticle = 10
	boostAnyArticle   = 1
)

// SemanticRetriever embeds the query, searches the vector index and
// reranks the candidates.
type SemanticRetriever struct {
	embedder   ports.Embedder
	index      ports.VectorIndex
	reranker   ports.Reranker
	version    func() string
	kBase      int
	rerankTopN int
	logger     *slog.Logger
}

type SemanticOptions struct {
	KBase      int
	RerankTopN int
	// Version returns the corpus version searches are pinned to; empty
	// disables pinning.
	Version func() string
	Logger  *slog.Logger
}

func NewSemanticRetriever(embedder ports.Embedder, index ports.VectorIndex, reranker ports.Reranker, opts SemanticOptions) *SemanticRetriever {
	if opts.KBase <= 0 {
		opts.KBase = DefaultKBase
	}
	if opts.RerankTopN <= 0 {
		opts.RerankTopN = DefaultRerankTopN
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == nil {
		opts.Version = func() string { return "" }
	}
	return &SemanticRetriever{
		embedder:   embedder,
		index:      index,
		reranker:   reranker,
		version:    opts.Version,
		kBase:      opts.KBase,
		rerankTopN: opts.RerankTopN,
		logger:     opts.Logger,
	}
}

// Retrieve returns at most k chunks by semantic similarity.
func (r *SemanticRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.DocumentChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}

	var filter domain.SearchFilter
	if version := r.version(); version != "" {
		filter = domain.SearchFilter{domain.MetaCorpusVersion: version}
	}
	candidates, err := r.index.Search(ctx, vector, max(r.kBase, k), filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "vector search", err)
	}

	if r.reranker != nil && len(candidates) > 0 {
		reranked, err := r.reranker.Rerank(ctx, query, candidates, max(r.rerankTopN, k))
		if err != nil {
			r.logger.Warn("rerank failed, keeping vector order", "error", err)
		} else {
			candidates = reranked
		}
	}

	out := make([]domain.DocumentChunk, 0, min(k, len(candidates)))
	for _, c := range candidates {
		if len(out) == k {
			break
		}
		out = append(out, c.Chunk)
	}
	return out, nil
}

// RetrieveWithBoost over-fetches 3k candidates and promotes chunks from the
// given article, then any article, over recitals.
func (r *SemanticRetriever) RetrieveWithBoost(ctx context.Context, query, article string, k int) ([]domain.DocumentChunk, error) {
	if article == "" {
		return r.Retrieve(ctx, query, k)
	}
	docs, err := r.Retrieve(ctx, query, 3*k)
	if err != nil {
		return nil, err
	}
	score := func(c domain.DocumentChunk) int {
		switch {
		case c.Reference.Article == article:
			return boostExactArticle
		case c.Reference.Article != "":
			return boostAnyArticle
		}
		return 0
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return score(docs[i]) > score(docs[j])
	})
	return truncate(docs, k), nil
}
