package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
	"github.com/kirillkom/regulation-rag/internal/core/ports"
)

const DefaultFinalK = 3

// RouteState tracks a query through the router. Every route ends Resolved.
type RouteState string

const (
	StateReceived   RouteState = "received"
	StateClassified RouteState = "classified"
	StateDispatched RouteState = "dispatched"
	StateResolved   RouteState = "resolved"
)

// Handler names reported in resolutions, logs and metrics.
const (
	HandlerExact      = "exact"
	HandlerContext    = "exact_context"
	HandlerHierarchy  = "hierarchy"
	HandlerSemantic   = "semantic"
	HandlerBoosted    = "semantic_boost"
	HandlerComparison = "comparison"
)

// Resolution is the full outcome of routing one query.
type Resolution struct {
	Chunks       []domain.DocumentChunk
	Analysis     domain.QueryAnalysis
	Handler      string
	FallbackUsed bool
	Degraded     bool
	State        RouteState
	Trace        []RouteState
}

// Observer receives one call per resolved route.
type Observer interface {
	ObserveRoute(queryType, handler string, fallback, degraded bool, chunks int, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveRoute(string, string, bool, bool, int, time.Duration) {}

// Router dispatches a classified query to the exact, hierarchy or semantic
// retriever and falls back to semantic search on an empty result.
type Router struct {
	analyzer  ports.QueryAnalyzer
	exact     *ExactRetriever
	hierarchy *HierarchyRetriever
	semantic  *SemanticRetriever
	defaultK  int
	logger    *slog.Logger
	observer  Observer
}

type RouterOption func(*Router)

func WithObserver(o Observer) RouterOption {
	return func(r *Router) {
		if o != nil {
			r.observer = o
		}
	}
}

func WithDefaultK(k int) RouterOption {
	return func(r *Router) {
		if k > 0 {
			r.defaultK = k
		}
	}
}

func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRouter(
	analyzer ports.QueryAnalyzer,
	exact *ExactRetriever,
	hierarchy *HierarchyRetriever,
	semantic *SemanticRetriever,
	opts ...RouterOption,
) *Router {
	r := &Router{
		analyzer:  analyzer,
		exact:     exact,
		hierarchy: hierarchy,
		semantic:  semantic,
		defaultK:  DefaultFinalK,
		logger:    slog.Default(),
		observer:  noopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Analyze(query string) (domain.QueryAnalysis, error) {
	return r.analyzer.Analyze(query)
}

// Retrieve implements ports.QueryRetriever.
func (r *Router) Retrieve(ctx context.Context, query string, k int) ([]domain.DocumentChunk, domain.QueryAnalysis) {
	res := r.Route(ctx, query, k)
	return res.Chunks, res.Analysis
}

// Route classifies and dispatches the query. It never returns an error.
func (r *Router) Route(ctx context.Context, query string, k int) Resolution {
	started := time.Now()
	if k <= 0 {
		k = r.defaultK
	}
	res := Resolution{State: StateReceived, Trace: []RouteState{StateReceived}}
	advance := func(s RouteState) {
		res.State = s
		res.Trace = append(res.Trace, s)
	}

	analysis, err := r.analyzer.Analyze(query)
	if err != nil {
		r.logger.Error("query classification failed, degrading to semantic", "error", err, "query", query)
		analysis = domain.GeneralAnalysis(query, confidenceDegraded)
		res.Degraded = true
	}
	res.Analysis = analysis
	advance(StateClassified)

	res.Handler = handlerFor(analysis.Type)
	chunks, err := r.dispatch(ctx, analysis, k)
	advance(StateDispatched)
	if err != nil {
		r.logger.Warn("retrieval handler failed", "handler", res.Handler, "query_type", analysis.Type, "error", err)
		chunks = nil
	}

	if len(chunks) == 0 && res.Handler != HandlerSemantic && ctx.Err() == nil {
		res.FallbackUsed = true
		chunks, err = r.semantic.Retrieve(ctx, query, k)
		if err != nil {
			r.logger.Warn("semantic fallback failed", "error", err)
			chunks = nil
		}
	}
	if len(chunks) == 0 && err != nil && !res.Degraded {
		res.Analysis = domain.GeneralAnalysis(query, confidenceDegraded)
		res.Degraded = true
	}

	res.Chunks = truncate(chunks, k)
	advance(StateResolved)
	r.observer.ObserveRoute(string(analysis.Type), res.Handler, res.FallbackUsed, res.Degraded, len(res.Chunks), time.Since(started))
	r.logger.Debug("query routed",
		"query_type", analysis.Type,
		"confidence", analysis.Confidence,
		"handler", res.Handler,
		"fallback", res.FallbackUsed,
		"chunks", len(res.Chunks),
	)
	return res
}

func handlerFor(t domain.QueryType) string {
	switch t {
	case domain.QueryRecitalLookup:
		return HandlerExact
	case domain.QueryExactReference, domain.QueryArticleLookup:
		return HandlerContext
	case domain.QueryChapterSectionLookup, domain.QuerySectionLookup, domain.QueryChapterLookup:
		return HandlerHierarchy
	case domain.QueryConceptual:
		return HandlerBoosted
	case domain.QueryComparison:
		return HandlerComparison
	default:
		return HandlerSemantic
	}
}

func (r *Router) dispatch(ctx context.Context, a domain.QueryAnalysis, k int) ([]domain.DocumentChunk, error) {
	switch a.Type {
	case domain.QueryRecitalLookup:
		return r.exact.Retrieve(ctx, a, k)
	case domain.QueryExactReference, domain.QueryArticleLookup:
		return r.exact.RetrieveWithContext(ctx, a, k)
	case domain.QueryChapterSectionLookup:
		return r.hierarchy.ByChapterSection(ctx, a.Chapter(), a.Section(), k)
	case domain.QuerySectionLookup:
		return r.hierarchy.BySection(ctx, a.Section(), k)
	case domain.QueryChapterLookup:
		return r.hierarchy.ByChapter(ctx, a.Chapter(), k)
	case domain.QueryConceptual:
		return r.semantic.RetrieveWithBoost(ctx, a.OriginalQuery, a.Article(), k)
	case domain.QueryComparison:
		return r.compare(ctx, a, k)
	default:
		return r.semantic.Retrieve(ctx, a.OriginalQuery, k)
	}
}

// compare widens the semantic search and guarantees one chunk for each of
// the first two compared articles, backfilling from the exact retriever.
// Those representatives lead the result, followed by the semantic order.
func (r *Router) compare(ctx context.Context, a domain.QueryAnalysis, k int) ([]domain.DocumentChunk, error) {
	docs, err := r.semantic.Retrieve(ctx, a.OriginalQuery, 2*k)
	if err != nil {
		r.logger.Warn("comparison semantic search failed", "error", err)
		docs = nil
	}

	var leading []domain.DocumentChunk
	for i, article := range a.Concepts {
		if i >= 2 {
			break
		}
		if rep, ok := firstOfArticle(docs, article); ok {
			leading = append(leading, rep)
			continue
		}
		found, err := r.exact.Retrieve(ctx, withTarget(a, domain.ProvisionTarget{Article: article}), 1)
		if err != nil {
			r.logger.Warn("comparison backfill failed", "article", article, "error", err)
			continue
		}
		leading = append(leading, found...)
	}
	return truncate(dedupe(append(leading, docs...)), k), nil
}

func firstOfArticle(docs []domain.DocumentChunk, article string) (domain.DocumentChunk, bool) {
	for _, d := range docs {
		if d.Reference.Article == article {
			return d, true
		}
	}
	return domain.DocumentChunk{}, false
}
