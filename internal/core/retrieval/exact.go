package retrieval

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

// ChunkLister gives full-scan access to the chunk corpus.
type ChunkLister interface {
	ListChunks(ctx context.Context) ([]domain.DocumentChunk, error)
}

// ExactRetriever resolves structural references by metadata equality.
type ExactRetriever struct {
	chunks ChunkLister
	logger *slog.Logger
}

func NewExactRetriever(chunks ChunkLister, logger *slog.Logger) *ExactRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExactRetriever{chunks: chunks, logger: logger}
}

// Retrieve returns at most k chunks matching the analysis target, most
// specific first. An empty result is an exact miss, not an error.
func (r *ExactRetriever) Retrieve(ctx context.Context, analysis domain.QueryAnalysis, k int) ([]domain.DocumentChunk, error) {
	filter, target := exactFilter(analysis)
	if len(filter) == 0 || k <= 0 {
		return nil, nil
	}
	all, err := r.chunks.ListChunks(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "list chunks", err)
	}
	matches := filterChunks(all, filter)
	rankBySpecificity(matches, target)
	if len(matches) > k {
		matches = matches[:k]
	}
	r.logger.Debug("exact retrieval", "filter", map[string]string(filter), "matches", len(matches))
	return matches, nil
}

// RetrieveWithContext returns the best match followed by its parent
// subsection and parent article. Recitals are never expanded.
func (r *ExactRetriever) RetrieveWithContext(ctx context.Context, analysis domain.QueryAnalysis, k int) ([]domain.DocumentChunk, error) {
	best, err := r.Retrieve(ctx, analysis, 1)
	if err != nil || len(best) == 0 {
		return nil, err
	}
	out := best
	target, ok := analysis.Target.(domain.ProvisionTarget)
	if !ok {
		return truncate(out, k), nil
	}

	if target.Point != "" && target.Subsection != "" {
		parent, err := r.Retrieve(ctx, withTarget(analysis, domain.ProvisionTarget{Article: target.Article, Subsection: target.Subsection}), 1)
		if err != nil {
			return nil, err
		}
		out = append(out, parent...)
	}
	if target.Subsection != "" {
		parent, err := r.Retrieve(ctx, withTarget(analysis, domain.ProvisionTarget{Article: target.Article}), 1)
		if err != nil {
			return nil, err
		}
		out = append(out, parent...)
	}
	return truncate(dedupe(out), k), nil
}

func withTarget(a domain.QueryAnalysis, target domain.QueryTarget) domain.QueryAnalysis {
	a.Target = target
	return a
}

// exactFilter builds the equality filter and the most specific requested
// level. A recital target ignores every article-family field.
func exactFilter(analysis domain.QueryAnalysis) (domain.SearchFilter, domain.ChunkLevel) {
	switch t := analysis.Target.(type) {
	case domain.RecitalTarget:
		if t.Recital == "" {
			return nil, ""
		}
		return domain.SearchFilter{domain.MetaRecital: t.Recital}, domain.LevelRecital
	case domain.ProvisionTarget:
		if t.Article == "" {
			return nil, ""
		}
		filter := domain.SearchFilter{domain.MetaArticle: t.Article}
		level := domain.LevelArticle
		if t.Subsection != "" {
			filter[domain.MetaSubsection] = t.Subsection
			level = domain.LevelSubsection
		}
		if t.Point != "" {
			filter[domain.MetaPoint] = t.Point
			level = domain.LevelPoint
		}
		return filter, level
	}
	return nil, ""
}

func filterChunks(all []domain.DocumentChunk, filter domain.SearchFilter) []domain.DocumentChunk {
	var out []domain.DocumentChunk
	for _, c := range all {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// specificity scores the tags present on the chunk itself.
func specificity(c domain.DocumentChunk) int {
	score := 0
	if c.Reference.Point != "" {
		score += 100
	}
	if c.Reference.Subsection != "" {
		score += 10
	}
	if c.Reference.Article != "" {
		score++
	}
	if c.Reference.Recital != "" {
		score++
	}
	return score
}

// rankBySpecificity puts chunks at the requested level first, then orders by
// specificity. The sort is stable so corpus order breaks ties.
func rankBySpecificity(chunks []domain.DocumentChunk, target domain.ChunkLevel) {
	sort.SliceStable(chunks, func(i, j int) bool {
		li, lj := chunks[i].Level == target, chunks[j].Level == target
		if li != lj {
			return li
		}
		return specificity(chunks[i]) > specificity(chunks[j])
	})
}

func dedupe(chunks []domain.DocumentChunk) []domain.DocumentChunk {
	seen := make(map[string]struct{}, len(chunks))
	out := chunks[:0:0]
	for _, c := range chunks {
		if _, ok := seen[c.ChunkID]; ok {
			continue
		}
		seen[c.ChunkID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func truncate(chunks []domain.DocumentChunk, k int) []domain.DocumentChunk {
	if k >= 0 && len(chunks) > k {
		return chunks[:k]
	}
	return chunks
}
