package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strconv"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

// HierarchyLookahead is how many articles after the first one a chapter or
// section lookup returns.
const HierarchyLookahead = 2

// HierarchyRetriever answers "where does Chapter/Section X start".
type HierarchyRetriever struct {
	chunks ChunkLister
	logger *slog.Logger
}

func NewHierarchyRetriever(chunks ChunkLister, logger *slog.Logger) *HierarchyRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &HierarchyRetriever{chunks: chunks, logger: logger}
}

func (r *HierarchyRetriever) BySection(ctx context.Context, section string, k int) ([]domain.DocumentChunk, error) {
	return r.lookup(ctx, k, domain.SearchFilter{domain.MetaSection: section})
}

func (r *HierarchyRetriever) ByChapter(ctx context.Context, chapter string, k int) ([]domain.DocumentChunk, error) {
	chapter = domain.NormalizeChapter(chapter)
	return r.lookup(ctx, k,
		domain.SearchFilter{domain.MetaChapter: chapter},
		domain.SearchFilter{domain.MetaChapter: domain.AlternateChapter(chapter)},
	)
}

func (r *HierarchyRetriever) ByChapterSection(ctx context.Context, chapter, section string, k int) ([]domain.DocumentChunk, error) {
	chapter = domain.NormalizeChapter(chapter)
	return r.lookup(ctx, k,
		domain.SearchFilter{domain.MetaChapter: chapter, domain.MetaSection: section},
		domain.SearchFilter{domain.MetaChapter: domain.AlternateChapter(chapter), domain.MetaSection: section},
	)
}

// lookup tries each filter in turn until one matches.
func (r *HierarchyRetriever) lookup(ctx context.Context, k int, filters ...domain.SearchFilter) ([]domain.DocumentChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	all, err := r.chunks.ListChunks(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "list chunks", err)
	}
	for i, filter := range filters {
		if i > 0 && sameFilter(filter, filters[i-1]) {
			continue
		}
		matches := filterChunks(all, filter)
		if len(matches) == 0 {
			continue
		}
		out := firstArticles(matches, HierarchyLookahead+1)
		r.logger.Debug("hierarchy retrieval", "filter", map[string]string(filter), "articles", len(out))
		return truncate(out, k), nil
	}
	return nil, nil
}

// firstArticles picks one representative chunk for each of the n
// lowest-numbered articles, preferring the article-level chunk.
func firstArticles(matches []domain.DocumentChunk, n int) []domain.DocumentChunk {
	best := make(map[string]domain.DocumentChunk)
	for _, c := range matches {
		article := c.Reference.Article
		if article == "" {
			continue
		}
		current, seen := best[article]
		if !seen || (current.Level != domain.LevelArticle && c.Level == domain.LevelArticle) {
			best[article] = c
		}
	}
	articles := make([]string, 0, len(best))
	for a := range best {
		articles = append(articles, a)
	}
	sort.Slice(articles, func(i, j int) bool {
		ni, nj := articleOrdinal(articles[i]), articleOrdinal(articles[j])
		if ni != nj {
			return ni < nj
		}
		return articles[i] < articles[j]
	})
	if len(articles) > n {
		articles = articles[:n]
	}
	out := make([]domain.DocumentChunk, 0, len(articles))
	for _, a := range articles {
		out = append(out, best[a])
	}
	return out
}

// articleOrdinal sorts non-numeric article ids last.
func articleOrdinal(id string) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 1 << 30
	}
	return n
}

func sameFilter(a, b domain.SearchFilter) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
