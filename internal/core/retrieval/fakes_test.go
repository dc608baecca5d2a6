package retrieval

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sort"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

const fakeDim = 64

// hashEmbedder maps text to a bag-of-words vector so similar texts score close.
type hashEmbedder struct {
	err     error
	queries []string
}

func (e *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, hashVector(t))
	}
	return out, nil
}

func (e *hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.queries = append(e.queries, text)
	if e.err != nil {
		return nil, e.err
	}
	return hashVector(text), nil
}

func hashVector(text string) []float32 {
	v := make([]float32, fakeDim)
	for _, token := range splitAlphaNumLower(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		v[h.Sum32()%fakeDim]++
	}
	return v
}

type vectorIndexFake struct {
	chunks    []domain.DocumentChunk
	vectors   [][]float32
	err        error
	lastLimit  int
	lastFilter domain.SearchFilter
}

func newVectorIndexFake(chunks []domain.DocumentChunk) *vectorIndexFake {
	f := &vectorIndexFake{chunks: chunks}
	for _, c := range chunks {
		f.vectors = append(f.vectors, hashVector(c.EmbeddingText()))
	}
	return f
}

func (f *vectorIndexFake) IndexChunks(context.Context, string, []domain.DocumentChunk, [][]float32) error {
	return nil
}

func (f *vectorIndexFake) PruneVersions(context.Context, []string) error { return nil }

func (f *vectorIndexFake) Search(_ context.Context, q []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredChunk, error) {
	f.lastLimit = limit
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.ScoredChunk
	for i, c := range f.chunks {
		if !filterWithoutVersion(filter).Matches(c) {
			continue
		}
		out = append(out, domain.ScoredChunk{Chunk: c, Score: cosine(q, f.vectors[i])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func filterWithoutVersion(f domain.SearchFilter) domain.SearchFilter {
	out := domain.SearchFilter{}
	for k, v := range f {
		if k != domain.MetaCorpusVersion {
			out[k] = v
		}
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type staticLister struct {
	chunks []domain.DocumentChunk
	err    error
}

func (s staticLister) ListChunks(context.Context) ([]domain.DocumentChunk, error) {
	return s.chunks, s.err
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(string) (domain.QueryAnalysis, error) {
	return domain.QueryAnalysis{}, domain.WrapError(domain.ErrQueryRouting, "analyze query", errors.New("boom"))
}

// testCorpus is a small regulation with recitals, two chapters and sections.
func testCorpus() []domain.DocumentChunk {
	article := func(id, chapter, section, title, content string) domain.DocumentChunk {
		return domain.DocumentChunk{
			ChunkID: "article_" + id, Content: content, Level: domain.LevelArticle, Page: 3,
			Reference: domain.LegalReference{Chapter: chapter, Section: section, Article: id, ArticleTitle: title},
		}
	}
	sub := func(id, chapter, section, num, content string) domain.DocumentChunk {
		return domain.DocumentChunk{
			ChunkID: "article_" + id + "_" + num, Content: content, Level: domain.LevelSubsection, Page: 3,
			Reference:     domain.LegalReference{Chapter: chapter, Section: section, Article: id, Subsection: num},
			ParentContent: "Article " + id,
		}
	}
	point := func(id, chapter, section, num, letter, content string) domain.DocumentChunk {
		return domain.DocumentChunk{
			ChunkID: "article_" + id + "_" + num + "_" + letter, Content: content, Level: domain.LevelPoint, Page: 3,
			Reference:     domain.LegalReference{Chapter: chapter, Section: section, Article: id, Subsection: num, Point: letter},
			ParentContent: "Article " + id + "(" + num + ")",
		}
	}
	return []domain.DocumentChunk{
		{ChunkID: "recital_1", Content: "The protection of natural persons is a fundamental right.", Level: domain.LevelRecital, Page: 1, Reference: domain.NewRecitalReference("1")},
		{ChunkID: "recital_2", Content: "Technological developments bring new challenges for data protection.", Level: domain.LevelRecital, Page: 1, Reference: domain.NewRecitalReference("2")},
		article("6", "2", "", "Lawfulness of processing", "1. Processing shall be lawful only if consent is given.\n(a) the data subject has given consent;"),
		sub("6", "2", "", "1", "Processing shall be lawful only if consent is given.\n(a) the data subject has given consent;"),
		point("6", "2", "", "1", "a", "the data subject has given consent;"),
		article("7", "2", "", "Conditions for consent", "1. The controller shall be able to demonstrate consent."),
		sub("7", "2", "", "1", "The controller shall be able to demonstrate consent."),
		article("24", "4", "1", "Responsibility of the controller", "The controller shall implement technical measures."),
		article("26", "4", "1", "Joint controllers", "Joint controllers shall determine responsibilities."),
		article("25", "4", "1", "Data protection by design", "The controller shall implement data protection by design."),
		article("28", "4", "1", "Processor", "Processing by a processor shall be governed by a contract."),
		article("32", "4", "2", "Security of processing", "The controller shall ensure security of processing."),
	}
}

func newTestRouter(chunks []domain.DocumentChunk, embedder *hashEmbedder, index *vectorIndexFake) *Router {
	lister := staticLister{chunks: chunks}
	return NewRouter(
		NewAnalyzer(AnalyzerVocabulary{}),
		NewExactRetriever(lister, nil),
		NewHierarchyRetriever(lister, nil),
		NewSemanticRetriever(embedder, index, NewLexicalReranker(), SemanticOptions{}),
	)
}
