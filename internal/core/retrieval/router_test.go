package retrieval

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

func TestRouterComparisonCoversBothArticles(t *testing.T) {
	corpus := testCorpus()
	router := newTestRouter(corpus, &hashEmbedder{}, newVectorIndexFake(corpus))

	chunks, analysis := router.Retrieve(context.Background(), "difference between Article 6 and Article 7", 3)
	if analysis.Type != domain.QueryComparison {
		t.Fatalf("expected comparison, got %s", analysis.Type)
	}
	seen := map[string]bool{}
	for _, c := range chunks {
		seen[c.Reference.Article] = true
	}
	if !seen["6"] || !seen["7"] {
		t.Fatalf("expected articles 6 and 7, got %v", chunkIDs(chunks))
	}
	if len(chunks) > 3 {
		t.Fatalf("expected at most 3 chunks, got %d", len(chunks))
	}
}

func TestRouterComparisonBackfillsMissingArticle(t *testing.T) {
	corpus := testCorpus()
	// the index only knows recitals, so both articles must come from the exact retriever
	router := newTestRouter(corpus, &hashEmbedder{}, newVectorIndexFake(corpus[:2]))

	chunks, _ := router.Retrieve(context.Background(), "compare Article 6 versus Article 7", 3)
	if len(chunks) != 3 || chunks[0].ChunkID != "article_6" || chunks[1].ChunkID != "article_7" {
		t.Fatalf("expected backfilled articles first, got %v", chunkIDs(chunks))
	}
}

func TestRouterFallsBackToSemanticOnExactMiss(t *testing.T) {
	corpus := testCorpus()
	router := newTestRouter(corpus, &hashEmbedder{}, newVectorIndexFake(corpus))

	res := router.Route(context.Background(), "What is Recital 99?", 3)
	if res.Analysis.Type != domain.QueryRecitalLookup {
		t.Fatalf("expected recital lookup, got %s", res.Analysis.Type)
	}
	if !res.FallbackUsed || len(res.Chunks) == 0 {
		t.Fatalf("expected non-empty semantic fallback, got %+v", res)
	}
	want := []RouteState{StateReceived, StateClassified, StateDispatched, StateResolved}
	if !reflect.DeepEqual(res.Trace, want) {
		t.Fatalf("unexpected trace %v", res.Trace)
	}
}

func TestRouterExactReferenceReturnsContext(t *testing.T) {
	corpus := testCorpus()
	router := newTestRouter(corpus, &hashEmbedder{}, newVectorIndexFake(corpus))

	res := router.Route(context.Background(), "Article 6(1)(a)", 3)
	if res.Handler != HandlerContext || res.FallbackUsed {
		t.Fatalf("unexpected resolution %+v", res)
	}
	assertIDs(t, res.Chunks, "article_6_1_a", "article_6_1", "article_6")
}

func TestRouterChapterLookup(t *testing.T) {
	corpus := testCorpus()
	router := newTestRouter(corpus, &hashEmbedder{}, newVectorIndexFake(corpus))

	chunks, analysis := router.Retrieve(context.Background(), "Show chapter IV", 3)
	if analysis.Type != domain.QueryChapterLookup || analysis.Chapter() != "4" {
		t.Fatalf("unexpected analysis %+v", analysis)
	}
	assertIDs(t, chunks, "article_24", "article_25", "article_26")
}

func TestRouterDegradesWhenClassificationFails(t *testing.T) {
	corpus := testCorpus()
	lister := staticLister{chunks: corpus}
	router := NewRouter(
		failingAnalyzer{},
		NewExactRetriever(lister, nil),
		NewHierarchyRetriever(lister, nil),
		NewSemanticRetriever(&hashEmbedder{}, newVectorIndexFake(corpus), nil, SemanticOptions{}),
	)

	res := router.Route(context.Background(), "Article 6", 2)
	if res.Analysis.Type != domain.QueryGeneral || res.Analysis.Confidence != 0.3 || !res.Degraded {
		t.Fatalf("expected degraded general analysis, got %+v", res.Analysis)
	}
	if res.Handler != HandlerSemantic || len(res.Chunks) != 2 {
		t.Fatalf("expected semantic results, got %+v", res)
	}
}

func TestRouterNeverFailsWhenIndexIsDown(t *testing.T) {
	corpus := testCorpus()
	index := newVectorIndexFake(corpus)
	index.err = errors.New("connection refused")
	router := newTestRouter(corpus, &hashEmbedder{}, index)

	chunks, analysis := router.Retrieve(context.Background(), "asdf", 3)
	if len(chunks) != 0 {
		t.Fatalf("expected empty result, got %v", chunkIDs(chunks))
	}
	if analysis.Type != domain.QueryGeneral || analysis.Confidence != 0.3 {
		t.Fatalf("expected low-confidence general analysis, got %+v", analysis)
	}
}

func TestRouterExactPathSurvivesIndexOutage(t *testing.T) {
	corpus := testCorpus()
	router := newTestRouter(corpus, &hashEmbedder{err: errors.New("ollama down")}, newVectorIndexFake(corpus))

	chunks, analysis := router.Retrieve(context.Background(), "Show me Article 7", 3)
	if analysis.Type != domain.QueryArticleLookup {
		t.Fatalf("unexpected analysis %+v", analysis)
	}
	assertIDs(t, chunks, "article_7")
}

type recordingObserver struct {
	handler  string
	fallback bool
	chunks   int
}

func (o *recordingObserver) ObserveRoute(_ string, handler string, fallback, _ bool, chunks int, _ time.Duration) {
	o.handler, o.fallback, o.chunks = handler, fallback, chunks
}

func TestRouterReportsToObserver(t *testing.T) {
	corpus := testCorpus()
	lister := staticLister{chunks: corpus}
	obs := &recordingObserver{}
	router := NewRouter(
		NewAnalyzer(AnalyzerVocabulary{}),
		NewExactRetriever(lister, nil),
		NewHierarchyRetriever(lister, nil),
		NewSemanticRetriever(&hashEmbedder{}, newVectorIndexFake(corpus), nil, SemanticOptions{}),
		WithObserver(obs),
		WithDefaultK(2),
	)

	router.Retrieve(context.Background(), "What is Recital 99?", 0)
	if obs.handler != HandlerExact || !obs.fallback || obs.chunks != 2 {
		t.Fatalf("unexpected observation %+v", obs)
	}
}
