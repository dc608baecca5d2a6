package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

func TestSemanticRetrieveUsesBaseKAndVersion(t *testing.T) {
	corpus := testCorpus()
	index := newVectorIndexFake(corpus)
	r := NewSemanticRetriever(&hashEmbedder{}, index, NewLexicalReranker(), SemanticOptions{
		Version: func() string { return "v1" },
	})

	got, err := r.Retrieve(context.Background(), "consent", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if index.lastLimit != DefaultKBase {
		t.Fatalf("expected search limit %d, got %d", DefaultKBase, index.lastLimit)
	}
	if index.lastFilter[domain.MetaCorpusVersion] != "v1" {
		t.Fatalf("expected version pinning, got %v", index.lastFilter)
	}
}

func TestSemanticRetrieveWithBoostPromotesArticle(t *testing.T) {
	corpus := testCorpus()
	index := newVectorIndexFake(corpus)
	r := NewSemanticRetriever(&hashEmbedder{}, index, nil, SemanticOptions{})

	got, err := r.RetrieveWithBoost(context.Background(), "the controller shall", "32", 2)
	if err != nil {
		t.Fatalf("RetrieveWithBoost() error = %v", err)
	}
	if len(got) != 2 || got[0].Reference.Article != "32" {
		t.Fatalf("expected article 32 first, got %v", chunkIDs(got))
	}
	if got[1].Reference.Article == "" {
		t.Fatalf("expected article chunks ahead of recitals, got %v", chunkIDs(got))
	}
	if index.lastLimit != DefaultKBase {
		t.Fatalf("expected base k search, got %d", index.lastLimit)
	}
}

func TestSemanticRetrieveWrapsEmbedFailure(t *testing.T) {
	r := NewSemanticRetriever(&hashEmbedder{err: errors.New("down")}, newVectorIndexFake(nil), nil, SemanticOptions{})
	if _, err := r.Retrieve(context.Background(), "q", 3); !domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("expected retrieval error, got %v", err)
	}
}

type failingReranker struct{}

func (failingReranker) Rerank(context.Context, string, []domain.ScoredChunk, int) ([]domain.ScoredChunk, error) {
	return nil, errors.New("rerank down")
}

func TestSemanticRetrieveKeepsVectorOrderWhenRerankFails(t *testing.T) {
	corpus := testCorpus()
	r := NewSemanticRetriever(&hashEmbedder{}, newVectorIndexFake(corpus), failingReranker{}, SemanticOptions{})
	got, err := r.Retrieve(context.Background(), "joint controllers", 1)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 1 || got[0].ChunkID != "article_26" {
		t.Fatalf("expected vector top hit, got %v", chunkIDs(got))
	}
}
