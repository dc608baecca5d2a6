package retrieval

import (
	"testing"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

func TestRerankCandidatesChangesOrder(t *testing.T) {
	candidates := []domain.ScoredChunk{
		{Chunk: domain.DocumentChunk{ChunkID: "recital_3", Content: "unrelated text", Reference: domain.NewRecitalReference("3")}, Score: 1.0},
		{Chunk: domain.DocumentChunk{ChunkID: "article_17", Content: "Article 17 right to erasure", Reference: domain.LegalReference{Article: "17"}}, Score: 0.9},
		{Chunk: domain.DocumentChunk{ChunkID: "article_18", Content: "restriction of processing", Reference: domain.LegalReference{Article: "18"}}, Score: 0.0},
	}

	reranked := rerankCandidates("erasure article 17", candidates, 2)
	if len(reranked) != 2 {
		t.Fatalf("expected 2 reranked candidates, got %d", len(reranked))
	}
	if reranked[0].Chunk.ChunkID != "article_17" {
		t.Fatalf("expected article_17 first after rerank, got %s", reranked[0].Chunk.ChunkID)
	}
}

func TestRerankCandidatesKeepsTopN(t *testing.T) {
	candidates := []domain.ScoredChunk{
		{Chunk: domain.DocumentChunk{ChunkID: "a"}, Score: 0.3},
		{Chunk: domain.DocumentChunk{ChunkID: "b"}, Score: 0.2},
		{Chunk: domain.DocumentChunk{ChunkID: "c"}, Score: 0.1},
	}
	out := rerankCandidates("q", candidates, 2)
	if len(out) != 2 || out[0].Chunk.ChunkID != "a" {
		t.Fatalf("unexpected rerank output %+v", out)
	}
	if candidates[0].Score != 0.3 {
		t.Fatalf("input must not be modified")
	}
}

func TestRerankCandidatesHandlesEmptyInput(t *testing.T) {
	out := rerankCandidates("risk", nil, 10)
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
}
