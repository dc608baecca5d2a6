package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

func sampleChunks() []domain.DocumentChunk {
	return []domain.DocumentChunk{
		{
			ChunkID:       "article_6_1",
			Content:       "Processing shall be lawful only if...",
			Page:          3,
			Level:         domain.LevelSubsection,
			ParentContent: "Lawfulness of processing",
			Reference:     domain.LegalReference{Chapter: "2", Article: "6", ArticleTitle: "Lawfulness of processing", Subsection: "1"},
		},
		{
			ChunkID:   "recital_42",
			Content:   "Where processing is based on consent...",
			Page:      1,
			Level:     domain.LevelRecital,
			Reference: domain.NewRecitalReference("42"),
		},
	}
}

func TestIndexChunksEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls, indexCalls int32
	var upserted []point
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/index":
			atomic.AddInt32(&indexCalls, 1)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			var body struct {
				Points []point `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			upserted = append(upserted, body.Points...)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	chunks := sampleChunks()
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.IndexChunks(context.Background(), "v1", chunks, vectors); err != nil {
		t.Fatalf("first IndexChunks() error = %v", err)
	}
	if err := client.IndexChunks(context.Background(), "v1", chunks, vectors); err != nil {
		t.Fatalf("second IndexChunks() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	if got := atomic.LoadInt32(&indexCalls); got != 1 {
		t.Fatalf("expected payload index created once, got %d", got)
	}
	if len(upserted) != 4 {
		t.Fatalf("expected 4 upserted points, got %d", len(upserted))
	}
	if upserted[0].ID != upserted[2].ID || upserted[0].ID != PointID("v1", "article_6_1") {
		t.Fatalf("point ids should be deterministic per version and chunk")
	}
	p := upserted[0].Payload
	if p["corpus_version"] != "v1" || p["article"] != "6" || p["level"] != "subsection" || p["parent_content"] != "Lawfulness of processing" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestPointIDDiffersAcrossVersions(t *testing.T) {
	if PointID("v1", "article_6") == PointID("v2", "article_6") {
		t.Fatalf("versions must not share point ids")
	}
}

func TestSearchSendsFilterAndDecodesPayload(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/docs/points/search" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"result":[{"score":0.91,"payload":{
			"chunk_id":"article_6_1","content":"Processing shall be lawful","page":3,
			"level":"subsection","article":"6","subsection":"1","chapter":"2",
			"parent_content":"Lawfulness of processing","corpus_version":"v1"}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	hits, err := client.Search(context.Background(), []float32{0.1, 0.2}, 5, domain.SearchFilter{
		domain.MetaCorpusVersion: "v1",
		domain.MetaArticle:       "6",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	filter, _ := captured["filter"].(map[string]any)
	must, _ := filter["must"].([]any)
	if len(must) != 2 {
		t.Fatalf("expected two must conditions, got %+v", captured["filter"])
	}
	first, _ := must[0].(map[string]any)
	if first["key"] != "article" {
		t.Fatalf("expected conditions sorted by key, got %+v", must)
	}

	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %d", len(hits))
	}
	got := hits[0]
	if got.Score != 0.91 || got.Chunk.ChunkID != "article_6_1" || got.Chunk.Page != 3 {
		t.Fatalf("unexpected hit %+v", got)
	}
	if got.Chunk.Level != domain.LevelSubsection || got.Chunk.Reference.String() != "Article 6(1)" || got.Chunk.Reference.Chapter != "2" {
		t.Fatalf("unexpected reference %+v", got.Chunk)
	}
}

func TestPruneVersionsKeepsListedVersions(t *testing.T) {
	var captured string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/docs/points/delete" {
			http.NotFound(w, r)
			return
		}
		buf := new(strings.Builder)
		_ = json.NewEncoder(buf).Encode(readJSON(r))
		captured = buf.String()
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	if err := client.PruneVersions(context.Background(), []string{"v2", "", "v1"}); err != nil {
		t.Fatalf("PruneVersions() error = %v", err)
	}
	if !strings.Contains(captured, `"must_not"`) || !strings.Contains(captured, `"any":["v2","v1"]`) {
		t.Fatalf("unexpected prune body %s", captured)
	}
	if err := client.PruneVersions(context.Background(), nil); err == nil {
		t.Fatalf("expected error when no version is kept")
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	err := client.IndexChunks(context.Background(), "v1", sampleChunks()[:1], [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 500 to be temporary, got %v", err)
	}
}

func readJSON(r *http.Request) map[string]any {
	var out map[string]any
	_ = json.NewDecoder(r.Body).Decode(&out)
	return out
}
