package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
	"github.com/kirillkom/regulation-rag/internal/core/retrieval"
)

type chunkRepoFake struct {
	version string
	chunks  []domain.DocumentChunk
	err     error
	loads   int
}

func (f *chunkRepoFake) ReplaceCorpus(context.Context, string, []domain.DocumentChunk) error {
	return nil
}

func (f *chunkRepoFake) LoadCorpus(context.Context) (string, []domain.DocumentChunk, error) {
	f.loads++
	return f.version, f.chunks, f.err
}

func (f *chunkRepoFake) CurrentVersion(context.Context) (string, error) {
	return f.version, f.err
}

type swapRecorderFake struct {
	successes int
	failures  int
	chunks    int
}

func (f *swapRecorderFake) RecordCorpusSwap(_ string, chunks int, err error) {
	if err != nil {
		f.failures++
		return
	}
	f.successes++
	f.chunks = chunks
}

type queueFake struct {
	corpusHandler func(context.Context, string) error
}

func (f *queueFake) PublishDocumentIngested(context.Context, string) error { return nil }
func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}
func (f *queueFake) PublishCorpusPublished(context.Context, string) error { return nil }
func (f *queueFake) SubscribeCorpusPublished(_ context.Context, handler func(context.Context, string) error) error {
	f.corpusHandler = handler
	return nil
}

func TestCorpusLoaderSwapsNewVersion(t *testing.T) {
	repo := &chunkRepoFake{version: "doc-1", chunks: []domain.DocumentChunk{{ChunkID: "article_1"}, {ChunkID: "article_2"}}}
	recorder := &swapRecorderFake{}
	corpus := retrieval.NewCorpus()
	loader := NewCorpusLoader(repo, corpus, recorder, "api", nil)

	if err := loader.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if corpus.Version() != "doc-1" || corpus.Current().Len() != 2 {
		t.Fatalf("unexpected snapshot: %s/%d", corpus.Version(), corpus.Current().Len())
	}
	if recorder.successes != 1 || recorder.chunks != 2 {
		t.Fatalf("unexpected swap metrics: %+v", recorder)
	}

	if err := loader.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	if recorder.successes != 1 {
		t.Fatalf("same version must not swap again, got %d swaps", recorder.successes)
	}
}

func TestCorpusLoaderKeepsSnapshotOnError(t *testing.T) {
	repo := &chunkRepoFake{version: "doc-1", chunks: []domain.DocumentChunk{{ChunkID: "article_1"}}}
	recorder := &swapRecorderFake{}
	corpus := retrieval.NewCorpus()
	loader := NewCorpusLoader(repo, corpus, recorder, "api", nil)
	if err := loader.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	repo.err = errors.New("db down")
	if err := loader.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	if corpus.Version() != "doc-1" {
		t.Fatalf("expected old snapshot to stay, got %q", corpus.Version())
	}
	if recorder.failures != 1 {
		t.Fatalf("expected failed swap recorded, got %d", recorder.failures)
	}
}

func TestCorpusLoaderEmptyRepositoryIsNotAnError(t *testing.T) {
	loader := NewCorpusLoader(&chunkRepoFake{}, retrieval.NewCorpus(), nil, "api", nil)
	if err := loader.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
}

func TestCorpusLoaderWatchRefreshesOnEvent(t *testing.T) {
	repo := &chunkRepoFake{}
	corpus := retrieval.NewCorpus()
	queue := &queueFake{}
	loader := NewCorpusLoader(repo, corpus, nil, "api", nil)

	if err := loader.Watch(context.Background(), queue); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	repo.version = "doc-2"
	repo.chunks = []domain.DocumentChunk{{ChunkID: "recital_1"}}
	if err := queue.corpusHandler(context.Background(), "doc-2"); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if corpus.Version() != "doc-2" {
		t.Fatalf("expected doc-2 after event, got %q", corpus.Version())
	}
}
