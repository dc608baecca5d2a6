package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/regulation-rag/internal/core/ports"
	"github.com/kirillkom/regulation-rag/internal/core/retrieval"
)

type SwapRecorder interface {
	RecordCorpusSwap(service string, chunks int, err error)
}

// CorpusLoader keeps the in-process corpus snapshot in line with the
// published version in the chunk repository.
type CorpusLoader struct {
	repo     ports.ChunkRepository
	corpus   *retrieval.Corpus
	recorder SwapRecorder
	service  string
	logger   *slog.Logger

	mu sync.Mutex
}

func NewCorpusLoader(repo ports.ChunkRepository, corpus *retrieval.Corpus, recorder SwapRecorder, service string, logger *slog.Logger) *CorpusLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusLoader{repo: repo, corpus: corpus, recorder: recorder, service: service, logger: logger}
}

// Refresh loads the current corpus version and swaps it in. Readers keep
// the old snapshot until the new one is fully loaded.
func (l *CorpusLoader) Refresh(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	version, chunks, err := l.repo.LoadCorpus(ctx)
	if err != nil {
		l.record(0, err)
		return fmt.Errorf("load corpus: %w", err)
	}
	if version == "" {
		l.logger.Warn("no corpus published yet")
		return nil
	}
	if current := l.corpus.Current(); current.Version() == version {
		return nil
	}

	previous := l.corpus.Swap(retrieval.NewSnapshot(version, chunks))
	l.record(len(chunks), nil)
	l.logger.Info("corpus swapped",
		"version", version,
		"previous_version", previous.Version(),
		"chunks", len(chunks),
	)
	return nil
}

// Watch refreshes the snapshot on every corpus-published event.
func (l *CorpusLoader) Watch(ctx context.Context, queue ports.MessageQueue) error {
	return queue.SubscribeCorpusPublished(ctx, func(handlerCtx context.Context, version string) error {
		l.logger.Info("corpus published event", "version", version)
		if err := l.Refresh(handlerCtx); err != nil {
			l.logger.Error("corpus refresh failed", "version", version, "error", err)
			return err
		}
		return nil
	})
}

func (l *CorpusLoader) record(chunks int, err error) {
	if l.recorder != nil {
		l.recorder.RecordCorpusSwap(l.service, chunks, err)
	}
}
