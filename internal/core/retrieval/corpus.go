package retrieval

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

// Snapshot is an immutable view of the chunk corpus. Callers must not
// modify the slice returned by Chunks.
type Snapshot struct {
	version  string
	loadedAt time.Time
	chunks   []domain.DocumentChunk
	byID     map[string]int
}

func NewSnapshot(version string, chunks []domain.DocumentChunk) *Snapshot {
	own := make([]domain.DocumentChunk, len(chunks))
	copy(own, chunks)
	byID := make(map[string]int, len(own))
	for i, c := range own {
		if _, exists := byID[c.ChunkID]; !exists {
			byID[c.ChunkID] = i
		}
	}
	return &Snapshot{version: version, loadedAt: time.Now().UTC(), chunks: own, byID: byID}
}

func (s *Snapshot) Version() string                { return s.version }
func (s *Snapshot) LoadedAt() time.Time            { return s.loadedAt }
func (s *Snapshot) Len() int                       { return len(s.chunks) }
func (s *Snapshot) Chunks() []domain.DocumentChunk { return s.chunks }

func (s *Snapshot) Get(chunkID string) (domain.DocumentChunk, bool) {
	i, ok := s.byID[chunkID]
	if !ok {
		return domain.DocumentChunk{}, false
	}
	return s.chunks[i], true
}

// Corpus holds the current snapshot. Replacing it is a single pointer swap,
// so a request that already read the old snapshot keeps a consistent view.
type Corpus struct {
	current atomic.Pointer[Snapshot]
}

func NewCorpus() *Corpus {
	c := &Corpus{}
	c.current.Store(NewSnapshot("", nil))
	return c
}

func (c *Corpus) Swap(next *Snapshot) *Snapshot {
	if next == nil {
		next = NewSnapshot("", nil)
	}
	return c.current.Swap(next)
}

func (c *Corpus) Current() *Snapshot {
	return c.current.Load()
}

// ListChunks satisfies ChunkLister over the current snapshot.
func (c *Corpus) ListChunks(context.Context) ([]domain.DocumentChunk, error) {
	return c.Current().Chunks(), nil
}

// Version is the corpus version semantic search is pinned to.
func (c *Corpus) Version() string {
	return c.Current().Version()
}
