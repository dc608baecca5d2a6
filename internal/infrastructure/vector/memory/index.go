package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

type entry struct {
	version string
	chunk   domain.DocumentChunk
	vector  []float32
	norm    float64
}

// Index is an in-process vector index with the same versioning semantics as
// the Qdrant collection. It backs VECTOR_BACKEND=memory and offline ingestion.
type Index struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *Index {
	return &Index{entries: make(map[string]entry)}
}

func (x *Index) IndexChunks(_ context.Context, version string, chunks []domain.DocumentChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for i, chunk := range chunks {
		vec := slices.Clone(vectors[i])
		x.entries[version+"/"+chunk.ChunkID] = entry{
			version: version,
			chunk:   chunk,
			vector:  vec,
			norm:    norm(vec),
		}
	}
	return nil
}

func (x *Index) Search(_ context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	qNorm := norm(queryVector)

	x.mu.RLock()
	out := make([]domain.ScoredChunk, 0, len(x.entries))
	for _, e := range x.entries {
		if !matches(e, filter) {
			continue
		}
		out = append(out, domain.ScoredChunk{
			Chunk: e.chunk,
			Score: cosine(queryVector, e.vector, qNorm, e.norm),
		})
	}
	x.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Chunk.ChunkID < out[j].Chunk.ChunkID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (x *Index) PruneVersions(_ context.Context, keep []string) error {
	if len(keep) == 0 {
		return fmt.Errorf("memory index prune: refusing to delete every corpus version")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for key, e := range x.entries {
		if !slices.Contains(keep, e.version) {
			delete(x.entries, key)
		}
	}
	return nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

func matches(e entry, filter domain.SearchFilter) bool {
	rest := make(domain.SearchFilter, len(filter))
	for k, v := range filter {
		if k == domain.MetaCorpusVersion {
			if e.version != v {
				return false
			}
			continue
		}
		rest[k] = v
	}
	return rest.Matches(e.chunk)
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	n := min(len(a), len(b))
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
