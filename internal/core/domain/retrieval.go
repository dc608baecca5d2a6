package domain

// SearchFilter is a set of metadata equality constraints. An empty filter
// matches everything.
type SearchFilter map[string]string

// Matches reports whether every constraint equals the chunk's tag.
func (f SearchFilter) Matches(c DocumentChunk) bool {
	for key, want := range f {
		if chunkField(c, key) != want {
			return false
		}
	}
	return true
}

func chunkField(c DocumentChunk, key string) string {
	switch key {
	case MetaLevel:
		return string(c.Level)
	case MetaChunkID:
		return c.ChunkID
	default:
		return c.Reference.Field(key)
	}
}

// ScoredChunk is a vector search hit.
type ScoredChunk struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
}

// Citation points an answer back at a retrieved chunk.
type Citation struct {
	ChunkID   string     `json:"chunk_id"`
	Reference string     `json:"reference"`
	Level     ChunkLevel `json:"level"`
	Page      int        `json:"page"`
	Excerpt   string     `json:"excerpt"`
}

type Answer struct {
	SessionID string        `json:"session_id,omitempty"`
	Text      string        `json:"text"`
	Analysis  QueryAnalysis `json:"analysis"`
	Sources   []Citation    `json:"sources"`
}

// CitationFor builds a citation with a bounded excerpt.
func CitationFor(c DocumentChunk, excerptLen int) Citation {
	excerpt := c.Content
	if excerptLen > 0 {
		runes := []rune(excerpt)
		if len(runes) > excerptLen {
			excerpt = string(runes[:excerptLen]) + "..."
		}
	}
	return Citation{
		ChunkID:   c.ChunkID,
		Reference: c.Reference.String(),
		Level:     c.Level,
		Page:      c.Page,
		Excerpt:   excerpt,
	}
}
