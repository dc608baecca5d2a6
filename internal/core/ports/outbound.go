package ports

import (
	"context"
	"io"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	MarkReady(ctx context.Context, id string, chunkCount int, warnings []string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion and corpus events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishCorpusPublished(ctx context.Context, version string) error
	SubscribeCorpusPublished(ctx context.Context, handler func(context.Context, string) error) error
}

// PageExtractor extracts per-page text from a stored document.
type PageExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) ([]domain.Page, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits long text into embedding windows.
type Chunker interface {
	Split(text string) []string
}

// VectorIndex stores chunk vectors under a corpus version and searches them.
type VectorIndex interface {
	IndexChunks(ctx context.Context, version string, chunks []domain.DocumentChunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredChunk, error)
	PruneVersions(ctx context.Context, keep []string) error
}

// ChunkRepository is the system of record for the published chunk corpus.
type ChunkRepository interface {
	ReplaceCorpus(ctx context.Context, version string, chunks []domain.DocumentChunk) error
	LoadCorpus(ctx context.Context) (string, []domain.DocumentChunk, error)
	CurrentVersion(ctx context.Context) (string, error)
}

// Reranker reorders semantic candidates and keeps the best topN.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.ScoredChunk, topN int) ([]domain.ScoredChunk, error)
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, history []domain.ChatMessage, chunks []domain.DocumentChunk, analysis domain.QueryAnalysis) (string, error)
}

// SessionStore keeps chat history keyed by session id.
type SessionStore interface {
	History(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
	Append(ctx context.Context, messages ...domain.ChatMessage) error
}

// HierarchyGraph mirrors the chapter/section/article tree into a graph store.
type HierarchyGraph interface {
	SyncHierarchy(ctx context.Context, version string, structures []domain.ArticleStructure) error
}
