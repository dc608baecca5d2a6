package ports

import (
	"context"
	"io"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// QueryAnalyzer classifies a query into a structural intent.
type QueryAnalyzer interface {
	Analyze(query string) (domain.QueryAnalysis, error)
}

// QueryRetriever is the single retrieval entry point. It never fails: the
// worst case is an empty list with a low-confidence GENERAL analysis.
type QueryRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.DocumentChunk, domain.QueryAnalysis)
}

// ChatService answers questions inside a session.
type ChatService interface {
	Chat(ctx context.Context, sessionID, question string) (*domain.Answer, error)
}
