package pdf

import (
	"context"
	"testing"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

func TestPagesRejectsNonPDF(t *testing.T) {
	_, err := Pages(context.Background(), []byte("Article 1\nSubject-matter"))
	if !domain.IsKind(err, domain.ErrParsing) {
		t.Fatalf("expected parsing error, got %v", err)
	}
}
