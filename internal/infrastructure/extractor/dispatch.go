package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
	"github.com/kirillkom/regulation-rag/internal/core/ports"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/regulation-rag/internal/infrastructure/extractor/plaintext"
)

// Dispatch picks the page extractor by MIME type, falling back to the file
// extension.
type Dispatch struct {
	pdf  ports.PageExtractor
	text ports.PageExtractor
}

func New(storage ports.ObjectStorage) *Dispatch {
	return &Dispatch{
		pdf:  pdf.NewExtractor(storage),
		text: plaintext.NewExtractor(storage),
	}
}

func (d *Dispatch) Extract(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	switch Kind(doc.Filename, doc.MimeType) {
	case KindPDF:
		return d.pdf.Extract(ctx, doc)
	case KindText:
		return d.text.Extract(ctx, doc)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages",
			fmt.Errorf("unsupported document %q (%s)", doc.Filename, doc.MimeType))
	}
}

// PagesFromBytes extracts pages from an in-memory file.
func PagesFromBytes(ctx context.Context, filename string, raw []byte) ([]domain.Page, error) {
	switch Kind(filename, "") {
	case KindPDF:
		return pdf.Pages(ctx, raw)
	case KindText:
		return plaintext.Pages(raw)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages", fmt.Errorf("unsupported file %q", filename))
	}
}

const (
	KindUnknown = ""
	KindPDF     = "pdf"
	KindText    = "text"
)

func Kind(filename, mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])) {
	case "application/pdf":
		return KindPDF
	case "text/plain":
		return KindText
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".txt":
		return KindText
	}
	return KindUnknown
}
