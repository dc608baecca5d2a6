package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
	"github.com/kirillkom/regulation-rag/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	return Pages(raw)
}

// Pages splits text on form feeds, the page separator pdftotext emits.
// Pages are numbered from 1; a file without form feeds is a single page.
func Pages(raw []byte) ([]domain.Page, error) {
	if !utf8.Valid(raw) {
		return nil, domain.WrapError(domain.ErrParsing, "plain text pages", fmt.Errorf("input is not valid utf-8"))
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	parts := strings.Split(text, "\f")
	pages := make([]domain.Page, 0, len(parts))
	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: part})
	}
	return pages, nil
}
