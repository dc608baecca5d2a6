package extractor

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

type memStorage map[string]string

func (m memStorage) Save(context.Context, string, io.Reader) error { return nil }

func (m memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m[key])), nil
}

func TestKind(t *testing.T) {
	cases := []struct{ name, mime, want string }{
		{"gdpr.pdf", "", KindPDF},
		{"upload.bin", "application/pdf", KindPDF},
		{"gdpr.TXT", "application/octet-stream", KindText},
		{"notes", "text/plain; charset=utf-8", KindText},
		{"image.png", "image/png", KindUnknown},
	}
	for _, tc := range cases {
		if got := Kind(tc.name, tc.mime); got != tc.want {
			t.Fatalf("Kind(%q, %q) = %q, want %q", tc.name, tc.mime, got, tc.want)
		}
	}
}

func TestDispatchRoutesPlainText(t *testing.T) {
	d := New(memStorage{"k": "Article 1\nSubject-matter"})
	pages, err := d.Extract(context.Background(), &domain.Document{Filename: "reg.txt", StoragePath: "k"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(pages) != 1 || pages[0].Number != 1 {
		t.Fatalf("unexpected pages %+v", pages)
	}

	_, err = d.Extract(context.Background(), &domain.Document{Filename: "reg.docx", StoragePath: "k"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unsupported type, got %v", err)
	}
}
