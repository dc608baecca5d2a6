package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type repoFake struct {
	doc         *domain.Document
	created     *domain.Document
	createErr   error
	getErr      error
	statusCalls []statusCall
	readyCount  int
	readyCalled bool
	warnings    []string
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyDoc := *doc
	f.created = &copyDoc
	return nil
}

func (f *repoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.doc == nil {
		return nil, domain.ErrDocumentNotFound
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	return nil
}

func (f *repoFake) MarkReady(_ context.Context, _ string, chunkCount int, warnings []string) error {
	f.readyCalled = true
	f.readyCount = chunkCount
	f.warnings = warnings
	return nil
}

type storageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

type queueFake struct {
	documentID string
	version    string
	err        error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func (f *queueFake) PublishCorpusPublished(_ context.Context, version string) error {
	f.version = version
	return nil
}

func (f *queueFake) SubscribeCorpusPublished(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type extractorFake struct {
	pages []domain.Page
	err   error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) ([]domain.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

type chunkerFake struct {
	window int
}

// Split cuts text into fixed windows; zero window returns the text whole.
func (f *chunkerFake) Split(text string) []string {
	if f.window <= 0 || len(text) <= f.window {
		return []string{text}
	}
	var out []string
	for start := 0; start < len(text); start += f.window {
		out = append(out, text[start:min(start+f.window, len(text))])
	}
	return out
}

type embedderFake struct {
	mu    sync.Mutex
	calls int
	texts int
	short bool
	err   error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.texts += len(texts)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, []float32{float32(len(t)), 1})
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) { return []float32{1, 1}, nil }

type vectorFake struct {
	version string
	chunks  []domain.DocumentChunk
	vectors [][]float32
	kept    []string
	err     error
}

func (f *vectorFake) IndexChunks(_ context.Context, version string, chunks []domain.DocumentChunk, vectors [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.version, f.chunks, f.vectors = version, chunks, vectors
	return nil
}

func (f *vectorFake) Search(context.Context, []float32, int, domain.SearchFilter) ([]domain.ScoredChunk, error) {
	return nil, nil
}

func (f *vectorFake) PruneVersions(_ context.Context, keep []string) error {
	f.kept = keep
	return nil
}

type chunkRepoFake struct {
	current  string
	replaced bool
	chunks   []domain.DocumentChunk
}

func (f *chunkRepoFake) ReplaceCorpus(_ context.Context, version string, chunks []domain.DocumentChunk) error {
	f.current, f.chunks, f.replaced = version, chunks, true
	return nil
}

func (f *chunkRepoFake) LoadCorpus(context.Context) (string, []domain.DocumentChunk, error) {
	return f.current, f.chunks, nil
}

func (f *chunkRepoFake) CurrentVersion(context.Context) (string, error) { return f.current, nil }

type graphFake struct {
	structures int
	err        error
}

func (f *graphFake) SyncHierarchy(_ context.Context, _ string, structures []domain.ArticleStructure) error {
	f.structures = len(structures)
	return f.err
}

func regulationPages() []domain.Page {
	return []domain.Page{
		{Number: 1, Text: "Whereas:\n(1) Natural persons should have control of their own personal data.\n(2) This Regulation respects fundamental rights."},
		{Number: 2, Text: "HAVE ADOPTED THIS REGULATION:\nCHAPTER I\nGeneral provisions\nArticle 1\nSubject-matter\n1. This Regulation lays down rules.\nArticle 2\nMaterial scope\n1. This Regulation applies to processing:\n(a) by automated means;\n(b) by other means."},
	}
}
