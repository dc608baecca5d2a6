package domain

import "strings"

// ChunkLevel is the granularity of an indexed chunk.
type ChunkLevel string

const (
	LevelRecital    ChunkLevel = "recital"
	LevelArticle    ChunkLevel = "article"
	LevelSubsection ChunkLevel = "subsection"
	LevelPoint      ChunkLevel = "point"
)

// Metadata keys shared by the chunk corpus, vector payloads and equality filters.
const (
	MetaRecital       = "recital"
	MetaChapter       = "chapter"
	MetaChapterTitle  = "chapter_title"
	MetaSection       = "section"
	MetaSectionTitle  = "section_title"
	MetaArticle       = "article"
	MetaArticleTitle  = "article_title"
	MetaSubsection    = "subsection"
	MetaPoint         = "point"
	MetaLevel         = "level"
	MetaChunkID       = "chunk_id"
	MetaPage          = "page"
	MetaCorpusVersion = "corpus_version"
)

// LegalReference is a flat tag set locating a chunk in the regulation.
// Recitals and articles are disjoint reference spaces: a reference built with
// NewRecitalReference never carries article-family tags.
type LegalReference struct {
	Recital      string `json:"recital,omitempty"`
	Chapter      string `json:"chapter,omitempty"`
	ChapterTitle string `json:"chapter_title,omitempty"`
	Section      string `json:"section,omitempty"`
	SectionTitle string `json:"section_title,omitempty"`
	Article      string `json:"article,omitempty"`
	ArticleTitle string `json:"article_title,omitempty"`
	Subsection   string `json:"subsection,omitempty"`
	Point        string `json:"point,omitempty"`
}

func NewRecitalReference(id string) LegalReference {
	return LegalReference{Recital: id}
}

// IsRecital reports whether the reference addresses the preamble.
func (r LegalReference) IsRecital() bool {
	return r.Recital != ""
}

// HasArticleFamily reports whether any chapter/section/article tag is set.
func (r LegalReference) HasArticleFamily() bool {
	return r.Chapter != "" || r.ChapterTitle != "" || r.Section != "" || r.SectionTitle != "" ||
		r.Article != "" || r.ArticleTitle != "" || r.Subsection != "" || r.Point != ""
}

// Field returns the tag stored under a metadata key, or "" when unset.
func (r LegalReference) Field(key string) string {
	switch key {
	case MetaRecital:
		return r.Recital
	case MetaChapter:
		return r.Chapter
	case MetaChapterTitle:
		return r.ChapterTitle
	case MetaSection:
		return r.Section
	case MetaSectionTitle:
		return r.SectionTitle
	case MetaArticle:
		return r.Article
	case MetaArticleTitle:
		return r.ArticleTitle
	case MetaSubsection:
		return r.Subsection
	case MetaPoint:
		return r.Point
	default:
		return ""
	}
}

// Metadata flattens the reference into non-empty string tags.
func (r LegalReference) Metadata() map[string]string {
	out := make(map[string]string, 9)
	for _, key := range referenceKeys {
		if v := r.Field(key); v != "" {
			out[key] = v
		}
	}
	return out
}

// ReferenceFromMetadata is the inverse of Metadata. Unknown keys are ignored.
func ReferenceFromMetadata(meta map[string]string) LegalReference {
	return LegalReference{
		Recital:      meta[MetaRecital],
		Chapter:      meta[MetaChapter],
		ChapterTitle: meta[MetaChapterTitle],
		Section:      meta[MetaSection],
		SectionTitle: meta[MetaSectionTitle],
		Article:      meta[MetaArticle],
		ArticleTitle: meta[MetaArticleTitle],
		Subsection:   meta[MetaSubsection],
		Point:        meta[MetaPoint],
	}
}

// String renders a human citation such as "Article 6(1)(a)" or "Recital 42".
func (r LegalReference) String() string {
	if r.Recital != "" {
		return "Recital " + r.Recital
	}
	if r.Article == "" {
		switch {
		case r.Chapter != "" && r.Section != "":
			return "Chapter " + r.Chapter + " Section " + r.Section
		case r.Chapter != "":
			return "Chapter " + r.Chapter
		case r.Section != "":
			return "Section " + r.Section
		}
		return ""
	}
	var b strings.Builder
	b.WriteString("Article ")
	b.WriteString(r.Article)
	if r.Subsection != "" {
		b.WriteString("(" + r.Subsection + ")")
	}
	if r.Point != "" {
		b.WriteString("(" + r.Point + ")")
	}
	return b.String()
}

var referenceKeys = []string{
	MetaRecital, MetaChapter, MetaChapterTitle, MetaSection, MetaSectionTitle,
	MetaArticle, MetaArticleTitle, MetaSubsection, MetaPoint,
}

// DocumentChunk is an addressable, immutable unit of the chunk corpus.
type DocumentChunk struct {
	ChunkID       string         `json:"chunk_id"`
	Content       string         `json:"content"`
	Reference     LegalReference `json:"reference"`
	Page          int            `json:"page"`
	Level         ChunkLevel     `json:"level"`
	ParentContent string         `json:"parent_content,omitempty"`
}

// EmbeddingText is the text handed to the embedder: the contextual parent
// prefix followed by the chunk content.
func (c DocumentChunk) EmbeddingText() string {
	if c.ParentContent == "" {
		return c.Content
	}
	return c.ParentContent + "\n" + c.Content
}

// Page is one page of extracted source text. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Point is a lettered item inside a subsection.
type Point struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// Subsection is a numbered paragraph of an article.
type Subsection struct {
	Number string  `json:"number"`
	Text   string  `json:"text"`
	Points []Point `json:"points,omitempty"`
}

// ArticleStructure is the ingestion-only intermediate built while scanning.
// It is flushed into chunks and never reaches the query-time corpus.
type ArticleStructure struct {
	ID           string
	Title        string
	Page         int
	FullText     string
	Subsections  []Subsection
	Chapter      string
	ChapterTitle string
	Section      string
	SectionTitle string
	IsRecital    bool
}
