package structure

import (
	"strings"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

// BuildChunks flattens parsed structures into the multi-granularity corpus.
// Chunk ids depend only on structure ids, so re-ingesting unchanged text
// reproduces the same ids.
func BuildChunks(structures []domain.ArticleStructure) []domain.DocumentChunk {
	out := make([]domain.DocumentChunk, 0, len(structures)*4)
	for _, st := range structures {
		if st.IsRecital {
			out = append(out, domain.DocumentChunk{
				ChunkID:   "recital_" + st.ID,
				Content:   st.FullText,
				Reference: domain.NewRecitalReference(st.ID),
				Page:      st.Page,
				Level:     domain.LevelRecital,
			})
			continue
		}
		out = append(out, articleChunks(st)...)
	}
	return out
}

func articleChunks(st domain.ArticleStructure) []domain.DocumentChunk {
	base := domain.LegalReference{
		Chapter:      st.Chapter,
		ChapterTitle: st.ChapterTitle,
		Section:      st.Section,
		SectionTitle: st.SectionTitle,
		Article:      st.ID,
		ArticleTitle: st.Title,
	}
	out := []domain.DocumentChunk{{
		ChunkID:   "article_" + st.ID,
		Content:   strings.TrimSpace(st.FullText),
		Reference: base,
		Page:      st.Page,
		Level:     domain.LevelArticle,
	}}

	for _, sub := range st.Subsections {
		subRef := base
		subRef.Subsection = sub.Number
		subID := "article_" + st.ID + "_" + sub.Number
		out = append(out, domain.DocumentChunk{
			ChunkID:       subID,
			Content:       subsectionContent(sub),
			Reference:     subRef,
			Page:          st.Page,
			Level:         domain.LevelSubsection,
			ParentContent: st.Title,
		})
		for _, pt := range sub.Points {
			ptRef := subRef
			ptRef.Point = pt.Letter
			out = append(out, domain.DocumentChunk{
				ChunkID:       subID + "_" + pt.Letter,
				Content:       pt.Text,
				Reference:     ptRef,
				Page:          st.Page,
				Level:         domain.LevelPoint,
				ParentContent: "Article " + st.ID + "(" + sub.Number + ")",
			})
		}
	}
	return out
}

func subsectionContent(sub domain.Subsection) string {
	var b strings.Builder
	b.WriteString(sub.Text)
	for _, pt := range sub.Points {
		b.WriteString("\n(")
		b.WriteString(pt.Letter)
		b.WriteString(") ")
		b.WriteString(pt.Text)
	}
	return strings.TrimSpace(b.String())
}
