package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
	"github.com/kirillkom/regulation-rag/internal/core/structure"
)

const (
	sheetSummary  = "Summary"
	sheetChunks   = "Chunks"
	sheetArticles = "Articles"
)

// WriteReport renders an ingestion review workbook: summary counts and
// validation warnings, every chunk with its reference tags, and the article
// outline.
func WriteReport(w io.Writer, structures []domain.ArticleStructure, chunks []domain.DocumentChunk, report structure.Report) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	for _, name := range []string{sheetChunks, sheetArticles} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	summary := [][]any{
		{"Metric", "Value"},
		{"Recitals", report.Recitals},
		{"Articles", report.Articles},
		{"Subsections", report.Subsections},
		{"Points", report.Points},
		{"Chunks", report.Chunks},
		{"Warnings", len(report.Warnings)},
	}
	for _, warning := range report.Warnings {
		summary = append(summary, []any{"Warning", warning})
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}

	chunkRows := make([][]any, 0, len(chunks)+1)
	chunkRows = append(chunkRows, []any{"Chunk ID", "Level", "Reference", "Chapter", "Section", "Article", "Subsection", "Point", "Recital", "Page", "Parent", "Content"})
	for _, c := range chunks {
		r := c.Reference
		chunkRows = append(chunkRows, []any{
			c.ChunkID, string(c.Level), r.String(), r.Chapter, r.Section, r.Article, r.Subsection, r.Point, r.Recital, c.Page, c.ParentContent, c.Content,
		})
	}
	if err := writeRows(f, sheetChunks, chunkRows); err != nil {
		return err
	}

	articleRows := [][]any{{"Article", "Title", "Chapter", "Chapter title", "Section", "Section title", "Page", "Subsections"}}
	for _, s := range structures {
		if s.IsRecital {
			continue
		}
		articleRows = append(articleRows, []any{s.ID, s.Title, s.Chapter, s.ChapterTitle, s.Section, s.SectionTitle, s.Page, len(s.Subsections)})
	}
	if err := writeRows(f, sheetArticles, articleRows); err != nil {
		return err
	}

	if err := f.SetPanes(sheetChunks, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze chunk header: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
