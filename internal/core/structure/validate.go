package structure

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

// Report summarises a parsed corpus. Warnings flag likely mis-segmentation
// that does not by itself make the corpus unusable.
type Report struct {
	Recitals    int      `json:"recitals"`
	Articles    int      `json:"articles"`
	Subsections int      `json:"subsections"`
	Points      int      `json:"points"`
	Chunks      int      `json:"chunks"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Validate checks the parsed structures and their chunks before publication.
// The returned error wraps domain.ErrParsing and means the corpus must not
// be published.
func Validate(structures []domain.ArticleStructure, chunks []domain.DocumentChunk) (Report, error) {
	report := Report{Chunks: len(chunks)}
	var fatal []string

	lastRecital, lastArticle := 0, 0
	for _, st := range structures {
		if st.IsRecital {
			report.Recitals++
			lastRecital = checkSequence(&report, "recital", st.ID, lastRecital)
			if strings.TrimSpace(st.FullText) == "" {
				report.Warnings = append(report.Warnings, fmt.Sprintf("recital %s has no text", st.ID))
			}
			continue
		}
		report.Articles++
		lastArticle = checkSequence(&report, "article", st.ID, lastArticle)
		for _, sub := range st.Subsections {
			report.Subsections++
			report.Points += len(sub.Points)
		}
	}
	if report.Articles == 0 {
		report.Warnings = append(report.Warnings, "no article headings recognised; the enacting terms may not have been detected")
	}

	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if _, dup := seen[c.ChunkID]; dup {
			fatal = append(fatal, "duplicate chunk id "+c.ChunkID)
			continue
		}
		seen[c.ChunkID] = struct{}{}
		if c.Level == domain.LevelRecital && c.Reference.HasArticleFamily() {
			fatal = append(fatal, "recital chunk "+c.ChunkID+" carries article tags")
		}
		if c.Level != domain.LevelRecital && c.Reference.IsRecital() {
			fatal = append(fatal, "chunk "+c.ChunkID+" mixes recital and article tags")
		}
	}
	if len(chunks) == 0 {
		fatal = append(fatal, "no recitals or articles recognised")
	}

	if len(fatal) > 0 {
		return report, domain.WrapError(domain.ErrParsing, "validate corpus", fmt.Errorf("%s", strings.Join(fatal, "; ")))
	}
	return report, nil
}

func checkSequence(report *Report, kind, id string, last int) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return last
	}
	if last > 0 && n != last+1 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s %d follows %d", kind, n, last))
	}
	return n
}
