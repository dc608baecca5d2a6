package structure

import (
	"strings"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

// Line is one trimmed, non-empty source line tagged with its page.
type Line struct {
	Text string
	Page int
}

// Flatten splits pages into a single line stream. Provisions may continue
// across page boundaries, so page breaks carry no structural meaning.
func Flatten(pages []domain.Page) []Line {
	out := make([]Line, 0, len(pages)*40)
	for _, page := range pages {
		for _, raw := range strings.Split(page.Text, "\n") {
			text := strings.TrimSpace(strings.ReplaceAll(raw, "\u00a0", " "))
			if text == "" {
				continue
			}
			out = append(out, Line{Text: text, Page: page.Number})
		}
	}
	return out
}
