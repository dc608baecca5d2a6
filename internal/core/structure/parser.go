package structure

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

const DefaultTitleMaxLen = 200

type phase int

const (
	phaseRecitals phase = iota
	phaseLegislation
)

func (p phase) String() string {
	if p == phaseRecitals {
		return "recitals"
	}
	return "legislation"
}

// Parser segments the text of a regulation into recitals and articles.
// It is stateless between calls and safe for concurrent use.
type Parser struct {
	titleMaxLen int
	logger      *slog.Logger
}

type Option func(*Parser)

// WithTitleMaxLen bounds the line that may be claimed as a heading title.
func WithTitleMaxLen(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.titleMaxLen = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{titleMaxLen: DefaultTitleMaxLen, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns recitals and articles in document order. Empty or
// unrecognisable input yields no structures and no error.
func (p *Parser) Parse(pages []domain.Page) []domain.ArticleStructure {
	return p.ParseLines(Flatten(pages))
}

func (p *Parser) ParseLines(lines []Line) []domain.ArticleStructure {
	s := &scanner{lines: lines, titleMaxLen: p.titleMaxLen, logger: p.logger}
	s.run()
	return s.out
}

type scanner struct {
	lines       []Line
	titleMaxLen int
	logger      *slog.Logger

	phase        phase
	chapter      string
	chapterTitle string
	section      string
	sectionTitle string

	current *domain.ArticleStructure
	parts   []string
	out     []domain.ArticleStructure

	lastRecital  int
	footnotePage int
}

func (s *scanner) run() {
	for i := 0; i < len(s.lines); i++ {
		line := s.lines[i]
		if s.phase == phaseRecitals && endsPreamble(line.Text) {
			s.phase = phaseLegislation
			s.logger.Debug("structure phase switch", "to", s.phase.String(), "page", line.Page, "line", line.Text)
		}
		if s.phase == phaseRecitals {
			s.recitalLine(line)
			continue
		}
		i += s.legislativeLine(i)
	}
	s.flush()
}

func (s *scanner) recitalLine(line Line) {
	if id, rest, ok := recitalMarker(line.Text); ok {
		n, _ := strconv.Atoi(id)
		if s.isFootnote(n, rest) {
			s.footnotePage = line.Page
			s.logger.Debug("preamble footnote skipped", "page", line.Page, "line", line.Text)
			return
		}
		s.flush()
		s.footnotePage = 0
		s.lastRecital = n
		s.current = &domain.ArticleStructure{
			ID:        id,
			Title:     "Recital " + id,
			Page:      line.Page,
			IsRecital: true,
		}
		s.parts = []string{rest}
		return
	}
	// Footnote text runs to the end of its page; the recital resumes on the next.
	if s.footnotePage != 0 && s.footnotePage == line.Page {
		return
	}
	s.footnotePage = 0
	if s.current != nil && s.current.IsRecital {
		s.parts = append(s.parts, line.Text)
	}
}

// isFootnote reports whether a numbered preamble line is an Official Journal
// footnote rather than a recital. Recital numbers only ever increase.
func (s *scanner) isFootnote(n int, rest string) bool {
	if strings.HasPrefix(rest, "OJ ") {
		return true
	}
	return n <= s.lastRecital
}

// legislativeLine handles lines[i] and returns how many following lines it consumed.
func (s *scanner) legislativeLine(i int) int {
	line := s.lines[i]

	if id, ok := chapterHeading(line.Text); ok {
		s.flush()
		s.chapter, s.chapterTitle = id, ""
		s.section, s.sectionTitle = "", ""
		if title, ok := s.titleAfter(i); ok {
			s.chapterTitle = title
			return 1
		}
		return 0
	}

	if id, ok := sectionHeading(line.Text); ok {
		s.flush()
		s.section, s.sectionTitle = id, ""
		if title, ok := s.titleAfter(i); ok {
			s.sectionTitle = title
			return 1
		}
		return 0
	}

	if id, ok := articleHeading(line.Text); ok {
		s.flush()
		s.current = &domain.ArticleStructure{
			ID:           id,
			Title:        "Article " + id,
			Page:         line.Page,
			Chapter:      s.chapter,
			ChapterTitle: s.chapterTitle,
			Section:      s.section,
			SectionTitle: s.sectionTitle,
		}
		s.parts = nil
		if title, ok := s.titleAfter(i); ok {
			s.current.Title = title
			return 1
		}
		return 0
	}

	if s.current != nil && !s.current.IsRecital {
		s.parts = append(s.parts, line.Text)
	}
	return 0
}

func (s *scanner) titleAfter(i int) (string, bool) {
	if i+1 >= len(s.lines) {
		return "", false
	}
	next := s.lines[i+1].Text
	if !claimsTitle(next, s.titleMaxLen) {
		return "", false
	}
	return next, true
}

func (s *scanner) flush() {
	if s.current == nil {
		return
	}
	st := *s.current
	if st.IsRecital {
		st.FullText = strings.TrimSpace(strings.Join(s.parts, " "))
	} else {
		st.FullText = strings.Join(s.parts, "\n")
		st.Subsections = parseSubsections(s.parts)
	}
	s.out = append(s.out, st)
	s.current = nil
	s.parts = nil
}

// parseSubsections splits article lines into numbered subsections and their
// lettered points. Prose before the first marker stays only in the full text.
func parseSubsections(lines []string) []domain.Subsection {
	var (
		out   []domain.Subsection
		cur   *domain.Subsection
		parts []string
	)
	save := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(strings.Join(parts, " "))
		out = append(out, *cur)
	}

	for _, line := range lines {
		if num, rest, ok := subsectionMarker(line); ok {
			save()
			cur = &domain.Subsection{Number: num}
			parts = []string{rest}
			continue
		}
		if letter, rest, ok := pointMarker(line); ok {
			if cur == nil {
				cur = &domain.Subsection{Number: "0"}
				parts = nil
			}
			cur.Points = append(cur.Points, domain.Point{Letter: letter, Text: rest})
			continue
		}
		switch {
		case cur != nil && len(cur.Points) > 0:
			last := &cur.Points[len(cur.Points)-1]
			last.Text = strings.TrimSpace(last.Text + " " + line)
		case cur != nil:
			parts = append(parts, line)
		}
	}
	save()
	return out
}
