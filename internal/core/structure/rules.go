package structure

import (
	"regexp"
	"strings"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

var (
	chapterHeadingRe   = regexp.MustCompile(`^(?i:chapter)\s+([IVXLCivxlc]+|\d+)\s*$`)
	sectionHeadingRe   = regexp.MustCompile(`^(?i:section)\s+(\d+)\s*$`)
	articleHeadingRe   = regexp.MustCompile(`^(?i:article)\s+(\d+)\s*$`)
	recitalMarkerRe    = regexp.MustCompile(`^\(?\s*(\d+)\s*\)\.?\s*`)
	subsectionMarkerRe = regexp.MustCompile(`^(\d+)\.\s`)
	pointMarkerRe      = regexp.MustCompile(`^\(([a-z])\)\s`)
	preambleEndPhrases = []string{"HAVE ADOPTED THIS REGULATION", "HAVE ADOPTED THIS DIRECTIVE"}
)

// chapterHeading returns the normalized chapter id of a "CHAPTER IV" line.
func chapterHeading(line string) (string, bool) {
	m := chapterHeadingRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return domain.NormalizeChapter(m[1]), true
}

func sectionHeading(line string) (string, bool) {
	m := sectionHeadingRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func articleHeading(line string) (string, bool) {
	m := articleHeadingRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// recitalMarker returns the recital number and the text after the marker.
func recitalMarker(line string) (string, string, bool) {
	m := recitalMarkerRe.FindStringSubmatchIndex(line)
	if m == nil {
		return "", "", false
	}
	return line[m[2]:m[3]], strings.TrimSpace(line[m[1]:]), true
}

func subsectionMarker(line string) (string, string, bool) {
	m := subsectionMarkerRe.FindStringSubmatchIndex(line)
	if m == nil {
		return "", "", false
	}
	return line[m[2]:m[3]], strings.TrimSpace(line[m[1]:]), true
}

func pointMarker(line string) (string, string, bool) {
	m := pointMarkerRe.FindStringSubmatchIndex(line)
	if m == nil {
		return "", "", false
	}
	return line[m[2]:m[3]], strings.TrimSpace(line[m[1]:]), true
}

func isStructuralHeading(line string) bool {
	if _, ok := chapterHeading(line); ok {
		return true
	}
	if _, ok := sectionHeading(line); ok {
		return true
	}
	_, ok := articleHeading(line)
	return ok
}

// endsPreamble reports whether a line moves the scanner into the enacting
// terms: the adoption formula, the first chapter or Article 1.
func endsPreamble(line string) bool {
	upper := strings.ToUpper(line)
	for _, phrase := range preambleEndPhrases {
		if strings.Contains(upper, phrase) {
			return true
		}
	}
	if chapter, ok := chapterHeading(line); ok && chapter == "1" {
		return true
	}
	if article, ok := articleHeading(line); ok && article == "1" {
		return true
	}
	return false
}

// claimsTitle reports whether the line after a heading can serve as its title.
func claimsTitle(line string, maxLen int) bool {
	if line == "" || len([]rune(line)) >= maxLen {
		return false
	}
	if _, _, ok := subsectionMarker(line); ok {
		return false
	}
	if _, _, ok := pointMarker(line); ok {
		return false
	}
	return !isStructuralHeading(line)
}
