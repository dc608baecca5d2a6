package retrieval

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

const (
	confidenceHierarchy  = 0.95
	confidenceFullRef    = 0.95
	confidenceSubRef     = 0.90
	confidenceArticle    = 0.85
	confidenceComparison = 0.80
	confidenceConceptual = 0.70
	confidenceGeneral    = 0.50
	confidenceDegraded   = 0.30
)

var (
	chapterSectionRe = regexp.MustCompile(`(?i)(?:chapter|chap)[\s\-]*([ivx]+|\d+)[\s,]+(?:section|sec)[\s\-]*(\d+)`)
	sectionRe        = regexp.MustCompile(`(?i)(?:section|sec)[\s\-]*(\d+)`)
	chapterRe        = regexp.MustCompile(`(?i)(?:chapter|chap)[\s\-]*([ivx]+|\d+)\b`)
	recitalRe        = regexp.MustCompile(`(?i)(?:recital|regulation)(?:[\s\-]*(?:point|clause|part|no|number|num|#|\.))*[\s\-]*\(*(\d+)\)*`)
	fullDottedRe     = regexp.MustCompile(`(?i)article\s+(\d+)\.(\d+)\.([a-z])\b`)
	fullParenRe      = regexp.MustCompile(`(?i)article\s+(\d+)\s*\((\d+)\)\s*\(([a-z])\)`)
	subDottedRe      = regexp.MustCompile(`(?i)article\s+(\d+)\.(\d+)`)
	subParenRe       = regexp.MustCompile(`(?i)article\s+(\d+)\s*\((\d+)\)`)
	articleRe        = regexp.MustCompile(`(?i)article\s+(\d+)`)
)

// AnalyzerVocabulary holds the phrase sets that steer classification.
type AnalyzerVocabulary struct {
	SectionIndicators  []string `yaml:"section_indicators"`
	ChapterIndicators  []string `yaml:"chapter_indicators"`
	LookupVerbs        []string `yaml:"lookup_verbs"`
	ComparisonKeywords []string `yaml:"comparison_keywords"`
	ConceptualKeywords []string `yaml:"conceptual_keywords"`
}

func DefaultVocabulary() AnalyzerVocabulary {
	return AnalyzerVocabulary{
		SectionIndicators: []string{
			"section start", "start from", "which article", "show section", "what is section",
			"display section", "section contain", "in section", "section has",
		},
		ChapterIndicators: []string{
			"chapter start", "start from", "which article", "show chapter", "what is chapter",
			"display chapter", "chapter contain", "in chapter", "chapter has",
		},
		LookupVerbs: []string{"show", "display", "get", "find", "retrieve", "read"},
		ComparisonKeywords: []string{
			"difference", "compare", "versus", "vs", "distinction", "similar", "different", "both", "either", "between",
		},
		ConceptualKeywords: []string{
			"what is", "what are", "explain", "describe", "how does", "why", "when", "requirements", "rules",
			"provisions", "obligations", "rights", "principles", "definition", "tell me", "can i", "do i need",
		},
	}
}

// Merge fills empty lists from defaults.
func (v AnalyzerVocabulary) Merge(defaults AnalyzerVocabulary) AnalyzerVocabulary {
	pick := func(own, fallback []string) []string {
		if len(own) > 0 {
			return own
		}
		return fallback
	}
	return AnalyzerVocabulary{
		SectionIndicators:  pick(v.SectionIndicators, defaults.SectionIndicators),
		ChapterIndicators:  pick(v.ChapterIndicators, defaults.ChapterIndicators),
		LookupVerbs:        pick(v.LookupVerbs, defaults.LookupVerbs),
		ComparisonKeywords: pick(v.ComparisonKeywords, defaults.ComparisonKeywords),
		ConceptualKeywords: pick(v.ConceptualKeywords, defaults.ConceptualKeywords),
	}
}

// Analyzer classifies queries by ordered pattern checks; the first match wins.
type Analyzer struct {
	vocab AnalyzerVocabulary
}

func NewAnalyzer(vocab AnalyzerVocabulary) *Analyzer {
	return &Analyzer{vocab: vocab.Merge(DefaultVocabulary())}
}

// Analyze never fails on ordinary input. The error return covers a crash in
// classification and always wraps domain.ErrQueryRouting.
func (a *Analyzer) Analyze(query string) (analysis domain.QueryAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.WrapError(domain.ErrQueryRouting, "analyze query", fmt.Errorf("panic: %v", r))
		}
	}()
	return a.classify(query), nil
}

func (a *Analyzer) classify(query string) domain.QueryAnalysis {
	lower := strings.ToLower(strings.TrimSpace(query))
	result := func(t domain.QueryType, conf float64, target domain.QueryTarget) domain.QueryAnalysis {
		return domain.QueryAnalysis{Type: t, OriginalQuery: query, Confidence: conf, Target: target}
	}

	if m := chapterSectionRe.FindStringSubmatch(lower); m != nil {
		return result(domain.QueryChapterSectionLookup, confidenceHierarchy,
			domain.HierarchyTarget{Chapter: domain.NormalizeChapter(m[1]), Section: m[2]})
	}
	if m := sectionRe.FindStringSubmatch(lower); m != nil && containsAny(lower, a.vocab.SectionIndicators) {
		return result(domain.QuerySectionLookup, confidenceHierarchy, domain.HierarchyTarget{Section: m[1]})
	}
	if m := chapterRe.FindStringSubmatch(lower); m != nil && containsAny(lower, a.vocab.ChapterIndicators) {
		return result(domain.QueryChapterLookup, confidenceHierarchy,
			domain.HierarchyTarget{Chapter: domain.NormalizeChapter(m[1])})
	}
	if m := recitalRe.FindStringSubmatch(lower); m != nil {
		return result(domain.QueryRecitalLookup, confidenceHierarchy, domain.RecitalTarget{Recital: m[1]})
	}

	for _, re := range []*regexp.Regexp{fullDottedRe, fullParenRe} {
		if m := re.FindStringSubmatch(lower); m != nil {
			return result(domain.QueryExactReference, confidenceFullRef,
				domain.ProvisionTarget{Article: m[1], Subsection: m[2], Point: m[3]})
		}
	}
	for _, re := range []*regexp.Regexp{subDottedRe, subParenRe} {
		if m := re.FindStringSubmatch(lower); m != nil {
			return result(domain.QueryExactReference, confidenceSubRef,
				domain.ProvisionTarget{Article: m[1], Subsection: m[2]})
		}
	}

	articles := articleNumbers(lower)
	comparison := containsAny(lower, a.vocab.ComparisonKeywords)

	// A comparison naming several articles keeps all of them instead of
	// collapsing onto the first bare reference.
	if comparison && len(articles) >= 2 {
		return comparisonResult(query, articles)
	}
	if article, ok := bareArticle(lower); ok {
		if containsAny(lower, a.vocab.LookupVerbs) {
			return result(domain.QueryArticleLookup, confidenceArticle, domain.ProvisionTarget{Article: article})
		}
		return result(domain.QueryConceptual, confidenceConceptual, domain.ProvisionTarget{Article: article})
	}
	if comparison {
		return comparisonResult(query, articles)
	}
	if containsAny(lower, a.vocab.ConceptualKeywords) {
		analysis := result(domain.QueryConceptual, confidenceConceptual, nil)
		if len(articles) > 0 {
			analysis.Target = domain.ProvisionTarget{Article: articles[0]}
			analysis.Concepts = articles
		}
		return analysis
	}
	return domain.GeneralAnalysis(query, confidenceGeneral)
}

func comparisonResult(query string, articles []string) domain.QueryAnalysis {
	analysis := domain.QueryAnalysis{
		Type:          domain.QueryComparison,
		OriginalQuery: query,
		Confidence:    confidenceComparison,
		Concepts:      articles,
	}
	if len(articles) > 0 {
		analysis.Target = domain.ProvisionTarget{Article: articles[0]}
	}
	return analysis
}

// bareArticle finds the first "article N" not followed by a subsection
// marker ("N.S", "N(S)") or further digits.
func bareArticle(lower string) (string, bool) {
	for _, loc := range articleRe.FindAllStringSubmatchIndex(lower, -1) {
		rest := lower[loc[1]:]
		if strings.HasPrefix(rest, "(") {
			continue
		}
		if len(rest) >= 2 && rest[0] == '.' && unicode.IsDigit(rune(rest[1])) {
			continue
		}
		return lower[loc[2]:loc[3]], true
	}
	return "", false
}

// articleNumbers lists every article number mentioned, in order, without repeats.
func articleNumbers(lower string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range articleRe.FindAllStringSubmatch(lower, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// containsAny matches phrases on word boundaries so that "vs" does not fire
// inside "obvs" and "get" does not fire inside "target".
func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if containsPhrase(text, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		begin := start + idx
		end := begin + len(phrase)
		if isBoundary(text, begin-1) && isBoundary(text, end) {
			return true
		}
		start = begin + 1
	}
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := rune(text[i])
	return !unicode.IsLetter(c) && !unicode.IsDigit(c)
}
