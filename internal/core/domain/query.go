package domain

import "encoding/json"

// QueryType is the intent assigned to a user query by the analyzer.
type QueryType string

const (
	QueryRecitalLookup        QueryType = "RECITAL_LOOKUP"
	QueryChapterSectionLookup QueryType = "CHAPTER_SECTION_LOOKUP"
	QuerySectionLookup        QueryType = "SECTION_LOOKUP"
	QueryChapterLookup        QueryType = "CHAPTER_LOOKUP"
	QueryExactReference       QueryType = "EXACT_REFERENCE"
	QueryArticleLookup        QueryType = "ARTICLE_LOOKUP"
	QueryConceptual           QueryType = "CONCEPTUAL"
	QueryComparison           QueryType = "COMPARISON"
	QueryGeneral              QueryType = "GENERAL"
)

// QueryTarget is the structural address a query points at. Each query type
// carries exactly one target kind; GENERAL carries none.
type QueryTarget interface {
	isQueryTarget()
}

// RecitalTarget addresses one recital of the preamble.
type RecitalTarget struct {
	Recital string
}

// ProvisionTarget addresses an article, optionally narrowed to a subsection
// and point. Subsection is set whenever Point is.
type ProvisionTarget struct {
	Article    string
	Subsection string
	Point      string
}

// HierarchyTarget addresses a chapter, a section, or both. Chapter is
// normalized to Arabic numerals.
type HierarchyTarget struct {
	Chapter string
	Section string
}

func (RecitalTarget) isQueryTarget()   {}
func (ProvisionTarget) isQueryTarget() {}
func (HierarchyTarget) isQueryTarget() {}

// QueryAnalysis is the request-scoped classification of a query.
type QueryAnalysis struct {
	Type          QueryType
	OriginalQuery string
	Confidence    float64
	Target        QueryTarget
	Concepts      []string
}

func (a QueryAnalysis) Recital() string {
	if t, ok := a.Target.(RecitalTarget); ok {
		return t.Recital
	}
	return ""
}

func (a QueryAnalysis) Article() string {
	if t, ok := a.Target.(ProvisionTarget); ok {
		return t.Article
	}
	return ""
}

func (a QueryAnalysis) Subsection() string {
	if t, ok := a.Target.(ProvisionTarget); ok {
		return t.Subsection
	}
	return ""
}

func (a QueryAnalysis) Point() string {
	if t, ok := a.Target.(ProvisionTarget); ok {
		return t.Point
	}
	return ""
}

func (a QueryAnalysis) Chapter() string {
	if t, ok := a.Target.(HierarchyTarget); ok {
		return t.Chapter
	}
	return ""
}

func (a QueryAnalysis) Section() string {
	if t, ok := a.Target.(HierarchyTarget); ok {
		return t.Section
	}
	return ""
}

// GeneralAnalysis is the analysis used when nothing more specific applies.
func GeneralAnalysis(query string, confidence float64) QueryAnalysis {
	return QueryAnalysis{Type: QueryGeneral, OriginalQuery: query, Confidence: confidence}
}

type queryAnalysisJSON struct {
	QueryType         QueryType `json:"query_type"`
	OriginalQuery     string    `json:"original_query"`
	Article           string    `json:"article,omitempty"`
	Recital           string    `json:"recital,omitempty"`
	Section           string    `json:"section,omitempty"`
	Chapter           string    `json:"chapter,omitempty"`
	Subsection        string    `json:"subsection,omitempty"`
	Point             string    `json:"point,omitempty"`
	Confidence        float64   `json:"confidence"`
	ExtractedConcepts []string  `json:"extracted_concepts"`
}

// MarshalJSON renders the flat wire shape used by the HTTP and MCP surfaces.
func (a QueryAnalysis) MarshalJSON() ([]byte, error) {
	concepts := a.Concepts
	if concepts == nil {
		concepts = []string{}
	}
	return json.Marshal(queryAnalysisJSON{
		QueryType:         a.Type,
		OriginalQuery:     a.OriginalQuery,
		Article:           a.Article(),
		Recital:           a.Recital(),
		Section:           a.Section(),
		Chapter:           a.Chapter(),
		Subsection:        a.Subsection(),
		Point:             a.Point(),
		Confidence:        a.Confidence,
		ExtractedConcepts: concepts,
	})
}

// UnmarshalJSON rebuilds the target variant from the flat wire shape.
func (a *QueryAnalysis) UnmarshalJSON(data []byte) error {
	var raw queryAnalysisJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = QueryAnalysis{
		Type:          raw.QueryType,
		OriginalQuery: raw.OriginalQuery,
		Confidence:    raw.Confidence,
		Concepts:      raw.ExtractedConcepts,
	}
	switch {
	case raw.Recital != "":
		a.Target = RecitalTarget{Recital: raw.Recital}
	case raw.Article != "":
		a.Target = ProvisionTarget{Article: raw.Article, Subsection: raw.Subsection, Point: raw.Point}
	case raw.Chapter != "" || raw.Section != "":
		a.Target = HierarchyTarget{Chapter: raw.Chapter, Section: raw.Section}
	}
	return nil
}
