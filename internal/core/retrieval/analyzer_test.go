package retrieval

import (
	"reflect"
	"testing"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

func TestAnalyzerClassifiesByPriority(t *testing.T) {
	analyzer := NewAnalyzer(AnalyzerVocabulary{})
	cases := []struct {
		query      string
		wantType   domain.QueryType
		wantConf   float64
		wantTarget domain.QueryTarget
	}{
		{"Chapter 4 Section 3", domain.QueryChapterSectionLookup, 0.95, domain.HierarchyTarget{Chapter: "4", Section: "3"}},
		{"chapter IV, section 2", domain.QueryChapterSectionLookup, 0.95, domain.HierarchyTarget{Chapter: "4", Section: "2"}},
		{"Which article does section 2 start from?", domain.QuerySectionLookup, 0.95, domain.HierarchyTarget{Section: "2"}},
		{"Show chapter III", domain.QueryChapterLookup, 0.95, domain.HierarchyTarget{Chapter: "3"}},
		{"Article 15.1.a", domain.QueryExactReference, 0.95, domain.ProvisionTarget{Article: "15", Subsection: "1", Point: "a"}},
		{"article 6(1)(f)", domain.QueryExactReference, 0.95, domain.ProvisionTarget{Article: "6", Subsection: "1", Point: "f"}},
		{"Article 17.2", domain.QueryExactReference, 0.90, domain.ProvisionTarget{Article: "17", Subsection: "2"}},
		{"Article 17 (3)", domain.QueryExactReference, 0.90, domain.ProvisionTarget{Article: "17", Subsection: "3"}},
		{"Show me Article 6", domain.QueryArticleLookup, 0.85, domain.ProvisionTarget{Article: "6"}},
		{"Show me Article 6.", domain.QueryArticleLookup, 0.85, domain.ProvisionTarget{Article: "6"}},
		{"What is Article 6?", domain.QueryConceptual, 0.70, domain.ProvisionTarget{Article: "6"}},
		{"What is Recital 42?", domain.QueryRecitalLookup, 0.95, domain.RecitalTarget{Recital: "42"}},
		{"regulation point (12)", domain.QueryRecitalLookup, 0.95, domain.RecitalTarget{Recital: "12"}},
		{"What are the consent requirements?", domain.QueryConceptual, 0.70, nil},
		{"asdf", domain.QueryGeneral, 0.50, nil},
	}
	for _, tc := range cases {
		got, err := analyzer.Analyze(tc.query)
		if err != nil {
			t.Fatalf("Analyze(%q) error = %v", tc.query, err)
		}
		if got.Type != tc.wantType || got.Confidence != tc.wantConf {
			t.Fatalf("Analyze(%q) = %s/%.2f, want %s/%.2f", tc.query, got.Type, got.Confidence, tc.wantType, tc.wantConf)
		}
		if !reflect.DeepEqual(got.Target, tc.wantTarget) {
			t.Fatalf("Analyze(%q) target = %#v, want %#v", tc.query, got.Target, tc.wantTarget)
		}
		if got.OriginalQuery != tc.query {
			t.Fatalf("original query not preserved: %q", got.OriginalQuery)
		}
	}
}

func TestAnalyzerSectionWithoutIndicatorIsNotALookup(t *testing.T) {
	got, _ := NewAnalyzer(AnalyzerVocabulary{}).Analyze("section 3 of the guidance")
	if got.Type == domain.QuerySectionLookup {
		t.Fatalf("expected indicator gating, got %s", got.Type)
	}
}

func TestAnalyzerComparisonCollectsArticles(t *testing.T) {
	got, _ := NewAnalyzer(AnalyzerVocabulary{}).Analyze("difference between Article 6 and Article 7 and article 6")
	if got.Type != domain.QueryComparison || got.Confidence != 0.80 {
		t.Fatalf("unexpected analysis: %+v", got)
	}
	if !reflect.DeepEqual(got.Concepts, []string{"6", "7"}) {
		t.Fatalf("unexpected concepts: %v", got.Concepts)
	}
	if got.Article() != "6" {
		t.Fatalf("expected first article as target, got %q", got.Article())
	}

	plain, _ := NewAnalyzer(AnalyzerVocabulary{}).Analyze("compare consent and contract")
	if plain.Type != domain.QueryComparison || len(plain.Concepts) != 0 {
		t.Fatalf("unexpected keyword-only comparison: %+v", plain)
	}
}

func TestAnalyzerKeywordsMatchWholeWords(t *testing.T) {
	got, _ := NewAnalyzer(AnalyzerVocabulary{}).Analyze("target audience")
	if got.Type != domain.QueryGeneral {
		t.Fatalf("\"get\" inside \"target\" must not count, got %s", got.Type)
	}
}

func TestAnalyzerUsesCustomVocabulary(t *testing.T) {
	analyzer := NewAnalyzer(AnalyzerVocabulary{LookupVerbs: []string{"quote"}})
	got, _ := analyzer.Analyze("quote article 9")
	if got.Type != domain.QueryArticleLookup {
		t.Fatalf("expected custom verb to select lookup, got %s", got.Type)
	}
	got, _ = analyzer.Analyze("show article 9")
	if got.Type != domain.QueryConceptual {
		t.Fatalf("expected default verb list replaced, got %s", got.Type)
	}
}
