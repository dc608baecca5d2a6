package retrieval

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

// LexicalReranker blends the vector score with query/chunk token overlap and
// a bonus for chunks whose reference the query names.
type LexicalReranker struct{}

func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

func (LexicalReranker) Rerank(_ context.Context, query string, candidates []domain.ScoredChunk, topN int) ([]domain.ScoredChunk, error) {
	return rerankCandidates(query, candidates, topN), nil
}

func rerankCandidates(query string, candidates []domain.ScoredChunk, topN int) []domain.ScoredChunk {
	if len(candidates) == 0 {
		return candidates
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	out := make([]domain.ScoredChunk, len(candidates))
	copy(out, candidates)
	queryTokens := toTokenSet(query)

	minScore, maxScore := out[0].Score, out[0].Score
	for _, c := range out[1:] {
		if c.Score < minScore {
			minScore = c.Score
		}
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	rangeScore := maxScore - minScore
	normalize := func(v float64) float64 {
		if rangeScore <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minScore) / rangeScore
	}

	for i := range out {
		overlap := tokenOverlap(queryTokens, toTokenSet(out[i].Chunk.EmbeddingText()))
		out[i].Score = 0.60*normalize(out[i].Score) + 0.30*overlap + 0.10*referenceHit(query, out[i].Chunk.Reference)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.ChunkID < out[j].Chunk.ChunkID
	})
	return out[:topN]
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

// referenceHit is 1 when the query names the chunk's article or recital.
func referenceHit(query string, ref domain.LegalReference) float64 {
	lower := strings.ToLower(query)
	switch {
	case ref.Article != "":
		for _, n := range articleNumbers(lower) {
			if n == ref.Article {
				return 1
			}
		}
	case ref.Recital != "":
		if m := recitalRe.FindStringSubmatch(lower); m != nil && m[1] == ref.Recital {
			return 1
		}
	}
	return 0
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
