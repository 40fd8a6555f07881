package knowledge

import (
	"sort"
	"strings"
	"unicode"
)

// Reranker reorders vector-search candidates against the query and keeps the
// best topN. The interface exists so a hosted reranker can be substituted.
type Reranker interface {
	Rerank(query string, candidates []Passage, topN int) []Passage
}

// LexicalReranker scores candidates by query-term overlap blended with the
// vector similarity the store already computed. It runs entirely in-process.
type LexicalReranker struct{}

// Rerank returns the topN candidates ordered by blended score. The input
// slice is not mutated.
func (LexicalReranker) Rerank(query string, candidates []Passage, topN int) []Passage {
	if len(candidates) == 0 || topN < 1 {
		return nil
	}

	terms := tokenize(query)

	type scored struct {
		p     Passage
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{p: c, score: 0.5*overlap(terms, c.Content) + 0.5*c.Similarity})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if topN > len(ranked) {
		topN = len(ranked)
	}
	out := make([]Passage, topN)
	for i := range out {
		out[i] = ranked[i].p
	}
	return out
}

// overlap is the fraction of query terms present in the passage text.
func overlap(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 { // skip stop-ish short tokens
			out = append(out, f)
		}
	}
	return out
}
