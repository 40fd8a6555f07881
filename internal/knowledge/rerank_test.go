package knowledge

import (
	"testing"
)

func TestLexicalRerankPrefersTermOverlap(t *testing.T) {
	t.Parallel()

	candidates := []Passage{
		{ID: "a", Content: "General travel tips for Europe.", Similarity: 0.60},
		{ID: "b", Content: "Hiking in cold rainy weather calls for waterproof layers.", Similarity: 0.55},
		{ID: "c", Content: "Stock market analysis.", Similarity: 0.58},
	}

	got := LexicalReranker{}.Rerank("what to wear hiking in rainy weather", candidates, 2)
	if len(got) != 2 {
		t.Fatalf("Rerank() returned %d passages, want 2", len(got))
	}
	if got[0].ID != "b" {
		t.Errorf("Rerank() top = %q, want b", got[0].ID)
	}
}

func TestLexicalRerankTopNBounds(t *testing.T) {
	t.Parallel()

	candidates := []Passage{
		{ID: "a", Content: "alpha", Similarity: 0.9},
		{ID: "b", Content: "beta", Similarity: 0.8},
	}

	tests := []struct {
		name string
		topN int
		want int
	}{
		{"zero", 0, 0},
		{"negative", -1, 0},
		{"within", 1, 1},
		{"beyond candidates", 10, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := (LexicalReranker{}).Rerank("q", candidates, tt.topN); len(got) != tt.want {
				t.Errorf("Rerank(topN=%d) returned %d, want %d", tt.topN, len(got), tt.want)
			}
		})
	}
}

func TestLexicalRerankEmptyCandidates(t *testing.T) {
	t.Parallel()

	if got := (LexicalReranker{}).Rerank("q", nil, 4); got != nil {
		t.Errorf("Rerank(nil) = %v, want nil", got)
	}
}

func TestLexicalRerankDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	candidates := []Passage{
		{ID: "a", Content: "unrelated", Similarity: 0.1},
		{ID: "b", Content: "hiking weather layers", Similarity: 0.2},
	}

	_ = LexicalReranker{}.Rerank("hiking weather", candidates, 2)

	if candidates[0].ID != "a" || candidates[1].ID != "b" {
		t.Errorf("Rerank() mutated input slice: %+v", candidates)
	}
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	t.Parallel()

	got := tokenize("Is it OK to run in Oslo?")
	for _, tok := range got {
		if len(tok) < 3 {
			t.Errorf("tokenize() kept short token %q", tok)
		}
	}
}
