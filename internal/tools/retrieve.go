package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wearcast/wearcast/internal/knowledge"
)

// Retriever performs vector search over the knowledge store.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.Passage, error)
}

// NoPassagesSentinel is returned when retrieval finds nothing.
const NoPassagesSentinel = "No relevant reference passages found for this query."

// NewRetrieveTool builds the retrieve_weather_activity_clothing_info
// definition. Vector search fetches topK candidates, the reranker keeps
// topN, and each passage is emitted with a citation trailer the source
// extractor understands.
func NewRetrieveTool(retriever Retriever, reranker knowledge.Reranker, topK, topN int) (*Definition, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if reranker == nil {
		reranker = knowledge.LexicalReranker{}
	}
	if topK < 1 {
		topK = 8
	}
	if topN < 1 || topN > topK {
		topN = min(4, topK)
	}

	schema, err := resolveSchema[RetrieveInput](nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve tool: %w", err)
	}

	return &Definition{
		Kind:        KindRetrieve,
		Name:        RetrieveToolName,
		Description: "Retrieves reference passages about weather conditions, suitable activities, and clothing recommendations from the knowledge base.",
		schema:      schema,
		run: func(ctx context.Context, raw json.RawMessage) (string, error) {
			in, err := decode[RetrieveInput](raw)
			if err != nil {
				return "", err
			}
			query := strings.TrimSpace(in.Query)
			if query == "" {
				return "Error: empty query.", nil
			}

			candidates, err := retriever.Search(ctx, query, topK)
			if err != nil {
				return "", fmt.Errorf("knowledge search: %w", err)
			}

			kept := reranker.Rerank(query, candidates, topN)
			if len(kept) == 0 {
				return NoPassagesSentinel, nil
			}

			parts := make([]string, 0, len(kept))
			for _, p := range kept {
				parts = append(parts, formatPassage(p))
			}
			return strings.Join(parts, "\n\n"), nil
		},
	}, nil
}

// formatPassage renders one passage with its citation trailer:
// "<content> [source: <url> | <title>]". Passages without a URL carry no
// trailer.
func formatPassage(p knowledge.Passage) string {
	content := strings.TrimSpace(p.Content)
	if p.URL == "" {
		return content
	}
	title := p.Title
	if title == "" {
		title = p.URL
	}
	return fmt.Sprintf("%s [source: %s | %s]", content, p.URL, title)
}
