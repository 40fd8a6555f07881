package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

const ddgBaseURL = "https://api.duckduckgo.com/"

// maxRelatedLimit is the largest related-links count a caller may request.
const maxRelatedLimit = 20

// NoInstantAnswerSentinel is returned when DuckDuckGo has no content.
const NoInstantAnswerSentinel = "No instant-answer content found for this query. Try a more specific query."

// SearchClient performs lightweight web lookups via the DuckDuckGo Instant
// Answer API. A process-wide permit pool caps concurrent network calls, and
// each lookup retries with doubling backoff.
//
// SearchClient is safe for concurrent use by multiple goroutines.
type SearchClient struct {
	http       *http.Client
	permits    chan struct{}
	baseURL    string
	attempts   int
	backoff    time.Duration
	maxRelated int
	logger     *slog.Logger
}

// SearchOption configures a SearchClient.
type SearchOption func(*SearchClient)

// WithSearchBaseURL overrides the DuckDuckGo endpoint. Used by tests.
func WithSearchBaseURL(u string) SearchOption {
	return func(c *SearchClient) { c.baseURL = u }
}

// WithSearchBackoff overrides the initial retry backoff. Used by tests.
func WithSearchBackoff(d time.Duration) SearchOption {
	return func(c *SearchClient) { c.backoff = d }
}

// NewSearchClient creates a search client. concurrency caps simultaneous
// lookups across the process; timeout bounds each attempt; maxRelated is the
// default related-links limit when the model omits one.
func NewSearchClient(concurrency int, timeout time.Duration, maxRelated int, logger *slog.Logger, opts ...SearchOption) *SearchClient {
	if concurrency < 1 {
		concurrency = 3
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxRelated < 0 || maxRelated > maxRelatedLimit {
		maxRelated = 6
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &SearchClient{
		http:       &http.Client{Timeout: timeout},
		permits:    make(chan struct{}, concurrency),
		baseURL:    ddgBaseURL,
		attempts:   3,
		backoff:    time.Second,
		maxRelated: maxRelated,
		logger:     logger.With("component", "search"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// instantAnswer mirrors the DuckDuckGo Instant Answer response fields we use.
type instantAnswer struct {
	Heading       string         `json:"Heading"`
	Abstract      string         `json:"Abstract"`
	AbstractText  string         `json:"AbstractText"`
	AbstractURL   string         `json:"AbstractURL"`
	Answer        string         `json:"Answer"`
	Definition    string         `json:"Definition"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

type relatedTopic struct {
	Text     string         `json:"Text"`
	FirstURL string         `json:"FirstURL"`
	Topics   []relatedTopic `json:"Topics"`
}

// Lookup queries the instant-answer API and normalizes the response into
// Title:/Answer:/Definition:/Abstract:/Source:/Related: lines. Failures come
// back as descriptive strings, never errors, so the model can react.
func (c *SearchClient) Lookup(ctx context.Context, query string, maxRelated int) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Error: empty query."
	}
	if maxRelated < 0 || maxRelated > maxRelatedLimit {
		maxRelated = c.maxRelated
	}

	// Acquire a permit; respect cancellation while waiting.
	select {
	case c.permits <- struct{}{}:
		defer func() { <-c.permits }()
	case <-ctx.Done():
		return fmt.Sprintf("Internet lookup failed (network/http): %v", ctx.Err())
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("no_redirect", "1")
	params.Set("skip_disambig", "1")
	reqURL := c.baseURL + "?" + params.Encode()

	var data *instantAnswer
	errMsg := ""
	backoff := c.backoff

	for i := 0; i < c.attempts; i++ {
		data, errMsg = c.fetch(ctx, reqURL)
		if data != nil {
			break
		}
		if i < c.attempts-1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Sprintf("Internet lookup failed (network/http): %v", ctx.Err())
			}
			backoff *= 2
		}
	}

	if data == nil {
		if errMsg == "" {
			errMsg = "Internet lookup failed after retries."
		}
		c.logger.Warn("search failed", "query", query, "error", errMsg)
		return errMsg
	}

	return normalize(query, data, maxRelated)
}

func (c *SearchClient) fetch(ctx context.Context, reqURL string) (*instantAnswer, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Sprintf("Internet lookup failed (network/http): %v", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Sprintf("Internet lookup failed (network/http): %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Sprintf("Internet lookup failed (network/http): status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Sprintf("Internet lookup failed (network/http): %v", err)
	}

	var data instantAnswer
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, "Internet lookup failed: response was not valid JSON."
	}
	return &data, ""
}

// normalize flattens an instant-answer payload into the line format the
// planner and source extractor expect.
func normalize(query string, data *instantAnswer, maxRelated int) string {
	heading := strings.TrimSpace(data.Heading)
	abstract := strings.TrimSpace(data.AbstractText)
	if abstract == "" {
		abstract = strings.TrimSpace(data.Abstract)
	}
	answer := strings.TrimSpace(data.Answer)
	definition := strings.TrimSpace(data.Definition)
	abstractURL := strings.TrimSpace(data.AbstractURL)

	type related struct{ text, url string }
	var relatedItems []related
	var collect func(topics []relatedTopic)
	collect = func(topics []relatedTopic) {
		for _, item := range topics {
			if len(item.Topics) > 0 {
				collect(item.Topics)
				continue
			}
			if text := strings.TrimSpace(item.Text); text != "" {
				relatedItems = append(relatedItems, related{text: text, url: strings.TrimSpace(item.FirstURL)})
			}
		}
	}
	collect(data.RelatedTopics)

	var lines []string
	title := heading
	if title == "" {
		title = query
	}
	lines = append(lines, "Title: "+title)

	if answer != "" {
		lines = append(lines, "Answer: "+answer)
	}
	if definition != "" {
		lines = append(lines, "Definition: "+definition)
	}
	if abstract != "" {
		lines = append(lines, "Abstract: "+abstract)
	}
	if abstractURL != "" {
		lines = append(lines, "Source: "+abstractURL)
	}

	if len(relatedItems) > 0 && maxRelated > 0 {
		lines = append(lines, "Related:")
		for i, item := range relatedItems {
			if i >= maxRelated {
				break
			}
			line := "- " + item.text
			if item.url != "" {
				line += " (" + item.url + ")"
			}
			lines = append(lines, line)
		}
	}

	if len(lines) <= 1 {
		return NoInstantAnswerSentinel
	}
	return strings.Join(lines, "\n")
}

// NewSearchTool builds the internet_search definition over client.
func NewSearchTool(client *SearchClient) (*Definition, error) {
	if client == nil {
		return nil, fmt.Errorf("search client is required")
	}

	// Struct tags cannot express numeric bounds, so they are set on the
	// derived schema. Out-of-range max_related fails validation instead of
	// being silently clamped downstream.
	schema, err := resolveSchema[SearchInput](func(s *jsonschema.Schema) {
		if prop, ok := s.Properties["max_related"]; ok {
			lo, hi := float64(0), float64(maxRelatedLimit)
			prop.Minimum = &lo
			prop.Maximum = &hi
		}
	})
	if err != nil {
		return nil, fmt.Errorf("search tool: %w", err)
	}

	return &Definition{
		Kind:        KindSearch,
		Name:        SearchToolName,
		Description: "Lightweight web lookup via DuckDuckGo Instant Answer API. Best-effort for quick facts, definitions, entities.",
		schema:      schema,
		run: func(ctx context.Context, raw json.RawMessage) (string, error) {
			in, err := decode[SearchInput](raw)
			if err != nil {
				return "", err
			}
			maxRelated := -1 // client default applies
			if in.MaxRelated != nil {
				maxRelated = *in.MaxRelated
			}
			return client.Lookup(ctx, in.Query, maxRelated), nil
		},
	}, nil
}
