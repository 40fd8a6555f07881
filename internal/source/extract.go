// Package source extracts citation sources from tool outputs.
//
// All functions are pure: they take tool output text and return deduplicated
// Source lists. Extraction is best-effort and never fails a request.
package source

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Source is one citation attached to an answer.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

var urlPattern = regexp.MustCompile(`https?://[^\s)]+`)

// FromSearchOutput extracts sources from internet-search output where lines
// look like:
//
//	Source: https://...
//	- title (https://...)
func FromSearchOutput(text string) []Source {
	var sources []Source
	seen := make(map[string]bool)

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		if lower := strings.ToLower(line); strings.HasPrefix(lower, "source:") {
			url := strings.TrimSpace(line[len("source:"):])
			if url != "" && !seen[url] {
				sources = append(sources, Source{Name: url, URL: url})
				seen[url] = true
			}
			continue
		}

		if strings.HasPrefix(line, "- ") && strings.Contains(line, "(") && strings.HasSuffix(line, ")") {
			body := line[2 : len(line)-1]
			idx := strings.LastIndex(body, "(")
			if idx < 0 {
				continue
			}
			url := strings.TrimSpace(body[idx+1:])
			title := strings.TrimSpace(body[:idx])
			if title == "" {
				title = url
			}
			if url != "" && !seen[url] {
				sources = append(sources, Source{Name: title, URL: url})
				seen[url] = true
			}
		}
	}

	return sources
}

// FromRetrievalOutput extracts up to limit sources from retrieval tool
// output. It understands the structured citation trailers the retrieve tool
// emits, JSON-shaped payloads, and falls back to a bare URL scan.
func FromRetrievalOutput(text string, limit int) []Source {
	if limit <= 0 || text == "" {
		return nil
	}

	var sources []Source
	seen := make(map[string]bool)
	add := func(url, name string) {
		if url == "" || seen[url] || len(sources) >= limit {
			return
		}
		if name == "" {
			name = url
		}
		sources = append(sources, Source{Name: name, URL: url})
		seen[url] = true
	}

	// Structured trailers: [source: <url> | <title>]
	for _, m := range trailerPattern.FindAllStringSubmatch(text, -1) {
		add(strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}

	// JSON payloads: objects or arrays carrying url/source/link fields.
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		walkJSON(parsed, add)
	}

	// Bare URL scan.
	for _, m := range urlPattern.FindAllString(text, -1) {
		add(m, "")
	}

	return sources
}

var trailerPattern = regexp.MustCompile(`\[source:\s*([^|\]]+?)\s*\|\s*([^\]]*)\]`)

// walkJSON recursively visits dicts and arrays looking for url-like fields,
// mirroring the shapes retrieval backends return.
func walkJSON(v any, add func(url, name string)) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			walkJSON(item, add)
		}
	case map[string]any:
		url := firstString(t, "url", "source", "link", "path")
		name := firstString(t, "title", "name", "file_name", "filename")
		if url != "" {
			add(url, name)
		}
		for _, nested := range t {
			switch nested.(type) {
			case []any, map[string]any:
				walkJSON(nested, add)
			}
		}
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Merge combines per-tool source lists in order, deduplicating by URL
// first-seen and truncating at cap.
func Merge(cap int, lists ...[]Source) []Source {
	var out []Source
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, s := range list {
			if s.URL == "" || seen[s.URL] {
				continue
			}
			if cap > 0 && len(out) >= cap {
				return out
			}
			out = append(out, s)
			seen[s.URL] = true
		}
	}
	return out
}
