package agent

import (
	"regexp"
	"strings"
)

var reasoningPattern = regexp.MustCompile(`(?is)<reasoning>\s*(.*?)\s*</reasoning>`)

// SplitReasoning separates the <reasoning> block from the user-facing
// answer. Content without a block returns ("", trimmed content). Only the
// first block is removed; the operation is idempotent on its answer output.
func SplitReasoning(content string) (reasoning, answer string) {
	if content == "" {
		return "", ""
	}
	m := reasoningPattern.FindStringSubmatch(content)
	if m == nil {
		return "", strings.TrimSpace(content)
	}
	reasoning = strings.TrimSpace(m[1])
	answer = strings.TrimSpace(replaceFirst(content, reasoningPattern))
	return reasoning, answer
}

// StripReasoningForStream removes reasoning content from a partial raw
// answer. While a <reasoning> block is still open it returns only the text
// before it; once closed, the block is dropped entirely.
func StripReasoningForStream(raw string) string {
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "<reasoning>") && !strings.Contains(lower, "</reasoning>") {
		idx := strings.Index(lower, "<reasoning>")
		return strings.TrimSpace(raw[:idx])
	}
	_, answer := SplitReasoning(raw)
	return answer
}

// replaceFirst removes the first match of re from s.
func replaceFirst(s string, re *regexp.Regexp) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}
