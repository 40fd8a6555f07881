package agent

import "github.com/wearcast/wearcast/internal/source"

// Latency carries the per-request timing breakdown in milliseconds.
// ByStep keys are "llm", "weather_query", "retrieve", "internet_search".
type Latency struct {
	TotalMS int64            `json:"total"`
	ByStep  map[string]int64 `json:"by_step"`
}

// Tokens aggregates model token usage across all planning calls of one
// request. Zero when the provider omits usage.
type Tokens struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// Response is the complete result of one agent request. Answer is the
// model output including the <reasoning> block, trimmed of surrounding
// whitespace; the trimmed form is canonical, so streamed deltas concatenate
// to Answer up to leading and trailing whitespace. Callers that want the
// user-facing text use SplitReasoning.
type Response struct {
	Answer  string          `json:"answer"`
	Sources []source.Source `json:"sources"`
	Latency Latency         `json:"latency_ms"`
	Tokens  Tokens          `json:"tokens"`
}
