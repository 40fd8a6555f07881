// Package agent implements the planning loop that turns a user utterance
// into a tool-augmented answer.
//
// The loop is an explicit state machine: PLANNING (one completion call with
// tool schemas and ReturnToolRequests) alternates with DISPATCHING_TOOLS
// (sequential dispatch through the registry) until the model produces a
// terminal text answer or the cycle bound is hit. Tool dispatch stays in
// this package; genkit never runs tools itself.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/wearcast/wearcast/internal/source"
	"github.com/wearcast/wearcast/internal/telemetry"
	"github.com/wearcast/wearcast/internal/tools"
)

// Sentinel errors for agent requests.
var (
	// ErrEmptyMessage indicates the request had no user message.
	ErrEmptyMessage = errors.New("empty message")

	// ErrEmptyAnswer indicates the model produced no terminal text.
	ErrEmptyAnswer = errors.New("agent returned empty answer")

	// ErrToolLoopExceeded indicates the planning cycle bound was hit.
	ErrToolLoopExceeded = errors.New("tool loop exceeded maximum turns")
)

// DefaultMaxTurns bounds planning/dispatch cycles per request.
const DefaultMaxTurns = 6

// TraceRecorder receives tool dispatch telemetry. Satisfied by
// *telemetry.Recorder; nil disables recording.
type TraceRecorder interface {
	ToolStart(traceID, tool, args string)
	ToolEnd(traceID, tool, output string, elapsedMS int64)
}

// Config contains all required parameters for the Agent.
type Config struct {
	Genkit    *genkit.Genkit
	Registry  *tools.Registry
	ToolRefs  []ai.ToolRef // from Registry.Register
	Logger    *slog.Logger
	Recorder  TraceRecorder // nil = telemetry disabled
	ModelName string        // provider-qualified, e.g. "googleai/gemini-2.5-flash"

	MaxTurns            int // planning/dispatch cycles (default 6)
	MaxRetrievalSources int // per-request cap on retrieval citations (default 2)
	MaxTotalSources     int // response-level source cap (default 8)

	// Resilience (zero values use defaults)
	RetryConfig          RetryConfig
	CircuitBreakerConfig CircuitBreakerConfig
	RateLimiter          *rate.Limiter

	// Generator overrides the genkit-backed completion service. Tests
	// inject a scripted generator here; production leaves it nil.
	Generator Generator
}

func (cfg Config) validate() error {
	if cfg.Generator == nil && cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Registry == nil {
		return errors.New("tool registry is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Request is one conversational turn. History holds prior turns in order;
// the planner appends Message as the newest user turn.
type Request struct {
	TraceID string
	Message string
	History []*ai.Message
}

// Agent runs the planning loop.
//
// Agent is stateless across requests; all configuration is captured
// immutably at construction, so it is safe for concurrent use.
type Agent struct {
	generator Generator
	registry  *tools.Registry
	toolRefs  []ai.ToolRef
	logger    *slog.Logger
	recorder  TraceRecorder

	maxTurns            int
	maxRetrievalSources int
	maxTotalSources     int

	retryConfig    RetryConfig
	circuitBreaker *CircuitBreaker
	rateLimiter    *rate.Limiter
}

// New creates an Agent.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	maxRetrieval := cfg.MaxRetrievalSources
	if maxRetrieval <= 0 {
		maxRetrieval = 2
	}
	maxTotal := cfg.MaxTotalSources
	if maxTotal <= 0 {
		maxTotal = 8
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}
	cbConfig := cfg.CircuitBreakerConfig
	if cbConfig.FailureThreshold == 0 {
		cbConfig = DefaultCircuitBreakerConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	gen := cfg.Generator
	if gen == nil {
		gen = &genkitGenerator{g: cfg.Genkit, modelName: cfg.ModelName}
	}

	a := &Agent{
		generator:           gen,
		registry:            cfg.Registry,
		toolRefs:            cfg.ToolRefs,
		logger:              cfg.Logger,
		recorder:            cfg.Recorder,
		maxTurns:            maxTurns,
		maxRetrievalSources: maxRetrieval,
		maxTotalSources:     maxTotal,
		retryConfig:         retryConfig,
		circuitBreaker:      NewCircuitBreaker(cbConfig),
		rateLimiter:         rl,
	}

	a.logger.Info("agent initialized",
		"tools", len(cfg.Registry.Definitions()),
		"maxTurns", a.maxTurns,
	)
	return a, nil
}

// Execute runs one request without streaming and returns the final
// response. It is the non-streaming equivalent of Stream: same loop, same
// answer.
func (a *Agent) Execute(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	var failure error
	for ev := range a.Stream(ctx, req) {
		switch e := ev.(type) {
		case EventDone:
			resp = e.Response
		case EventError:
			failure = e.Err
		}
	}
	if failure != nil {
		return nil, failure
	}
	if resp == nil {
		return nil, fmt.Errorf("stream ended without terminal event")
	}
	return resp, nil
}

// Stream runs one request and emits events on the returned channel. The
// channel is closed after exactly one terminal event (EventDone or
// EventError); consumers that drain to close always see it, even when ctx
// is already cancelled. Non-terminal sends respect ctx cancellation, so an
// abandoned consumer never leaks the goroutine.
func (a *Agent) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		a.run(ctx, req, events)
	}()
	return events
}

// send delivers ev unless ctx is done. Reports whether delivery happened.
// Used for non-terminal events only; terminal events go through
// sendTerminal so a cancelled ctx cannot swallow them.
func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// sendTerminal delivers the terminal event without racing ctx: the buffer
// normally has room and the producer closes the channel right after, so
// consumers draining to close always observe it. Only when the buffer is
// full (an abandoned consumer stopped reading) does it fall back to a
// ctx-guarded send to avoid leaking the producer goroutine.
func sendTerminal(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	default:
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
}

func (a *Agent) run(ctx context.Context, req Request, events chan<- Event) {
	if strings.TrimSpace(req.Message) == "" {
		sendTerminal(ctx, events, EventError{Err: ErrEmptyMessage})
		return
	}

	total := telemetry.NewStopwatch()
	byStep := make(map[string]int64)

	messages := make([]*ai.Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(req.Message)))

	var tokens Tokens
	var outcomes []tools.Outcome

	streamCb := func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
		if text := chunk.Text(); text != "" {
			if !send(cbCtx, events, EventDelta{Text: text}) {
				return cbCtx.Err()
			}
		}
		return nil
	}

	for turn := 0; turn < a.maxTurns; turn++ {
		llm := telemetry.NewStopwatch()
		resp, err := a.generateWithRetry(ctx, GenerateRequest{
			System:   systemPrompt,
			Messages: messages,
			Tools:    a.toolRefs,
			Stream:   streamCb,
		})
		byStep["llm"] += llm.MS()
		if err != nil {
			sendTerminal(ctx, events, EventError{Err: err})
			return
		}

		if resp.Usage != nil {
			tokens.Prompt += resp.Usage.InputTokens
			tokens.Completion += resp.Usage.OutputTokens
		}

		requests := resp.ToolRequests()
		if len(requests) == 0 {
			answer := strings.TrimSpace(resp.Text())
			if answer == "" {
				a.logger.Warn("model returned empty response with no tool requests",
					"trace_id", req.TraceID)
				sendTerminal(ctx, events, EventError{Err: ErrEmptyAnswer})
				return
			}

			done := EventDone{Response: &Response{
				Answer:  answer,
				Sources: a.collectSources(outcomes),
				Latency: Latency{TotalMS: total.MS(), ByStep: byStep},
				Tokens:  tokens,
			}}
			sendTerminal(ctx, events, done)
			return
		}

		// Model turn with its tool-request parts precedes the tool turn.
		messages = append(messages, resp.Message)

		toolParts := make([]*ai.Part, 0, len(requests))
		for _, tr := range requests {
			argsJSON, _ := json.Marshal(tr.Input)

			if !send(ctx, events, EventToolStart{Tool: tr.Name, Args: string(argsJSON)}) {
				return
			}
			if a.recorder != nil {
				a.recorder.ToolStart(req.TraceID, tr.Name, string(argsJSON))
			}

			sw := telemetry.NewStopwatch()
			outcome := a.registry.Dispatch(ctx, tr.Name, tr.Input)
			elapsed := sw.MS()

			byStep[outcome.Kind.String()] += elapsed
			outcomes = append(outcomes, outcome)

			if a.recorder != nil {
				a.recorder.ToolEnd(req.TraceID, tr.Name, outcome.Output, elapsed)
			}
			if !send(ctx, events, EventToolEnd{Tool: tr.Name, ElapsedMS: elapsed}) {
				return
			}

			toolParts = append(toolParts, ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   tr.Name,
				Ref:    tr.Ref,
				Output: outcome.Output,
			}))
		}
		messages = append(messages, &ai.Message{Role: ai.RoleTool, Content: toolParts})
	}

	a.logger.Warn("planning loop exceeded max turns",
		"trace_id", req.TraceID, "maxTurns", a.maxTurns)
	sendTerminal(ctx, events, EventError{Err: ErrToolLoopExceeded})
}

// collectSources extracts and merges citations from tool outcomes in
// dispatch order: full search citations first-seen, retrieval citations
// capped per request, weather none.
func (a *Agent) collectSources(outcomes []tools.Outcome) []source.Source {
	var lists [][]source.Source
	retrievalBudget := a.maxRetrievalSources

	for _, o := range outcomes {
		switch o.Kind {
		case tools.KindSearch:
			lists = append(lists, source.FromSearchOutput(o.Output))
		case tools.KindRetrieve:
			if retrievalBudget <= 0 {
				continue
			}
			extracted := source.FromRetrievalOutput(o.Output, retrievalBudget)
			retrievalBudget -= len(extracted)
			lists = append(lists, extracted)
		}
	}

	merged := source.Merge(a.maxTotalSources, lists...)
	if merged == nil {
		merged = []source.Source{}
	}
	return merged
}
