package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/wearcast/wearcast/internal/agent"
	"github.com/wearcast/wearcast/internal/source"
	"github.com/wearcast/wearcast/internal/telemetry"
)

// DefaultRequestTimeout bounds one chat request end to end, covering all
// planning calls and tool dispatches.
const DefaultRequestTimeout = 120 * time.Second

// Planner runs one conversational turn and emits events. Satisfied by
// *agent.Agent.
type Planner interface {
	Stream(ctx context.Context, req agent.Request) <-chan agent.Event
}

// ChatHandler handles the chat endpoints.
//
// Endpoints:
//   - POST /api/v1/chat        - synchronous chat (JSON request/response)
//   - POST /api/v1/chat/stream - streaming chat (SSE)
//
// Both routes run the same planning loop; the synchronous route discards
// deltas and returns only the terminal response.
type ChatHandler struct {
	planner  Planner
	recorder *telemetry.Recorder
	logger   *slog.Logger
	timeout  time.Duration
}

// NewChatHandler creates a chat handler. recorder may be nil to disable
// trace events. timeout <= 0 uses DefaultRequestTimeout.
func NewChatHandler(planner Planner, recorder *telemetry.Recorder, logger *slog.Logger, timeout time.Duration) *ChatHandler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &ChatHandler{planner: planner, recorder: recorder, logger: logger, timeout: timeout}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/chat", h.handleChat)
	mux.HandleFunc("POST /api/v1/chat/stream", h.handleStream)
}

// HistoryTurn is one prior conversational turn.
type HistoryTurn struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// ChatRequest is the request body for both chat endpoints.
type ChatRequest struct {
	Message string        `json:"message"`
	History []HistoryTurn `json:"history,omitempty"`
}

// ChatResponse is the synchronous endpoint's response body.
type ChatResponse struct {
	Answer  string          `json:"answer"`
	Sources []source.Source `json:"sources"`
	Latency agent.Latency   `json:"latency_ms"`
	Tokens  agent.Tokens    `json:"tokens"`
}

// decodeChatRequest parses and validates the request body. A validation
// failure has already been written to w when ok is false.
func (h *ChatHandler) decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return ChatRequest{}, false
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "empty_message", "message is required")
		return ChatRequest{}, false
	}
	return req, true
}

// historyMessages converts wire history turns to model messages. Unknown
// roles are treated as user turns.
func historyMessages(history []HistoryTurn) []*ai.Message {
	if len(history) == 0 {
		return nil
	}
	messages := make([]*ai.Message, 0, len(history))
	for _, turn := range history {
		switch strings.ToLower(turn.Role) {
		case "model", "assistant":
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(turn.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(turn.Content)))
		}
	}
	return messages
}

// statusFor maps planner failures to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		return http.StatusBadRequest, "empty_message"
	case errors.Is(err, agent.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "agent_error"
	}
}

// handleChat is the synchronous endpoint. It consumes the event stream,
// discarding deltas, and returns the terminal response as JSON.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	traceID := telemetry.NewTraceID()
	if h.recorder != nil {
		h.recorder.RequestReceived(traceID, "/api/v1/chat", req.Message)
	}
	total := telemetry.NewStopwatch()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var resp *agent.Response
	var failure error
	for ev := range h.planner.Stream(ctx, agent.Request{
		TraceID: traceID,
		Message: req.Message,
		History: historyMessages(req.History),
	}) {
		switch e := ev.(type) {
		case agent.EventDone:
			resp = e.Response
		case agent.EventError:
			failure = e.Err
		}
	}

	if h.recorder != nil {
		h.recorder.RequestCompleted(traceID, total.MS(), failure != nil || resp == nil)
	}

	if failure != nil {
		status, code := statusFor(failure)
		h.logger.Error("chat request failed", "trace_id", traceID, "error", failure)
		writeError(w, status, code, failure.Error())
		return
	}
	if resp == nil {
		writeError(w, http.StatusInternalServerError, "agent_error", "no response produced")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:  resp.Answer,
		Sources: resp.Sources,
		Latency: resp.Latency,
		Tokens:  resp.Tokens,
	})
}

// sseFrame is one wire frame of the streaming protocol. Frames are
// data-only events: "data: <json>\n\n".
type sseFrame struct {
	Type    string `json:"type"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// sseDoneFrame is the terminal frame. Sources is always present, empty
// when nothing was cited.
type sseDoneFrame struct {
	Type    string          `json:"type"`
	Sources []source.Source `json:"sources"`
}

// handleStream is the SSE endpoint.
//
// Frame sequence: {"type":"status","value":"started"} once, then
// {"type":"delta","value":...} per fragment, {"type":"error","message":...}
// at most once, and a terminal {"type":"done",...} always, even after an
// error. Tool dispatch events are telemetry-only and never reach the wire.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	traceID := telemetry.NewTraceID()
	if h.recorder != nil {
		h.recorder.RequestReceived(traceID, "/api/v1/chat/stream", req.Message)
	}
	total := telemetry.NewStopwatch()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	h.writeFrame(w, flusher, sseFrame{Type: "status", Value: "started"})

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var deltas, deltaChars, toolCalls int
	var sources []source.Source
	failed := false

	for ev := range h.planner.Stream(ctx, agent.Request{
		TraceID: traceID,
		Message: req.Message,
		History: historyMessages(req.History),
	}) {
		// Client gone: stop writing, let the planner observe cancellation.
		select {
		case <-r.Context().Done():
			h.logger.Info("client disconnected", "trace_id", traceID)
			cancel()
			if h.recorder != nil {
				h.recorder.RequestCompleted(traceID, total.MS(), true)
			}
			return
		default:
		}

		switch e := ev.(type) {
		case agent.EventDelta:
			deltas++
			deltaChars += len(e.Text)
			h.writeFrame(w, flusher, sseFrame{Type: "delta", Value: e.Text})
		case agent.EventToolStart:
			toolCalls++
		case agent.EventToolEnd:
			// telemetry-only, recorded inside the planner
		case agent.EventDone:
			sources = e.Response.Sources
		case agent.EventError:
			failed = true
			h.logger.Error("stream request failed", "trace_id", traceID, "error", e.Err)
			h.writeFrame(w, flusher, sseFrame{Type: "error", Message: e.Err.Error()})
		}
	}

	// The done frame always closes the stream, after errors too.
	if sources == nil {
		sources = []source.Source{}
	}
	h.writeFrame(w, flusher, sseDoneFrame{Type: "done", Sources: sources})

	if h.recorder != nil {
		h.recorder.StreamCompleted(traceID, deltas, deltaChars, toolCalls)
		h.recorder.RequestCompleted(traceID, total.MS(), failed)
	}
}

// writeFrame writes one data-only SSE frame and flushes it.
func (h *ChatHandler) writeFrame(w http.ResponseWriter, flusher http.Flusher, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to encode SSE frame", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
