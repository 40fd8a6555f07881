// Package telemetry records per-request trace events as JSONL.
//
// Events are written through slog JSON handlers to stdout and, when
// configured, a tracing log file. Emission is fire-and-forget: telemetry
// never fails a request, and a sink that cannot be opened degrades to
// stderr.
package telemetry

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PreviewLimit bounds logged input previews.
const PreviewLimit = 320

// Recorder writes structured trace events for one process.
//
// Recorder is safe for concurrent use by multiple goroutines.
type Recorder struct {
	logger *slog.Logger
	closer io.Closer
}

// NewRecorder builds a Recorder writing JSONL to stdout plus logPath.
// An empty logPath keeps stdout only. A file that cannot be opened is
// reported on stderr and skipped; the Recorder still works.
func NewRecorder(logPath string) *Recorder {
	writers := []io.Writer{os.Stdout}
	var closer io.Closer

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				slog.New(slog.NewTextHandler(os.Stderr, nil)).
					Warn("tracing log directory unavailable", "path", logPath, "error", err)
			}
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			slog.New(slog.NewTextHandler(os.Stderr, nil)).
				Warn("tracing log file unavailable", "path", logPath, "error", err)
		} else {
			writers = append(writers, f)
			closer = f
		}
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Recorder{logger: slog.New(handler), closer: closer}
}

// NewRecorderWithWriter builds a Recorder for tests.
func NewRecorderWithWriter(w io.Writer) *Recorder {
	return &Recorder{logger: slog.New(slog.NewJSONHandler(w, nil))}
}

// Close releases the tracing log file, if any.
func (r *Recorder) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// NewTraceID returns a fresh request trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// Emit writes one trace event. It never returns an error.
func (r *Recorder) Emit(event, traceID string, fields ...any) {
	args := append([]any{"trace_id", traceID}, fields...)
	r.logger.Info(event, args...)
}

// RequestReceived records an incoming request with a truncated preview.
func (r *Recorder) RequestReceived(traceID, route, input string) {
	r.Emit("request_received", traceID,
		"route", route,
		"input_chars", len([]rune(input)),
		"preview", Truncate(input, PreviewLimit),
	)
}

// ToolStart records a tool dispatch with a truncated argument preview.
func (r *Recorder) ToolStart(traceID, tool, args string) {
	r.Emit("tool_start", traceID, "tool", tool, "args", Truncate(args, PreviewLimit))
}

// ToolEnd records tool completion with a truncated output preview.
func (r *Recorder) ToolEnd(traceID, tool, output string, elapsedMS int64) {
	r.Emit("tool_end", traceID,
		"tool", tool,
		"elapsed_ms", elapsedMS,
		"output", Truncate(output, PreviewLimit),
	)
}

// StreamCompleted records streaming counters for one request.
func (r *Recorder) StreamCompleted(traceID string, deltas, deltaChars, toolCalls int) {
	r.Emit("stream_completed", traceID,
		"deltas", deltas,
		"delta_chars", deltaChars,
		"tool_calls", toolCalls,
	)
}

// RequestCompleted records the terminal event for one request.
func (r *Recorder) RequestCompleted(traceID string, totalMS int64, failed bool) {
	r.Emit("request_completed", traceID, "total_ms", totalMS, "failed", failed)
}

// Truncate flattens newlines and cuts s to max runes, appending "..." when
// something was dropped.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// Stopwatch measures elapsed wall time from its creation.
type Stopwatch struct {
	t0 time.Time
}

// NewStopwatch starts a stopwatch.
func NewStopwatch() *Stopwatch {
	return &Stopwatch{t0: time.Now()}
}

// MS returns elapsed milliseconds.
func (s *Stopwatch) MS() int64 {
	return time.Since(s.t0).Milliseconds()
}
