package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short passthrough", "hello", 320, "hello"},
		{"newlines flattened", "a\nb\nc", 320, "a b c"},
		{"exact limit", strings.Repeat("x", 10), 10, strings.Repeat("x", 10)},
		{"over limit", strings.Repeat("x", 11), 10, strings.Repeat("x", 10) + "..."},
		{"multibyte runes", strings.Repeat("å", 12), 10, strings.Repeat("å", 10) + "..."},
		{"trimmed", "  padded  ", 320, "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestNewTraceIDUnique(t *testing.T) {
	t.Parallel()

	a, b := NewTraceID(), NewTraceID()
	if a == b {
		t.Errorf("NewTraceID() produced duplicate %q", a)
	}
	if a == "" {
		t.Error("NewTraceID() returned empty string")
	}
}

func TestRecorderEmitsJSONL(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewRecorderWithWriter(&buf)

	r.RequestReceived("trace-1", "/api/v1/chat", "what should I wear in Oslo?")
	r.ToolStart("trace-1", "weather_query", `{"location":"Oslo"}`)
	r.ToolEnd("trace-1", "weather_query", "In Oslo, the current weather...", 42)
	r.StreamCompleted("trace-1", 10, 512, 2)
	r.RequestCompleted("trace-1", 1234, false)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("emitted %d lines, want 5:\n%s", len(lines), buf.String())
	}

	wantEvents := []string{
		"request_received", "tool_start", "tool_end", "stream_completed", "request_completed",
	}
	for i, line := range lines {
		var payload map[string]any
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			t.Fatalf("line %d is not JSON: %v\n%s", i, err, line)
		}
		if payload["msg"] != wantEvents[i] {
			t.Errorf("line %d event = %v, want %q", i, payload["msg"], wantEvents[i])
		}
		if payload["trace_id"] != "trace-1" {
			t.Errorf("line %d trace_id = %v, want trace-1", i, payload["trace_id"])
		}
	}
}

func TestRecorderTruncatesPreview(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewRecorderWithWriter(&buf)

	r.RequestReceived("trace-2", "/api/v1/chat", strings.Repeat("w", PreviewLimit+100))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	preview, _ := payload["preview"].(string)
	if len([]rune(preview)) != PreviewLimit+3 {
		t.Errorf("preview length = %d runes, want %d", len([]rune(preview)), PreviewLimit+3)
	}
	if !strings.HasSuffix(preview, "...") {
		t.Errorf("preview missing ellipsis: %q", preview[len(preview)-10:])
	}
	if payload["input_chars"].(float64) != float64(PreviewLimit+100) {
		t.Errorf("input_chars = %v, want %d", payload["input_chars"], PreviewLimit+100)
	}
}

func TestStopwatch(t *testing.T) {
	t.Parallel()

	sw := NewStopwatch()
	time.Sleep(10 * time.Millisecond)
	if ms := sw.MS(); ms < 5 {
		t.Errorf("Stopwatch.MS() = %d, want >= 5", ms)
	}
}

func TestNewRecorderBadPathDegrades(t *testing.T) {
	t.Parallel()

	// Directory path cannot be opened as a file; Recorder must still work.
	r := NewRecorder(t.TempDir())
	defer r.Close()

	r.Emit("degraded", "trace-3")
}
