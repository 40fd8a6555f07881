package tools

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
)

// countingReporter records provider calls so tests can assert the
// placeholder policy never reaches the network.
type countingReporter struct {
	calls  atomic.Int64
	report string
	err    error
}

func (c *countingReporter) Report(_ context.Context, location string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	if c.report != "" {
		return c.report, nil
	}
	return "In " + location + ", the current weather is as follows:", nil
}

func newWeatherRegistry(t *testing.T, reporter WeatherReporter) *Registry {
	t.Helper()

	def, err := NewWeatherTool(reporter)
	if err != nil {
		t.Fatalf("NewWeatherTool() unexpected error: %v", err)
	}
	reg, err := NewRegistry(nil, def)
	if err != nil {
		t.Fatalf("NewRegistry() unexpected error: %v", err)
	}
	return reg
}

func TestWeatherPlaceholderLocations(t *testing.T) {
	t.Parallel()

	placeholders := []string{
		"", "?", "unknown", "n/a", "na", "none", "null",
		"UNKNOWN", "Unknown", "N/A", "NONE", "NULL",
		"  unknown  ", "\t?\n", "  ",
	}

	for _, loc := range placeholders {
		t.Run(fmt.Sprintf("%q", loc), func(t *testing.T) {
			t.Parallel()

			reporter := &countingReporter{}
			reg := newWeatherRegistry(t, reporter)

			out := reg.Dispatch(context.Background(), WeatherToolName, map[string]any{"location": loc})
			if out.Output != InvalidLocationSentinel {
				t.Errorf("Dispatch(%q) = %q, want sentinel", loc, out.Output)
			}
			if n := reporter.calls.Load(); n != 0 {
				t.Errorf("Dispatch(%q) hit the provider %d times, want 0", loc, n)
			}
		})
	}
}

func TestWeatherValidLocation(t *testing.T) {
	t.Parallel()

	reporter := &countingReporter{}
	reg := newWeatherRegistry(t, reporter)

	out := reg.Dispatch(context.Background(), WeatherToolName, map[string]any{"location": "  Cairo  "})
	if !strings.Contains(out.Output, "In Cairo") {
		t.Errorf("Dispatch(Cairo) = %q, want trimmed location in report", out.Output)
	}
	if out.Kind != KindWeather {
		t.Errorf("Outcome.Kind = %v, want KindWeather", out.Kind)
	}
	if n := reporter.calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}

func TestWeatherProviderFailureIsToolOutput(t *testing.T) {
	t.Parallel()

	reporter := &countingReporter{err: fmt.Errorf("upstream down")}
	reg := newWeatherRegistry(t, reporter)

	out := reg.Dispatch(context.Background(), WeatherToolName, map[string]any{"location": "Oslo"})
	if !strings.HasPrefix(out.Output, "ERROR: "+WeatherToolName+" failed:") {
		t.Errorf("Dispatch() = %q, want provider failure as tool output", out.Output)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	t.Parallel()

	reg := newWeatherRegistry(t, &countingReporter{})

	out := reg.Dispatch(context.Background(), "delete_everything", map[string]any{})
	if !strings.Contains(out.Output, "unknown tool") {
		t.Errorf("Dispatch(unknown) = %q, want unknown-tool sentinel", out.Output)
	}
}

func TestDispatchValidationFailure(t *testing.T) {
	t.Parallel()

	reporter := &countingReporter{}
	reg := newWeatherRegistry(t, reporter)

	tests := []struct {
		name string
		args any
	}{
		{"missing location", map[string]any{}},
		{"wrong type", map[string]any{"location": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := reg.Dispatch(context.Background(), WeatherToolName, tt.args)
			if !strings.Contains(out.Output, "invalid arguments") {
				t.Errorf("Dispatch(%v) = %q, want validation sentinel", tt.args, out.Output)
			}
			if n := reporter.calls.Load(); n != 0 {
				t.Errorf("provider called %d times on invalid args, want 0", n)
			}
		})
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	def, err := NewWeatherTool(&countingReporter{})
	if err != nil {
		t.Fatalf("NewWeatherTool() unexpected error: %v", err)
	}
	if _, err := NewRegistry(nil, def, def); err == nil {
		t.Error("NewRegistry() with duplicate tool expected error, got nil")
	}
}
