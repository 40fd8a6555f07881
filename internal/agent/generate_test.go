package agent

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()

	if cfg.MaxRetries <= 0 {
		t.Errorf("MaxRetries should be positive, got %d", cfg.MaxRetries)
	}
	if cfg.InitialInterval <= 0 {
		t.Errorf("InitialInterval should be positive, got %v", cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		t.Error("MaxInterval should be >= InitialInterval")
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "rate limit error", err: errors.New("rate limit exceeded"), expected: true},
		{name: "quota exceeded error", err: errors.New("quota exceeded for project"), expected: true},
		{name: "429 status code", err: errors.New("HTTP 429: Too Many Requests"), expected: true},
		{name: "503 unavailable", err: errors.New("503 Service Unavailable"), expected: true},
		{name: "connection reset", err: errors.New("connection reset by peer"), expected: true},
		{name: "timeout error", err: errors.New("request timeout"), expected: true},
		{name: "non-retryable error", err: errors.New("invalid API key"), expected: false},
		{name: "non-retryable 400 error", err: errors.New("HTTP 400 Bad Request"), expected: false},
		{name: "case insensitive rate limit", err: errors.New("RATE LIMIT reached"), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := retryableError(tt.err)
			if got != tt.expected {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		s        string
		substrs  []string
		expected bool
	}{
		{name: "empty string", s: "", substrs: []string{"foo"}, expected: false},
		{name: "empty substrs", s: "foo bar", substrs: []string{}, expected: false},
		{name: "contains first substr", s: "foo bar baz", substrs: []string{"foo", "qux"}, expected: true},
		{name: "case insensitive match", s: "FOO BAR BAZ", substrs: []string{"foo"}, expected: true},
		{name: "no match", s: "foo bar baz", substrs: []string{"qux", "quux"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := containsAny(tt.s, tt.substrs...)
			if got != tt.expected {
				t.Errorf("containsAny(%q, %v) = %v, want %v", tt.s, tt.substrs, got, tt.expected)
			}
		})
	}
}

func newRetryTestAgent(t *testing.T, gen Generator, retryCfg RetryConfig) *Agent {
	t.Helper()

	a, err := New(Config{
		Registry:    newTestRegistry(t, nil),
		Logger:      slog.New(slog.DiscardHandler),
		Generator:   gen,
		RetryConfig: retryCfg,
		RateLimiter: rate.NewLimiter(rate.Inf, 1),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestGenerateWithRetryRecoversFromTransientError(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{script: []scriptedTurn{
		{err: errors.New("503 Service Unavailable")},
		{err: errors.New("connection reset by peer")},
		{resp: textResponse("recovered", 1, 1)},
	}}
	a := newRetryTestAgent(t, gen, RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})

	resp, err := a.generateWithRetry(context.Background(), GenerateRequest{System: systemPrompt})
	if err != nil {
		t.Fatalf("generateWithRetry() unexpected error: %v", err)
	}
	if got := resp.Text(); got != "recovered" {
		t.Errorf("Text() = %q, want %q", got, "recovered")
	}
	if gen.calls != 3 {
		t.Errorf("generator called %d times, want 3", gen.calls)
	}
}

func TestGenerateWithRetryStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{script: []scriptedTurn{
		{err: errors.New("invalid API key")},
	}}
	a := newRetryTestAgent(t, gen, RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})

	if _, err := a.generateWithRetry(context.Background(), GenerateRequest{}); err == nil {
		t.Fatal("generateWithRetry() = nil error, want failure")
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1 (no retry on permanent error)", gen.calls)
	}
}

func TestGenerateWithRetryExhaustsAttempts(t *testing.T) {
	t.Parallel()

	script := make([]scriptedTurn, 3)
	for i := range script {
		script[i] = scriptedTurn{err: errors.New("502 Bad Gateway")}
	}
	gen := &scriptedGenerator{script: script}
	a := newRetryTestAgent(t, gen, RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	})

	_, err := a.generateWithRetry(context.Background(), GenerateRequest{})
	if err == nil {
		t.Fatal("generateWithRetry() = nil error, want exhaustion failure")
	}
	if gen.calls != 3 {
		t.Errorf("generator called %d times, want 3 (initial + 2 retries)", gen.calls)
	}
}

func TestGenerateWithRetryRespectsContextDuringBackoff(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{script: []scriptedTurn{
		{err: errors.New("503 Service Unavailable")},
	}}
	a := newRetryTestAgent(t, gen, RetryConfig{
		MaxRetries:      5,
		InitialInterval: time.Hour,
		MaxInterval:     time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.generateWithRetry(ctx, GenerateRequest{})
	if err == nil {
		t.Fatal("generateWithRetry() = nil error, want context cancellation")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
}

func TestGenerateWithRetryRejectsWhenCircuitOpen(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{}
	a := newRetryTestAgent(t, gen, DefaultRetryConfig())

	// Trip the breaker directly.
	for i := 0; i < 5; i++ {
		a.circuitBreaker.Failure()
	}

	_, err := a.generateWithRetry(context.Background(), GenerateRequest{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0 while circuit open", gen.calls)
	}
}
