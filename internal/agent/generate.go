package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenerateRequest is one planning call to the completion service.
type GenerateRequest struct {
	System   string
	Messages []*ai.Message
	Tools    []ai.ToolRef
	Stream   ai.ModelStreamCallback // nil disables streaming
}

// Generator abstracts the completion service so tests can script planning
// turns without a model.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*ai.ModelResponse, error)
}

// genkitGenerator is the production Generator. Tool requests are returned
// to the planner instead of being dispatched inside genkit.
type genkitGenerator struct {
	g         *genkit.Genkit
	modelName string
}

func (gg *genkitGenerator) Generate(ctx context.Context, req GenerateRequest) (*ai.ModelResponse, error) {
	opts := []ai.GenerateOption{
		ai.WithSystem(req.System),
		ai.WithMessages(req.Messages...),
		ai.WithReturnToolRequests(true),
	}
	if len(req.Tools) > 0 {
		opts = append(opts, ai.WithTools(req.Tools...))
	}
	if gg.modelName != "" {
		opts = append(opts, ai.WithModelName(gg.modelName))
	}
	if req.Stream != nil {
		opts = append(opts, ai.WithStreaming(req.Stream))
	}
	return genkit.Generate(ctx, gg.g, opts...)
}

// RetryConfig configures the retry behavior for completion-service calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category.
// Matched case-insensitively against err.Error().
//
// String matching is used because genkit and the provider SDKs do not
// expose typed errors for transient failures.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, group := range retryablePatterns {
		if containsAny(errStr, group...) {
			return true
		}
	}
	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// generateWithRetry executes one planning call with exponential backoff.
// Each attempt is rate limited and guarded by the circuit breaker.
func (a *Agent) generateWithRetry(ctx context.Context, req GenerateRequest) (*ai.ModelResponse, error) {
	if err := a.circuitBreaker.Allow(); err != nil {
		a.logger.Warn("circuit breaker is open, rejecting request",
			"state", a.circuitBreaker.State().String())
		return nil, fmt.Errorf("service unavailable: %w", err)
	}

	var lastErr error
	delay := a.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= a.retryConfig.MaxRetries; attempt++ {
		if a.rateLimiter != nil {
			if err := a.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := a.generator.Generate(ctx, req)
		if err == nil {
			a.circuitBreaker.Success()
			a.logger.Debug("planning call succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err

		if !retryableError(err) {
			a.circuitBreaker.Failure()
			return nil, fmt.Errorf("generate: %w", err)
		}

		if attempt == a.retryConfig.MaxRetries {
			break
		}

		a.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, a.retryConfig.MaxInterval)
		}
	}

	a.circuitBreaker.Failure()
	return nil, fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		a.retryConfig.MaxRetries, time.Since(start), lastErr)
}
