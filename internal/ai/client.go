// Package ai wraps the Anthropic API behind the pipeline's two semantic
// capabilities: action extraction and duplicate classification. All calls go
// through a shared retry/circuit-breaker path with bounded timeouts; the
// callers treat the model's answers as untrusted and parse them defensively.
package ai

import (
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ModelDefault is the model used for extraction and duplicate checks.
// Both are short classification-style prompts; the cheaper tier is enough.
const ModelDefault = "claude-3-5-haiku-20241022"

// GetModel returns the model to use, checking TASKLINE_MODEL env var first.
func GetModel() string {
	if model := os.Getenv("TASKLINE_MODEL"); model != "" {
		return model
	}
	return ModelDefault
}

// Client is the shared AI transport for the pipeline. It owns retry,
// circuit breaking, a concurrency cap, and outbound rate limiting so the
// extraction and classification paths don't duplicate that plumbing.
type Client struct {
	client         *anthropic.Client
	model          string
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	concurrencySem *semaphore.Weighted
	limiter        *rate.Limiter
}

// Config holds AI client configuration
type Config struct {
	APIKey         string      // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model          string      // Model to use (default: claude-3-5-haiku-20241022)
	Retry          RetryConfig // Retry configuration (uses defaults if not specified)
	CallsPerSecond float64     // Outbound rate limit (default: 2, 0 = default)
}

// NewClient creates a new AI client
func NewClient(cfg *Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetModel()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	callsPerSecond := cfg.CallsPerSecond
	if callsPerSecond <= 0 {
		callsPerSecond = 2
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var circuitBreaker *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		circuitBreaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}

	var concurrencySem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	return &Client{
		client:         &client,
		model:          model,
		retry:          retry,
		circuitBreaker: circuitBreaker,
		concurrencySem: concurrencySem,
		limiter:        rate.NewLimiter(rate.Limit(callsPerSecond), 1),
	}, nil
}

// truncateString truncates a string to maxLen characters for log output.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// relativeAge renders "now - t" in coarse human units for prompt text.
func relativeAge(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
