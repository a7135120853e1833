package modelclient

import (
	"strings"
	"time"
)

// RetryConfig configures the backoff schedule.
type RetryConfig struct {
	MaxRetries      int           // retry attempts after the first call
	InitialInterval time.Duration // first backoff delay
	MaxInterval     time.Duration // backoff cap
}

// DefaultRetryConfig returns sensible defaults for generative model APIs.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

func (r RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if r.MaxRetries < 0 {
		r.MaxRetries = 0
	}
	if r.InitialInterval <= 0 {
		r.InitialInterval = d.InitialInterval
	}
	if r.MaxInterval <= 0 {
		r.MaxInterval = d.MaxInterval
	}
	return r
}

// retryable classifies provider errors by message substring. Provider SDKs
// do not expose stable error types across gemini/ollama/openai, so string
// matching is the only portable classifier.
func retryable(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// Rate limits always retry.
	if containsAny(msg, "rate limit", "quota exceeded", "resource exhausted", "429") {
		return true
	}

	// Transient server errors.
	if containsAny(msg, "500", "502", "503", "504", "unavailable", "overloaded") {
		return true
	}

	// Network-level failures.
	if containsAny(msg, "connection reset", "connection refused", "timeout",
		"deadline exceeded", "temporary", "EOF") {
		return true
	}

	// Everything else (auth, invalid request, 4xx) is permanent.
	return false
}

// containsAny reports whether s contains any substring, case-insensitive.
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
