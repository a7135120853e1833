// Package modelclient wraps the generative model with the failure policy the
// pipeline relies on: bounded exponential-backoff retry for transient
// failures, immediate surfacing of permanent ones, per-attempt rate limiting,
// a circuit breaker, and a hard per-attempt timeout.
//
// Callers never see raw provider errors; every failure is classified as
// ErrTransient or ErrPermanent.
package modelclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrTransient marks failures worth retrying at a higher level
	// (network, rate limit, 5xx, open circuit). Retries here are already
	// exhausted when the caller sees it.
	ErrTransient = errors.New("transient generation failure")

	// ErrPermanent marks failures that retrying cannot fix (auth,
	// malformed request, 4xx other than rate limit).
	ErrPermanent = errors.New("permanent generation failure")
)

// Generator is the raw text generation call, satisfied by the Genkit adapter
// in genkit.go and by test fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder is the raw embedding call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config tunes the failure policy.
type Config struct {
	Retry          RetryConfig
	Breaker        BreakerConfig
	RequestTimeout time.Duration // per attempt; 0 disables

	// RequestsPerSecond caps outgoing calls across retries. 0 disables.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Retry:             DefaultRetryConfig(),
		Breaker:           DefaultBreakerConfig(),
		RequestTimeout:    60 * time.Second,
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

// Client applies the failure policy to a Generator and an Embedder.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	gen      Generator
	embedder Embedder

	retry   RetryConfig
	breaker *Breaker
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Client. Either collaborator may be nil when the caller only
// needs the other mode; calling the missing mode returns ErrPermanent.
func New(gen Generator, embedder Embedder, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		gen:      gen,
		embedder: embedder,
		retry:    cfg.Retry.withDefaults(),
		breaker:  NewBreaker(cfg.Breaker),
		limiter:  limiter,
		timeout:  cfg.RequestTimeout,
		logger:   logger,
	}
}

// Generate produces text for a prompt under the failure policy.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.gen == nil {
		return "", fmt.Errorf("%w: no generator configured", ErrPermanent)
	}
	return do(ctx, c, "generate", c.gen.Generate, prompt)
}

// Embed produces a vector for text under the same failure policy.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrPermanent)
	}
	return do(ctx, c, "embed", c.embedder.Embed, text)
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() BreakerState {
	return c.breaker.State()
}

// do runs one operation with rate limiting, per-attempt timeout, retry with
// exponential backoff, and circuit breaker accounting.
func do[T any](ctx context.Context, c *Client, op string, fn func(context.Context, string) (T, error), input string) (T, error) {
	var zero T
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.breaker.Allow(); err != nil {
			return zero, fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return zero, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if c.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		out, err := fn(attemptCtx, input)
		cancel()

		if err == nil {
			c.breaker.Success()
			c.logger.Debug("model call succeeded",
				"op", op,
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return out, nil
		}

		lastErr = err
		c.breaker.Failure()

		// The caller giving up is neither transient nor permanent.
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		}

		if !retryable(err) {
			return zero, fmt.Errorf("%w: %s: %w", ErrPermanent, op, err)
		}

		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying model call",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return zero, fmt.Errorf("%w: %s after %d attempts (elapsed %v): %w",
		ErrTransient, op, c.retry.MaxRetries+1, time.Since(start).Round(time.Millisecond), lastErr)
}
