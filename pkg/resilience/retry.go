// Copyright 2025 Certen Protocol
//
// Retry implements withRetry: exponential backoff with jitter, a
// pluggable retryability predicate, and an onRetry observation hook,
// as a reusable alternative to an ad hoc fixed-delay retry loop
// around a single RPC call.

package resilience

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig configures withRetry.
type RetryConfig struct {
	MaxRetries   int
	BaseDelayMs  int64
	MaxDelayMs   int64
	JitterFactor float64

	// IsRetryable decides whether a failed attempt should be retried.
	// Defaults to DefaultIsRetryable when nil.
	IsRetryable func(err error) bool

	// OnRetry is invoked after each failed attempt, before sleeping.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Sleep is overridable for tests; defaults to time.Sleep gated on
	// ctx.Done().
	Sleep func(ctx context.Context, d time.Duration)

	// Rand is overridable for deterministic jitter in tests.
	Rand func() float64
}

// RetryResult is the outcome of withRetry.
type RetryResult struct {
	Success      bool
	Value        interface{}
	Err          error
	Attempts     int
	TotalDelayMs int64
}

var defaultRetryableSubstrings = []string{
	"network", "econnrefused", "econnreset", "etimedout", "timeout",
	"socket hang up", "rate limit", "429", "5xx", "internal server error",
}

// DefaultIsRetryable matches common transient-failure substrings,
// case-insensitively.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range defaultRetryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// WithRetry runs fn, retrying on retryable failures up to
// cfg.MaxRetries additional times. Attempt counting starts at 1 (the
// initial call).
func WithRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (interface{}, error)) RetryResult {
	isRetryable := cfg.IsRetryable
	if isRetryable == nil {
		isRetryable = DefaultIsRetryable
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	randFn := cfg.Rand
	if randFn == nil {
		randFn = rand.Float64
	}

	var totalDelay int64
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		attempts = attempt
		val, err := fn(ctx)
		if err == nil {
			return RetryResult{Success: true, Value: val, Attempts: attempts, TotalDelayMs: totalDelay}
		}
		lastErr = err

		if attempt == cfg.MaxRetries+1 || !isRetryable(err) {
			break
		}

		delayMs := backoffDelayMs(cfg, attempt, randFn)
		totalDelay += delayMs
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, time.Duration(delayMs)*time.Millisecond)
		}
		sleep(ctx, time.Duration(delayMs)*time.Millisecond)
	}

	return RetryResult{Success: false, Err: lastErr, Attempts: attempts, TotalDelayMs: totalDelay}
}

// backoffDelayMs computes the delay between attempt k and k+1:
// min(base*2^(k-1) + U(0, base*2^(k-1)*jitterFactor), maxDelayMs).
func backoffDelayMs(cfg RetryConfig, attempt int, randFn func() float64) int64 {
	base := float64(cfg.BaseDelayMs) * math.Pow(2, float64(attempt-1))
	jitter := randFn() * base * cfg.JitterFactor
	delay := base + jitter
	if int64(delay) > cfg.MaxDelayMs {
		return cfg.MaxDelayMs
	}
	return int64(delay)
}
