// Copyright 2025 Certen Protocol
//
// RateLimiter paces outbound calls with a token bucket, independent
// of the retry/breaker machinery in retry.go and breaker.go: a
// provider can be both rate-limited and retried, since the two guard
// against different failure modes (self-inflicted throttling vs. a
// flaky remote).

package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures a token-bucket limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate. Zero disables limiting
	// entirely (NewRateLimiter returns nil).
	RequestsPerSecond float64

	// Burst is the maximum number of requests admitted back-to-back.
	// Defaults to 1 if RequestsPerSecond > 0 and Burst <= 0.
	Burst int
}

// RateLimiter wraps golang.org/x/time/rate.Limiter.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a RateLimiter from cfg, or returns nil if
// RequestsPerSecond is zero (no limiting).
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)}
}

// Wait blocks until a token is available or ctx is done. A nil
// receiver never blocks, so callers can hold an always-valid
// *RateLimiter field and skip a separate nil check at each call site.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}
