// Copyright 2025 Certen Protocol

package resilience

import "context"

// ResilientConfig composes a RetryConfig and an optional
// CircuitBreaker around a single call: resilient(fn, {retry?,
// circuitBreaker?}).
type ResilientConfig struct {
	Retry   *RetryConfig
	Breaker *CircuitBreaker
}

// Resilient gates each retry attempt behind the breaker (if any) and
// records the final exhausted-retry failure against it.
func Resilient(ctx context.Context, cfg ResilientConfig, fn func(ctx context.Context) (interface{}, error)) RetryResult {
	guarded := fn
	if cfg.Breaker != nil {
		guarded = func(ctx context.Context) (interface{}, error) {
			if allowed, err := cfg.Breaker.IsAllowed(); !allowed {
				return nil, err
			}
			val, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			cfg.Breaker.RecordSuccess()
			return val, nil
		}
	}

	retryCfg := RetryConfig{}
	if cfg.Retry != nil {
		retryCfg = *cfg.Retry
	}

	result := WithRetry(ctx, retryCfg, guarded)

	if !result.Success && cfg.Breaker != nil {
		cfg.Breaker.RecordFailure(result.Err)
	}
	return result
}
