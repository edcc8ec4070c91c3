// Copyright 2025 Certen Protocol
//
// CircuitBreaker implements the standard closed/open/half-open state
// machine.

package resilience

import (
	"fmt"
	"sync"

	"github.com/certen-labs/watchtower/pkg/clock"
)

// State is one of the three breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitOpenError is returned by IsAllowed/Execute while the breaker
// is open.
type CircuitOpenError struct {
	RemainingMs int64
	Failures    int
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open: %d failures, %dms remaining", e.Failures, e.RemainingMs)
}

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeoutMs   int64
	SuccessThreshold int

	// IsFailure decides whether an error returned by the guarded call
	// counts against the breaker. Defaults to "any non-nil error".
	IsFailure func(err error) bool

	OnStateChange func(from, to State)
}

// CircuitBreaker guards a flaky dependency.
type CircuitBreaker struct {
	cfg   BreakerConfig
	clock clock.Clock

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	openedAtMs      int64
}

// NewCircuitBreaker constructs a breaker in the closed state.
func NewCircuitBreaker(cfg BreakerConfig, c clock.Clock) *CircuitBreaker {
	if c == nil {
		c = clock.Real{}
	}
	return &CircuitBreaker{cfg: cfg, clock: c, state: StateClosed}
}

func (b *CircuitBreaker) isFailure(err error) bool {
	if b.cfg.IsFailure != nil {
		return b.cfg.IsFailure(err)
	}
	return err != nil
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) transition(to State) {
	from := b.state
	b.state = to
	if from == to {
		return
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// IsAllowed reports whether a call may proceed right now, performing
// the open->half-open transition if resetTimeoutMs has elapsed.
func (b *CircuitBreaker) IsAllowed() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isAllowedLocked()
}

func (b *CircuitBreaker) isAllowedLocked() (bool, error) {
	switch b.state {
	case StateClosed, StateHalfOpen:
		return true, nil
	case StateOpen:
		nowMs := b.clock.NowMillis()
		elapsed := nowMs - b.openedAtMs
		if elapsed >= b.cfg.ResetTimeoutMs {
			b.transition(StateHalfOpen)
			b.successCount = 0
			return true, nil
		}
		return false, &CircuitOpenError{
			RemainingMs: b.cfg.ResetTimeoutMs - elapsed,
			Failures:    b.failureCount,
		}
	default:
		return true, nil
	}
}

// RecordSuccess reports a successful call outcome.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
			b.failureCount = 0
			b.successCount = 0
		}
	}
}

// RecordFailure reports a failed call outcome, subject to IsFailure.
func (b *CircuitBreaker) RecordFailure(err error) {
	if !b.isFailure(err) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
			b.openedAtMs = b.clock.NowMillis()
		}
	case StateHalfOpen:
		b.transition(StateOpen)
		b.openedAtMs = b.clock.NowMillis()
		b.successCount = 0
	}
}

// Execute gates fn behind the breaker, recording the outcome.
func (b *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	if allowed, err := b.IsAllowed(); !allowed {
		return nil, err
	}
	val, err := fn()
	if err != nil {
		b.RecordFailure(err)
		return nil, err
	}
	b.RecordSuccess()
	return val, nil
}
