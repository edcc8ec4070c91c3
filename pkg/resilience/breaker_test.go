// Copyright 2025 Certen Protocol

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/certen-labs/watchtower/pkg/clock"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeoutMs: 1000, SuccessThreshold: 1}, fc)

	for i := 0; i < 2; i++ {
		b.RecordFailure(errors.New("boom"))
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed before threshold, got %s", b.State())
	}
	b.RecordFailure(errors.New("boom"))
	if b.State() != StateOpen {
		t.Fatalf("expected open at threshold, got %s", b.State())
	}

	allowed, err := b.IsAllowed()
	if allowed || err == nil {
		t.Fatalf("expected calls rejected while open")
	}
	var coe *CircuitOpenError
	if !errors.As(err, &coe) {
		t.Fatalf("expected CircuitOpenError, got %T", err)
	}
}

func TestCircuitBreaker_HalfOpenThenClosed(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeoutMs: 100, SuccessThreshold: 2}, fc)

	b.RecordFailure(errors.New("boom"))
	if b.State() != StateOpen {
		t.Fatalf("expected open")
	}

	fc.Advance(150 * time.Millisecond)
	allowed, _ := b.IsAllowed()
	if !allowed {
		t.Fatalf("expected half-open to allow calls after reset timeout")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	b.RecordSuccess()
	if b.State() != StateHalfOpen {
		t.Fatalf("expected still half-open after 1 of 2 successes")
	}
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after success threshold, got %s", b.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeoutMs: 100, SuccessThreshold: 2}, fc)
	b.RecordFailure(errors.New("boom"))
	fc.Advance(200 * time.Millisecond)
	b.IsAllowed()
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open")
	}
	b.RecordFailure(errors.New("still broken"))
	if b.State() != StateOpen {
		t.Fatalf("expected re-opened after half-open failure, got %s", b.State())
	}
}
