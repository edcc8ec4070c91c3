// Copyright 2025 Certen Protocol

package rules

import (
	"context"
	"testing"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

type erroringRule struct{ id string }

func (r *erroringRule) ID() string                     { return r.id }
func (r *erroringRule) Name() string                   { return r.id }
func (r *erroringRule) Description() string            { return "" }
func (r *erroringRule) DefaultSeverity() types.Severity { return types.SeverityInfo }
func (r *erroringRule) Category() types.FindingCategory { return types.CategorySystem }
func (r *erroringRule) EnabledByDefault() bool          { return true }
func (r *erroringRule) Version() string                 { return "1.0.0" }
func (r *erroringRule) Evaluate(ctx context.Context, cctx ChainContext) ([]types.Finding, error) {
	return nil, errBoom
}

var errBoom = &boomError{}

type boomError struct{}

func (e *boomError) Error() string { return "boom" }

type slowRule struct{ id string }

func (r *slowRule) ID() string                     { return r.id }
func (r *slowRule) Name() string                   { return r.id }
func (r *slowRule) Description() string            { return "" }
func (r *slowRule) DefaultSeverity() types.Severity { return types.SeverityInfo }
func (r *slowRule) Category() types.FindingCategory { return types.CategorySystem }
func (r *slowRule) EnabledByDefault() bool          { return true }
func (r *slowRule) Version() string                 { return "1.0.0" }
func (r *slowRule) Evaluate(ctx context.Context, cctx ChainContext) ([]types.Finding, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestEngine_IsolatesPerRuleErrors(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&erroringRule{id: "BAD"})
	reg.Register(NewMockAlwaysFindRule())

	engine := NewEngine(reg, nil)
	cctx := &FakeChainContext{Block: types.NewBigInt(1), Timestamp: time.Now()}
	result, err := engine.Execute(context.Background(), cctx, ExecuteOptions{RuleIDs: []string{"BAD", "MOCK_ALWAYS_FIND"}})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.RulesRun != 2 || result.RulesFailed != 1 {
		t.Fatalf("expected 2 run / 1 failed, got run=%d failed=%d", result.RulesRun, result.RulesFailed)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("expected 1 finding from the surviving rule, got %d", len(result.Findings))
	}
}

func TestEngine_StopOnError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&erroringRule{id: "BAD"})
	reg.Register(NewMockAlwaysFindRule())

	engine := NewEngine(reg, nil)
	cctx := &FakeChainContext{Block: types.NewBigInt(1), Timestamp: time.Now()}
	result, err := engine.Execute(context.Background(), cctx, ExecuteOptions{
		RuleIDs:     []string{"BAD", "MOCK_ALWAYS_FIND"},
		StopOnError: true,
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.RulesRun != 1 {
		t.Fatalf("expected only the failing rule to run, got %d", result.RulesRun)
	}
}

func TestEngine_RuleTimeout(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&slowRule{id: "SLOW"})
	engine := NewEngine(reg, nil)
	cctx := &FakeChainContext{Block: types.NewBigInt(1), Timestamp: time.Now()}

	result, err := engine.Execute(context.Background(), cctx, ExecuteOptions{
		RuleIDs:     []string{"SLOW"},
		RuleTimeout: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.RulesFailed != 1 {
		t.Fatalf("expected the slow rule to time out as a failure")
	}
	if result.Results[0].Err == nil {
		t.Fatalf("expected a synthetic timeout error")
	}
}

func TestEngine_UnknownRuleIDReturnsError(t *testing.T) {
	reg := NewRegistry()
	engine := NewEngine(reg, nil)
	cctx := &FakeChainContext{Block: types.NewBigInt(1), Timestamp: time.Now()}
	if _, err := engine.Execute(context.Background(), cctx, ExecuteOptions{RuleIDs: []string{"NOPE"}}); err == nil {
		t.Fatalf("expected error for unknown rule id")
	}
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	reg := NewRegistry()
	reg.Register(NewMockAlwaysFindRule())
	reg.Register(NewMockAlwaysFindRule())
}

func TestRegistry_GetEnabledExcludesDisabled(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMockAlwaysFindRule()) // disabled by default
	reg.Register(NewSampleRule())         // enabled by default
	enabled := reg.GetEnabled()
	if len(enabled) != 1 || enabled[0].ID() != "SAMPLE-001" {
		t.Fatalf("expected only SAMPLE-001 enabled, got %+v", enabled)
	}
}
