// Copyright 2025 Certen Protocol
//
// Engine runs a selection of registered rules sequentially against one
// ChainContext, isolating per-rule errors and timeouts so that one bad
// rule never stops the scan.

package rules

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

// DefaultRuleTimeout is the per-rule evaluation budget.
const DefaultRuleTimeout = 30 * time.Second

// ExecuteOptions selects which rules run and how failures propagate.
type ExecuteOptions struct {
	// RuleIDs, if non-empty, restricts execution to these ids in the
	// given order. Otherwise every enabled rule runs.
	RuleIDs []string

	// RuleTimeout overrides DefaultRuleTimeout when non-zero.
	RuleTimeout time.Duration

	// StopOnError halts remaining rules after the first rule error.
	StopOnError bool
}

// RuleResult is one rule's outcome within an ExecuteResult.
type RuleResult struct {
	RuleID     string
	Findings   []types.Finding
	Err        error
	DurationMs int64
}

// ExecuteResult aggregates every RuleResult plus summary counters.
type ExecuteResult struct {
	Results      []RuleResult
	Findings     []types.Finding
	RulesRun     int
	RulesFailed  int
}

// Engine executes rules from a Registry against a ChainContext.
type Engine struct {
	registry *Registry
	logger   *log.Logger
}

// NewEngine constructs an Engine. A nil logger defaults to a
// "[RuleEngine] "-prefixed stdlib logger, following the per-component
// logger convention used throughout this module.
func NewEngine(registry *Registry, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[RuleEngine] ", log.LstdFlags)
	}
	return &Engine{registry: registry, logger: logger}
}

// Execute runs the selected rules sequentially. A rule's error or
// timeout is captured as a typed result and never propagated; Execute
// itself only returns an error for a malformed request (unknown
// ruleId).
func (e *Engine) Execute(ctx context.Context, cctx ChainContext, opts ExecuteOptions) (*ExecuteResult, error) {
	selected, err := e.selectRules(opts)
	if err != nil {
		return nil, err
	}

	timeout := opts.RuleTimeout
	if timeout <= 0 {
		timeout = DefaultRuleTimeout
	}

	result := &ExecuteResult{}
	for _, rule := range selected {
		rr := e.runOne(ctx, cctx, rule, timeout)
		result.Results = append(result.Results, rr)
		result.RulesRun++
		if rr.Err != nil {
			result.RulesFailed++
			e.logger.Printf("rule %s failed: %v", rr.RuleID, rr.Err)
			if opts.StopOnError {
				break
			}
			continue
		}
		result.Findings = append(result.Findings, rr.Findings...)
	}
	return result, nil
}

func (e *Engine) selectRules(opts ExecuteOptions) ([]Rule, error) {
	if len(opts.RuleIDs) == 0 {
		return e.registry.GetEnabled(), nil
	}
	out := make([]Rule, 0, len(opts.RuleIDs))
	for _, id := range opts.RuleIDs {
		rule, ok := e.registry.Get(id)
		if !ok {
			return nil, fmt.Errorf("rules: unknown rule id %q", id)
		}
		out = append(out, rule)
	}
	return out, nil
}

func (e *Engine) runOne(ctx context.Context, cctx ChainContext, rule Rule, timeout time.Duration) RuleResult {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		findings []types.Finding
		err      error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("rule %s panicked: %v", rule.ID(), p)}
			}
		}()
		findings, err := rule.Evaluate(runCtx, cctx)
		done <- outcome{findings: findings, err: err}
	}()

	select {
	case o := <-done:
		return RuleResult{
			RuleID:     rule.ID(),
			Findings:   o.findings,
			Err:        o.err,
			DurationMs: time.Since(start).Milliseconds(),
		}
	case <-runCtx.Done():
		return RuleResult{
			RuleID:     rule.ID(),
			Err:        fmt.Errorf("Rule %s timed out", rule.ID()),
			DurationMs: time.Since(start).Milliseconds(),
		}
	}
}
