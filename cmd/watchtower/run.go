// Copyright 2025 Certen Protocol
//
// Per-chain background loops: the event scanner ticks the block
// poller then, on a non-empty tick, runs the rule engine against the
// freshly indexed state and executes any resulting actions. The
// identity poller's own tick already does the scan+score work inside
// pkg/identity's sink; here it only mirrors the resulting cursor
// position into the DB-backed IdentityCursorRepository so operators
// can query progress without reading the state directory.

package main

import (
	"context"
	"strings"
	"time"

	"github.com/certen-labs/watchtower/pkg/actions"
	"github.com/certen-labs/watchtower/pkg/chainrpc"
	"github.com/certen-labs/watchtower/pkg/rules"
	"github.com/certen-labs/watchtower/pkg/types"
)

// runEventPoller ticks cr's event poller on PollInterval until ctx is
// canceled, running the rule engine and action executor after every
// tick that advanced the cursor.
func (cr *chainRuntime) runEventPoller(ctx context.Context, pollInterval time.Duration, h *HealthStatus) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cr.tickEvents(ctx, h)
		}
	}
}

func (cr *chainRuntime) tickEvents(ctx context.Context, h *HealthStatus) {
	ticked, err := cr.eventPoller.Tick(ctx)
	if err != nil {
		cr.logger.Printf("chain %s: event tick: %v", cr.spec.Name, err)
		if h != nil {
			h.SetChain(cr.spec.Name, "error")
		}
		if cr.metrics != nil {
			cr.metrics.RecordError("event_poll", cr.spec.Name)
		}
		return
	}
	if h != nil {
		h.SetChain(cr.spec.Name, "ok")
	}
	if !ticked {
		return
	}

	blockNum, hasCursor := cr.eventCursor.Get()
	if !hasCursor {
		return
	}
	block := blockNum.LastProcessedBlock.Uint64()

	if cr.metrics != nil {
		cr.metrics.RecordTick(cr.spec.Name, block)
		cr.metrics.ScanStarted(cr.spec.Name)
		defer cr.metrics.ScanFinished(cr.spec.Name)
	}

	blockTime, err := cr.provider.BlockTimestamp(ctx, block)
	if err != nil {
		cr.logger.Printf("chain %s: block timestamp for %d: %v", cr.spec.Name, block, err)
		return
	}

	cctx := chainrpc.NewEVMChainContext(cr.provider, cr.index, cr.contracts, block, time.Unix(int64(blockTime), 0).UTC())
	result, err := cr.engine.Execute(ctx, cctx, rules.ExecuteOptions{})
	if err != nil {
		cr.logger.Printf("chain %s: rule engine: %v", cr.spec.Name, err)
		return
	}

	for _, rr := range result.Results {
		if rr.Err != nil && cr.metrics != nil {
			cr.metrics.RecordError("rule_"+strings.ToLower(rr.RuleID), cr.spec.Name)
		}
	}
	if len(result.Findings) == 0 {
		return
	}

	byID := make(map[string]int, len(result.Findings))
	for i, f := range result.Findings {
		byID[f.ID] = i
	}

	actionResults := cr.executor.ExecuteActions(ctx, result.Findings)
	for _, ar := range actionResults {
		i, ok := byID[ar.FindingID]
		if !ok {
			continue
		}
		f := result.Findings[i]

		if cr.metrics != nil {
			status := "failed"
			if ar.Success {
				status = "success"
			}
			if ar.DryRun {
				status = "dry_run"
			}
			cr.metrics.RecordAction(string(ar.ActionType), status, cr.spec.Name)
		}
		cr.recordFindingArtifacts(f, ar)
	}
}

// recordFindingArtifacts appends a finding and its action outcome to
// the evidence log, when one is configured.
func (cr *chainRuntime) recordFindingArtifacts(f types.Finding, ar actions.ActionResult) {
	if cr.evidence == nil {
		return
	}
	if err := cr.evidence.AppendFinding(types.FindingRecord{Finding: f, ChainID: cr.spec.Name}); err != nil {
		cr.logger.Printf("chain %s: append finding evidence: %v", cr.spec.Name, err)
	}
	record := types.ActionResultRecord{
		ActionResult: types.ActionResult{
			Success:    ar.Success,
			DryRun:     ar.DryRun,
			TxHash:     ar.TxHash,
			Error:      ar.Error,
			ActionType: ar.ActionType,
			ReceiptID:  ar.ReceiptID,
		},
		ChainID:   cr.spec.Name,
		FindingID: ar.FindingID,
		Timestamp: time.Now().UTC(),
	}
	if err := cr.evidence.AppendActionResult(record); err != nil {
		cr.logger.Printf("chain %s: append action evidence: %v", cr.spec.Name, err)
	}
}

// runIdentityPoller ticks cr's identity poller, then mirrors the
// resulting file-cursor position into the DB-backed
// IdentityCursorRepository.
func (cr *chainRuntime) runIdentityPoller(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := cr.identityPoller.Tick(ctx); err != nil {
				cr.logger.Printf("chain %s: identity tick: %v", cr.spec.Name, err)
				continue
			}
			cursorVal, ok := cr.identityCursor.Get()
			if !ok {
				continue
			}
			if err := cr.store.IdentityCursor().Advance(ctx, cr.spec.Name, strings.ToLower(cr.spec.AgentRegistry), cursorVal.LastProcessedBlock.Uint64()); err != nil {
				cr.logger.Printf("chain %s: mirror identity cursor: %v", cr.spec.Name, err)
			}
		}
	}
}
