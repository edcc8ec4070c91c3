// Copyright 2025 Certen Protocol
//
// The agent sweep is the periodic catch-all pass over every known
// agent: it re-derives transaction-history signals from the owner
// address on file (detecting drift that happens between registry
// events) and re-scores, so an agent with no new on-chain registry
// activity still gets revisited on a fixed cadence.

package main

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	agentcontext "github.com/certen-labs/watchtower/pkg/context"
)

// runAgentSweep ticks every interval until ctx is canceled, sweeping
// every agent known to this chain.
func (cr *chainRuntime) runAgentSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cr.sweepOnce(ctx)
		}
	}
}

func (cr *chainRuntime) sweepOnce(ctx context.Context) {
	agents, err := cr.store.Agents().List(ctx)
	if err != nil {
		cr.logger.Printf("chain %s: sweep: list agents: %v", cr.spec.Name, err)
		return
	}

	tip, err := cr.provider.CurrentBlock(ctx)
	if err != nil {
		cr.logger.Printf("chain %s: sweep: current block: %v", cr.spec.Name, err)
		return
	}
	if cr.confirmations < tip {
		tip -= cr.confirmations
	}

	now := time.Now().UTC()
	for _, agent := range agents {
		chainID, registry, tokenID, ok := splitAgentID(agent.AgentID)
		if !ok || chainID != cr.spec.Name {
			continue
		}
		_ = registry

		events, err := cr.store.IdentityEvents().ListForToken(ctx, tokenID)
		if err != nil || len(events) == 0 {
			continue
		}
		owner := events[len(events)-1].OwnerAddress
		if owner == "" || !common.IsHexAddress(owner) {
			continue
		}

		cursorBlock, hasCursor, err := cr.store.ContextCursor().Get(ctx, agent.AgentID, cr.spec.Name)
		if err != nil {
			cr.logger.Printf("chain %s: sweep: context cursor for %s: %v", cr.spec.Name, agent.AgentID, err)
			continue
		}
		if !hasCursor {
			// First sweep for this agent: start its window at the
			// current safe tip so the next sweep has a range to fetch.
			if err := cr.store.ContextCursor().Advance(ctx, agent.AgentID, cr.spec.Name, tip); err != nil {
				cr.logger.Printf("chain %s: sweep: init context cursor for %s: %v", cr.spec.Name, agent.AgentID, err)
			}
			continue
		}
		from := cursorBlock
		if from >= tip {
			continue
		}

		window, err := cr.fetcher.FetchWindow(ctx, common.HexToAddress(owner), from, tip)
		if err != nil {
			cr.logger.Printf("chain %s: sweep: fetch window for %s: %v", cr.spec.Name, agent.AgentID, err)
			continue
		}
		prior := cr.sweep.swap(agent.AgentID, window)

		signals := agentcontext.GenerateSignals(agent.AgentID, window, prior, now, agentcontext.Config{})
		if err := scoreAndRecord(ctx, cr.store, agent.AgentID, signals, now, cr.translog, cr.sender, cr.metrics, cr.spec.Name, cr.logger); err != nil {
			cr.logger.Printf("chain %s: sweep: score %s: %v", cr.spec.Name, agent.AgentID, err)
			continue
		}

		if err := cr.store.ContextCursor().Advance(ctx, agent.AgentID, cr.spec.Name, tip); err != nil {
			cr.logger.Printf("chain %s: sweep: advance context cursor for %s: %v", cr.spec.Name, agent.AgentID, err)
		}
	}
}
