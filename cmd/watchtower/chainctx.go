// Copyright 2025 Certen Protocol

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/certen-labs/watchtower/pkg/chainrpc"
	"github.com/certen-labs/watchtower/pkg/rules"
)

// buildPrimaryChainContext builds a fresh rules.ChainContext snapshot
// for the primary chain's manual /scan endpoint, reading the current
// tip and its timestamp rather than waiting for the next poll tick.
func buildPrimaryChainContext(ctx context.Context, cr *chainRuntime) (rules.ChainContext, error) {
	tip, err := cr.provider.CurrentBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("chainctx: current block: %w", err)
	}
	ts, err := cr.provider.BlockTimestamp(ctx, tip)
	if err != nil {
		return nil, fmt.Errorf("chainctx: block timestamp: %w", err)
	}
	return chainrpc.NewEVMChainContext(cr.provider, cr.index, cr.contracts, tip, time.Unix(int64(ts), 0).UTC()), nil
}
