// Copyright 2025 Certen Protocol

package rules

import (
	"context"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

// FakeChainContext is an in-memory ChainContext for rule unit tests.
type FakeChainContext struct {
	Block      types.BigInt
	Timestamp  time.Time
	Chain      string
	Receipts   []Receipt
	Disputes   []Dispute
	Solvers    map[string]SolverInfo
	Events     []ChainEvent
	Err        error
}

func (f *FakeChainContext) CurrentBlock() types.BigInt { return f.Block }
func (f *FakeChainContext) BlockTimestamp() time.Time  { return f.Timestamp }
func (f *FakeChainContext) ChainID() string            { return f.Chain }

func (f *FakeChainContext) GetReceiptsInChallengeWindow(ctx context.Context) ([]Receipt, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Receipts, nil
}

func (f *FakeChainContext) GetActiveDisputes(ctx context.Context) ([]Dispute, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Disputes, nil
}

func (f *FakeChainContext) GetSolverInfo(ctx context.Context, solverID string) (*SolverInfo, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if info, ok := f.Solvers[solverID]; ok {
		return &info, nil
	}
	return nil, &types.NotFoundError{Kind: "solver", ID: solverID}
}

func (f *FakeChainContext) GetEvents(ctx context.Context, fromBlock, toBlock uint64) ([]ChainEvent, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	var out []ChainEvent
	for _, e := range f.Events {
		if e.BlockNumber >= fromBlock && e.BlockNumber <= toBlock {
			out = append(out, e)
		}
	}
	return out, nil
}
