// Copyright 2025 Certen Protocol

package actions

import (
	"context"

	"github.com/certen-labs/watchtower/pkg/types"
)

// Handler executes one on-chain counter-action for a Finding,
// returning the transaction hash on success.
type Handler interface {
	// Execute performs the action and returns its tx hash.
	Execute(ctx context.Context, finding types.Finding) (txHash string, err error)
	// IsHealthy reports whether the handler's dependencies (signer,
	// RPC endpoint) are currently usable.
	IsHealthy(ctx context.Context) bool
}

// ledgerActionTypes maps an ActionType to the ledger's narrower
// vocabulary. Only the chain-writing types appear here; the executor
// runs an ActionType with no entry (NOTIFY, MANUAL_REVIEW, ESCALATE)
// without writing a ledger entry.
var ledgerActionTypes = map[types.ActionType]types.LedgerActionType{
	types.ActionOpenDispute:    types.LedgerActionOpenDispute,
	types.ActionSubmitEvidence: types.LedgerActionSubmitEvidence,
}

func ledgerActionTypeFor(t types.ActionType) (types.LedgerActionType, bool) {
	lt, ok := ledgerActionTypes[t]
	return lt, ok
}
