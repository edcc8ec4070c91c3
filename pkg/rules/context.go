// Copyright 2025 Certen Protocol
//
// ChainContext is the effectful read surface every rule is evaluated
// against. The engine never implements it directly — production
// wiring is pkg/chainrpc.EVMChainContext; tests use FakeChainContext
// below.

package rules

import (
	"context"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

// ReceiptStatus mirrors the on-chain lifecycle of a settlement receipt.
type ReceiptStatus string

const (
	ReceiptPending    ReceiptStatus = "pending"
	ReceiptFinalized  ReceiptStatus = "finalized"
	ReceiptChallenged ReceiptStatus = "challenged"
	ReceiptDisputed   ReceiptStatus = "disputed"
)

// Receipt is the minimal on-chain receipt view a rule needs.
type Receipt struct {
	ReceiptID         string
	SolverID          string
	IntentHash        string
	Amount            types.BigInt
	ChallengeDeadline time.Time
	Status            ReceiptStatus
	BlockNumber       types.BigInt
	TxHash            string
}

// Dispute is a minimal on-chain dispute view.
type Dispute struct {
	DisputeID  string
	ReceiptID  string
	BondAmount types.BigInt
	OpenedAt   time.Time
}

// SolverInfo is the minimal on-chain solver-registry view.
type SolverInfo struct {
	SolverID string
	Bond     types.BigInt
	Active   bool
}

// ChainEvent is a decoded, generic contract log. Rules that need
// contract-specific events (e.g. DelegatedPaymentSettled) type-assert
// or re-decode Data against their own ABI fragment.
type ChainEvent struct {
	Name        string
	BlockNumber uint64
	TxHash      string
	LogIndex    uint
	Address     string
	Topics      []string
	Data        map[string]interface{}
}

// ChainContext is supplied to each rule's Evaluate call.
type ChainContext interface {
	CurrentBlock() types.BigInt
	BlockTimestamp() time.Time
	ChainID() string

	GetReceiptsInChallengeWindow(ctx context.Context) ([]Receipt, error)
	GetActiveDisputes(ctx context.Context) ([]Dispute, error)
	GetSolverInfo(ctx context.Context, solverID string) (*SolverInfo, error)
	GetEvents(ctx context.Context, fromBlock, toBlock uint64) ([]ChainEvent, error)
}
