// Copyright 2025 Certen Protocol

package types

import "time"

// LedgerActionType is the subset of ActionType the idempotency ledger
// can record. OPEN_DISPUTE and SUBMIT_EVIDENCE are the only actions
// that mutate chain state and therefore need idempotency protection.
type LedgerActionType string

const (
	LedgerActionOpenDispute    LedgerActionType = "OPEN_DISPUTE"
	LedgerActionSubmitEvidence LedgerActionType = "SUBMIT_EVIDENCE"
)

// ActionEntry is one row of the idempotency ledger, keyed by a
// lower-cased receiptId.
type ActionEntry struct {
	ReceiptID   string           `json:"receiptId"`
	ActionType  LedgerActionType `json:"actionType"`
	TxHash      string           `json:"txHash"`
	BlockNumber BigInt           `json:"blockNumber"`
	Timestamp   time.Time        `json:"timestamp"`
	FindingID   string           `json:"findingId"`
}
