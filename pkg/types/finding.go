// Copyright 2025 Certen Protocol

package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Finding is a rule's observation, potentially actionable. Its Id is
// stable once created; ActedUpon is monotonic false->true.
type Finding struct {
	ID                string                 `json:"id"`
	RuleID            string                 `json:"ruleId"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Severity          Severity               `json:"severity"`
	Category          FindingCategory        `json:"category"`
	CreatedAt         time.Time              `json:"createdAt"`
	BlockNumber       BigInt                 `json:"blockNumber"`
	TxHash            string                 `json:"txHash,omitempty"`
	ContractAddress   string                 `json:"contractAddress,omitempty"`
	SolverID          string                 `json:"solverId,omitempty"`
	ReceiptID         string                 `json:"receiptId,omitempty"`
	RecommendedAction ActionType             `json:"recommendedAction"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	ActedUpon         bool                   `json:"actedUpon"`
	ActionTxHash      string                 `json:"actionTxHash,omitempty"`
}

// NewFindingID constructs the content-flavoured-but-not-pure id
// ruleId-block-timestamp-randomSuffix.
func NewFindingID(ruleID string, block BigInt, t time.Time) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("types: generate finding suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%d-%s",
		strings.ToLower(ruleID),
		block.String(),
		t.UnixNano(),
		hex.EncodeToString(suffix),
	), nil
}

// MarkActedUpon records that the executor successfully acted on this
// finding. It is a no-op if already acted upon, preserving the
// monotonic false->true invariant.
func (f *Finding) MarkActedUpon(txHash string) {
	if f.ActedUpon {
		return
	}
	f.ActedUpon = true
	f.ActionTxHash = txHash
}
