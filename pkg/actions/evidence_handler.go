// Copyright 2025 Certen Protocol

package actions

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/certen-labs/watchtower/pkg/agentscore"
	"github.com/certen-labs/watchtower/pkg/types"
)

// EvidenceHandler implements Handler for types.ActionSubmitEvidence by
// calling submitEvidence(receiptId, evidenceHash) on the configured
// dispute module. evidenceHash is the canonical-JSON hash of the whole
// finding, committing to it without publishing its contents on-chain.
type EvidenceHandler struct {
	writer *ChainWriter
	abi    abi.ABI
}

// NewEvidenceHandler constructs an EvidenceHandler.
func NewEvidenceHandler(writer *ChainWriter) (*EvidenceHandler, error) {
	parsed, err := parseDisputeModuleABI()
	if err != nil {
		return nil, fmt.Errorf("actions: parse dispute module ABI: %w", err)
	}
	return &EvidenceHandler{writer: writer, abi: parsed}, nil
}

// Execute implements Handler.
func (h *EvidenceHandler) Execute(ctx context.Context, f types.Finding) (string, error) {
	if f.ReceiptID == "" {
		return "", fmt.Errorf("actions: finding %s has no receiptId to submit evidence for", f.ID)
	}
	hash, err := agentscore.HashCanonicalJSON(f)
	if err != nil {
		return "", fmt.Errorf("actions: hash finding evidence: %w", err)
	}
	data, err := h.abi.Pack("submitEvidence", common.HexToHash(f.ReceiptID), common.HexToHash(hash))
	if err != nil {
		return "", fmt.Errorf("actions: pack submitEvidence call: %w", err)
	}
	return h.writer.Call(ctx, data)
}

// IsHealthy implements Handler.
func (h *EvidenceHandler) IsHealthy(ctx context.Context) bool {
	return h.writer.IsHealthy(ctx)
}
