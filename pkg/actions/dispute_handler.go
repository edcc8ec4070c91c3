// Copyright 2025 Certen Protocol

package actions

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/certen-labs/watchtower/pkg/types"
)

// DisputeHandler implements Handler for types.ActionOpenDispute by
// calling openDispute(receiptId) on the configured dispute module.
type DisputeHandler struct {
	writer *ChainWriter
	abi    abi.ABI
}

// NewDisputeHandler constructs a DisputeHandler.
func NewDisputeHandler(writer *ChainWriter) (*DisputeHandler, error) {
	parsed, err := parseDisputeModuleABI()
	if err != nil {
		return nil, fmt.Errorf("actions: parse dispute module ABI: %w", err)
	}
	return &DisputeHandler{writer: writer, abi: parsed}, nil
}

// Execute implements Handler.
func (h *DisputeHandler) Execute(ctx context.Context, f types.Finding) (string, error) {
	if f.ReceiptID == "" {
		return "", fmt.Errorf("actions: finding %s has no receiptId to dispute", f.ID)
	}
	data, err := h.abi.Pack("openDispute", common.HexToHash(f.ReceiptID))
	if err != nil {
		return "", fmt.Errorf("actions: pack openDispute call: %w", err)
	}
	return h.writer.Call(ctx, data)
}

// IsHealthy implements Handler.
func (h *DisputeHandler) IsHealthy(ctx context.Context) bool {
	return h.writer.IsHealthy(ctx)
}
