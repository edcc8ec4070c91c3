// Copyright 2025 Certen Protocol
//
// ChainWriter builds, signs, and broadcasts a single contract call,
// composing pkg/chainrpc.Provider for gas/nonce lookups and broadcast
// with pkg/signer.Signer for the signature itself.

package actions

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/certen-labs/watchtower/pkg/chainrpc"
	"github.com/certen-labs/watchtower/pkg/signer"
)

// DefaultGasLimit is used for every dispute-module call: both methods
// take two bytes32 arguments at most and never loop on-chain.
const DefaultGasLimit = 150_000

// ChainWriter sends one signed transaction to a fixed contract address
// on a fixed chain.
type ChainWriter struct {
	provider        *chainrpc.Provider
	contractAddress common.Address
	chainID         *big.Int
	signer          signer.Signer
}

// NewChainWriter builds a ChainWriter targeting contractAddress on chainID.
func NewChainWriter(provider *chainrpc.Provider, contractAddress common.Address, chainID *big.Int, s signer.Signer) *ChainWriter {
	return &ChainWriter{provider: provider, contractAddress: contractAddress, chainID: chainID, signer: s}
}

// Call packs data (already ABI-encoded calldata), signs a legacy
// transaction against it, and broadcasts it, returning the tx hash.
func (w *ChainWriter) Call(ctx context.Context, data []byte) (string, error) {
	from, err := w.signer.GetAddress(ctx)
	if err != nil {
		return "", fmt.Errorf("actions: get signer address: %w", err)
	}
	nonce, err := w.provider.PendingNonce(ctx, from)
	if err != nil {
		return "", fmt.Errorf("actions: fetch nonce: %w", err)
	}
	gasPrice, err := w.provider.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("actions: fetch gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      DefaultGasLimit,
		To:       &w.contractAddress,
		Value:    big.NewInt(0),
		Data:     data,
	})

	signed, err := w.signer.SignTransaction(ctx, tx, w.chainID)
	if err != nil {
		return "", fmt.Errorf("actions: sign transaction: %w", err)
	}
	if err := w.provider.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("actions: broadcast transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// IsHealthy reports whether the underlying signer can currently sign.
func (w *ChainWriter) IsHealthy(ctx context.Context) bool {
	return w.signer.IsHealthy(ctx)
}
