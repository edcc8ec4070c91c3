// Copyright 2025 Certen Protocol
//
// Remote implements the agent-passkey, gcp-kms, and lit-pkp backends.
// All three delegate key custody to an external signing service and
// differ only in which endpoint they call; the watchtower process
// never holds their key material.

package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/certen-labs/watchtower/pkg/config"
)

const defaultRemoteTimeout = 10 * time.Second

// Remote is a thin HTTP JSON client for a signing service reached at
// RemoteURL. The request/response shapes are the same across all
// three remote-backed variants; only the signPath and the reported
// backend type differ.
type Remote struct {
	backendType config.SignerType
	baseURL     string
	apiKey      string
	address     common.Address
	signPath    string
	httpClient  *http.Client
}

func newRemote(cfg Config, backendType config.SignerType, signPath string) (*Remote, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("signer: %s backend requires a remote URL", backendType)
	}
	if !common.IsHexAddress(cfg.RemoteAddress) {
		return nil, fmt.Errorf("signer: %s backend requires a valid remote address", backendType)
	}
	timeout := defaultRemoteTimeout
	if cfg.RemoteTimeout > 0 {
		timeout = time.Duration(cfg.RemoteTimeout) * time.Millisecond
	}
	return &Remote{
		backendType: backendType,
		baseURL:     cfg.RemoteURL,
		apiKey:      cfg.RemoteAPIKey,
		address:     common.HexToAddress(cfg.RemoteAddress),
		signPath:    signPath,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

type remoteSignRequest struct {
	Kind    string `json:"kind"` // "transaction" | "message" | "typedData"
	Address string `json:"address"`
	Payload string `json:"payload"` // hex-encoded: tx signing hash, raw message bytes, or typed-data JSON, by kind
	ChainID string `json:"chainId,omitempty"`
}

type remoteSignResponse struct {
	Signature string `json:"signature"` // hex-encoded
	Error     string `json:"error"`
}

// GetAddress implements Signer.
func (r *Remote) GetAddress(ctx context.Context) (common.Address, error) {
	return r.address, nil
}

// GetAccount implements Signer.
func (r *Remote) GetAccount(ctx context.Context) (Account, error) {
	return Account{Address: r.address, Type: r.backendType}, nil
}

// SignTransaction implements Signer by sending the transaction's
// signing hash to the remote service and applying the returned
// signature to produce a signed transaction.
func (r *Remote) SignTransaction(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	txSigner := types.LatestSignerForChainID(chainID)
	sigHash := txSigner.Hash(tx)

	sig, err := r.callSign(ctx, remoteSignRequest{
		Kind:    "transaction",
		Address: r.address.Hex(),
		Payload: hex.EncodeToString(sigHash[:]),
		ChainID: chainID.String(),
	})
	if err != nil {
		return nil, err
	}
	signed, err := tx.WithSignature(txSigner, sig)
	if err != nil {
		return nil, fmt.Errorf("signer: apply %s signature: %w", r.backendType, err)
	}
	return signed, nil
}

// SignMessage implements Signer by forwarding the raw message bytes
// (not a digest) to the remote service.
func (r *Remote) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	return r.callSign(ctx, remoteSignRequest{
		Kind:    "message",
		Address: r.address.Hex(),
		Payload: hex.EncodeToString(message),
	})
}

// SignTypedData implements Signer by forwarding the typed data
// payload verbatim; the remote service is responsible for hashing it
// per EIP-712.
func (r *Remote) SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	payload, err := json.Marshal(typedData)
	if err != nil {
		return nil, fmt.Errorf("signer: marshal typed data: %w", err)
	}
	return r.callSign(ctx, remoteSignRequest{
		Kind:    "typedData",
		Address: r.address.Hex(),
		Payload: hex.EncodeToString(payload),
	})
}

// IsHealthy implements Signer by probing the service's health path.
func (r *Remote) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	r.setAuth(req)
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// GetType implements Signer.
func (r *Remote) GetType() config.SignerType {
	return r.backendType
}

func (r *Remote) setAuth(req *http.Request) {
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
}

func (r *Remote) callSign(ctx context.Context, reqBody remoteSignRequest) ([]byte, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("signer: marshal %s request: %w", r.backendType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+r.signPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("signer: build %s request: %w", r.backendType, err)
	}
	req.Header.Set("Content-Type", "application/json")
	r.setAuth(req)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signer: %s request failed: %w", r.backendType, err)
	}
	defer resp.Body.Close()

	var out remoteSignResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("signer: decode %s response: %w", r.backendType, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signer: %s signing failed (%d): %s", r.backendType, resp.StatusCode, out.Error)
	}
	sig, err := hex.DecodeString(out.Signature)
	if err != nil {
		return nil, fmt.Errorf("signer: decode %s signature: %w", r.backendType, err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("signer: %s returned a %d-byte signature, want 65", r.backendType, len(sig))
	}
	return sig, nil
}
