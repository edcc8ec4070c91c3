// Copyright 2025 Certen Protocol
//
// Signer abstracts over the tagged union of signing backends the
// watchtower can be configured with: a key held in-process, or a
// remote signing service reached over HTTP. Action handlers depend
// only on this interface, never on a concrete backend.

package signer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/certen-labs/watchtower/pkg/config"
)

// Account describes the signing identity exposed by a backend.
type Account struct {
	Address common.Address
	Type    config.SignerType
}

// Signer is the union of operations every backend must support,
// regardless of where the private key material actually lives.
type Signer interface {
	// GetAddress returns the address this signer signs for.
	GetAddress(ctx context.Context) (common.Address, error)
	// GetAccount returns the address bundled with the backend type.
	GetAccount(ctx context.Context) (Account, error)
	// SignTransaction returns tx signed for chainID.
	SignTransaction(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	// SignMessage signs message under the personal_sign (EIP-191) convention.
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
	// SignTypedData signs an EIP-712 typed data payload.
	SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error)
	// IsHealthy reports whether the backend can currently sign.
	IsHealthy(ctx context.Context) bool
	// GetType identifies the backend variant.
	GetType() config.SignerType
}

// Config bundles the parameters needed to construct any of the four
// backend variants. Only the fields relevant to cfg.Type need be set.
type Config struct {
	Type config.SignerType

	// Local backend.
	PrivateKeyHex string
	KeyPath       string

	// Remote backends (agent-passkey, gcp-kms, lit-pkp) share the same
	// thin RPC-client shape: an endpoint, a bearer credential, and an
	// address the remote service signs on behalf of.
	RemoteURL     string
	RemoteAPIKey  string
	RemoteAddress string
	RemoteTimeout int64 // milliseconds, 0 uses a default
}

// New constructs the Signer backend named by cfg.Type.
func New(cfg Config) (Signer, error) {
	switch cfg.Type {
	case config.SignerLocal:
		return newLocal(cfg)
	case config.SignerAgentPasskey:
		return newRemote(cfg, config.SignerAgentPasskey, "/v1/passkey/sign")
	case config.SignerGCPKMS:
		return newRemote(cfg, config.SignerGCPKMS, "/v1/kms/sign")
	case config.SignerLitPKP:
		return newRemote(cfg, config.SignerLitPKP, "/v1/pkp/sign")
	default:
		return nil, fmt.Errorf("signer: unknown signer type %q", cfg.Type)
	}
}
