// Copyright 2025 Certen Protocol

package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/certen-labs/watchtower/pkg/config"
)

// Local signs with an ECDSA private key held in process memory. It is
// the only backend that owns key material directly; every other
// variant delegates the private key to a remote service.
type Local struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newLocal(cfg Config) (*Local, error) {
	hexKey := strings.TrimPrefix(cfg.PrivateKeyHex, "0x")
	if hexKey == "" && cfg.KeyPath != "" {
		raw, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("signer: read local key file: %w", err)
		}
		hexKey = strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x")
	}
	if hexKey == "" {
		return nil, fmt.Errorf("signer: local backend requires a private key")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("signer: parse local private key: %w", err)
	}
	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("signer: derive public key: unexpected key type")
	}
	return &Local{key: key, address: crypto.PubkeyToAddress(*pub)}, nil
}

// GetAddress implements Signer.
func (l *Local) GetAddress(ctx context.Context) (common.Address, error) {
	return l.address, nil
}

// GetAccount implements Signer.
func (l *Local) GetAccount(ctx context.Context) (Account, error) {
	return Account{Address: l.address, Type: config.SignerLocal}, nil
}

// SignTransaction implements Signer using the latest signer rules for
// chainID, so EIP-1559 and legacy transactions are both handled
// correctly.
func (l *Local) SignTransaction(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	signed, err := types.SignTx(tx, signer, l.key)
	if err != nil {
		return nil, fmt.Errorf("signer: sign transaction: %w", err)
	}
	return signed, nil
}

// SignMessage implements Signer using the personal_sign (EIP-191)
// convention: the message is hashed with its length-prefixed text
// before signing, matching what on-chain ecrecover callers expect.
func (l *Local) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	hash := accounts.TextHash(message)
	sig, err := crypto.Sign(hash, l.key)
	if err != nil {
		return nil, fmt.Errorf("signer: sign message: %w", err)
	}
	// crypto.Sign returns a 0/1 recovery id; personal_sign callers
	// expect 27/28 in the last byte.
	sig[64] += 27
	return sig, nil
}

// SignTypedData implements Signer for EIP-712 typed data.
func (l *Local) SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("signer: hash EIP712Domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("signer: hash typed data message: %w", err)
	}
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	hash := crypto.Keccak256(rawData)

	sig, err := crypto.Sign(hash, l.key)
	if err != nil {
		return nil, fmt.Errorf("signer: sign typed data: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// IsHealthy implements Signer. The local backend is healthy whenever
// it holds a key, which is always true once constructed.
func (l *Local) IsHealthy(ctx context.Context) bool {
	return l.key != nil
}

// GetType implements Signer.
func (l *Local) GetType() config.SignerType {
	return config.SignerLocal
}

// Transactor builds a *bind.TransactOpts bound to this key, for
// callers that drive a generated contract binding directly instead of
// constructing and signing a raw transaction.
func (l *Local) Transactor(chainID *big.Int) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(l.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("signer: build transactor: %w", err)
	}
	return auth, nil
}
