// Copyright 2025 Certen Protocol

package actions

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/certen-labs/watchtower/pkg/chainrpc"
	"github.com/certen-labs/watchtower/pkg/config"
	"github.com/certen-labs/watchtower/pkg/resilience"
	"github.com/certen-labs/watchtower/pkg/signer"
	"github.com/certen-labs/watchtower/pkg/types"
)

type fakeWriterClient struct {
	nonce    uint64
	gasPrice *big.Int
	sent     []*types.Transaction
	sendErr  error
}

func (f *fakeWriterClient) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (f *fakeWriterClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return nil, nil
}
func (f *fakeWriterClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}
func (f *fakeWriterClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}
func (f *fakeWriterClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return nil, nil
}
func (f *fakeWriterClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}
func (f *fakeWriterClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}
func (f *fakeWriterClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

type fakeSigner struct {
	addr common.Address
}

func (s *fakeSigner) GetAddress(ctx context.Context) (common.Address, error) { return s.addr, nil }
func (s *fakeSigner) GetAccount(ctx context.Context) (signer.Account, error) {
	return signer.Account{Address: s.addr, Type: config.SignerLocal}, nil
}
func (s *fakeSigner) SignTransaction(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return tx, nil
}
func (s *fakeSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	return make([]byte, 65), nil
}
func (s *fakeSigner) SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	return make([]byte, 65), nil
}
func (s *fakeSigner) IsHealthy(ctx context.Context) bool { return true }
func (s *fakeSigner) GetType() config.SignerType         { return config.SignerLocal }

func testFinding(receiptID string) types.Finding {
	return types.Finding{
		ID:                "f1",
		RuleID:            "receipt-stale",
		ReceiptID:         receiptID,
		RecommendedAction: types.ActionOpenDispute,
		CreatedAt:         time.Now(),
	}
}

func testRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:  1,
		BaseDelayMs: 1,
		MaxDelayMs:  2,
		Sleep:       func(ctx context.Context, d time.Duration) {},
		Rand:        func() float64 { return 0 },
	}
}

func TestChainWriter_CallBroadcastsSignedTransaction(t *testing.T) {
	client := &fakeWriterClient{nonce: 5, gasPrice: big.NewInt(10)}
	provider := chainrpc.NewProviderWithClient(client, "1", testRetryConfig(), nil)
	s := &fakeSigner{addr: common.HexToAddress("0xaaaa")}
	w := NewChainWriter(provider, common.HexToAddress("0xbbbb"), big.NewInt(1), s)

	hash, err := w.Call(context.Background(), []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected a non-empty tx hash")
	}
	if len(client.sent) != 1 {
		t.Fatalf("expected exactly one broadcast transaction, got %d", len(client.sent))
	}
	if client.sent[0].Nonce() != 5 {
		t.Errorf("expected nonce 5, got %d", client.sent[0].Nonce())
	}
}

func TestChainWriter_CallPropagatesBroadcastError(t *testing.T) {
	client := &fakeWriterClient{nonce: 1, gasPrice: big.NewInt(1), sendErr: errors.New("rpc down")}
	provider := chainrpc.NewProviderWithClient(client, "1", testRetryConfig(), nil)
	s := &fakeSigner{addr: common.HexToAddress("0xaaaa")}
	w := NewChainWriter(provider, common.HexToAddress("0xbbbb"), big.NewInt(1), s)

	if _, err := w.Call(context.Background(), []byte{0x01}); err == nil {
		t.Fatalf("expected an error when broadcast fails")
	}
}

func TestDisputeHandler_ExecutePacksReceiptIDAndBroadcasts(t *testing.T) {
	client := &fakeWriterClient{nonce: 0, gasPrice: big.NewInt(1)}
	provider := chainrpc.NewProviderWithClient(client, "1", testRetryConfig(), nil)
	s := &fakeSigner{addr: common.HexToAddress("0xaaaa")}
	w := NewChainWriter(provider, common.HexToAddress("0xbbbb"), big.NewInt(1), s)

	h, err := NewDisputeHandler(w)
	if err != nil {
		t.Fatalf("NewDisputeHandler: %v", err)
	}
	f := testFinding("0x11")
	txHash, err := h.Execute(context.Background(), f)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if txHash == "" {
		t.Fatalf("expected a non-empty tx hash")
	}
	if !h.IsHealthy(context.Background()) {
		t.Fatalf("expected handler to report healthy")
	}
}

func TestEvidenceHandler_ExecutePacksReceiptIDAndEvidenceHash(t *testing.T) {
	client := &fakeWriterClient{nonce: 0, gasPrice: big.NewInt(1)}
	provider := chainrpc.NewProviderWithClient(client, "1", testRetryConfig(), nil)
	s := &fakeSigner{addr: common.HexToAddress("0xaaaa")}
	w := NewChainWriter(provider, common.HexToAddress("0xbbbb"), big.NewInt(1), s)

	h, err := NewEvidenceHandler(w)
	if err != nil {
		t.Fatalf("NewEvidenceHandler: %v", err)
	}
	f := testFinding("0x11")
	txHash, err := h.Execute(context.Background(), f)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if txHash == "" {
		t.Fatalf("expected a non-empty tx hash")
	}
}

func TestDisputeHandler_ExecuteRejectsFindingWithoutReceiptID(t *testing.T) {
	client := &fakeWriterClient{gasPrice: big.NewInt(1)}
	provider := chainrpc.NewProviderWithClient(client, "1", testRetryConfig(), nil)
	s := &fakeSigner{addr: common.HexToAddress("0xaaaa")}
	w := NewChainWriter(provider, common.HexToAddress("0xbbbb"), big.NewInt(1), s)
	h, _ := NewDisputeHandler(w)

	f := testFinding("")
	if _, err := h.Execute(context.Background(), f); err == nil {
		t.Fatalf("expected an error for a finding with no receiptId")
	}
}
