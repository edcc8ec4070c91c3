// Copyright 2025 Certen Protocol

package chainrpc

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/certen-labs/watchtower/pkg/resilience"
)

type fakeEthClient struct {
	blockNumberCalls int
	failUntil        int
	block            uint64
	header           *types.Header
	logs             []types.Log
	err              error
}

func (f *fakeEthClient) BlockNumber(ctx context.Context) (uint64, error) {
	f.blockNumberCalls++
	if f.blockNumberCalls <= f.failUntil {
		return 0, errors.New("timeout contacting node")
	}
	return f.block, nil
}

func (f *fakeEthClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return f.header, f.err
}

func (f *fakeEthClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return f.logs, f.err
}

func (f *fakeEthClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return nil, f.err
}

func (f *fakeEthClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return nil, f.err
}

func (f *fakeEthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, f.err
}

func (f *fakeEthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return nil, f.err
}

func (f *fakeEthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return f.err
}

func testRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:   3,
		BaseDelayMs:  1,
		MaxDelayMs:   5,
		JitterFactor: 0,
		Sleep:        func(ctx context.Context, d time.Duration) {},
		Rand:         func() float64 { return 0 },
	}
}

func TestProvider_CurrentBlockRetriesThenSucceeds(t *testing.T) {
	client := &fakeEthClient{failUntil: 2, block: 12345}
	p := NewProviderWithClient(client, "1", testRetryConfig(), nil)

	got, err := p.CurrentBlock(context.Background())
	if err != nil {
		t.Fatalf("CurrentBlock: %v", err)
	}
	if got != 12345 {
		t.Errorf("expected block 12345, got %d", got)
	}
	if client.blockNumberCalls != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", client.blockNumberCalls)
	}
}

func TestProvider_CurrentBlockExhaustsRetries(t *testing.T) {
	client := &fakeEthClient{failUntil: 10, block: 1}
	p := NewProviderWithClient(client, "1", testRetryConfig(), nil)

	if _, err := p.CurrentBlock(context.Background()); err == nil {
		t.Fatalf("expected an error after exhausting retries")
	}
}
