// Copyright 2025 Certen Protocol
//
// Provider wraps ethclient.Client (dial once, expose narrow typed
// methods), routing every call through pkg/resilience so RPC
// flakiness is retried and, past a failure threshold, fails fast via
// the circuit breaker. Every outbound RPC call in this module goes
// through it.

package chainrpc

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/certen-labs/watchtower/pkg/resilience"
)

// EthClient is the subset of *ethclient.Client Provider depends on,
// so tests can substitute a fake without dialing a real node.
type EthClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Provider is a resilience-wrapped RPC client for one chain.
type Provider struct {
	client      EthClient
	chainID     string
	retry       resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
	rateLimiter *resilience.RateLimiter
}

// NewProvider dials url and wraps the resulting client. breaker may
// be nil to disable circuit-breaking (tests, or a deliberately
// best-effort call site).
func NewProvider(url, chainID string, retry resilience.RetryConfig, breaker *resilience.CircuitBreaker) (*Provider, error) {
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("chainrpc: dial %s: %w", url, err)
	}
	return NewProviderWithClient(client, chainID, retry, breaker), nil
}

// NewProviderWithClient builds a Provider around an already-connected
// EthClient (production *ethclient.Client, or a test fake).
func NewProviderWithClient(client EthClient, chainID string, retry resilience.RetryConfig, breaker *resilience.CircuitBreaker) *Provider {
	return &Provider{client: client, chainID: chainID, retry: retry, breaker: breaker}
}

// WithRateLimit attaches a pacing limiter to the provider and returns
// it for chaining. A nil limiter (the common case, when rate limiting
// is not configured) leaves every call unpaced.
func (p *Provider) WithRateLimit(limiter *resilience.RateLimiter) *Provider {
	p.rateLimiter = limiter
	return p
}

// ChainID returns the configured chain identifier.
func (p *Provider) ChainID() string { return p.chainID }

func (p *Provider) call(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("chainrpc: rate limit wait: %w", err)
	}
	var res resilience.RetryResult
	if p.breaker != nil {
		res = resilience.Resilient(ctx, resilience.ResilientConfig{Retry: &p.retry, Breaker: p.breaker}, fn)
	} else {
		res = resilience.WithRetry(ctx, p.retry, fn)
	}
	if !res.Success {
		return nil, res.Err
	}
	return res.Value, nil
}

// CurrentBlock returns the chain tip.
func (p *Provider) CurrentBlock(ctx context.Context) (uint64, error) {
	v, err := p.call(ctx, func(ctx context.Context) (interface{}, error) {
		return p.client.BlockNumber(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("chainrpc: current block: %w", err)
	}
	return v.(uint64), nil
}

// BlockTimestamp returns the timestamp of a given block number.
func (p *Provider) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	v, err := p.call(ctx, func(ctx context.Context) (interface{}, error) {
		return p.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	})
	if err != nil {
		return 0, fmt.Errorf("chainrpc: block %d header: %w", blockNumber, err)
	}
	return v.(*types.Header).Time, nil
}

// FilterLogs fetches raw logs for a query, retried/breaker-gated like
// every other outbound call.
func (p *Provider) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	v, err := p.call(ctx, func(ctx context.Context) (interface{}, error) {
		return p.client.FilterLogs(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("chainrpc: filter logs: %w", err)
	}
	return v.([]types.Log), nil
}

// IsContract reports whether account has code at the chain tip (an
// empty CodeAt result means it's an externally-owned account).
func (p *Provider) IsContract(ctx context.Context, account common.Address) (bool, error) {
	v, err := p.call(ctx, func(ctx context.Context) (interface{}, error) {
		return p.client.CodeAt(ctx, account, nil)
	})
	if err != nil {
		return false, fmt.Errorf("chainrpc: code at %s: %w", account.Hex(), err)
	}
	code, _ := v.([]byte)
	return len(code) > 0, nil
}

// BalanceAt returns account's balance at the chain tip.
func (p *Provider) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	v, err := p.call(ctx, func(ctx context.Context) (interface{}, error) {
		return p.client.BalanceAt(ctx, account, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("chainrpc: balance at %s: %w", account.Hex(), err)
	}
	bal, _ := v.(*big.Int)
	return bal, nil
}

// PendingNonce returns account's next usable nonce, used to build a
// write transaction.
func (p *Provider) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	v, err := p.call(ctx, func(ctx context.Context) (interface{}, error) {
		return p.client.PendingNonceAt(ctx, account)
	})
	if err != nil {
		return 0, fmt.Errorf("chainrpc: pending nonce for %s: %w", account.Hex(), err)
	}
	return v.(uint64), nil
}

// SuggestGasPrice returns the network's currently suggested gas price.
func (p *Provider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	v, err := p.call(ctx, func(ctx context.Context) (interface{}, error) {
		return p.client.SuggestGasPrice(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("chainrpc: suggest gas price: %w", err)
	}
	return v.(*big.Int), nil
}

// SendTransaction broadcasts a signed transaction.
func (p *Provider) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	_, err := p.call(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, p.client.SendTransaction(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("chainrpc: send transaction: %w", err)
	}
	return nil
}
