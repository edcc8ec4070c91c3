// Copyright 2025 Certen Protocol
//
// Fetcher replays eth_getLogs-shaped calls through pkg/chainrpc to
// build the Transfer windows GenerateSignals folds into CX_* signals.
// It recognizes the standard ERC-20 Transfer(address,address,uint256)
// event topic; native-value movement analysis is out of scope without
// a tracing RPC, consistent with this module's confirmation-depth-only
// reorg defence (no custom chain re-derivation).

package context

import (
	stdcontext "context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen-labs/watchtower/pkg/chainrpc"
)

var erc20TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Fetcher builds Transfer windows for one agent address against a
// chainrpc.Provider.
type Fetcher struct {
	provider *chainrpc.Provider
}

// NewFetcher constructs a Fetcher bound to one chain provider.
func NewFetcher(provider *chainrpc.Provider) *Fetcher {
	return &Fetcher{provider: provider}
}

// FetchWindow returns every ERC-20 Transfer touching agentAddr (as
// sender or recipient) in [fromBlock, toBlock], tagged with
// counterparty contract-ness via eth_getCode.
func (f *Fetcher) FetchWindow(ctx stdcontext.Context, agentAddr common.Address, fromBlock, toBlock uint64) ([]Transfer, error) {
	agentTopic := common.BytesToHash(common.LeftPadBytes(agentAddr.Bytes(), 32))

	logs, err := f.provider.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Topics:    [][]common.Hash{{erc20TransferTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("context: fetch transfer logs: %w", err)
	}

	contractCache := make(map[common.Address]bool)
	var window []Transfer
	for _, lg := range logs {
		tr, ok := f.decodeTransfer(ctx, lg, agentAddr, agentTopic, contractCache)
		if !ok {
			continue
		}
		window = append(window, tr)
	}
	return window, nil
}

func (f *Fetcher) decodeTransfer(ctx stdcontext.Context, lg gethtypes.Log, agentAddr common.Address, agentTopic common.Hash, contractCache map[common.Address]bool) (Transfer, bool) {
	if len(lg.Topics) < 3 {
		return Transfer{}, false
	}

	from := common.HexToAddress(lg.Topics[1].Hex())
	to := common.HexToAddress(lg.Topics[2].Hex())

	var direction Direction
	var counterparty common.Address
	switch agentTopic {
	case lg.Topics[1]:
		direction = DirectionOut
		counterparty = to
	case lg.Topics[2]:
		direction = DirectionIn
		counterparty = from
	default:
		return Transfer{}, false
	}

	isContract, ok := contractCache[counterparty]
	if !ok {
		var err error
		isContract, err = f.provider.IsContract(ctx, counterparty)
		if err != nil {
			isContract = false
		}
		contractCache[counterparty] = isContract
	}

	value := new(big.Int)
	if len(lg.Data) >= 32 {
		value.SetBytes(lg.Data[:32])
	}

	return Transfer{
		TxHash:                 lg.TxHash.Hex(),
		Counterparty:           counterparty.Hex(),
		CounterpartyIsContract: isContract,
		ValueWei:               value,
		Direction:              direction,
		BlockNumber:            lg.BlockNumber,
	}, true
}
