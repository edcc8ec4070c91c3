// Copyright 2025 Certen Protocol
//
// EVMChainContext is the production rules.ChainContext: it answers
// receipt/dispute/solver queries from an in-memory Index kept current
// by the poller, and decodes raw logs into rules.ChainEvent on
// demand for rules (like DelegationPayment) that scan events
// directly rather than through the index.

package chainrpc

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/certen-labs/watchtower/pkg/rules"
	"github.com/certen-labs/watchtower/pkg/types"
)

// EVMChainContext implements rules.ChainContext against a live
// Provider and a locally-maintained Index.
type EVMChainContext struct {
	provider    *Provider
	index       *Index
	contracts   []common.Address
	abi         abi.ABI
	block       types.BigInt
	blockTime   time.Time
}

// NewEVMChainContext snapshots the given block/timestamp; the context
// is only valid for the tick it was built for, so rules always
// evaluate against a stable view.
func NewEVMChainContext(provider *Provider, index *Index, contracts []common.Address, block uint64, blockTime time.Time) *EVMChainContext {
	return &EVMChainContext{
		provider:  provider,
		index:     index,
		contracts: contracts,
		abi:       ParseWatchedEventsABI(),
		block:     types.NewBigInt(int64(block)),
		blockTime: blockTime,
	}
}

func (c *EVMChainContext) CurrentBlock() types.BigInt { return c.block }
func (c *EVMChainContext) BlockTimestamp() time.Time  { return c.blockTime }
func (c *EVMChainContext) ChainID() string            { return c.provider.ChainID() }

func (c *EVMChainContext) GetReceiptsInChallengeWindow(ctx context.Context) ([]rules.Receipt, error) {
	return c.index.ReceiptsInChallengeWindow(), nil
}

func (c *EVMChainContext) GetActiveDisputes(ctx context.Context) ([]rules.Dispute, error) {
	return c.index.ActiveDisputes(), nil
}

func (c *EVMChainContext) GetSolverInfo(ctx context.Context, solverID string) (*rules.SolverInfo, error) {
	info, ok := c.index.SolverInfo(solverID)
	if !ok {
		return nil, &types.NotFoundError{Kind: "solver", ID: solverID}
	}
	return &info, nil
}

func (c *EVMChainContext) GetEvents(ctx context.Context, fromBlock, toBlock uint64) ([]rules.ChainEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: c.contracts,
	}
	logs, err := c.provider.FilterLogs(ctx, query)
	if err != nil {
		return nil, err
	}

	events := make([]rules.ChainEvent, 0, len(logs))
	for _, lg := range logs {
		ev, err := DecodeLog(c.abi, lg)
		if err != nil {
			continue
		}
		events = append(events, *ev)
	}
	return events, nil
}

// DecodeLog matches a raw log's first topic against the parsed ABI's
// event set and unpacks both indexed and non-indexed fields into a
// generic name->value map, driven entirely off the ABI instead of a
// hand-written switch per event.
func DecodeLog(parsed abi.ABI, lg gethtypes.Log) (*rules.ChainEvent, error) {
	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("chainrpc: log has no topics")
	}
	event, err := parsed.EventByID(lg.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("chainrpc: unknown event topic %s: %w", lg.Topics[0], err)
	}

	data := make(map[string]interface{})
	if len(lg.Data) > 0 {
		if err := parsed.UnpackIntoMap(data, event.Name, lg.Data); err != nil {
			return nil, fmt.Errorf("chainrpc: unpack %s: %w", event.Name, err)
		}
	}

	indexed := 1
	for _, input := range event.Inputs {
		if !input.Indexed {
			continue
		}
		if indexed >= len(lg.Topics) {
			break
		}
		data[input.Name] = decodeIndexedTopic(input, lg.Topics[indexed])
		indexed++
	}

	topics := make([]string, len(lg.Topics))
	for i, t := range lg.Topics {
		topics[i] = t.Hex()
	}

	return &rules.ChainEvent{
		Name:        event.Name,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash.Hex(),
		LogIndex:    lg.Index,
		Address:     strings.ToLower(lg.Address.Hex()),
		Topics:      topics,
		Data:        data,
	}, nil
}

func decodeIndexedTopic(arg abi.Argument, topic common.Hash) interface{} {
	switch arg.Type.T {
	case abi.AddressTy:
		return common.HexToAddress(topic.Hex()).Hex()
	case abi.UintTy, abi.IntTy:
		return topic.Big()
	default:
		return topic.Hex()
	}
}
