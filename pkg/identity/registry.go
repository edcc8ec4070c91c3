// Copyright 2025 Certen Protocol
//
// The identity registry poller is one more instance of pkg/poller,
// scanning an ERC-8004-style registry contract for
// AgentRegistered/AgentURIUpdated events and handing each decoded
// event to an EventSink (pkg/storage in production).

package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/certen-labs/watchtower/pkg/chainrpc"
	"github.com/certen-labs/watchtower/pkg/clock"
	"github.com/certen-labs/watchtower/pkg/cursor"
	"github.com/certen-labs/watchtower/pkg/poller"
	"github.com/certen-labs/watchtower/pkg/rules"
)

const (
	EventAgentRegistered = "AgentRegistered"
	EventAgentURIUpdated = "AgentURIUpdated"
)

// RegistryEvent mirrors the identity_events storage row.
type RegistryEvent struct {
	EventID         string
	ChainID         string
	RegistryAddress string
	AgentTokenID    string
	AgentURI        string
	OwnerAddress    string
	EventType       string
	BlockNumber     uint64
	TxHash          string
	LogIndex        uint
	DiscoveredAt    time.Time
}

// NewEventID derives the deterministic identity_events primary key:
// SHA-256("<chainId>:<txHash lower>:<logIndex>").
func NewEventID(chainID, txHash string, logIndex uint) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", chainID, strings.ToLower(txHash), logIndex)))
	return hex.EncodeToString(sum[:])
}

// EventSink persists decoded registry events; pkg/storage implements
// this against the embedded store.
type EventSink interface {
	RecordEvent(ctx context.Context, ev RegistryEvent) error
}

// RegistryScanner fetches and decodes one block range of registry
// logs, handing each event to the sink. It is the FetchFunc a
// poller.Poller drives.
type RegistryScanner struct {
	provider        *chainrpc.Provider
	registryAddress common.Address
	abi             abi.ABI
	chainID         string
	sink            EventSink
	clock           clock.Clock
}

// NewRegistryScanner builds a scanner bound to one registry contract.
func NewRegistryScanner(provider *chainrpc.Provider, registryAddress common.Address, chainID string, sink EventSink, c clock.Clock) *RegistryScanner {
	if c == nil {
		c = clock.Real{}
	}
	return &RegistryScanner{
		provider:        provider,
		registryAddress: registryAddress,
		abi:             chainrpc.ParseWatchedEventsABI(),
		chainID:         chainID,
		sink:            sink,
		clock:           c,
	}
}

// Fetch implements poller.FetchFunc.
func (s *RegistryScanner) Fetch(ctx context.Context, fromBlock, toBlock uint64) (int, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{s.registryAddress},
	}

	logs, err := s.provider.FilterLogs(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("identity: filter registry logs: %w", err)
	}

	count := 0
	for _, lg := range logs {
		ev, err := chainrpc.DecodeLog(s.abi, lg)
		if err != nil {
			continue
		}
		if ev.Name != EventAgentRegistered && ev.Name != EventAgentURIUpdated {
			continue
		}
		regEv := s.toRegistryEvent(ev)
		if err := s.sink.RecordEvent(ctx, regEv); err != nil {
			return count, fmt.Errorf("identity: record event %s: %w", regEv.EventID, err)
		}
		count++
	}
	return count, nil
}

// fieldString coerces an ABI-decoded field into a string regardless
// of its concrete Go type: go-ethereum decodes addresses and
// big.Int-valued uint256s to their own types, not plain strings.
func fieldString(data map[string]interface{}, key string) string {
	v, ok := data[key]
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case *big.Int:
		return val.String()
	case interface{ Hex() string }:
		return val.Hex()
	case fmt.Stringer:
		return val.String()
	default:
		return ""
	}
}

func (s *RegistryScanner) toRegistryEvent(ev *rules.ChainEvent) RegistryEvent {
	tokenID := fieldString(ev.Data, "tokenId")
	owner := fieldString(ev.Data, "owner")

	var uri string
	switch ev.Name {
	case EventAgentRegistered:
		uri, _ = ev.Data["agentURI"].(string)
	case EventAgentURIUpdated:
		uri, _ = ev.Data["newURI"].(string)
	}

	return RegistryEvent{
		EventID:         NewEventID(s.chainID, ev.TxHash, ev.LogIndex),
		ChainID:         s.chainID,
		RegistryAddress: strings.ToLower(s.registryAddress.Hex()),
		AgentTokenID:    tokenID,
		AgentURI:        uri,
		OwnerAddress:    strings.ToLower(owner),
		EventType:       ev.Name,
		BlockNumber:     ev.BlockNumber,
		TxHash:          ev.TxHash,
		LogIndex:        ev.LogIndex,
		DiscoveredAt:    s.clock.Now(),
	}
}

// NewRegistryPoller wires a RegistryScanner into a poller.Poller.
// Registry events are low-volume, so a small overlap window covers a
// poller restart losing the tail of a batch.
func NewRegistryPoller(name string, cur *cursor.Store, tip poller.TipProvider, scanner *RegistryScanner, cfg poller.Config, logger *log.Logger) *poller.Poller {
	return poller.New(name, cur, tip, scanner.Fetch, cfg, logger)
}
