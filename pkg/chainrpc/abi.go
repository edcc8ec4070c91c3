// Copyright 2025 Certen Protocol
//
// The watched-event ABI: a package-level ABI JSON string, parsed by
// ParseWatchedEventsABI and matched against log topics, pointed at the
// intent-settlement contracts this system watches.

package chainrpc

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// WatchedEventsABI describes every event the rule engine and the
// agent-scoring context subsystem consume off the intent-receipt hub,
// dispute module, and delegation facilitator contracts.
const WatchedEventsABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "receiptId", "type": "bytes32"},
			{"indexed": true, "name": "solver", "type": "address"},
			{"indexed": false, "name": "intentHash", "type": "bytes32"},
			{"indexed": false, "name": "amount", "type": "uint256"},
			{"indexed": false, "name": "challengeDeadline", "type": "uint256"}
		],
		"name": "ReceiptCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "receiptId", "type": "bytes32"}
		],
		"name": "ReceiptFinalized",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "disputeId", "type": "bytes32"},
			{"indexed": true, "name": "receiptId", "type": "bytes32"},
			{"indexed": false, "name": "bondAmount", "type": "uint256"},
			{"indexed": false, "name": "openedAt", "type": "uint256"}
		],
		"name": "DisputeOpened",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "disputeId", "type": "bytes32"}
		],
		"name": "DisputeResolved",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "solver", "type": "address"},
			{"indexed": false, "name": "bond", "type": "uint256"},
			{"indexed": false, "name": "active", "type": "bool"}
		],
		"name": "SolverRegistered",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "delegationHash", "type": "bytes32"},
			{"indexed": true, "name": "facilitator", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		],
		"name": "DelegatedPaymentSettled",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "registry", "type": "address"},
			{"indexed": true, "name": "tokenId", "type": "uint256"},
			{"indexed": false, "name": "agentURI", "type": "string"},
			{"indexed": false, "name": "owner", "type": "address"}
		],
		"name": "AgentRegistered",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "registry", "type": "address"},
			{"indexed": true, "name": "tokenId", "type": "uint256"},
			{"indexed": false, "name": "newURI", "type": "string"}
		],
		"name": "AgentURIUpdated",
		"type": "event"
	}
]`

// ParseWatchedEventsABI parses WatchedEventsABI on every call. It
// panics if the embedded, hand-authored JSON is malformed; it returns
// no error.
func ParseWatchedEventsABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(WatchedEventsABI))
	if err != nil {
		panic("chainrpc: invalid embedded ABI: " + err.Error())
	}
	return parsed
}
