// Copyright 2025 Certen Protocol
//
// The dispute-module write ABI: the two state-changing calls this
// module ever issues. Logs are still decoded through
// pkg/chainrpc.WatchedEventsABI; this is the narrower, outbound half.

package actions

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// DisputeModuleABI describes the two write methods the executor calls
// on the configured dispute module contract.
const DisputeModuleABI = `[
	{
		"inputs": [
			{"name": "receiptId", "type": "bytes32"}
		],
		"name": "openDispute",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "receiptId", "type": "bytes32"},
			{"name": "evidenceHash", "type": "bytes32"}
		],
		"name": "submitEvidence",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

func parseDisputeModuleABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(DisputeModuleABI))
}
