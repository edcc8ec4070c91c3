// Copyright 2025 Certen Protocol
//
// resolveChains turns Config's legacy single-chain fields or its
// CHAINS_CONFIG multi-chain list into a uniform []chainSpec, so the
// rest of main only ever deals with one shape regardless of which
// mode the deployment uses.

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/certen-labs/watchtower/pkg/config"
)

// chainSpec names one chain's endpoint and the contract addresses
// watchtower watches on it.
type chainSpec struct {
	Name             string
	RPCURL           string
	ChainIDNum       int64
	SolverRegistry   string
	IntentReceiptHub string
	DisputeModule    string
	AgentRegistry    string
}

func resolveChains(cfg *config.Config) ([]chainSpec, error) {
	if len(cfg.Chains) == 0 {
		return []chainSpec{{
			Name:             strconv.FormatInt(cfg.ChainID, 10),
			RPCURL:           cfg.RPCURL,
			ChainIDNum:       cfg.ChainID,
			SolverRegistry:   cfg.SolverRegistryAddress,
			IntentReceiptHub: cfg.IntentReceiptHubAddress,
			DisputeModule:    cfg.DisputeModuleAddress,
			AgentRegistry:    cfg.AgentRegistryAddress,
		}}, nil
	}

	specs := make([]chainSpec, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		if !c.Enabled {
			continue
		}
		specs = append(specs, chainSpec{
			Name:             c.Name,
			RPCURL:           c.RPCURL,
			ChainIDNum:       c.ChainID,
			SolverRegistry:   c.Contracts["solverRegistry"],
			IntentReceiptHub: c.Contracts["intentReceiptHub"],
			DisputeModule:    c.Contracts["disputeModule"],
			AgentRegistry:    c.Contracts["agentRegistry"],
		})
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("watchtower: CHAINS_CONFIG set but no chain is enabled")
	}
	return specs, nil
}

// splitAgentID reverses the "<chainId>:<registryAddress>:<tokenId>"
// format agent ids are minted in, so the agent sweep can re-derive a
// token's chain and registry without a side table.
func splitAgentID(agentID string) (chainID, registry, tokenID string, ok bool) {
	parts := strings.SplitN(agentID, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func agentID(chainIDStr, registryAddress, tokenID string) string {
	return chainIDStr + ":" + strings.ToLower(registryAddress) + ":" + tokenID
}
