// Copyright 2025 Certen Protocol
//
// RuleOverlay is an optional YAML file for rule-tuning knobs that read
// more naturally as a file than a CSV environment variable: allowlists,
// the challenge window, delegation-payment thresholds. Values in the
// overlay support ${VAR_NAME} / ${VAR_NAME:-default} substitution
// before parsing.

package config

import (
	"fmt"
	"math/big"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var overlayEnvVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteOverlayEnvVars(content string) string {
	return overlayEnvVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := overlayEnvVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if value := os.Getenv(groups[1]); value != "" {
			return value
		}
		if len(groups) >= 4 {
			return groups[3]
		}
		return ""
	})
}

// RuleOverlay holds rule-tuning knobs not naturally expressed as a
// single environment variable.
type RuleOverlay struct {
	ChallengeWindowSeconds int64    `yaml:"challengeWindowSeconds"`
	AllowlistSolverIDs     []string `yaml:"allowlistSolverIds"`
	AllowlistReceiptIDs    []string `yaml:"allowlistReceiptIds"`

	DelegationPayment struct {
		BlockWindow            uint64 `yaml:"blockWindow"`
		AmountThresholdWei     string `yaml:"amountThresholdWei"`
		MaxSettlementsPerEpoch int    `yaml:"maxSettlementsPerEpoch"`
	} `yaml:"delegationPayment"`
}

// AmountThresholdBigInt parses DelegationPayment.AmountThresholdWei, or
// returns zero if unset.
func (o RuleOverlay) AmountThresholdBigInt() (*big.Int, error) {
	if o.DelegationPayment.AmountThresholdWei == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(o.DelegationPayment.AmountThresholdWei, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid delegationPayment.amountThresholdWei %q", o.DelegationPayment.AmountThresholdWei)
	}
	return v, nil
}

// LoadRuleOverlay reads and parses a watchtower.yaml-shaped overlay
// file at path. A missing file is not an error: it returns the zero
// RuleOverlay, letting callers fall back to Config/rule defaults.
func LoadRuleOverlay(path string) (RuleOverlay, error) {
	var overlay RuleOverlay
	if path == "" {
		return overlay, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return overlay, nil
		}
		return overlay, fmt.Errorf("config: read rule overlay %s: %w", path, err)
	}
	expanded := substituteOverlayEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &overlay); err != nil {
		return overlay, fmt.Errorf("config: parse rule overlay %s: %w", path, err)
	}
	return overlay, nil
}
