// Copyright 2025 Certen Protocol

package rules

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/certen-labs/watchtower/pkg/types"
)

// DelegationPaymentConfig tunes the DelegationPayment rule.
type DelegationPaymentConfig struct {
	FacilitatorAddress     string
	BlockWindow            uint64
	AmountThresholdWei     *big.Int
	MaxSettlementsPerEpoch int
}

// DelegationPaymentRule scans a fixed-size block window for
// DelegatedPaymentSettled events from a configured facilitator and
// flags large single settlements and repeated settlement of the same
// delegation.
type DelegationPaymentRule struct {
	cfg DelegationPaymentConfig
}

// NewDelegationPaymentRule constructs the rule.
func NewDelegationPaymentRule(cfg DelegationPaymentConfig) *DelegationPaymentRule {
	return &DelegationPaymentRule{cfg: cfg}
}

func (r *DelegationPaymentRule) ID() string                     { return "DELEGATION_PAYMENT" }
func (r *DelegationPaymentRule) Name() string                   { return "Delegation Payment Monitor" }
func (r *DelegationPaymentRule) Description() string {
	return "Flags outsized or repeated delegated-payment settlements from the facilitator contract."
}
func (r *DelegationPaymentRule) DefaultSeverity() types.Severity { return types.SeverityHigh }
func (r *DelegationPaymentRule) Category() types.FindingCategory { return types.CategorySolver }
func (r *DelegationPaymentRule) EnabledByDefault() bool          { return true }
func (r *DelegationPaymentRule) Version() string                 { return "1.0.0" }

type delegationAggregate struct {
	totalAmount *big.Int
	count       int
	events      []ChainEvent
}

func (r *DelegationPaymentRule) Evaluate(ctx context.Context, cctx ChainContext) ([]types.Finding, error) {
	cur := cctx.CurrentBlock()
	current := cur.Uint64()
	var from uint64
	if current > r.cfg.BlockWindow {
		from = current - r.cfg.BlockWindow
	}

	events, err := cctx.GetEvents(ctx, from, current)
	if err != nil {
		return nil, fmt.Errorf("DELEGATION_PAYMENT: get events: %w", err)
	}

	facilitator := strings.ToLower(r.cfg.FacilitatorAddress)
	now := cctx.BlockTimestamp()
	aggregates := make(map[string]*delegationAggregate)

	var findings []types.Finding
	for _, ev := range events {
		if ev.Name != "DelegatedPaymentSettled" || strings.ToLower(ev.Address) != facilitator {
			continue
		}
		delegationHash, _ := ev.Data["delegationHash"].(string)
		var amount *big.Int
		switch v := ev.Data["amount"].(type) {
		case *big.Int:
			amount = new(big.Int).Set(v)
		case string:
			amount, _ = new(big.Int).SetString(v, 10)
		}
		if amount == nil {
			amount = big.NewInt(0)
		}

		agg, exists := aggregates[delegationHash]
		if !exists {
			agg = &delegationAggregate{totalAmount: big.NewInt(0)}
			aggregates[delegationHash] = agg
		}
		agg.totalAmount.Add(agg.totalAmount, amount)
		agg.count++
		agg.events = append(agg.events, ev)

		if r.cfg.AmountThresholdWei != nil && amount.Cmp(r.cfg.AmountThresholdWei) > 0 {
			id, err := types.NewFindingID(r.ID(), cctx.CurrentBlock(), now)
			if err != nil {
				return nil, fmt.Errorf("DELEGATION_PAYMENT: %w", err)
			}
			findings = append(findings, types.Finding{
				ID:                id,
				RuleID:            r.ID(),
				Title:             fmt.Sprintf("Large delegated payment settled: %s", delegationHash),
				Description:       fmt.Sprintf("Delegation %s settled %s wei at block %d, above threshold.", delegationHash, amount.String(), ev.BlockNumber),
				Severity:          types.SeverityHigh,
				Category:          r.Category(),
				CreatedAt:         now,
				BlockNumber:       cctx.CurrentBlock(),
				TxHash:            ev.TxHash,
				ContractAddress:   ev.Address,
				RecommendedAction: types.ActionManualReview,
				Metadata: map[string]interface{}{
					"delegationHash": delegationHash,
					"amount":         amount.String(),
					"blockNumber":    ev.BlockNumber,
				},
			})
		}
	}

	for delegationHash, agg := range aggregates {
		if agg.count <= r.cfg.MaxSettlementsPerEpoch {
			continue
		}
		id, err := types.NewFindingID(r.ID(), cctx.CurrentBlock(), now)
		if err != nil {
			return nil, fmt.Errorf("DELEGATION_PAYMENT: %w", err)
		}
		findings = append(findings, types.Finding{
			ID:                id,
			RuleID:            r.ID(),
			Title:             fmt.Sprintf("Delegation %s settled repeatedly in one window", delegationHash),
			Description:       fmt.Sprintf("Delegation %s settled %d times (max %d) in a %d-block window, totalling %s wei.", delegationHash, agg.count, r.cfg.MaxSettlementsPerEpoch, r.cfg.BlockWindow, agg.totalAmount.String()),
			Severity:          types.SeverityMedium,
			Category:          r.Category(),
			CreatedAt:         now,
			BlockNumber:       cctx.CurrentBlock(),
			RecommendedAction: types.ActionNotify,
			Metadata: map[string]interface{}{
				"delegationHash": delegationHash,
				"totalAmount":    agg.totalAmount.String(),
				"count":          agg.count,
			},
		})
	}

	return findings, nil
}
