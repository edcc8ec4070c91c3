// Copyright 2025 Certen Protocol

package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/certen-labs/watchtower/pkg/types"
)

// ReceiptStaleConfig tunes the ReceiptStale rule.
// Allowlists, when non-empty, are inclusive filters: a receipt is
// only considered if its solverId or receiptId substring-matches
// (case-insensitively) an allowlist entry.
type ReceiptStaleConfig struct {
	MinReceiptAgeSeconds int64
	SolverIDAllowlist    []string
	ReceiptIDAllowlist   []string
}

// ReceiptStaleRule fires OPEN_DISPUTE recommendations for receipts
// past their challenge deadline.
type ReceiptStaleRule struct {
	cfg ReceiptStaleConfig
}

// NewReceiptStaleRule constructs the rule with the given tuning.
func NewReceiptStaleRule(cfg ReceiptStaleConfig) *ReceiptStaleRule {
	return &ReceiptStaleRule{cfg: cfg}
}

func (r *ReceiptStaleRule) ID() string                          { return "RECEIPT_STALE" }
func (r *ReceiptStaleRule) Name() string                        { return "Stale Receipt Detector" }
func (r *ReceiptStaleRule) Description() string {
	return "Flags pending receipts whose challenge deadline has passed without resolution."
}
func (r *ReceiptStaleRule) DefaultSeverity() types.Severity      { return types.SeverityHigh }
func (r *ReceiptStaleRule) Category() types.FindingCategory      { return types.CategoryReceipt }
func (r *ReceiptStaleRule) EnabledByDefault() bool               { return true }
func (r *ReceiptStaleRule) Version() string                      { return "1.0.0" }

func (r *ReceiptStaleRule) allowed(solverID, receiptID string) bool {
	if len(r.cfg.SolverIDAllowlist) == 0 && len(r.cfg.ReceiptIDAllowlist) == 0 {
		return true
	}
	lowerSolver := strings.ToLower(solverID)
	lowerReceipt := strings.ToLower(receiptID)
	for _, entry := range r.cfg.SolverIDAllowlist {
		if strings.Contains(lowerSolver, strings.ToLower(entry)) {
			return true
		}
	}
	for _, entry := range r.cfg.ReceiptIDAllowlist {
		if strings.Contains(lowerReceipt, strings.ToLower(entry)) {
			return true
		}
	}
	return false
}

func (r *ReceiptStaleRule) Evaluate(ctx context.Context, cctx ChainContext) ([]types.Finding, error) {
	receipts, err := cctx.GetReceiptsInChallengeWindow(ctx)
	if err != nil {
		return nil, fmt.Errorf("RECEIPT_STALE: get receipts: %w", err)
	}
	disputes, err := cctx.GetActiveDisputes(ctx)
	if err != nil {
		return nil, fmt.Errorf("RECEIPT_STALE: get active disputes: %w", err)
	}
	activeReceiptIDs := make(map[string]struct{}, len(disputes))
	for _, d := range disputes {
		activeReceiptIDs[strings.ToLower(d.ReceiptID)] = struct{}{}
	}

	now := cctx.BlockTimestamp()
	var findings []types.Finding

	for _, rec := range receipts {
		if rec.Status == ReceiptFinalized || rec.Status == ReceiptChallenged || rec.Status == ReceiptDisputed {
			continue
		}
		if _, active := activeReceiptIDs[strings.ToLower(rec.ReceiptID)]; active {
			continue
		}
		if !rec.ChallengeDeadline.Before(now) {
			continue
		}
		ageSeconds := int64(now.Sub(rec.ChallengeDeadline).Seconds())
		if ageSeconds < r.cfg.MinReceiptAgeSeconds {
			continue
		}
		if !r.allowed(rec.SolverID, rec.ReceiptID) {
			continue
		}

		id, err := types.NewFindingID(r.ID(), cctx.CurrentBlock(), now)
		if err != nil {
			return nil, fmt.Errorf("RECEIPT_STALE: %w", err)
		}
		findings = append(findings, types.Finding{
			ID:                id,
			RuleID:            r.ID(),
			Title:             fmt.Sprintf("Stale receipt detected: %s", rec.ReceiptID),
			Description:       fmt.Sprintf("Receipt %s for solver %s is %ds past its challenge deadline with no dispute opened.", rec.ReceiptID, rec.SolverID, ageSeconds),
			Severity:          r.DefaultSeverity(),
			Category:          r.Category(),
			CreatedAt:         now,
			BlockNumber:       cctx.CurrentBlock(),
			SolverID:          rec.SolverID,
			ReceiptID:         rec.ReceiptID,
			RecommendedAction: types.ActionOpenDispute,
			Metadata: map[string]interface{}{
				"deadline":     rec.ChallengeDeadline,
				"ageSeconds":   ageSeconds,
				"intentHash":   rec.IntentHash,
				"receiptStatus": string(rec.Status),
			},
		})
	}

	return findings, nil
}
