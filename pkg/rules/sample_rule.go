// Copyright 2025 Certen Protocol

package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

// sampleRuleWindow is the "within 10 minutes" window SampleRule
// flags settlements against.
const sampleRuleWindow = 10 * time.Minute

// SampleRule emits a MANUAL_REVIEW finding for receipts approaching
// their challenge deadline. It exists to exercise the engine end to
// end with a trivially reasoned-about rule.
type SampleRule struct{}

// NewSampleRule constructs SampleRule.
func NewSampleRule() *SampleRule { return &SampleRule{} }

func (r *SampleRule) ID() string                     { return "SAMPLE-001" }
func (r *SampleRule) Name() string                   { return "Sample Deadline Watcher" }
func (r *SampleRule) Description() string            { return "Flags receipts within 10 minutes of their challenge deadline." }
func (r *SampleRule) DefaultSeverity() types.Severity { return types.SeverityMedium }
func (r *SampleRule) Category() types.FindingCategory { return types.CategoryReceipt }
func (r *SampleRule) EnabledByDefault() bool          { return true }
func (r *SampleRule) Version() string                 { return "1.0.0" }

func (r *SampleRule) Evaluate(ctx context.Context, cctx ChainContext) ([]types.Finding, error) {
	receipts, err := cctx.GetReceiptsInChallengeWindow(ctx)
	if err != nil {
		return nil, fmt.Errorf("SAMPLE-001: get receipts: %w", err)
	}

	now := cctx.BlockTimestamp()
	var findings []types.Finding
	for _, rec := range receipts {
		if rec.Status != ReceiptPending {
			continue
		}
		remaining := rec.ChallengeDeadline.Sub(now)
		if remaining < 0 || remaining > sampleRuleWindow {
			continue
		}

		id, err := types.NewFindingID(r.ID(), cctx.CurrentBlock(), now)
		if err != nil {
			return nil, fmt.Errorf("SAMPLE-001: %w", err)
		}
		findings = append(findings, types.Finding{
			ID:                id,
			RuleID:            r.ID(),
			Title:             fmt.Sprintf("Receipt %s nearing deadline", rec.ReceiptID),
			Description:       fmt.Sprintf("Receipt %s deadline is in %s.", rec.ReceiptID, remaining.Round(time.Second)),
			Severity:          r.DefaultSeverity(),
			Category:          r.Category(),
			CreatedAt:         now,
			BlockNumber:       cctx.CurrentBlock(),
			SolverID:          rec.SolverID,
			ReceiptID:         rec.ReceiptID,
			RecommendedAction: types.ActionManualReview,
			Metadata: map[string]interface{}{
				"deadline":          rec.ChallengeDeadline,
				"remainingSeconds":  int64(remaining.Seconds()),
			},
		})
	}
	return findings, nil
}
