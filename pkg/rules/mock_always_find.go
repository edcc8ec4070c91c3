// Copyright 2025 Certen Protocol

package rules

import (
	"context"
	"fmt"

	"github.com/certen-labs/watchtower/pkg/types"
)

// MockAlwaysFindRule emits exactly one INFO finding every call. It
// exists for test harnesses exercising the engine's plumbing and is
// disabled by default so it never pollutes a real scan.
type MockAlwaysFindRule struct{}

// NewMockAlwaysFindRule constructs MockAlwaysFindRule.
func NewMockAlwaysFindRule() *MockAlwaysFindRule { return &MockAlwaysFindRule{} }

func (r *MockAlwaysFindRule) ID() string                     { return "MOCK_ALWAYS_FIND" }
func (r *MockAlwaysFindRule) Name() string                   { return "Mock Always-Find Rule" }
func (r *MockAlwaysFindRule) Description() string            { return "Always emits one INFO finding; for test harnesses only." }
func (r *MockAlwaysFindRule) DefaultSeverity() types.Severity { return types.SeverityInfo }
func (r *MockAlwaysFindRule) Category() types.FindingCategory { return types.CategorySystem }
func (r *MockAlwaysFindRule) EnabledByDefault() bool          { return false }
func (r *MockAlwaysFindRule) Version() string                 { return "1.0.0" }

func (r *MockAlwaysFindRule) Evaluate(ctx context.Context, cctx ChainContext) ([]types.Finding, error) {
	now := cctx.BlockTimestamp()
	id, err := types.NewFindingID(r.ID(), cctx.CurrentBlock(), now)
	if err != nil {
		return nil, fmt.Errorf("MOCK_ALWAYS_FIND: %w", err)
	}
	return []types.Finding{{
		ID:                id,
		RuleID:            r.ID(),
		Title:             "Mock finding",
		Description:       "This finding is emitted unconditionally by MockAlwaysFindRule.",
		Severity:          r.DefaultSeverity(),
		Category:          r.Category(),
		CreatedAt:         now,
		BlockNumber:       cctx.CurrentBlock(),
		RecommendedAction: types.ActionNone,
	}}, nil
}
