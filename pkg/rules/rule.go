// Copyright 2025 Certen Protocol

package rules

import (
	"context"

	"github.com/certen-labs/watchtower/pkg/types"
)

// Rule exposes immutable metadata plus a pure (with respect to the
// supplied ChainContext) evaluation function.
type Rule interface {
	ID() string
	Name() string
	Description() string
	DefaultSeverity() types.Severity
	Category() types.FindingCategory
	EnabledByDefault() bool
	Version() string

	Evaluate(ctx context.Context, cctx ChainContext) ([]types.Finding, error)
}
