// Copyright 2025 Certen Protocol
//
// Executor turns Findings into on-chain counter-actions, guarding
// every write with the idempotency ledger and a per-batch rate limit,
// in the same sequential, error-isolating style as pkg/rules.Engine.

package actions

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/certen-labs/watchtower/pkg/types"
)

// ExecutorConfig holds the executor's tunables.
type ExecutorConfig struct {
	// DryRun, when true, synthesizes successful results without
	// touching the ledger or the handlers, and does not count against
	// MaxActionsPerBatch.
	DryRun bool

	// MaxActionsPerBatch caps the number of live (non-dry-run) actions
	// executed by a single call to ExecuteActions. Zero disables all
	// live actions.
	MaxActionsPerBatch int
}

// ActionResult is the outcome of attempting to act on one Finding.
type ActionResult struct {
	FindingID  string
	ReceiptID  string
	ActionType types.ActionType
	Success    bool
	DryRun     bool
	TxHash     string
	Error      string
	Skipped    bool
}

// Executor applies ExecutorConfig against a Ledger using a set of
// per-ActionType handlers.
type Executor struct {
	cfg      ExecutorConfig
	ledger   *Ledger
	handlers map[types.ActionType]Handler
	logger   *log.Logger
}

// NewExecutor constructs an Executor. A nil logger defaults to a
// "[ActionExecutor] "-prefixed stdlib logger.
func NewExecutor(cfg ExecutorConfig, ledger *Ledger, handlers map[types.ActionType]Handler, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.New(log.Writer(), "[ActionExecutor] ", log.LstdFlags)
	}
	if handlers == nil {
		handlers = map[types.ActionType]Handler{}
	}
	return &Executor{cfg: cfg, ledger: ledger, handlers: handlers, logger: logger}
}

// ExecuteActions iterates findings in order, applying a six-step
// decision per finding. It stops early (truncating the result list)
// once MaxActionsPerBatch live actions have run.
func (e *Executor) ExecuteActions(ctx context.Context, findings []types.Finding) []ActionResult {
	results := make([]ActionResult, 0, len(findings))
	liveActionsExecuted := 0

	for _, f := range findings {
		if !e.cfg.DryRun && liveActionsExecuted >= e.cfg.MaxActionsPerBatch {
			e.logger.Printf("max actions per batch (%d) reached, stopping", e.cfg.MaxActionsPerBatch)
			break
		}

		if f.RecommendedAction == types.ActionNone {
			continue
		}

		receiptKey := strings.ToLower(f.ReceiptID)
		if receiptKey != "" && e.ledger.Has(receiptKey) {
			e.logger.Printf("skipping finding %s: receipt %s already actioned", f.ID, f.ReceiptID)
			results = append(results, ActionResult{
				FindingID:  f.ID,
				ReceiptID:  f.ReceiptID,
				ActionType: f.RecommendedAction,
				Skipped:    true,
			})
			continue
		}

		if e.cfg.DryRun {
			results = append(results, ActionResult{
				FindingID:  f.ID,
				ReceiptID:  f.ReceiptID,
				ActionType: f.RecommendedAction,
				Success:    true,
				DryRun:     true,
			})
			continue
		}

		result := e.executeOne(ctx, f)
		if result.Success {
			liveActionsExecuted++
		}
		results = append(results, result)
	}

	return results
}

func (e *Executor) executeOne(ctx context.Context, f types.Finding) ActionResult {
	base := ActionResult{
		FindingID:  f.ID,
		ReceiptID:  f.ReceiptID,
		ActionType: f.RecommendedAction,
	}

	handler, ok := e.handlers[f.RecommendedAction]
	if !ok {
		base.Error = fmt.Sprintf("No handler for action type: %s", f.RecommendedAction)
		return base
	}

	txHash, err := handler.Execute(ctx, f)
	if err != nil {
		base.Error = err.Error()
		return base
	}

	ledgerType, ok := ledgerActionTypeFor(f.RecommendedAction)
	if !ok {
		// Not every action mutates chain state (NOTIFY, MANUAL_REVIEW,
		// ESCALATE): only the ledger-tracked types need idempotency
		// protection, so a missing mapping just skips the ledger write.
		base.Success = true
		base.TxHash = txHash
		return base
	}
	entry := types.ActionEntry{
		ReceiptID:   f.ReceiptID,
		ActionType:  ledgerType,
		TxHash:      txHash,
		BlockNumber: f.BlockNumber,
		Timestamp:   f.CreatedAt,
		FindingID:   f.ID,
	}
	if err := e.ledger.Record(entry); err != nil {
		base.Error = err.Error()
		return base
	}

	base.Success = true
	base.TxHash = txHash
	return base
}
