// Copyright 2025 Certen Protocol

package actions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/certen-labs/watchtower/pkg/types"
)

type stubHandler struct {
	txHash string
	err    error
}

func (h *stubHandler) Execute(ctx context.Context, finding types.Finding) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return h.txHash, nil
}

func (h *stubHandler) IsHealthy(ctx context.Context) bool { return h.err == nil }

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.json")
	l, err := NewLedger(path)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return l
}

func TestExecuteActions_DryRunSkipsLedgerAndRateLimit(t *testing.T) {
	ledger := newTestLedger(t)
	findings := []types.Finding{{
		ID:                "f1",
		ReceiptID:          "0x1111111111111111111111111111111111111111",
		RecommendedAction: types.ActionOpenDispute,
	}}
	exec := NewExecutor(ExecutorConfig{DryRun: true, MaxActionsPerBatch: 10}, ledger, nil, nil)

	results := exec.ExecuteActions(context.Background(), findings)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if !r.Success || !r.DryRun || r.TxHash != "" {
		t.Errorf("expected success dry-run with empty txHash, got %+v", r)
	}
	if ledger.Size() != 0 {
		t.Errorf("expected ledger to stay empty, got size %d", ledger.Size())
	}
}

func TestExecuteActions_RateLimitTruncatesBatch(t *testing.T) {
	ledger := newTestLedger(t)
	findings := []types.Finding{
		{ID: "f1", ReceiptID: "r1", RecommendedAction: types.ActionOpenDispute},
		{ID: "f2", ReceiptID: "r2", RecommendedAction: types.ActionOpenDispute},
		{ID: "f3", ReceiptID: "r3", RecommendedAction: types.ActionOpenDispute},
	}
	handlers := map[types.ActionType]Handler{
		types.ActionOpenDispute: &stubHandler{txHash: "0xhash"},
	}
	exec := NewExecutor(ExecutorConfig{DryRun: false, MaxActionsPerBatch: 2}, ledger, handlers, nil)

	results := exec.ExecuteActions(context.Background(), findings)
	if len(results) != 2 {
		t.Fatalf("expected batch truncated to 2 results, got %d", len(results))
	}
	if ledger.Size() != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", ledger.Size())
	}
	for _, r := range results {
		if !r.Success || r.TxHash != "0xhash" {
			t.Errorf("expected successful live action, got %+v", r)
		}
	}
}

func TestExecuteActions_SkipsActionNone(t *testing.T) {
	ledger := newTestLedger(t)
	findings := []types.Finding{{ID: "f1", ReceiptID: "r1", RecommendedAction: types.ActionNone}}
	exec := NewExecutor(ExecutorConfig{DryRun: false, MaxActionsPerBatch: 10}, ledger, nil, nil)

	results := exec.ExecuteActions(context.Background(), findings)
	if len(results) != 0 {
		t.Fatalf("expected NONE findings to be skipped entirely, got %+v", results)
	}
}

func TestExecuteActions_SkipsAlreadyLedgered(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.Record(types.ActionEntry{ReceiptID: "R1", ActionType: types.LedgerActionOpenDispute}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	findings := []types.Finding{{ID: "f1", ReceiptID: "r1", RecommendedAction: types.ActionOpenDispute}}
	handlers := map[types.ActionType]Handler{
		types.ActionOpenDispute: &stubHandler{txHash: "0xhash"},
	}
	exec := NewExecutor(ExecutorConfig{DryRun: false, MaxActionsPerBatch: 10}, ledger, handlers, nil)

	results := exec.ExecuteActions(context.Background(), findings)
	if len(results) != 1 || !results[0].Skipped {
		t.Fatalf("expected a skipped result, got %+v", results)
	}
}

func TestExecuteActions_NoHandlerReturnsFailure(t *testing.T) {
	ledger := newTestLedger(t)
	findings := []types.Finding{{ID: "f1", ReceiptID: "r1", RecommendedAction: types.ActionSubmitEvidence}}
	exec := NewExecutor(ExecutorConfig{DryRun: false, MaxActionsPerBatch: 10}, ledger, nil, nil)

	results := exec.ExecuteActions(context.Background(), findings)
	if len(results) != 1 || results[0].Success {
		t.Fatalf("expected a failed result, got %+v", results)
	}
	if ledger.Size() != 0 {
		t.Errorf("expected ledger to stay empty on handler failure, got %d", ledger.Size())
	}
}

func TestExecuteActions_HandlerErrorDoesNotWriteLedger(t *testing.T) {
	ledger := newTestLedger(t)
	findings := []types.Finding{{ID: "f1", ReceiptID: "r1", RecommendedAction: types.ActionOpenDispute}}
	handlers := map[types.ActionType]Handler{
		types.ActionOpenDispute: &stubHandler{err: errExecFailed},
	}
	exec := NewExecutor(ExecutorConfig{DryRun: false, MaxActionsPerBatch: 10}, ledger, handlers, nil)

	results := exec.ExecuteActions(context.Background(), findings)
	if len(results) != 1 || results[0].Success {
		t.Fatalf("expected a failed result, got %+v", results)
	}
	if ledger.Size() != 0 {
		t.Errorf("expected ledger untouched on handler error, got %d", ledger.Size())
	}
}

var errExecFailed = &execError{"handler exploded"}

type execError struct{ msg string }

func (e *execError) Error() string { return e.msg }
