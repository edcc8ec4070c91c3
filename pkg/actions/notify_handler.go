// Copyright 2025 Certen Protocol
//
// NotifyHandler delivers a NOTIFY finding to the configured webhook
// sink rather than writing to chain. It carries no idempotency
// concern of its own: the webhook sender's own retry/backoff handles
// delivery, and duplicate notifications are harmless to a consumer.

package actions

import (
	"context"
	"fmt"

	"github.com/certen-labs/watchtower/pkg/types"
	"github.com/certen-labs/watchtower/pkg/webhook"
)

// NotifyHandler posts a finding to a webhook.Sender.
type NotifyHandler struct {
	sender *webhook.Sender
}

// NewNotifyHandler builds a NotifyHandler around sender.
func NewNotifyHandler(sender *webhook.Sender) *NotifyHandler {
	return &NotifyHandler{sender: sender}
}

// Execute posts the finding as an action.taken webhook event. It
// returns no tx hash: NOTIFY never touches chain state.
func (h *NotifyHandler) Execute(ctx context.Context, f types.Finding) (string, error) {
	if err := h.sender.Send(ctx, webhook.EventActionTaken, f); err != nil {
		return "", fmt.Errorf("actions: notify webhook: %w", err)
	}
	return "", nil
}

// IsHealthy always reports healthy: a webhook delivery failure is not
// itself grounds for considering the handler unusable, since the
// sender retries transient failures on its own.
func (h *NotifyHandler) IsHealthy(ctx context.Context) bool {
	return true
}

// LogOnlyHandler backs MANUAL_REVIEW and ESCALATE: both are
// operator-facing recommendations with no automated counter-action,
// so the handler only records that the finding was surfaced.
type LogOnlyHandler struct {
	label string
	log   func(format string, args ...interface{})
}

// NewLogOnlyHandler builds a LogOnlyHandler identified by label
// (e.g. "MANUAL_REVIEW") for log messages.
func NewLogOnlyHandler(label string, log func(format string, args ...interface{})) *LogOnlyHandler {
	return &LogOnlyHandler{label: label, log: log}
}

// Execute logs the finding and returns no tx hash.
func (h *LogOnlyHandler) Execute(ctx context.Context, f types.Finding) (string, error) {
	if h.log != nil {
		h.log("%s: finding %s (receipt %s) flagged for human follow-up: %s", h.label, f.ID, f.ReceiptID, f.Title)
	}
	return "", nil
}

// IsHealthy always reports healthy: logging has no external
// dependency that can degrade.
func (h *LogOnlyHandler) IsHealthy(ctx context.Context) bool {
	return true
}
