// Copyright 2025 Certen Protocol
//
// scoreAndRecord folds a fresh batch of signals into an agent's
// snapshot history, scores it, and persists every artifact the HTTP
// ingest path (pkg/httpapi.ReceiptsHandlers.HandleIngest) also
// produces: a snapshot row, a risk report, zero or more alerts, and a
// signed transparency leaf, plus a webhook delivery per alert. Both
// the registry poller and the periodic agent sweep funnel through
// here so a card-churn detection and a receipt-driven detection leave
// an identical trail.

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/certen-labs/watchtower/pkg/agentscore"
	"github.com/certen-labs/watchtower/pkg/metrics"
	"github.com/certen-labs/watchtower/pkg/storage"
	"github.com/certen-labs/watchtower/pkg/transparency"
	"github.com/certen-labs/watchtower/pkg/types"
	"github.com/certen-labs/watchtower/pkg/webhook"
)

func scoreAndRecord(
	ctx context.Context,
	store *storage.Store,
	agentID string,
	signals []types.Signal,
	now time.Time,
	translog *transparency.Log,
	sender *webhook.Sender,
	m *metrics.Metrics,
	chainID string,
	logger *log.Logger,
) error {
	if len(signals) == 0 {
		return nil
	}

	snapshot, err := agentscore.BuildSnapshot(agentID, now, signals)
	if err != nil {
		return fmt.Errorf("score: build snapshot: %w", err)
	}
	if err := store.Snapshots().Insert(ctx, snapshot); err != nil {
		return fmt.Errorf("score: insert snapshot: %w", err)
	}

	history, err := store.Snapshots().ListForAgent(ctx, agentID, 0)
	if err != nil {
		return fmt.Errorf("score: list snapshots: %w", err)
	}

	report, alerts, err := agentscore.ScoreAgent(agentID, history, now)
	if err != nil {
		return fmt.Errorf("score: score agent: %w", err)
	}
	if err := store.RiskReports().Insert(ctx, report); err != nil {
		return fmt.Errorf("score: insert risk report: %w", err)
	}

	for _, alert := range alerts {
		if err := store.Alerts().Insert(ctx, alert); err != nil {
			logger.Printf("score: insert alert %s: %v", alert.AlertID, err)
			continue
		}
		if m != nil {
			m.RecordAlert(alert.Type, string(alert.Severity), chainID)
		}
		if sender != nil {
			if err := sender.Send(ctx, webhook.EventAlertRaised, alert); err != nil {
				logger.Printf("score: webhook delivery for alert %s: %v", alert.AlertID, err)
			}
		}
	}

	reportHash, err := agentscore.HashCanonicalJSON(report)
	if err != nil {
		return fmt.Errorf("score: hash report: %w", err)
	}
	if translog != nil {
		if _, err := translog.Append(transparency.LeafInput{
			AgentID:        agentID,
			RiskReportHash: reportHash,
			OverallRisk:    report.OverallRisk,
			ReportVersion:  report.ReportVersion,
			GeneratedAt:    now,
		}); err != nil {
			return fmt.Errorf("score: append transparency leaf: %w", err)
		}
	}

	return nil
}
