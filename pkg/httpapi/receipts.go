// Copyright 2025 Certen Protocol
//
// HandleIngest is the solver-facing entry point: it verifies a
// completed run's manifest, folds the result into a signal snapshot,
// re-scores the agent, and appends a signed transparency leaf —
// mirroring the batch-receipt ingest flow this module's predecessor
// runs for settlement receipts.

package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/certen-labs/watchtower/pkg/agentscore"
	"github.com/certen-labs/watchtower/pkg/manifest"
	"github.com/certen-labs/watchtower/pkg/storage"
	"github.com/certen-labs/watchtower/pkg/transparency"
	"github.com/certen-labs/watchtower/pkg/types"
	"github.com/certen-labs/watchtower/pkg/webhook"
)

// ReceiptsHandlers serves /v1/receipts/ingest.
type ReceiptsHandlers struct {
	store           *storage.Store
	transparencyLog *transparency.Log
	webhook         *webhook.Sender
	logger          *log.Logger
}

type manifestIngestBody struct {
	ManifestPath            string   `json:"manifestPath"`
	RunDir                  string   `json:"runDir"`
	DeclaredManifestSha256  string   `json:"declaredManifestSha256"`
	DeliveredPaths          []string `json:"deliveredPaths,omitempty"`
}

type ingestRequest struct {
	AgentID   string              `json:"agentId"`
	RunID     string              `json:"runId"`
	ReceiptID string              `json:"receiptId,omitempty"`
	Manifest  manifestIngestBody  `json:"manifest"`
}

type ingestResponse struct {
	SnapshotID     string           `json:"snapshotId"`
	ManifestOK     bool             `json:"manifestOk"`
	Failures       []manifest.Failure `json:"failures,omitempty"`
	RiskReport     types.RiskReport `json:"riskReport"`
	Alerts         []types.Alert    `json:"alerts"`
	TransparencyID string           `json:"transparencyLeafId"`
}

// HandleIngest handles POST /v1/receipts/ingest.
func (h *ReceiptsHandlers) HandleIngest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" || req.RunID == "" || req.Manifest.ManifestPath == "" || req.Manifest.RunDir == "" {
		writeJSONError(w, "agentId, runId, manifest.manifestPath and manifest.runDir are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	result := manifest.VerifyManifest(req.Manifest.ManifestPath, req.Manifest.RunDir, req.Manifest.DeclaredManifestSha256, req.Manifest.DeliveredPaths)
	signals := manifest.GenerateSignals(req.RunID, result, now)

	snap, err := agentscore.BuildSnapshot(req.AgentID, now, signals)
	if err != nil {
		h.logger.Printf("build snapshot for %s: %v", req.AgentID, err)
		writeJSONError(w, "failed to build snapshot", http.StatusInternalServerError)
		return
	}
	if err := h.store.Snapshots().Insert(ctx, snap); err != nil {
		h.logger.Printf("insert snapshot for %s: %v", req.AgentID, err)
		writeJSONError(w, "failed to persist snapshot", http.StatusInternalServerError)
		return
	}

	history, err := h.store.Snapshots().ListForAgent(ctx, req.AgentID, 0)
	if err != nil {
		h.logger.Printf("list snapshots for %s: %v", req.AgentID, err)
		writeJSONError(w, "failed to load snapshot history", http.StatusInternalServerError)
		return
	}

	report, alerts, err := agentscore.ScoreAgent(req.AgentID, history, now)
	if err != nil {
		h.logger.Printf("score agent %s: %v", req.AgentID, err)
		writeJSONError(w, "failed to score agent", http.StatusInternalServerError)
		return
	}
	if err := h.store.RiskReports().Insert(ctx, report); err != nil {
		h.logger.Printf("insert risk report for %s: %v", req.AgentID, err)
		writeJSONError(w, "failed to persist risk report", http.StatusInternalServerError)
		return
	}
	for _, alert := range alerts {
		if err := h.store.Alerts().Insert(ctx, alert); err != nil {
			h.logger.Printf("insert alert %s: %v", alert.AlertID, err)
		}
	}

	reportHash, err := agentscore.HashCanonicalJSON(report)
	if err != nil {
		h.logger.Printf("hash risk report for %s: %v", req.AgentID, err)
		writeJSONError(w, "failed to hash risk report", http.StatusInternalServerError)
		return
	}

	leaf, err := h.transparencyLog.Append(transparency.LeafInput{
		AgentID:        req.AgentID,
		RiskReportHash: reportHash,
		OverallRisk:    report.OverallRisk,
		ReceiptID:      req.ReceiptID,
		RunID:          req.RunID,
		ReportVersion:  types.ReportVersion,
		GeneratedAt:    now,
	})
	if err != nil {
		h.logger.Printf("append transparency leaf for %s: %v", req.AgentID, err)
		writeJSONError(w, "failed to append transparency leaf", http.StatusInternalServerError)
		return
	}

	if h.webhook != nil && len(alerts) > 0 {
		for _, alert := range alerts {
			if err := h.webhook.Send(ctx, webhook.EventAlertRaised, alert); err != nil {
				h.logger.Printf("webhook delivery for alert %s: %v", alert.AlertID, err)
			}
		}
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		SnapshotID:     snap.SnapshotID,
		ManifestOK:     result.OK(),
		Failures:       result.Failures,
		RiskReport:     report,
		Alerts:         alerts,
		TransparencyID: leaf.LeafID,
	})
}
