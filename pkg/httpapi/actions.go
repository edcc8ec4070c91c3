// Copyright 2025 Certen Protocol
//
// HandleOpenDispute and HandleSubmitEvidence let an operator trigger
// a counter-action directly for a receipt, bypassing the scan loop.
// Both are refused while the watchtower is running in dry-run mode.

package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/certen-labs/watchtower/pkg/actions"
	"github.com/certen-labs/watchtower/pkg/metrics"
	"github.com/certen-labs/watchtower/pkg/types"
)

// ActionsHandlers serves the manual /actions surface.
type ActionsHandlers struct {
	disputeHandler  *actions.DisputeHandler
	evidenceHandler *actions.EvidenceHandler
	dryRun          bool
	metrics         *metrics.Metrics
	logger          *log.Logger
}

type actionRequest struct {
	ReceiptID string `json:"receiptId"`
	FindingID string `json:"findingId,omitempty"`
}

type actionResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash,omitempty"`
	Message string `json:"message,omitempty"`
}

// HandleOpenDispute handles POST /actions/open-dispute.
func (h *ActionsHandlers) HandleOpenDispute(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, types.ActionOpenDispute, func(f types.Finding) (string, error) {
		return h.disputeHandler.Execute(r.Context(), f)
	})
}

// HandleSubmitEvidence handles POST /actions/submit-evidence.
func (h *ActionsHandlers) HandleSubmitEvidence(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, types.ActionSubmitEvidence, func(f types.Finding) (string, error) {
		return h.evidenceHandler.Execute(r.Context(), f)
	})
}

func (h *ActionsHandlers) handle(w http.ResponseWriter, r *http.Request, actionType types.ActionType, exec func(types.Finding) (string, error)) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.dryRun {
		writeJSONError(w, "manual actions are disabled while the watchtower runs in dry-run mode", http.StatusForbidden)
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ReceiptID == "" {
		writeJSONError(w, "receiptId is required", http.StatusBadRequest)
		return
	}

	findingID := req.FindingID
	if findingID == "" {
		var err error
		findingID, err = types.NewFindingID(string(actionType), types.NewBigInt(0), time.Now())
		if err != nil {
			writeJSONError(w, "failed to generate finding id", http.StatusInternalServerError)
			return
		}
	}

	finding := types.Finding{
		ID:                findingID,
		ReceiptID:         req.ReceiptID,
		RecommendedAction: actionType,
		CreatedAt:         time.Now().UTC(),
	}

	txHash, err := exec(finding)
	status := "success"
	if err != nil {
		status = "failure"
	}
	if h.metrics != nil {
		h.metrics.RecordAction(string(actionType), status, "")
	}
	if err != nil {
		h.logger.Printf("%s for receipt %s: %v", actionType, req.ReceiptID, err)
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, actionResponse{Success: true, TxHash: txHash})
}
