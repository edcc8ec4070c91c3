// Copyright 2025 Certen Protocol
//
// HandleScan runs the rule engine once against a freshly built chain
// snapshot, optionally feeding its findings straight into the action
// executor, for on-demand scans outside the regular poll loop.

package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/certen-labs/watchtower/pkg/actions"
	"github.com/certen-labs/watchtower/pkg/metrics"
	"github.com/certen-labs/watchtower/pkg/rules"
)

// ScanHandlers serves POST /scan.
type ScanHandlers struct {
	engine        *rules.Engine
	buildChainCtx ChainContextFunc
	executor      *actions.Executor
	metrics       *metrics.Metrics
	logger        *log.Logger
}

type scanRequest struct {
	RuleIDs     []string `json:"ruleIds,omitempty"`
	RunActions  bool     `json:"runActions,omitempty"`
	StopOnError bool     `json:"stopOnError,omitempty"`
}

type scanResponse struct {
	RulesRun      int                    `json:"rulesRun"`
	RulesFailed   int                    `json:"rulesFailed"`
	Findings      interface{}            `json:"findings"`
	RuleResults   []scanRuleResultView   `json:"ruleResults"`
	ActionResults []actions.ActionResult `json:"actionResults,omitempty"`
}

type scanRuleResultView struct {
	RuleID     string `json:"ruleId"`
	FindingsN  int    `json:"findingsCount"`
	Err        string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// HandleScan handles POST /scan.
func (h *ScanHandlers) HandleScan(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req scanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	cctx, err := h.buildChainCtx(r)
	if err != nil {
		h.logger.Printf("build chain context: %v", err)
		writeJSONError(w, "failed to build chain context", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.ScanStarted("manual")
		defer h.metrics.ScanFinished("manual")
	}

	result, err := h.engine.Execute(r.Context(), cctx, rules.ExecuteOptions{
		RuleIDs:     req.RuleIDs,
		StopOnError: req.StopOnError,
	})
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := scanResponse{
		RulesRun:    result.RulesRun,
		RulesFailed: result.RulesFailed,
		Findings:    result.Findings,
	}
	for _, rr := range result.Results {
		view := scanRuleResultView{RuleID: rr.RuleID, FindingsN: len(rr.Findings), DurationMs: rr.DurationMs}
		if rr.Err != nil {
			view.Err = rr.Err.Error()
		}
		resp.RuleResults = append(resp.RuleResults, view)
	}

	if req.RunActions && h.executor != nil && len(result.Findings) > 0 {
		resp.ActionResults = h.executor.ExecuteActions(r.Context(), result.Findings)
	}

	writeJSON(w, http.StatusOK, resp)
}
