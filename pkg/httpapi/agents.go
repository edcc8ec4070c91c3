// Copyright 2025 Certen Protocol

package httpapi

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/certen-labs/watchtower/pkg/storage"
	"github.com/certen-labs/watchtower/pkg/types"
)

// AgentsHandlers serves the /v1/agents surface.
type AgentsHandlers struct {
	store  *storage.Store
	logger *log.Logger
}

// NewAgentsHandlers constructs an AgentsHandlers. A nil logger
// defaults to a "[AgentsAPI] "-prefixed stdlib logger.
func NewAgentsHandlers(store *storage.Store, logger *log.Logger) *AgentsHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[AgentsAPI] ", log.LstdFlags)
	}
	return &AgentsHandlers{store: store, logger: logger}
}

type agentSummary struct {
	types.Agent
	OverallRisk      *int `json:"overallRisk,omitempty"`
	ActiveAlertCount int  `json:"activeAlertCount"`
}

// HandleListAgents handles GET /v1/agents.
func (h *AgentsHandlers) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	agents, err := h.store.Agents().List(r.Context())
	if err != nil {
		h.logger.Printf("list agents: %v", err)
		writeJSONError(w, "failed to list agents", http.StatusInternalServerError)
		return
	}

	out := make([]agentSummary, 0, len(agents))
	for _, agent := range agents {
		summary := agentSummary{Agent: agent}

		if report, err := h.store.RiskReports().LatestForAgent(r.Context(), agent.AgentID); err == nil {
			risk := report.OverallRisk
			summary.OverallRisk = &risk
		} else if err != sql.ErrNoRows {
			h.logger.Printf("latest risk report for %s: %v", agent.AgentID, err)
		}

		alerts, err := h.store.Alerts().ListForAgent(r.Context(), agent.AgentID, true)
		if err != nil {
			h.logger.Printf("list active alerts for %s: %v", agent.AgentID, err)
		} else {
			summary.ActiveAlertCount = len(alerts)
		}

		out = append(out, summary)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": out})
}

// HandleAgentSubresource dispatches GET /v1/agents/:agentId/risk and
// GET /v1/agents/:agentId/alerts.
func (h *AgentsHandlers) HandleAgentSubresource(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/agents/")
	if path == "" || path == r.URL.Path {
		writeJSONError(w, "agent id required", http.StatusBadRequest)
		return
	}

	switch {
	case strings.HasSuffix(path, "/risk"):
		h.handleRisk(w, r, strings.TrimSuffix(path, "/risk"))
	case strings.HasSuffix(path, "/alerts"):
		h.handleAlerts(w, r, strings.TrimSuffix(path, "/alerts"))
	default:
		writeJSONError(w, "unknown agent subresource", http.StatusNotFound)
	}
}

func (h *AgentsHandlers) handleRisk(w http.ResponseWriter, r *http.Request, agentID string) {
	if agentID == "" {
		writeJSONError(w, "agent id required", http.StatusBadRequest)
		return
	}
	report, err := h.store.RiskReports().LatestForAgent(r.Context(), agentID)
	if err == sql.ErrNoRows {
		writeJSONError(w, "no risk report for agent", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Printf("latest risk report for %s: %v", agentID, err)
		writeJSONError(w, "failed to load risk report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *AgentsHandlers) handleAlerts(w http.ResponseWriter, r *http.Request, agentID string) {
	if agentID == "" {
		writeJSONError(w, "agent id required", http.StatusBadRequest)
		return
	}
	activeOnly := true
	if v := r.URL.Query().Get("activeOnly"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONError(w, "activeOnly must be a boolean", http.StatusBadRequest)
			return
		}
		activeOnly = parsed
	}

	alerts, err := h.store.Alerts().ListForAgent(r.Context(), agentID, activeOnly)
	if err != nil {
		h.logger.Printf("list alerts for %s: %v", agentID, err)
		writeJSONError(w, "failed to list alerts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}
