// Copyright 2025 Certen Protocol

package httpapi

import (
	"log"
	"net/http"

	"github.com/certen-labs/watchtower/pkg/transparency"
)

// TransparencyHandlers serves the /v1/transparency surface.
type TransparencyHandlers struct {
	log    *transparency.Log
	logger *log.Logger
}

// HandleLeaves handles GET /v1/transparency/leaves?date=YYYY-MM-DD.
// date defaults to the log's latest day.
func (h *TransparencyHandlers) HandleLeaves(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		latest, err := h.log.LatestDate()
		if err != nil {
			h.logger.Printf("latest transparency date: %v", err)
			writeJSONError(w, "failed to resolve latest date", http.StatusInternalServerError)
			return
		}
		if latest == "" {
			writeJSON(w, http.StatusOK, map[string]interface{}{"date": "", "count": 0, "leaves": []interface{}{}})
			return
		}
		date = latest
	}

	leaves, err := h.log.LeavesForDate(date)
	if err != nil {
		h.logger.Printf("leaves for %s: %v", date, err)
		writeJSONError(w, "failed to load leaves", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":   date,
		"count":  len(leaves),
		"leaves": leaves,
	})
}

// HandleStatus handles GET /v1/transparency/status.
func (h *TransparencyHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := h.log.Status(7)
	if err != nil {
		h.logger.Printf("transparency status: %v", err)
		writeJSONError(w, "failed to compute status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
