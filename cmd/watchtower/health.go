// Copyright 2025 Certen Protocol

package main

import (
	"encoding/json"
	"sync"
	"time"
)

// HealthStatus is the mutable process-health snapshot exposed by
// /healthz, updated as subsystems connect or degrade during startup
// and while running.
type HealthStatus struct {
	Status        string            `json:"status"`
	Storage       string            `json:"storage"`
	Signer        string            `json:"signer"`
	Evidence      string            `json:"evidence"`
	Webhook       string            `json:"webhook"`
	Chains        map[string]string `json:"chains"`
	UptimeSeconds int64             `json:"uptimeSeconds"`

	startTime time.Time
	mu        sync.RWMutex
}

// NewHealthStatus starts storage and signer as "unknown" and the
// optional evidence and webhook components as "disabled", each pending
// its own SetX call.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		Status:    "starting",
		Storage:   "unknown",
		Signer:    "unknown",
		Evidence:  "disabled",
		Webhook:   "disabled",
		Chains:    make(map[string]string),
		startTime: time.Now(),
	}
}

func (h *HealthStatus) SetStorage(state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Storage = state
	h.updateOverallStatus()
}

func (h *HealthStatus) SetSigner(state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Signer = state
	h.updateOverallStatus()
}

func (h *HealthStatus) SetEvidence(state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Evidence = state
	h.updateOverallStatus()
}

func (h *HealthStatus) SetWebhook(state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Webhook = state
	h.updateOverallStatus()
}

func (h *HealthStatus) SetChain(chainID, state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Chains[chainID] = state
	h.updateOverallStatus()
}

// updateOverallStatus must be called with mu held.
func (h *HealthStatus) updateOverallStatus() {
	switch {
	case h.Storage == "error" || h.Signer == "error":
		h.Status = "error"
	case h.Storage != "connected":
		h.Status = "starting"
	default:
		degraded := h.Evidence == "error" || h.Webhook == "error"
		for _, state := range h.Chains {
			if state == "error" {
				degraded = true
			}
		}
		if degraded {
			h.Status = "degraded"
		} else {
			h.Status = "ok"
		}
	}
}

// ToJSON refreshes UptimeSeconds and marshals the current snapshot.
func (h *HealthStatus) ToJSON() ([]byte, error) {
	h.mu.Lock()
	h.UptimeSeconds = int64(time.Since(h.startTime).Seconds())
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	return json.Marshal(h)
}
