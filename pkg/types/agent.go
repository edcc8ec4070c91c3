// Copyright 2025 Certen Protocol

package types

import "time"

// Agent is an ERC-8004-style autonomous agent under watch.
type Agent struct {
	AgentID   string      `json:"agentId"`
	Status    AgentStatus `json:"status"`
	Labels    []string    `json:"labels"`
	CreatedAt time.Time   `json:"createdAt"`
}

// EvidenceRef is one (type, ref) pair backing a Signal or Alert.
type EvidenceRef struct {
	Type string `json:"type"`
	Ref  string `json:"ref"`
}

// Signal is a typed, weighted observation contributing to an agent's
// risk score. Weight and severity are fixed per SignalID by policy.
type Signal struct {
	SignalID   string                 `json:"signalId"`
	Severity   Severity               `json:"severity"`
	Weight     float64                `json:"weight"`
	ObservedAt time.Time              `json:"observedAt"`
	Evidence   []EvidenceRef          `json:"evidence"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Snapshot is a point-in-time bundle of signals for one agent.
// SnapshotID is content-addressed (see pkg/agentscore.CanonicalJSON).
type Snapshot struct {
	SnapshotID string    `json:"snapshotId"`
	AgentID    string    `json:"agentId"`
	ObservedAt time.Time `json:"observedAt"`
	Signals    []Signal  `json:"signals"`
}

// SignalSummary is the compact form of a Signal carried inside a
// RiskReport (no Details map, since reports are content-addressed and
// Details may carry non-deterministic debugging payloads).
type SignalSummary struct {
	SignalID string   `json:"signalId"`
	Severity Severity `json:"severity"`
	Weight   float64  `json:"weight"`
}

// ReportVersion is the exact, frozen version string for RiskReport.
const ReportVersion = "0.1.0"

// RiskReport is the immutable output of scoring one agent.
type RiskReport struct {
	ReportID      string          `json:"reportId"`
	ReportVersion string          `json:"reportVersion"`
	AgentID       string          `json:"agentId"`
	OverallRisk   int             `json:"overallRisk"`
	Confidence    Confidence      `json:"confidence"`
	Reasons       []string        `json:"reasons"`
	EvidenceLinks []string        `json:"evidenceLinks"`
	Signals       []SignalSummary `json:"signals"`
	GeneratedAt   time.Time       `json:"generatedAt"`
}

// Alert is a user-facing escalation derived from a RiskReport.
type Alert struct {
	AlertID     string        `json:"alertId"`
	AgentID     string        `json:"agentId"`
	Severity    Severity      `json:"severity"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Evidence    []EvidenceRef `json:"evidence"`
	CreatedAt   time.Time     `json:"createdAt"`
	IsActive    bool          `json:"isActive"`
}

// Alert types emitted by pkg/agentscore.
const (
	AlertCriticalSignalDetected = "CRITICAL_SIGNAL_DETECTED"
	AlertHighRiskScore          = "HIGH_RISK_SCORE"
)

// LeafVersion is the exact, frozen version string for TransparencyLeaf.
const LeafVersion = "0.1.0"

// TransparencyLeaf is a signed, append-only log entry binding an
// agent's risk report to a timestamp.
type TransparencyLeaf struct {
	LeafID         string    `json:"leafId"`
	LeafVersion    string    `json:"leafVersion"`
	AgentID        string    `json:"agentId"`
	RiskReportHash string    `json:"riskReportHash"`
	OverallRisk    int       `json:"overallRisk"`
	ReceiptID      string    `json:"receiptId,omitempty"`
	RunID          string    `json:"runId,omitempty"`
	ReportVersion  string    `json:"reportVersion"`
	GeneratedAt    time.Time `json:"generatedAt"`
	WrittenAt      time.Time `json:"writtenAt"`
	WatchtowerSig  string    `json:"watchtowerSig"`
}
