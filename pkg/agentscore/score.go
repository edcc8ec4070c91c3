// Copyright 2025 Certen Protocol
//
// ScoreAgent folds every signal across a set of snapshots into a
// RiskReport and the Alerts it triggers. Both outputs are
// content-addressed: re-hashing a stored report or alert must
// reproduce its id, so every slice that feeds a hash is sorted and
// deduped before it is marshalled.

package agentscore

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

// maxTopEvidenceRefs caps the evidence an Alert hashes its id over.
const maxTopEvidenceRefs = 5

func evidenceRefString(e types.EvidenceRef) string {
	return e.Type + ":" + e.Ref
}

func sortedDedupedStrings(in []string) []string {
	sorted := make([]string, len(in))
	copy(sorted, in)
	sort.Strings(sorted)
	out := sorted[:0:0]
	for i, s := range sorted {
		if i > 0 && s == sorted[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func reasonsFor(signals []types.Signal, hasCritical bool) []string {
	reasons := make([]string, 0, len(signals)+1)
	for _, s := range signals {
		reasons = append(reasons, fmt.Sprintf("%s signal: %s", s.Severity, s.SignalID))
	}
	if hasCritical {
		reasons = append(reasons, "CRITICAL signal detected — risk set to maximum")
	}
	return sortedDedupedStrings(reasons)
}

func evidenceLinksFor(signals []types.Signal) []string {
	links := make([]string, 0, len(signals))
	for _, s := range signals {
		for _, e := range s.Evidence {
			links = append(links, evidenceRefString(e))
		}
	}
	return sortedDedupedStrings(links)
}

func summarize(signals []types.Signal) []types.SignalSummary {
	out := make([]types.SignalSummary, len(signals))
	for i, s := range signals {
		out[i] = types.SignalSummary{SignalID: s.SignalID, Severity: s.Severity, Weight: s.Weight}
	}
	return out
}

func confidenceFor(signalCount, distinctSnapshots int) types.Confidence {
	switch {
	case signalCount >= 5 && distinctSnapshots >= 2:
		return types.ConfidenceHigh
	case signalCount >= 2 && distinctSnapshots >= 2:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

type reportHashInput struct {
	ReportVersion string                 `json:"reportVersion"`
	AgentID       string                 `json:"agentId"`
	OverallRisk   int                    `json:"overallRisk"`
	Confidence    types.Confidence       `json:"confidence"`
	Reasons       []string               `json:"reasons"`
	EvidenceLinks []string               `json:"evidenceLinks"`
	Signals       []types.SignalSummary  `json:"signals"`
}

// ScoreAgent scores every signal across snapshots (all assumed to
// belong to agentID) and returns the resulting RiskReport plus any
// Alerts it triggers. generatedAt stamps the report but is excluded
// from the reportId hash, so report determinism only depends on the
// signals.
func ScoreAgent(agentID string, snapshots []types.Snapshot, generatedAt time.Time) (types.RiskReport, []types.Alert, error) {
	var allSignals []types.Signal
	distinctSnapshots := make(map[string]struct{})
	var criticalEvidence []types.EvidenceRef

	var rawScore float64
	hasCritical := false

	for _, snap := range snapshots {
		distinctSnapshots[snap.SnapshotID] = struct{}{}
		for _, s := range snap.Signals {
			allSignals = append(allSignals, s)
			rawScore += types.SeverityWeight(s.Severity) * s.Weight
			if s.Severity == types.SeverityCritical {
				hasCritical = true
				criticalEvidence = append(criticalEvidence, s.Evidence...)
			}
		}
	}

	sortedSignals := SortSignals(allSignals)

	overallRisk := 100
	if !hasCritical {
		overallRisk = int(math.Min(100, math.Round(rawScore)))
	}

	confidence := confidenceFor(len(sortedSignals), len(distinctSnapshots))
	reasons := reasonsFor(sortedSignals, hasCritical)
	evidenceLinks := evidenceLinksFor(sortedSignals)
	signalSummaries := summarize(sortedSignals)

	reportID, err := HashCanonicalJSON(reportHashInput{
		ReportVersion: types.ReportVersion,
		AgentID:       agentID,
		OverallRisk:   overallRisk,
		Confidence:    confidence,
		Reasons:       reasons,
		EvidenceLinks: evidenceLinks,
		Signals:       signalSummaries,
	})
	if err != nil {
		return types.RiskReport{}, nil, fmt.Errorf("agentscore: hash report: %w", err)
	}

	report := types.RiskReport{
		ReportID:      reportID,
		ReportVersion: types.ReportVersion,
		AgentID:       agentID,
		OverallRisk:   overallRisk,
		Confidence:    confidence,
		Reasons:       reasons,
		EvidenceLinks: evidenceLinks,
		Signals:       signalSummaries,
		GeneratedAt:   generatedAt,
	}

	alerts, err := alertsFor(agentID, report, hasCritical, criticalEvidence, generatedAt)
	if err != nil {
		return types.RiskReport{}, nil, err
	}

	return report, alerts, nil
}

type alertHashInput struct {
	AgentID         string        `json:"agentId"`
	Severity        types.Severity `json:"severity"`
	TopEvidenceRefs []string      `json:"topEvidenceRefs"`
	Type            string        `json:"type"`
}

func topEvidenceRefs(ev []types.EvidenceRef) []string {
	normalized := NormalizeEvidence(ev)
	refs := make([]string, 0, len(normalized))
	for _, e := range normalized {
		refs = append(refs, evidenceRefString(e))
	}
	if len(refs) > maxTopEvidenceRefs {
		refs = refs[:maxTopEvidenceRefs]
	}
	return refs
}

func buildAlert(agentID string, severity types.Severity, alertType, description string, evidence []types.EvidenceRef, createdAt time.Time) (types.Alert, error) {
	normalized := NormalizeEvidence(evidence)
	top := topEvidenceRefs(normalized)

	id, err := HashCanonicalJSON(alertHashInput{
		AgentID:         agentID,
		Severity:        severity,
		TopEvidenceRefs: top,
		Type:            alertType,
	})
	if err != nil {
		return types.Alert{}, fmt.Errorf("agentscore: hash alert: %w", err)
	}

	return types.Alert{
		AlertID:     id,
		AgentID:     agentID,
		Severity:    severity,
		Type:        alertType,
		Description: description,
		Evidence:    normalized,
		CreatedAt:   createdAt,
		IsActive:    true,
	}, nil
}

func alertsFor(agentID string, report types.RiskReport, hasCritical bool, criticalEvidence []types.EvidenceRef, now time.Time) ([]types.Alert, error) {
	if hasCritical {
		alert, err := buildAlert(agentID, types.SeverityCritical, types.AlertCriticalSignalDetected,
			fmt.Sprintf("agent %s has a CRITICAL signal; risk forced to maximum", agentID),
			criticalEvidence, now)
		if err != nil {
			return nil, err
		}
		return []types.Alert{alert}, nil
	}

	if report.OverallRisk >= 80 {
		var fullEvidence []types.EvidenceRef
		for _, link := range report.EvidenceLinks {
			fullEvidence = append(fullEvidence, evidenceRefFromLink(link))
		}
		alert, err := buildAlert(agentID, types.SeverityHigh, types.AlertHighRiskScore,
			fmt.Sprintf("agent %s overall risk %d is at or above the high-risk threshold", agentID, report.OverallRisk),
			fullEvidence, now)
		if err != nil {
			return nil, err
		}
		return []types.Alert{alert}, nil
	}

	return nil, nil
}

// evidenceRefFromLink reverses evidenceRefString; EvidenceLinks are
// built from real EvidenceRef values so the ":" split always matches
// the original Type/Ref split at the first separator.
func evidenceRefFromLink(link string) types.EvidenceRef {
	for i := 0; i < len(link); i++ {
		if link[i] == ':' {
			return types.EvidenceRef{Type: link[:i], Ref: link[i+1:]}
		}
	}
	return types.EvidenceRef{Ref: link}
}
