// Copyright 2025 Certen Protocol

package agentscore

import (
	"fmt"
	"sort"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

// NormalizeEvidence sorts an evidence slice lexicographically by
// (type, ref) and drops exact duplicates, so that two signals backed
// by the same facts always hash identically regardless of collection
// order.
func NormalizeEvidence(ev []types.EvidenceRef) []types.EvidenceRef {
	sorted := make([]types.EvidenceRef, len(ev))
	copy(sorted, ev)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return sorted[i].Type < sorted[j].Type
		}
		return sorted[i].Ref < sorted[j].Ref
	})

	out := sorted[:0:0]
	for i, e := range sorted {
		if i > 0 && e == sorted[i-1] {
			continue
		}
		out = append(out, e)
	}
	return out
}

func evidenceKey(ev []types.EvidenceRef) string {
	var s string
	for _, e := range ev {
		s += e.Type + ":" + e.Ref + "|"
	}
	return s
}

// SortSignals orders signals by (signalId, severity, stringified
// evidence) so identical signal sets collide under CanonicalJSON
// regardless of arrival order.
func SortSignals(signals []types.Signal) []types.Signal {
	sorted := make([]types.Signal, len(signals))
	copy(sorted, signals)
	for i := range sorted {
		sorted[i].Evidence = NormalizeEvidence(sorted[i].Evidence)
	}
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.SignalID != b.SignalID {
			return a.SignalID < b.SignalID
		}
		if a.Severity != b.Severity {
			return a.Severity < b.Severity
		}
		return evidenceKey(a.Evidence) < evidenceKey(b.Evidence)
	})
	return sorted
}

type snapshotHashInput struct {
	AgentID string        `json:"agentId"`
	Signals []types.Signal `json:"signals"`
}

// BuildSnapshot normalizes signals and derives the content-addressed
// SnapshotID over {agentId, signals}.
func BuildSnapshot(agentID string, observedAt time.Time, signals []types.Signal) (types.Snapshot, error) {
	normalized := SortSignals(signals)

	id, err := HashCanonicalJSON(snapshotHashInput{AgentID: agentID, Signals: normalized})
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("agentscore: hash snapshot: %w", err)
	}

	return types.Snapshot{
		SnapshotID: id,
		AgentID:    agentID,
		ObservedAt: observedAt,
		Signals:    normalized,
	}, nil
}
