// Copyright 2025 Certen Protocol
//
// GenerateSignals turns a manifest Result into the BE_* signals
// agentscore folds into a risk score: one signal per distinct failure
// code, its evidence listing every offending path, or a single
// low-severity BE_VERIFIED_OK when nothing failed.

package manifest

import (
	"sort"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

const (
	SignalVerifiedOK            = "BE_VERIFIED_OK"
	SignalArtifactHashMismatch  = "BE_ARTIFACT_HASH_MISMATCH"
	SignalArtifactSizeMismatch  = "BE_ARTIFACT_SIZE_MISMATCH"
	SignalArtifactMissing       = "BE_ARTIFACT_MISSING"
	SignalManifestHashMismatch  = "BE_MANIFEST_HASH_MISMATCH"
	SignalManifestSchemaInvalid = "BE_MANIFEST_SCHEMA_INVALID"
	SignalUnsafePath            = "BE_UNSAFE_PATH"
)

// codeToSignal maps a verification FailureCode onto the signal it
// feeds. CodeDeliveredMismatch has no dedicated BE_* signal; it's
// carried on the verification result for callers that want the raw
// detail but doesn't itself drive scoring.
var codeToSignal = map[FailureCode]string{
	CodeArtifactHashMismatch:  SignalArtifactHashMismatch,
	CodeArtifactSizeMismatch:  SignalArtifactSizeMismatch,
	CodeArtifactNotFound:      SignalArtifactMissing,
	CodeManifestHashMismatch:  SignalManifestHashMismatch,
	CodeManifestSchemaInvalid: SignalManifestSchemaInvalid,
	CodeManifestNotFound:      SignalManifestSchemaInvalid,
	CodeUnsafePath:            SignalUnsafePath,
}

func severityFor(signalID string) (types.Severity, float64) {
	if signalID == SignalVerifiedOK {
		return types.SeverityLow, 0.1
	}
	return types.SeverityCritical, 1.0
}

// GenerateSignals folds a manifest verification Result into BE_*
// signals for one receipt/run.
func GenerateSignals(runID string, result Result, now time.Time) []types.Signal {
	if result.OK() {
		return []types.Signal{{
			SignalID:   SignalVerifiedOK,
			Severity:   types.SeverityLow,
			Weight:     0.1,
			ObservedAt: now,
			Evidence:   []types.EvidenceRef{{Type: "run", Ref: runID}},
		}}
	}

	grouped := make(map[string][]string)
	var order []string
	for _, f := range result.Failures {
		signalID, ok := codeToSignal[f.Code]
		if !ok {
			continue
		}
		if _, seen := grouped[signalID]; !seen {
			order = append(order, signalID)
		}
		grouped[signalID] = append(grouped[signalID], f.Path)
	}
	sort.Strings(order)

	signals := make([]types.Signal, 0, len(order))
	for _, signalID := range order {
		paths := dedupeSorted(grouped[signalID])
		evidence := make([]types.EvidenceRef, 0, len(paths))
		for _, p := range paths {
			evidence = append(evidence, types.EvidenceRef{Type: "artifact-path", Ref: p})
		}
		severity, weight := severityFor(signalID)
		signals = append(signals, types.Signal{
			SignalID:   signalID,
			Severity:   severity,
			Weight:     weight,
			ObservedAt: now,
			Evidence:   evidence,
		})
	}
	return signals
}

func dedupeSorted(paths []string) []string {
	sort.Strings(paths)
	out := paths[:0]
	var last string
	first := true
	for _, p := range paths {
		if !first && p == last {
			continue
		}
		out = append(out, p)
		last = p
		first = false
	}
	return out
}
