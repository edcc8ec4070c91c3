// Copyright 2025 Certen Protocol

package manifest

import (
	"testing"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

func TestGenerateSignals_OKResultEmitsVerifiedSignal(t *testing.T) {
	now := time.Now()
	signals := GenerateSignals("run-1", Result{}, now)
	if len(signals) != 1 || signals[0].SignalID != SignalVerifiedOK {
		t.Fatalf("expected a single BE_VERIFIED_OK signal, got %+v", signals)
	}
	if signals[0].Severity != types.SeverityLow || signals[0].Weight != 0.1 {
		t.Errorf("expected LOW/0.1 for BE_VERIFIED_OK, got %+v", signals[0])
	}
}

func TestGenerateSignals_GroupsSameCodeFailuresIntoOneSignal(t *testing.T) {
	result := Result{Failures: []Failure{
		{Code: CodeArtifactHashMismatch, Path: "b.bin"},
		{Code: CodeArtifactHashMismatch, Path: "a.bin"},
	}}

	signals := GenerateSignals("run-1", result, time.Now())
	if len(signals) != 1 {
		t.Fatalf("expected one grouped signal, got %+v", signals)
	}
	s := signals[0]
	if s.SignalID != SignalArtifactHashMismatch {
		t.Fatalf("expected BE_ARTIFACT_HASH_MISMATCH, got %s", s.SignalID)
	}
	if s.Severity != types.SeverityCritical || s.Weight != 1.0 {
		t.Errorf("expected CRITICAL/1.0, got %+v", s)
	}
	if len(s.Evidence) != 2 || s.Evidence[0].Ref != "a.bin" || s.Evidence[1].Ref != "b.bin" {
		t.Errorf("expected sorted evidence for both offending paths, got %+v", s.Evidence)
	}
}

func TestGenerateSignals_MultipleCodesProduceMultipleSignals(t *testing.T) {
	result := Result{Failures: []Failure{
		{Code: CodeUnsafePath, Path: "../escape"},
		{Code: CodeManifestSchemaInvalid, Path: "manifest.json"},
	}}

	signals := GenerateSignals("run-1", result, time.Now())
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %+v", signals)
	}
	seen := map[string]bool{}
	for _, s := range signals {
		seen[s.SignalID] = true
	}
	if !seen[SignalUnsafePath] || !seen[SignalManifestSchemaInvalid] {
		t.Errorf("expected both BE_UNSAFE_PATH and BE_MANIFEST_SCHEMA_INVALID, got %+v", signals)
	}
}

func TestGenerateSignals_ManifestNotFoundMapsToSchemaInvalidSignal(t *testing.T) {
	result := Result{Failures: []Failure{{Code: CodeManifestNotFound, Path: "manifest.json"}}}
	signals := GenerateSignals("run-1", result, time.Now())
	if len(signals) != 1 || signals[0].SignalID != SignalManifestSchemaInvalid {
		t.Fatalf("expected missing manifest to surface as BE_MANIFEST_SCHEMA_INVALID, got %+v", signals)
	}
}
