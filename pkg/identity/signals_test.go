// Copyright 2025 Certen Protocol

package identity

import (
	"testing"
	"time"
)

func TestGenerateSignals_NewbornWithinThreshold(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	registered := now.Add(-5 * 24 * time.Hour)

	signals := GenerateSignals("agent-1", registered, now, CardFetchResult{Status: FetchOK}, nil, Config{})

	found := false
	for _, s := range signals {
		if s.SignalID == SignalNewborn {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ID_NEWBORN for a 5-day-old agent, got %+v", signals)
	}
}

func TestGenerateSignals_NoNewbornAfterThreshold(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	registered := now.Add(-30 * 24 * time.Hour)

	signals := GenerateSignals("agent-1", registered, now, CardFetchResult{Status: FetchOK}, nil, Config{})
	for _, s := range signals {
		if s.SignalID == SignalNewborn {
			t.Errorf("did not expect ID_NEWBORN for a 30-day-old agent")
		}
	}
}

func TestGenerateSignals_UnreachableCardEmitsSignal(t *testing.T) {
	now := time.Now()
	signals := GenerateSignals("agent-1", time.Time{}, now, CardFetchResult{Status: FetchTimeout}, nil, Config{})
	if len(signals) != 1 || signals[0].SignalID != SignalCardUnreachable {
		t.Fatalf("expected exactly one ID_CARD_UNREACHABLE signal, got %+v", signals)
	}
}

func TestGenerateSignals_SchemaInvalidEmitsSignal(t *testing.T) {
	now := time.Now()
	signals := GenerateSignals("agent-1", time.Time{}, now, CardFetchResult{Status: FetchInvalidSchema}, nil, Config{})
	if len(signals) != 1 || signals[0].SignalID != SignalCardSchemaInvalid {
		t.Fatalf("expected exactly one ID_CARD_SCHEMA_INVALID signal, got %+v", signals)
	}
}

func TestGenerateSignals_ChurnAboveThreshold(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	history := []CardHashObservation{
		{Hash: "a", FetchedAt: now.Add(-1 * time.Hour)},
		{Hash: "b", FetchedAt: now.Add(-2 * time.Hour)},
		{Hash: "c", FetchedAt: now.Add(-3 * time.Hour)},
		{Hash: "a", FetchedAt: now.Add(-4 * time.Hour)},
	}

	signals := GenerateSignals("agent-1", time.Time{}, now, CardFetchResult{Status: FetchOK}, history, Config{})
	found := false
	for _, s := range signals {
		if s.SignalID == SignalCardChurn {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ID_CARD_CHURN with 3 distinct hashes in window, got %+v", signals)
	}
}

func TestGenerateSignals_ChurnIgnoresObservationsOutsideWindow(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	history := []CardHashObservation{
		{Hash: "a", FetchedAt: now.Add(-30 * 24 * time.Hour)},
		{Hash: "b", FetchedAt: now.Add(-31 * 24 * time.Hour)},
		{Hash: "c", FetchedAt: now.Add(-32 * 24 * time.Hour)},
	}

	signals := GenerateSignals("agent-1", time.Time{}, now, CardFetchResult{Status: FetchOK}, history, Config{})
	for _, s := range signals {
		if s.SignalID == SignalCardChurn {
			t.Errorf("did not expect churn signal from observations outside the window")
		}
	}
}
