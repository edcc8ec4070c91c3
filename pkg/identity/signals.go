// Copyright 2025 Certen Protocol
//
// GenerateSignals turns registry age, the latest card fetch, and
// recent card-hash history into the ID_* signals agentscore folds
// into a risk score.

package identity

import (
	"fmt"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

const (
	SignalNewborn           = "ID_NEWBORN"
	SignalCardUnreachable   = "ID_CARD_UNREACHABLE"
	SignalCardSchemaInvalid = "ID_CARD_SCHEMA_INVALID"
	SignalCardChurn         = "ID_CARD_CHURN"
)

// Config tunes identity signal thresholds; zero values take the
// default policy.
type Config struct {
	NewbornAge     time.Duration
	ChurnWindow    time.Duration
	ChurnThreshold int
}

func (c Config) withDefaults() Config {
	if c.NewbornAge == 0 {
		c.NewbornAge = 14 * 24 * time.Hour
	}
	if c.ChurnWindow == 0 {
		c.ChurnWindow = 7 * 24 * time.Hour
	}
	if c.ChurnThreshold == 0 {
		c.ChurnThreshold = 3
	}
	return c
}

// CardHashObservation is one historical card-hash fetch, used to
// detect churn over a trailing window.
type CardHashObservation struct {
	Hash      string
	FetchedAt time.Time
}

func evidenceFor(typ, ref string) types.EvidenceRef {
	return types.EvidenceRef{Type: typ, Ref: ref}
}

// GenerateSignals derives every ID_* signal that currently applies to
// one agent. earliestEventAt is the block timestamp of the agent's
// oldest known registry event (registration or first transfer).
func GenerateSignals(agentID string, earliestEventAt time.Time, now time.Time, fetch CardFetchResult, history []CardHashObservation, cfg Config) []types.Signal {
	cfg = cfg.withDefaults()
	var signals []types.Signal

	if !earliestEventAt.IsZero() && now.Sub(earliestEventAt) < cfg.NewbornAge {
		signals = append(signals, types.Signal{
			SignalID:   SignalNewborn,
			Severity:   types.SeverityMedium,
			Weight:     0.3,
			ObservedAt: now,
			Evidence:   []types.EvidenceRef{evidenceFor("registry-event", agentID)},
		})
	}

	switch fetch.Status {
	case FetchInvalidSchema:
		signals = append(signals, types.Signal{
			SignalID:   SignalCardSchemaInvalid,
			Severity:   types.SeverityHigh,
			Weight:     0.8,
			ObservedAt: now,
			Evidence:   []types.EvidenceRef{evidenceFor("card-fetch", string(fetch.Status))},
			Details:    map[string]interface{}{"error": fetch.ErrorMessage},
		})
	case FetchOK:
		// No unreachability/schema signal when the fetch succeeds.
	default:
		signals = append(signals, types.Signal{
			SignalID:   SignalCardUnreachable,
			Severity:   types.SeverityHigh,
			Weight:     0.8,
			ObservedAt: now,
			Evidence:   []types.EvidenceRef{evidenceFor("card-fetch", string(fetch.Status))},
			Details:    map[string]interface{}{"httpStatus": fetch.HTTPStatus, "error": fetch.ErrorMessage},
		})
	}

	if distinct := distinctHashesInWindow(history, now, cfg.ChurnWindow); distinct >= cfg.ChurnThreshold {
		signals = append(signals, types.Signal{
			SignalID:   SignalCardChurn,
			Severity:   types.SeverityMedium,
			Weight:     0.5,
			ObservedAt: now,
			Evidence:   []types.EvidenceRef{evidenceFor("card-hash-count", fmt.Sprintf("%d", distinct))},
		})
	}

	return signals
}

func distinctHashesInWindow(history []CardHashObservation, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	seen := make(map[string]struct{})
	for _, h := range history {
		if h.FetchedAt.Before(cutoff) {
			continue
		}
		seen[h.Hash] = struct{}{}
	}
	return len(seen)
}
