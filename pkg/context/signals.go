// Copyright 2025 Certen Protocol
//
// Context signals (CX_*) come from analysing an agent's on-chain
// transaction history in a block window: who funded it, how
// concentrated its counterparties are, and whether its activity
// bursts suspiciously. The chain reads themselves (eth_getLogs /
// eth_getBalance-shaped calls) live in pkg/chainrpc; this package
// only folds already-fetched Transfer records into signals.

package context

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

const (
	SignalFundedByContract            = "CX_FUNDED_BY_CONTRACT"
	SignalFundedByUnknown             = "CX_FUNDED_BY_UNKNOWN"
	SignalCounterpartyConcentration   = "CX_COUNTERPARTY_CONCENTRATION_HIGH"
	SignalTxBurst                     = "CX_TX_BURST"
	SignalDormantThenBurst            = "CX_DORMANT_THEN_BURST"
	SignalMicropaymentSpam            = "CX_MICROPAYMENT_SPAM"
)

// Direction classifies a Transfer relative to the agent under
// analysis.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Transfer is one already-decoded value movement touching the agent's
// address.
type Transfer struct {
	TxHash              string
	Counterparty        string
	CounterpartyIsContract bool
	CounterpartyTags    []string
	ValueWei            *big.Int
	Direction           Direction
	BlockNumber         uint64
	Timestamp           time.Time
}

// Config tunes context-signal thresholds; zero values take spec
// defaults.
type Config struct {
	MinTxForConcentration   int
	TopPeerShareThreshold   float64
	BurstMinTx              int
	BurstMultiplier         float64
	DormancyThreshold       time.Duration

	EnablePaymentAdjacency   bool
	MicropaymentMinTransfers int
	MicropaymentMaxValueWei  *big.Int
	MicropaymentMaxPeers     int

	// AllowTags and DenyTags classify counterparties by label
	// (exchange, mixer, known-good, ...). A denylist tag always wins;
	// an allowlist tag suppresses the funding signal entirely.
	AllowTags map[string]bool
	DenyTags  map[string]bool
}

func (c Config) withDefaults() Config {
	if c.MinTxForConcentration == 0 {
		c.MinTxForConcentration = 10
	}
	if c.TopPeerShareThreshold == 0 {
		c.TopPeerShareThreshold = 0.8
	}
	if c.BurstMinTx == 0 {
		c.BurstMinTx = 20
	}
	if c.BurstMultiplier == 0 {
		c.BurstMultiplier = 3
	}
	if c.DormancyThreshold == 0 {
		c.DormancyThreshold = 30 * 24 * time.Hour
	}
	if c.MicropaymentMaxValueWei == nil {
		c.MicropaymentMaxValueWei = big.NewInt(0)
	}
	return c
}

func evidenceFor(typ, ref string) types.EvidenceRef {
	return types.EvidenceRef{Type: typ, Ref: ref}
}

func hasAnyTag(tags []string, set map[string]bool) bool {
	for _, t := range tags {
		if set[t] {
			return true
		}
	}
	return false
}

// GenerateSignals derives CX_* signals from a window of transfers.
// priorWindow is the transfer set for the preceding window of equal
// length, used for burst/dormancy comparisons.
func GenerateSignals(agentID string, window, priorWindow []Transfer, now time.Time, cfg Config) []types.Signal {
	cfg = cfg.withDefaults()
	var signals []types.Signal

	if s := fundingSignal(agentID, window, now, cfg); s != nil {
		signals = append(signals, *s)
	}
	if s := concentrationSignal(agentID, window, now, cfg); s != nil {
		signals = append(signals, *s)
	}
	if s := burstSignal(agentID, window, priorWindow, now, cfg); s != nil {
		signals = append(signals, *s)
	}
	if s := dormantThenBurstSignal(agentID, window, priorWindow, now, cfg); s != nil {
		signals = append(signals, *s)
	}
	if cfg.EnablePaymentAdjacency {
		if s := micropaymentSignal(agentID, window, now, cfg); s != nil {
			signals = append(signals, *s)
		}
	}

	return signals
}

func earliestInbound(window []Transfer) (Transfer, bool) {
	var earliest Transfer
	found := false
	for _, tr := range window {
		if tr.Direction != DirectionIn {
			continue
		}
		if !found || tr.BlockNumber < earliest.BlockNumber {
			earliest = tr
			found = true
		}
	}
	return earliest, found
}

func fundingSignal(agentID string, window []Transfer, now time.Time, cfg Config) *types.Signal {
	funder, ok := earliestInbound(window)
	if !ok {
		return nil
	}

	if hasAnyTag(funder.CounterpartyTags, cfg.DenyTags) {
		return &types.Signal{
			SignalID:   SignalFundedByUnknown,
			Severity:   types.SeverityLow,
			Weight:     0.1,
			ObservedAt: now,
			Evidence:   []types.EvidenceRef{evidenceFor("tx", funder.TxHash)},
			Details:    map[string]interface{}{"reason": "denylisted funder tag"},
		}
	}
	if hasAnyTag(funder.CounterpartyTags, cfg.AllowTags) {
		return nil
	}

	if funder.CounterpartyIsContract {
		return &types.Signal{
			SignalID:   SignalFundedByContract,
			Severity:   types.SeverityLow,
			Weight:     0.2,
			ObservedAt: now,
			Evidence:   []types.EvidenceRef{evidenceFor("tx", funder.TxHash)},
		}
	}
	return &types.Signal{
		SignalID:   SignalFundedByUnknown,
		Severity:   types.SeverityLow,
		Weight:     0.1,
		ObservedAt: now,
		Evidence:   []types.EvidenceRef{evidenceFor("tx", funder.TxHash)},
	}
}

func concentrationSignal(agentID string, window []Transfer, now time.Time, cfg Config) *types.Signal {
	if len(window) < cfg.MinTxForConcentration {
		return nil
	}

	counts := make(map[string]int)
	for _, tr := range window {
		counts[tr.Counterparty]++
	}

	var topPeer string
	topCount := 0
	for peer, c := range counts {
		if c > topCount {
			topCount = c
			topPeer = peer
		}
	}

	share := float64(topCount) / float64(len(window))
	if share <= cfg.TopPeerShareThreshold {
		return nil
	}

	return &types.Signal{
		SignalID:   SignalCounterpartyConcentration,
		Severity:   types.SeverityMedium,
		Weight:     0.4,
		ObservedAt: now,
		Evidence:   []types.EvidenceRef{evidenceFor("counterparty", topPeer)},
		Details:    map[string]interface{}{"share": share, "txCount": len(window)},
	}
}

func burstSignal(agentID string, window, priorWindow []Transfer, now time.Time, cfg Config) *types.Signal {
	if len(window) < cfg.BurstMinTx {
		return nil
	}
	if float64(len(window)) <= float64(len(priorWindow))*cfg.BurstMultiplier {
		return nil
	}

	return &types.Signal{
		SignalID:   SignalTxBurst,
		Severity:   types.SeverityMedium,
		Weight:     0.3,
		ObservedAt: now,
		Evidence:   []types.EvidenceRef{evidenceFor("window", fmt.Sprintf("txCount=%d", len(window)))},
		Details:    map[string]interface{}{"currentTxCount": len(window), "priorTxCount": len(priorWindow)},
	}
}

func dormantThenBurstSignal(agentID string, window, priorWindow []Transfer, now time.Time, cfg Config) *types.Signal {
	if len(priorWindow) != 0 || len(window) < cfg.BurstMinTx {
		return nil
	}

	span := burstSpan(window)
	if span >= cfg.DormancyThreshold {
		return nil
	}

	return &types.Signal{
		SignalID:   SignalDormantThenBurst,
		Severity:   types.SeverityMedium,
		Weight:     0.4,
		ObservedAt: now,
		Evidence:   []types.EvidenceRef{evidenceFor("window", fmt.Sprintf("txCount=%d", len(window)))},
		Details:    map[string]interface{}{"burstSpanSeconds": span.Seconds()},
	}
}

func burstSpan(window []Transfer) time.Duration {
	if len(window) == 0 {
		return 0
	}
	sorted := make([]Transfer, len(window))
	copy(sorted, window)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	return sorted[len(sorted)-1].Timestamp.Sub(sorted[0].Timestamp)
}

func micropaymentSignal(agentID string, window []Transfer, now time.Time, cfg Config) *types.Signal {
	peers := make(map[string]struct{})
	count := 0
	for _, tr := range window {
		if tr.ValueWei == nil || tr.ValueWei.Cmp(cfg.MicropaymentMaxValueWei) >= 0 {
			continue
		}
		count++
		peers[tr.Counterparty] = struct{}{}
	}

	if count < cfg.MicropaymentMinTransfers || len(peers) > cfg.MicropaymentMaxPeers {
		return nil
	}

	return &types.Signal{
		SignalID:   SignalMicropaymentSpam,
		Severity:   types.SeverityMedium,
		Weight:     0.4,
		ObservedAt: now,
		Evidence:   []types.EvidenceRef{evidenceFor("window", fmt.Sprintf("microTxCount=%d", count))},
		Details:    map[string]interface{}{"microTransferCount": count, "distinctPeers": len(peers)},
	}
}
