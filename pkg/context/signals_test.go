// Copyright 2025 Certen Protocol

package context

import (
	"math/big"
	"testing"
	"time"
)

func transfer(counterparty string, isContract bool, value int64, dir Direction, block uint64, at time.Time) Transfer {
	return Transfer{
		TxHash:                 "0x" + counterparty,
		Counterparty:           counterparty,
		CounterpartyIsContract: isContract,
		ValueWei:               big.NewInt(value),
		Direction:              dir,
		BlockNumber:            block,
		Timestamp:              at,
	}
}

func TestGenerateSignals_FundedByContract(t *testing.T) {
	now := time.Now()
	window := []Transfer{transfer("factory", true, 1000, DirectionIn, 100, now)}

	signals := GenerateSignals("agent-1", window, nil, now, Config{})
	if len(signals) != 1 || signals[0].SignalID != SignalFundedByContract {
		t.Fatalf("expected CX_FUNDED_BY_CONTRACT, got %+v", signals)
	}
}

func TestGenerateSignals_DenylistOverridesContractClassification(t *testing.T) {
	now := time.Now()
	tr := transfer("mixer", true, 1000, DirectionIn, 100, now)
	tr.CounterpartyTags = []string{"mixer"}
	window := []Transfer{tr}

	signals := GenerateSignals("agent-1", window, nil, now, Config{DenyTags: map[string]bool{"mixer": true}})
	if len(signals) != 1 || signals[0].SignalID != SignalFundedByUnknown {
		t.Fatalf("expected denylist to force CX_FUNDED_BY_UNKNOWN, got %+v", signals)
	}
}

func TestGenerateSignals_AllowlistSuppressesFundingSignal(t *testing.T) {
	now := time.Now()
	tr := transfer("known-exchange", true, 1000, DirectionIn, 100, now)
	tr.CounterpartyTags = []string{"known-exchange"}
	window := []Transfer{tr}

	signals := GenerateSignals("agent-1", window, nil, now, Config{AllowTags: map[string]bool{"known-exchange": true}})
	for _, s := range signals {
		if s.SignalID == SignalFundedByContract || s.SignalID == SignalFundedByUnknown {
			t.Errorf("expected allowlist to suppress the funding signal, got %+v", signals)
		}
	}
}

func TestGenerateSignals_CounterpartyConcentrationHigh(t *testing.T) {
	now := time.Now()
	var window []Transfer
	for i := 0; i < 9; i++ {
		window = append(window, transfer("whale", false, 1, DirectionOut, uint64(i), now))
	}
	window = append(window, transfer("other", false, 1, DirectionOut, 10, now))

	signals := GenerateSignals("agent-1", window, nil, now, Config{})
	found := false
	for _, s := range signals {
		if s.SignalID == SignalCounterpartyConcentration {
			found = true
		}
	}
	if !found {
		t.Errorf("expected CX_COUNTERPARTY_CONCENTRATION_HIGH with 9/10 txs to one peer, got %+v", signals)
	}
}

func TestGenerateSignals_TxBurst(t *testing.T) {
	now := time.Now()
	var window []Transfer
	for i := 0; i < 30; i++ {
		window = append(window, transfer("p", false, 1, DirectionOut, uint64(i), now))
	}
	var prior []Transfer
	for i := 0; i < 5; i++ {
		prior = append(prior, transfer("p", false, 1, DirectionOut, uint64(i), now.Add(-time.Hour)))
	}

	signals := GenerateSignals("agent-1", window, prior, now, Config{})
	found := false
	for _, s := range signals {
		if s.SignalID == SignalTxBurst {
			found = true
		}
	}
	if !found {
		t.Errorf("expected CX_TX_BURST (30 > 5*3), got %+v", signals)
	}
}

func TestGenerateSignals_DormantThenBurst(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var window []Transfer
	for i := 0; i < 25; i++ {
		window = append(window, transfer("p", false, 1, DirectionOut, uint64(i), now.Add(time.Duration(i)*time.Minute)))
	}

	signals := GenerateSignals("agent-1", window, nil, now, Config{})
	found := false
	for _, s := range signals {
		if s.SignalID == SignalDormantThenBurst {
			found = true
		}
	}
	if !found {
		t.Errorf("expected CX_DORMANT_THEN_BURST with an empty prior window, got %+v", signals)
	}
}

func TestGenerateSignals_MicropaymentSpamGatedByFlag(t *testing.T) {
	now := time.Now()
	var window []Transfer
	for i := 0; i < 10; i++ {
		window = append(window, transfer("peer", false, 1, DirectionOut, uint64(i), now))
	}
	cfg := Config{
		EnablePaymentAdjacency:   true,
		MicropaymentMinTransfers: 5,
		MicropaymentMaxValueWei:  big.NewInt(100),
		MicropaymentMaxPeers:     2,
	}

	signals := GenerateSignals("agent-1", window, nil, now, cfg)
	found := false
	for _, s := range signals {
		if s.SignalID == SignalMicropaymentSpam {
			found = true
		}
	}
	if !found {
		t.Errorf("expected CX_MICROPAYMENT_SPAM, got %+v", signals)
	}

	disabled := GenerateSignals("agent-1", window, nil, now, Config{MicropaymentMinTransfers: 5, MicropaymentMaxValueWei: big.NewInt(100), MicropaymentMaxPeers: 2})
	for _, s := range disabled {
		if s.SignalID == SignalMicropaymentSpam {
			t.Errorf("expected micropayment signal to be gated off by EnablePaymentAdjacency=false")
		}
	}
}
