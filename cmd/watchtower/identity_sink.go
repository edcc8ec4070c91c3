// Copyright 2025 Certen Protocol
//
// identitySink implements identity.EventSink: it persists every
// AgentRegistered/AgentURIUpdated event the registry poller decodes,
// and on a URI change re-fetches and re-scores the agent's card. The
// same refreshCard path is reused by the periodic agent sweep so a
// freshly-registered agent and a long-lived one flow through identical
// scoring.

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/certen-labs/watchtower/pkg/clock"
	"github.com/certen-labs/watchtower/pkg/identity"
	"github.com/certen-labs/watchtower/pkg/metrics"
	"github.com/certen-labs/watchtower/pkg/storage"
	"github.com/certen-labs/watchtower/pkg/transparency"
	"github.com/certen-labs/watchtower/pkg/types"
	"github.com/certen-labs/watchtower/pkg/webhook"
)

type identitySink struct {
	store     *storage.Store
	clock     clock.Clock
	cardCfg   identity.CardFetchConfig
	signalCfg identity.Config
	translog  *transparency.Log
	sender    *webhook.Sender
	metrics   *metrics.Metrics
	chainID   string
	logger    *log.Logger
}

var _ identity.EventSink = (*identitySink)(nil)

// RecordEvent persists the raw registry event, upserts the agent row,
// and, when the event carries a (possibly new) card URI, refreshes
// and rescores the card.
func (s *identitySink) RecordEvent(ctx context.Context, ev identity.RegistryEvent) error {
	if err := s.store.IdentityEvents().RecordEvent(ctx, ev); err != nil {
		return fmt.Errorf("identitysink: record event: %w", err)
	}

	id := agentID(ev.ChainID, ev.RegistryAddress, ev.AgentTokenID)
	if err := s.store.Agents().Upsert(ctx, types.Agent{
		AgentID:   id,
		Status:    types.AgentActive,
		CreatedAt: ev.DiscoveredAt,
	}); err != nil {
		return fmt.Errorf("identitysink: upsert agent %s: %w", id, err)
	}

	if ev.AgentURI == "" {
		return nil
	}
	if err := s.refreshCard(ctx, id, ev.AgentURI, s.clock.Now().UTC()); err != nil {
		s.logger.Printf("identitysink: refresh card for %s: %v", id, err)
	}
	return nil
}

// refreshCard fetches the card at agentURI, records the snapshot,
// derives identity signals from fetch history plus registry age, and
// scores the agent.
func (s *identitySink) refreshCard(ctx context.Context, id, agentURI string, now time.Time) error {
	fetch := identity.FetchAgentCard(ctx, s.cardCfg, agentURI)

	snap := storage.IdentitySnapshot{
		SnapshotID:   uuid.NewString(),
		AgentID:      id,
		AgentURI:     agentURI,
		FetchStatus:  fetch.Status,
		CardHash:     fetch.CardHash,
		CardJSON:     fetch.CardJSON,
		FetchedAt:    now,
		HTTPStatus:   fetch.HTTPStatus,
		ErrorMessage: fetch.ErrorMessage,
	}
	if err := s.store.IdentitySnapshots().Insert(ctx, snap); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	history, err := s.store.IdentitySnapshots().ListForAgent(ctx, id)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	observations := make([]identity.CardHashObservation, 0, len(history))
	for _, h := range history {
		observations = append(observations, identity.CardHashObservation{
			Hash:      h.CardHash,
			FetchedAt: h.FetchedAt,
		})
	}

	agent, err := s.store.Agents().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load agent: %w", err)
	}

	signals := identity.GenerateSignals(id, agent.CreatedAt, now, fetch, observations, s.signalCfg)
	if err := scoreAndRecord(ctx, s.store, id, signals, now, s.translog, s.sender, s.metrics, s.chainID, s.logger); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	return nil
}
