// Copyright 2025 Certen Protocol

package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/certen-labs/watchtower/pkg/identity"
)

func TestIdentityCursorRepository_GetAdvanceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	repo := store.IdentityCursor()
	ctx := context.Background()

	_, ok, err := repo.Get(ctx, "1", "0xregistry")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected no cursor before the first Advance")
	}

	if err := repo.Advance(ctx, "1", "0xregistry", 100); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	last, ok, err := repo.Get(ctx, "1", "0xregistry")
	if err != nil || !ok || last != 100 {
		t.Fatalf("expected (100, true, nil), got (%d, %v, %v)", last, ok, err)
	}

	if err := repo.Advance(ctx, "1", "0xregistry", 150); err != nil {
		t.Fatalf("Advance (update): %v", err)
	}
	last, _, err = repo.Get(ctx, "1", "0xregistry")
	if err != nil || last != 150 {
		t.Fatalf("expected 150 after update, got %d (%v)", last, err)
	}
}

func TestIdentityEventRepository_RecordEventIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	repo := store.IdentityEvents()
	ctx := context.Background()

	ev := identity.RegistryEvent{
		EventID: identity.NewEventID("1", "0xTXHASH", 2), ChainID: "1", RegistryAddress: "0xregistry",
		AgentTokenID: "42", AgentURI: "https://agent.example/card.json", OwnerAddress: "0xowner",
		EventType: identity.EventAgentRegistered, BlockNumber: 1000, TxHash: "0xTXHASH", LogIndex: 2,
		DiscoveredAt: time.Now(),
	}
	if err := repo.RecordEvent(ctx, ev); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if err := repo.RecordEvent(ctx, ev); err != nil {
		t.Fatalf("RecordEvent (duplicate): %v", err)
	}

	events, err := repo.ListForToken(ctx, "42")
	if err != nil {
		t.Fatalf("ListForToken: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one event after a duplicate record, got %d", len(events))
	}
}

func TestIdentitySnapshotRepository_InsertAndLatestForAgent(t *testing.T) {
	store := newTestStore(t)
	repo := store.IdentitySnapshots()
	ctx := context.Background()

	older := IdentitySnapshot{
		SnapshotID: "snap-older", AgentID: "agent-1", AgentURI: "https://agent.example/card.json",
		FetchStatus: identity.FetchOK, CardHash: "aaa", FetchedAt: time.Now().Add(-time.Hour), HTTPStatus: 200,
	}
	newer := IdentitySnapshot{
		SnapshotID: "snap-newer", AgentID: "agent-1", AgentURI: "https://agent.example/card.json",
		FetchStatus: identity.FetchUnreachable, FetchedAt: time.Now(), HTTPStatus: 503, ErrorMessage: "dial tcp: timeout",
	}
	if err := repo.Insert(ctx, older); err != nil {
		t.Fatalf("Insert older: %v", err)
	}
	if err := repo.Insert(ctx, newer); err != nil {
		t.Fatalf("Insert newer: %v", err)
	}

	got, err := repo.LatestForAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("LatestForAgent: %v", err)
	}
	if got.SnapshotID != "snap-newer" || got.FetchStatus != identity.FetchUnreachable {
		t.Fatalf("expected the newer snapshot, got %+v", got)
	}

	all, err := repo.ListForAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("ListForAgent: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(all))
	}
}

func TestIdentitySnapshotRepository_LatestForAgentMissingReturnsErrNoRows(t *testing.T) {
	store := newTestStore(t)
	_, err := store.IdentitySnapshots().LatestForAgent(context.Background(), "missing-agent")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
