// Copyright 2025 Certen Protocol

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

func mustAgent(t *testing.T, store *Store, agentID string) {
	t.Helper()
	if err := store.Agents().Upsert(context.Background(), types.Agent{
		AgentID: agentID, Status: types.AgentActive, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed agent %s: %v", agentID, err)
	}
}

func TestSnapshotRepository_InsertThenListForAgent(t *testing.T) {
	store := newTestStore(t)
	mustAgent(t, store, "agent-1")
	repo := store.Snapshots()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		snap := types.Snapshot{
			SnapshotID: "snap-" + string(rune('a'+i)),
			AgentID:    "agent-1",
			ObservedAt: base.Add(time.Duration(i) * time.Hour),
			Signals: []types.Signal{
				{SignalID: "ID_NEWBORN", Severity: types.SeverityLow, Weight: 5, ObservedAt: base, Evidence: []types.EvidenceRef{{Type: "tx", Ref: "0xabc"}}},
			},
		}
		if err := repo.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	snaps, err := repo.ListForAgent(ctx, "agent-1", 0)
	if err != nil {
		t.Fatalf("ListForAgent: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	if snaps[0].ObservedAt.Before(snaps[1].ObservedAt) {
		t.Fatalf("expected descending observed_at order")
	}
	if len(snaps[0].Signals) != 1 || snaps[0].Signals[0].SignalID != "ID_NEWBORN" {
		t.Fatalf("unexpected signals round-trip: %+v", snaps[0].Signals)
	}
}

func TestSnapshotRepository_InsertIsIdempotentOnSnapshotID(t *testing.T) {
	store := newTestStore(t)
	mustAgent(t, store, "agent-1")
	repo := store.Snapshots()
	ctx := context.Background()

	snap := types.Snapshot{SnapshotID: "snap-dup", AgentID: "agent-1", ObservedAt: time.Now()}
	if err := repo.Insert(ctx, snap); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := repo.Insert(ctx, snap); err != nil {
		t.Fatalf("second insert (duplicate id) should be a no-op, got: %v", err)
	}

	snaps, err := repo.ListForAgent(ctx, "agent-1", 0)
	if err != nil {
		t.Fatalf("ListForAgent: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected exactly one snapshot after duplicate insert, got %d", len(snaps))
	}
}

func TestSnapshotRepository_ListForAgentRespectsLimit(t *testing.T) {
	store := newTestStore(t)
	mustAgent(t, store, "agent-1")
	repo := store.Snapshots()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		snap := types.Snapshot{
			SnapshotID: "snap-" + string(rune('a'+i)),
			AgentID:    "agent-1",
			ObservedAt: time.Now().Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	snaps, err := repo.ListForAgent(ctx, "agent-1", 2)
	if err != nil {
		t.Fatalf("ListForAgent: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots with limit=2, got %d", len(snaps))
	}
}
