// Copyright 2025 Certen Protocol

package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

func TestAgentRepository_UpsertThenGet(t *testing.T) {
	store := newTestStore(t)
	repo := store.Agents()
	ctx := context.Background()

	agent := types.Agent{
		AgentID:   "agent-1",
		Status:    types.AgentActive,
		Labels:    []string{"solver", "test"},
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.Upsert(ctx, agent); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != types.AgentActive || len(got.Labels) != 2 {
		t.Fatalf("unexpected agent: %+v", got)
	}

	agent.Status = types.AgentProbation
	if err := repo.Upsert(ctx, agent); err != nil {
		t.Fatalf("Upsert (update): %v", err)
	}
	got, err = repo.Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.Status != types.AgentProbation {
		t.Fatalf("expected status to update, got %s", got.Status)
	}
	if !got.CreatedAt.Equal(agent.CreatedAt) {
		t.Fatalf("created_at should not change on update, got %s", got.CreatedAt)
	}
}

func TestAgentRepository_GetMissingReturnsErrNoRows(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Agents().Get(context.Background(), "does-not-exist")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestAgentRepository_ListOrdersByAgentID(t *testing.T) {
	store := newTestStore(t)
	repo := store.Agents()
	ctx := context.Background()

	for _, id := range []string{"agent-b", "agent-a", "agent-c"} {
		if err := repo.Upsert(ctx, types.Agent{AgentID: id, Status: types.AgentActive, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("Upsert %s: %v", id, err)
		}
	}

	agents, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(agents))
	}
	if agents[0].AgentID != "agent-a" || agents[1].AgentID != "agent-b" || agents[2].AgentID != "agent-c" {
		t.Fatalf("expected alphabetical order, got %+v", agents)
	}
}
