// Copyright 2025 Certen Protocol

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

// AgentRepository persists Agent records.
type AgentRepository struct {
	store *Store
}

// Agents returns a repository bound to store.
func (s *Store) Agents() *AgentRepository { return &AgentRepository{store: s} }

// Upsert inserts agent if new, or updates its status and labels if
// it already exists; createdAt is never overwritten.
func (r *AgentRepository) Upsert(ctx context.Context, agent types.Agent) error {
	labels, err := json.Marshal(agent.Labels)
	if err != nil {
		return fmt.Errorf("storage: marshal labels: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, status, labels_json, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET status=excluded.status, labels_json=excluded.labels_json
	`, agent.AgentID, string(agent.Status), string(labels), agent.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: upsert agent %s: %w", agent.AgentID, err)
	}
	return nil
}

// Get returns the agent with the given id, or sql.ErrNoRows if absent.
func (r *AgentRepository) Get(ctx context.Context, agentID string) (types.Agent, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT agent_id, status, labels_json, created_at FROM agents WHERE agent_id = ?
	`, agentID)
	return scanAgent(row)
}

// List returns every agent, ordered by agent_id.
func (r *AgentRepository) List(ctx context.Context) ([]types.Agent, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT agent_id, status, labels_json, created_at FROM agents ORDER BY agent_id
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: list agents: %w", err)
	}
	defer rows.Close()

	var out []types.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, agent)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAgent(row rowScanner) (types.Agent, error) {
	var (
		agentID, status, labelsJSON, createdAt string
		agent                                  types.Agent
	)
	if err := row.Scan(&agentID, &status, &labelsJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return types.Agent{}, err
		}
		return types.Agent{}, fmt.Errorf("storage: scan agent: %w", err)
	}
	var labels []string
	if err := json.Unmarshal([]byte(labelsJSON), &labels); err != nil {
		return types.Agent{}, fmt.Errorf("storage: unmarshal labels: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return types.Agent{}, fmt.Errorf("storage: parse created_at: %w", err)
	}
	agent.AgentID = agentID
	agent.Status = types.AgentStatus(status)
	agent.Labels = labels
	agent.CreatedAt = ts
	return agent, nil
}
