// Copyright 2025 Certen Protocol

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

// SnapshotRepository persists agent Snapshots.
type SnapshotRepository struct {
	store *Store
}

// Snapshots returns a repository bound to store.
func (s *Store) Snapshots() *SnapshotRepository { return &SnapshotRepository{store: s} }

// Insert records snap; snapshot_id is content-addressed so a repeat
// insert of an identical snapshot is a harmless no-op.
func (r *SnapshotRepository) Insert(ctx context.Context, snap types.Snapshot) error {
	signals, err := json.Marshal(snap.Signals)
	if err != nil {
		return fmt.Errorf("storage: marshal signals: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO snapshots (snapshot_id, agent_id, observed_at, signals_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(snapshot_id) DO NOTHING
	`, snap.SnapshotID, snap.AgentID, snap.ObservedAt.UTC().Format(time.RFC3339Nano), string(signals))
	if err != nil {
		return fmt.Errorf("storage: insert snapshot %s: %w", snap.SnapshotID, err)
	}
	return nil
}

// ListForAgent returns every snapshot for agentID ordered by
// observed_at descending, optionally limited to the most recent limit
// rows (0 means unlimited).
func (r *SnapshotRepository) ListForAgent(ctx context.Context, agentID string, limit int) ([]types.Snapshot, error) {
	query := `SELECT snapshot_id, agent_id, observed_at, signals_json FROM snapshots WHERE agent_id = ? ORDER BY observed_at DESC`
	args := []interface{}{agentID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list snapshots for %s: %w", agentID, err)
	}
	defer rows.Close()

	var out []types.Snapshot
	for rows.Next() {
		var (
			snapshotID, agentIDCol, observedAt, signalsJSON string
		)
		if err := rows.Scan(&snapshotID, &agentIDCol, &observedAt, &signalsJSON); err != nil {
			return nil, fmt.Errorf("storage: scan snapshot: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, observedAt)
		if err != nil {
			return nil, fmt.Errorf("storage: parse observed_at: %w", err)
		}
		var signals []types.Signal
		if err := json.Unmarshal([]byte(signalsJSON), &signals); err != nil {
			return nil, fmt.Errorf("storage: unmarshal signals: %w", err)
		}
		out = append(out, types.Snapshot{
			SnapshotID: snapshotID,
			AgentID:    agentIDCol,
			ObservedAt: ts,
			Signals:    signals,
		})
	}
	return out, rows.Err()
}
