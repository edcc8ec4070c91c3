// Copyright 2025 Certen Protocol

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ContextCursorRepository persists context_cursor rows: one
// (agentId, chainId) -> lastBlock mapping for the transaction-history
// analyzer.
type ContextCursorRepository struct {
	store *Store
}

// ContextCursor returns a repository bound to store.
func (s *Store) ContextCursor() *ContextCursorRepository { return &ContextCursorRepository{store: s} }

// Get returns the last processed block for (agentID, chainID), or
// ok=false if no cursor has been recorded yet.
func (r *ContextCursorRepository) Get(ctx context.Context, agentID, chainID string) (lastBlock uint64, ok bool, err error) {
	err = r.store.db.QueryRowContext(ctx, `
		SELECT last_block FROM context_cursor WHERE agent_id = ? AND chain_id = ?
	`, agentID, chainID).Scan(&lastBlock)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage: get context cursor: %w", err)
	}
	return lastBlock, true, nil
}

// Advance records lastBlock as the new cursor value for (agentID,
// chainID).
func (r *ContextCursorRepository) Advance(ctx context.Context, agentID, chainID string, lastBlock uint64) error {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO context_cursor (agent_id, chain_id, last_block, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id, chain_id) DO UPDATE SET last_block=excluded.last_block, updated_at=excluded.updated_at
	`, agentID, chainID, lastBlock, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: advance context cursor: %w", err)
	}
	return nil
}
