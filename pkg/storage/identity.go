// Copyright 2025 Certen Protocol

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/certen-labs/watchtower/pkg/identity"
)

// IdentityCursorRepository persists identity_cursor rows: one
// (chainId, registryAddress) -> lastBlock mapping.
type IdentityCursorRepository struct {
	store *Store
}

// IdentityCursor returns a repository bound to store.
func (s *Store) IdentityCursor() *IdentityCursorRepository { return &IdentityCursorRepository{store: s} }

// Get returns the last processed block for (chainID, registryAddress),
// or ok=false if no cursor has been recorded yet.
func (r *IdentityCursorRepository) Get(ctx context.Context, chainID, registryAddress string) (lastBlock uint64, ok bool, err error) {
	err = r.store.db.QueryRowContext(ctx, `
		SELECT last_block FROM identity_cursor WHERE chain_id = ? AND registry_address = ?
	`, chainID, registryAddress).Scan(&lastBlock)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage: get identity cursor: %w", err)
	}
	return lastBlock, true, nil
}

// Advance records lastBlock as the new cursor value for (chainID,
// registryAddress).
func (r *IdentityCursorRepository) Advance(ctx context.Context, chainID, registryAddress string, lastBlock uint64) error {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO identity_cursor (chain_id, registry_address, last_block, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chain_id, registry_address) DO UPDATE SET last_block=excluded.last_block, updated_at=excluded.updated_at
	`, chainID, registryAddress, lastBlock, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: advance identity cursor: %w", err)
	}
	return nil
}

// IdentityEventRepository persists identity_events rows and
// implements identity.EventSink.
type IdentityEventRepository struct {
	store *Store
}

// IdentityEvents returns a repository bound to store.
func (s *Store) IdentityEvents() *IdentityEventRepository { return &IdentityEventRepository{store: s} }

var _ identity.EventSink = (*IdentityEventRepository)(nil)

// RecordEvent inserts ev, skipping silently if event_id already
// exists (registry scans can overlap within the lookback window).
func (r *IdentityEventRepository) RecordEvent(ctx context.Context, ev identity.RegistryEvent) error {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO identity_events (event_id, chain_id, registry_address, agent_token_id, agent_uri, owner_address, event_type, block_number, tx_hash, log_index, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, ev.EventID, ev.ChainID, ev.RegistryAddress, ev.AgentTokenID, ev.AgentURI, ev.OwnerAddress,
		ev.EventType, ev.BlockNumber, ev.TxHash, ev.LogIndex, ev.DiscoveredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: record identity event %s: %w", ev.EventID, err)
	}
	return nil
}

// ListForToken returns every recorded event for agentTokenID ordered
// by block_number then log_index ascending.
func (r *IdentityEventRepository) ListForToken(ctx context.Context, agentTokenID string) ([]identity.RegistryEvent, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT event_id, chain_id, registry_address, agent_token_id, agent_uri, owner_address, event_type, block_number, tx_hash, log_index, discovered_at
		FROM identity_events WHERE agent_token_id = ? ORDER BY block_number ASC, log_index ASC
	`, agentTokenID)
	if err != nil {
		return nil, fmt.Errorf("storage: list identity events for %s: %w", agentTokenID, err)
	}
	defer rows.Close()

	var out []identity.RegistryEvent
	for rows.Next() {
		var (
			ev           identity.RegistryEvent
			discoveredAt string
		)
		if err := rows.Scan(&ev.EventID, &ev.ChainID, &ev.RegistryAddress, &ev.AgentTokenID, &ev.AgentURI,
			&ev.OwnerAddress, &ev.EventType, &ev.BlockNumber, &ev.TxHash, &ev.LogIndex, &discoveredAt); err != nil {
			return nil, fmt.Errorf("storage: scan identity event: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, discoveredAt)
		if err != nil {
			return nil, fmt.Errorf("storage: parse discovered_at: %w", err)
		}
		ev.DiscoveredAt = ts
		out = append(out, ev)
	}
	return out, rows.Err()
}

// IdentitySnapshot is one recorded agent-card fetch attempt.
type IdentitySnapshot struct {
	SnapshotID   string
	AgentID      string
	AgentURI     string
	FetchStatus  identity.FetchStatus
	CardHash     string
	CardJSON     json.RawMessage
	FetchedAt    time.Time
	HTTPStatus   int
	ErrorMessage string
}

// IdentitySnapshotRepository persists identity_snapshots rows.
type IdentitySnapshotRepository struct {
	store *Store
}

// IdentitySnapshots returns a repository bound to store.
func (s *Store) IdentitySnapshots() *IdentitySnapshotRepository {
	return &IdentitySnapshotRepository{store: s}
}

// Insert records snap.
func (r *IdentitySnapshotRepository) Insert(ctx context.Context, snap IdentitySnapshot) error {
	cardJSON := string(snap.CardJSON)
	if cardJSON == "" {
		cardJSON = "null"
	}
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO identity_snapshots (snapshot_id, agent_id, agent_uri, fetch_status, card_hash, card_json, fetched_at, http_status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_id) DO NOTHING
	`, snap.SnapshotID, snap.AgentID, snap.AgentURI, string(snap.FetchStatus), snap.CardHash, cardJSON,
		snap.FetchedAt.UTC().Format(time.RFC3339Nano), snap.HTTPStatus, snap.ErrorMessage)
	if err != nil {
		return fmt.Errorf("storage: insert identity snapshot %s: %w", snap.SnapshotID, err)
	}
	return nil
}

// LatestForAgent returns the most recent snapshot recorded for
// agentID, or sql.ErrNoRows if none exists.
func (r *IdentitySnapshotRepository) LatestForAgent(ctx context.Context, agentID string) (IdentitySnapshot, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT snapshot_id, agent_id, agent_uri, fetch_status, card_hash, card_json, fetched_at, http_status, error_message
		FROM identity_snapshots WHERE agent_id = ? ORDER BY fetched_at DESC LIMIT 1
	`, agentID)
	return scanIdentitySnapshot(row)
}

// ListForAgent returns every snapshot for agentID ordered by
// fetched_at descending.
func (r *IdentitySnapshotRepository) ListForAgent(ctx context.Context, agentID string) ([]IdentitySnapshot, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT snapshot_id, agent_id, agent_uri, fetch_status, card_hash, card_json, fetched_at, http_status, error_message
		FROM identity_snapshots WHERE agent_id = ? ORDER BY fetched_at DESC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("storage: list identity snapshots for %s: %w", agentID, err)
	}
	defer rows.Close()

	var out []IdentitySnapshot
	for rows.Next() {
		snap, err := scanIdentitySnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func scanIdentitySnapshot(row rowScanner) (IdentitySnapshot, error) {
	var (
		snap        IdentitySnapshot
		fetchStatus string
		cardJSON    string
		fetchedAt   string
	)
	if err := row.Scan(&snap.SnapshotID, &snap.AgentID, &snap.AgentURI, &fetchStatus, &snap.CardHash,
		&cardJSON, &fetchedAt, &snap.HTTPStatus, &snap.ErrorMessage); err != nil {
		if err == sql.ErrNoRows {
			return IdentitySnapshot{}, err
		}
		return IdentitySnapshot{}, fmt.Errorf("storage: scan identity snapshot: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return IdentitySnapshot{}, fmt.Errorf("storage: parse fetched_at: %w", err)
	}
	snap.FetchStatus = identity.FetchStatus(fetchStatus)
	snap.FetchedAt = ts
	if cardJSON != "null" {
		snap.CardJSON = json.RawMessage(cardJSON)
	}
	return snap, nil
}
