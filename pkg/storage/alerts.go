// Copyright 2025 Certen Protocol

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/certen-labs/watchtower/pkg/types"
)

// AlertRepository persists Alerts.
type AlertRepository struct {
	store *Store
}

// Alerts returns a repository bound to store.
func (s *Store) Alerts() *AlertRepository { return &AlertRepository{store: s} }

// Insert records alert.
func (r *AlertRepository) Insert(ctx context.Context, alert types.Alert) error {
	evidence, err := json.Marshal(alert.Evidence)
	if err != nil {
		return fmt.Errorf("storage: marshal alert evidence: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO alerts (alert_id, agent_id, severity, type, description, evidence_json, created_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(alert_id) DO NOTHING
	`, alert.AlertID, alert.AgentID, alert.Severity.String(), alert.Type, alert.Description,
		string(evidence), alert.CreatedAt.UTC().Format(time.RFC3339Nano), boolToInt(alert.IsActive))
	if err != nil {
		return fmt.Errorf("storage: insert alert %s: %w", alert.AlertID, err)
	}
	return nil
}

// SetActive flips an alert's is_active flag, used when a finding that
// produced it resolves.
func (r *AlertRepository) SetActive(ctx context.Context, alertID string, active bool) error {
	_, err := r.store.db.ExecContext(ctx, `UPDATE alerts SET is_active = ? WHERE alert_id = ?`, boolToInt(active), alertID)
	if err != nil {
		return fmt.Errorf("storage: set alert %s active=%v: %w", alertID, active, err)
	}
	return nil
}

// ListForAgent returns alerts for agentID ordered by created_at
// descending; activeOnly restricts the result to is_active rows.
func (r *AlertRepository) ListForAgent(ctx context.Context, agentID string, activeOnly bool) ([]types.Alert, error) {
	query := `SELECT alert_id, agent_id, severity, type, description, evidence_json, created_at, is_active FROM alerts WHERE agent_id = ?`
	args := []interface{}{agentID}
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list alerts for %s: %w", agentID, err)
	}
	defer rows.Close()

	var out []types.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

func scanAlert(row rowScanner) (types.Alert, error) {
	var (
		alertID, agentID, severity, typ, description, evidenceJSON, createdAt string
		isActive                                                             int
	)
	if err := row.Scan(&alertID, &agentID, &severity, &typ, &description, &evidenceJSON, &createdAt, &isActive); err != nil {
		return types.Alert{}, fmt.Errorf("storage: scan alert: %w", err)
	}
	sev, ok := types.ParseSeverity(severity)
	if !ok {
		return types.Alert{}, fmt.Errorf("storage: unknown severity %q", severity)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return types.Alert{}, fmt.Errorf("storage: parse created_at: %w", err)
	}
	var evidence []types.EvidenceRef
	if err := json.Unmarshal([]byte(evidenceJSON), &evidence); err != nil {
		return types.Alert{}, fmt.Errorf("storage: unmarshal evidence: %w", err)
	}
	return types.Alert{
		AlertID:     alertID,
		AgentID:     agentID,
		Severity:    sev,
		Type:        typ,
		Description: description,
		Evidence:    evidence,
		CreatedAt:   ts,
		IsActive:    isActive != 0,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
