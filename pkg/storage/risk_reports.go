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

// RiskReportRepository persists RiskReports.
type RiskReportRepository struct {
	store *Store
}

// RiskReports returns a repository bound to store.
func (s *Store) RiskReports() *RiskReportRepository { return &RiskReportRepository{store: s} }

// Insert records report.
func (r *RiskReportRepository) Insert(ctx context.Context, report types.RiskReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("storage: marshal risk report: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO risk_reports (report_id, agent_id, generated_at, overall_risk, confidence, report_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(report_id) DO NOTHING
	`, report.ReportID, report.AgentID, report.GeneratedAt.UTC().Format(time.RFC3339Nano), report.OverallRisk, string(report.Confidence), string(body))
	if err != nil {
		return fmt.Errorf("storage: insert risk report %s: %w", report.ReportID, err)
	}
	return nil
}

// LatestForAgent returns the most recently generated report for
// agentID, or sql.ErrNoRows if none exists.
func (r *RiskReportRepository) LatestForAgent(ctx context.Context, agentID string) (types.RiskReport, error) {
	var reportJSON string
	err := r.store.db.QueryRowContext(ctx, `
		SELECT report_json FROM risk_reports WHERE agent_id = ? ORDER BY generated_at DESC LIMIT 1
	`, agentID).Scan(&reportJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.RiskReport{}, err
		}
		return types.RiskReport{}, fmt.Errorf("storage: query latest risk report for %s: %w", agentID, err)
	}
	var report types.RiskReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return types.RiskReport{}, fmt.Errorf("storage: unmarshal risk report: %w", err)
	}
	return report, nil
}

// ListForAgent returns every report for agentID ordered by
// generated_at descending.
func (r *RiskReportRepository) ListForAgent(ctx context.Context, agentID string) ([]types.RiskReport, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT report_json FROM risk_reports WHERE agent_id = ? ORDER BY generated_at DESC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("storage: list risk reports for %s: %w", agentID, err)
	}
	defer rows.Close()

	var out []types.RiskReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("storage: scan risk report: %w", err)
		}
		var report types.RiskReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			return nil, fmt.Errorf("storage: unmarshal risk report: %w", err)
		}
		out = append(out, report)
	}
	return out, rows.Err()
}
