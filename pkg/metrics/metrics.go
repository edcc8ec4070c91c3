// Copyright 2025 Certen Protocol
//
// Metrics holds the Prometheus collectors exported on /metrics, built
// with promauto the same way the rest of this ecosystem wires its
// per-domain metric structs.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector named by the HTTP surface.
type Metrics struct {
	TicksTotal   *prometheus.CounterVec
	AlertsTotal  *prometheus.CounterVec
	ErrorsTotal  *prometheus.CounterVec
	LastBlock    *prometheus.GaugeVec
	ActionsTotal *prometheus.CounterVec
	ActiveScans  *prometheus.GaugeVec
}

// New constructs and registers every watchtower_* collector against
// the default registry.
func New() *Metrics {
	return &Metrics{
		TicksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watchtower_ticks_total",
				Help: "Total number of poller ticks completed per chain.",
			},
			[]string{"chainId"},
		),
		AlertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watchtower_alerts_total",
				Help: "Total number of alerts raised, by rule and severity.",
			},
			[]string{"ruleId", "severity", "chainId"},
		),
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watchtower_errors_total",
				Help: "Total number of errors encountered, by type.",
			},
			[]string{"type", "chainId"},
		),
		LastBlock: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchtower_last_block",
				Help: "Last block number processed per chain.",
			},
			[]string{"chainId"},
		),
		ActionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watchtower_actions_total",
				Help: "Total number of counter-actions attempted, by type and outcome.",
			},
			[]string{"actionType", "status", "chainId"},
		),
		ActiveScans: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchtower_active_scans",
				Help: "Number of scans currently in flight per chain.",
			},
			[]string{"chainId"},
		),
	}
}

// RecordTick increments TicksTotal and sets LastBlock for chainID.
func (m *Metrics) RecordTick(chainID string, lastBlock uint64) {
	m.TicksTotal.WithLabelValues(chainID).Inc()
	m.LastBlock.WithLabelValues(chainID).Set(float64(lastBlock))
}

// RecordAlert increments AlertsTotal for one raised alert.
func (m *Metrics) RecordAlert(ruleID, severity, chainID string) {
	m.AlertsTotal.WithLabelValues(ruleID, severity, chainID).Inc()
}

// RecordError increments ErrorsTotal for one observed error.
func (m *Metrics) RecordError(errType, chainID string) {
	m.ErrorsTotal.WithLabelValues(errType, chainID).Inc()
}

// RecordAction increments ActionsTotal for one attempted action.
func (m *Metrics) RecordAction(actionType, status, chainID string) {
	m.ActionsTotal.WithLabelValues(actionType, status, chainID).Inc()
}

// ScanStarted/ScanFinished track ActiveScans for a chain across a
// scan's lifetime; callers should always pair them (typically via
// defer).
func (m *Metrics) ScanStarted(chainID string) {
	m.ActiveScans.WithLabelValues(chainID).Inc()
}

func (m *Metrics) ScanFinished(chainID string) {
	m.ActiveScans.WithLabelValues(chainID).Dec()
}
