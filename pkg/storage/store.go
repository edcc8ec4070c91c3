// Copyright 2025 Certen Protocol
//
// Store wraps an embedded SQLite database: connection pooling,
// embedded-migration application, and health reporting, adapted from
// the validator's Postgres client to a single-file WAL-mode engine.

package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a connection-pooled handle to the embedded relational
// store backing agents, snapshots, risk reports, alerts, identity
// cursors/events/snapshots, and context cursors.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore opens (creating if absent) the SQLite database file at
// path, enables WAL and foreign keys, and verifies connectivity.
func NewStore(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: db path cannot be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	// SQLite allows only one writer; keep the pool small so writers
	// serialize through database/sql rather than failing with
	// SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, logger: log.New(log.Writer(), "[storage] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: apply %q: %w", pragma, err)
		}
	}

	return s, nil
}

// DB returns the underlying *sql.DB for repository use.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// HealthStatus reports connection-pool and engine health.
type HealthStatus struct {
	Healthy            bool          `json:"healthy"`
	Error              string        `json:"error,omitempty"`
	Version            string        `json:"version,omitempty"`
	OpenConnections    int           `json:"openConnections"`
	InUse              int           `json:"inUse"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"waitCount"`
	WaitDuration       time.Duration `json:"waitDuration"`
	MaxOpenConnections int           `json:"maxOpenConnections"`
	CheckedAt          time.Time     `json:"checkedAt"`
}

// Health pings the database and reports pool statistics.
func (s *Store) Health(ctx context.Context) (HealthStatus, error) {
	status := HealthStatus{CheckedAt: time.Now().UTC()}

	if err := s.db.PingContext(ctx); err != nil {
		status.Error = err.Error()
		return status, nil
	}

	stats := s.db.Stats()
	status.Healthy = true
	status.OpenConnections = stats.OpenConnections
	status.InUse = stats.InUse
	status.Idle = stats.Idle
	status.WaitCount = stats.WaitCount
	status.WaitDuration = stats.WaitDuration
	status.MaxOpenConnections = stats.MaxOpenConnections

	var version string
	if err := s.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err == nil {
		status.Version = version
	}
	return status, nil
}

// Migration is one embedded schema-migration file.
type Migration struct {
	Version  string
	Filename string
	SQL      string
}

// Migrate applies every pending embedded migration in sorted-filename
// order, skipping versions already recorded in _migrations. Each
// migration runs inside its own transaction and is expected to record
// its own completion (see the inline fallback DDL for the pattern).
func (s *Store) Migrate(ctx context.Context) error {
	migrations, err := s.loadMigrations()
	if err != nil {
		return fmt.Errorf("storage: load migrations: %w", err)
	}
	if len(migrations) == 0 {
		migrations = []Migration{{Version: "0001_init", Filename: "inline", SQL: inlineSchemaDDL}}
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("storage: read applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		s.logger.Printf("applying migration %s", m.Version)
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("storage: apply migration %s: %w", m.Version, err)
		}
	}
	return nil
}

func (s *Store) loadMigrations() ([]Migration, error) {
	var migrations []Migration
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		migrations = append(migrations, Migration{
			Version:  strings.TrimSuffix(d.Name(), ".sql"),
			Filename: d.Name(),
			SQL:      string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return applied, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM _migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func (s *Store) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(m.SQL) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
	}
	return tx.Commit()
}

// splitStatements breaks a migration file into individual statements
// on top-level semicolons; migration files never embed semicolons
// inside string literals, so a naive split is sufficient.
func splitStatements(sqlText string) []string {
	parts := strings.Split(sqlText, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// inlineSchemaDDL mirrors migrations/0001_init.sql for environments
// where the embedded filesystem walk finds no files.
const inlineSchemaDDL = `
CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY, applied_at TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS agents (agent_id TEXT PRIMARY KEY, status TEXT NOT NULL DEFAULT 'ACTIVE', labels_json TEXT NOT NULL DEFAULT '[]', created_at TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS snapshots (snapshot_id TEXT PRIMARY KEY, agent_id TEXT NOT NULL REFERENCES agents(agent_id), observed_at TEXT NOT NULL, signals_json TEXT NOT NULL);
CREATE INDEX IF NOT EXISTS idx_snapshots_agent_id ON snapshots(agent_id);
CREATE TABLE IF NOT EXISTS risk_reports (report_id TEXT PRIMARY KEY, agent_id TEXT NOT NULL REFERENCES agents(agent_id), generated_at TEXT NOT NULL, overall_risk INTEGER NOT NULL, confidence TEXT NOT NULL, report_json TEXT NOT NULL);
CREATE INDEX IF NOT EXISTS idx_risk_reports_agent_generated ON risk_reports(agent_id, generated_at DESC);
CREATE TABLE IF NOT EXISTS alerts (alert_id TEXT PRIMARY KEY, agent_id TEXT NOT NULL REFERENCES agents(agent_id), severity TEXT NOT NULL, type TEXT NOT NULL, description TEXT NOT NULL, evidence_json TEXT NOT NULL, created_at TEXT NOT NULL, is_active INTEGER NOT NULL DEFAULT 1);
CREATE INDEX IF NOT EXISTS idx_alerts_agent_active ON alerts(agent_id, is_active);
CREATE TABLE IF NOT EXISTS identity_cursor (chain_id TEXT NOT NULL, registry_address TEXT NOT NULL, last_block INTEGER NOT NULL, updated_at TEXT NOT NULL, PRIMARY KEY (chain_id, registry_address));
CREATE TABLE IF NOT EXISTS identity_events (event_id TEXT PRIMARY KEY, chain_id TEXT NOT NULL, registry_address TEXT NOT NULL, agent_token_id TEXT NOT NULL, agent_uri TEXT NOT NULL, owner_address TEXT NOT NULL, event_type TEXT NOT NULL, block_number INTEGER NOT NULL, tx_hash TEXT NOT NULL, log_index INTEGER NOT NULL, discovered_at TEXT NOT NULL);
CREATE INDEX IF NOT EXISTS idx_identity_events_token ON identity_events(agent_token_id);
CREATE TABLE IF NOT EXISTS identity_snapshots (snapshot_id TEXT PRIMARY KEY, agent_id TEXT NOT NULL, agent_uri TEXT NOT NULL, fetch_status TEXT NOT NULL, card_hash TEXT NOT NULL DEFAULT '', card_json TEXT NOT NULL DEFAULT '', fetched_at TEXT NOT NULL, http_status INTEGER NOT NULL DEFAULT 0, error_message TEXT NOT NULL DEFAULT '');
CREATE INDEX IF NOT EXISTS idx_identity_snapshots_agent_fetched ON identity_snapshots(agent_id, fetched_at DESC);
CREATE TABLE IF NOT EXISTS context_cursor (agent_id TEXT NOT NULL, chain_id TEXT NOT NULL, last_block INTEGER NOT NULL, updated_at TEXT NOT NULL, PRIMARY KEY (agent_id, chain_id));
INSERT INTO _migrations (name, applied_at) VALUES ('0001_init', strftime('%Y-%m-%dT%H:%M:%fZ', 'now')) ON CONFLICT(name) DO NOTHING;
`
