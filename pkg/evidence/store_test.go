// Copyright 2025 Certen Protocol

package evidence

import (
	"os"
	"testing"
	"time"

	"github.com/certen-labs/watchtower/pkg/clock"
	"github.com/certen-labs/watchtower/pkg/types"
)

func appendRaw(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.DataDir == "" {
		cfg.DataDir = t.TempDir()
	}
	s, err := NewStore(cfg, clock.Real{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func sampleFinding(id, chainID string, createdAt time.Time) types.FindingRecord {
	return types.FindingRecord{
		Finding: types.Finding{
			ID:                id,
			RuleID:            "RECEIPT_STALE",
			Title:             "t",
			Severity:          types.SeverityHigh,
			Category:          types.CategoryReceipt,
			CreatedAt:         createdAt,
			RecommendedAction: types.ActionOpenDispute,
			ReceiptID:         "r1",
		},
		ChainID: chainID,
	}
}

func TestStore_AppendAndQueryFindingRoundTrips(t *testing.T) {
	s := newTestStore(t, Config{})
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rec := sampleFinding("f1", "1", now)

	if err := s.AppendFinding(rec); err != nil {
		t.Fatalf("AppendFinding: %v", err)
	}

	got, err := s.GetFindingByID("f1")
	if err != nil {
		t.Fatalf("GetFindingByID: %v", err)
	}
	if got.ID != rec.ID || got.ChainID != rec.ChainID {
		t.Errorf("round-trip mismatch: got %+v", got)
	}
}

func TestStore_QueryFiltersIntersect(t *testing.T) {
	s := newTestStore(t, Config{})
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	must(t, s.AppendFinding(sampleFinding("f1", "1", now)))
	must(t, s.AppendFinding(sampleFinding("f2", "2", now)))

	records, err := s.Query(QueryOptions{ChainID: "1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 1 || records[0].Finding.ID != "f1" {
		t.Fatalf("expected only chain-1 finding, got %+v", records)
	}
}

func TestStore_QueryOffsetAndLimit(t *testing.T) {
	s := newTestStore(t, Config{})
	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		must(t, s.AppendFinding(sampleFinding(string(rune('a'+i)), "1", base.Add(time.Duration(i)*time.Second))))
	}

	records, err := s.Query(QueryOptions{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Finding.ID != "b" || records[1].Finding.ID != "c" {
		t.Fatalf("unexpected slice: %+v", records)
	}
}

func TestStore_TolerantOfTrailingPartialLine(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, Config{DataDir: dir})
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	must(t, s.AppendFinding(sampleFinding("f1", "1", now)))

	// Append a trailing partial (unterminated, malformed) line directly.
	files, err := s.ListFiles()
	if err != nil || len(files) != 1 {
		t.Fatalf("ListFiles: %v %v", files, err)
	}
	appendRaw(t, files[0], `{"type":"finding","schemaVersion":1,"data":{"id":"truncat`)

	records, err := s.Query(QueryOptions{Type: types.EvidenceTypeFinding})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected the partial line to be skipped, got %d records", len(records))
	}
}

func TestStore_RotatesOnSize(t *testing.T) {
	s := newTestStore(t, Config{MaxFileSizeBytes: 10})
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	must(t, s.AppendFinding(sampleFinding("f1", "1", now)))
	must(t, s.AppendFinding(sampleFinding("f2", "1", now)))

	files, err := s.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected rotation to produce at least 2 files, got %+v", files)
	}
}

func TestStore_GetStats(t *testing.T) {
	s := newTestStore(t, Config{})
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	must(t, s.AppendFinding(sampleFinding("f1", "1", now)))
	must(t, s.AppendActionResult(types.ActionResultRecord{
		ActionResult: types.ActionResult{Success: true, ActionType: types.ActionOpenDispute},
		ChainID:      "1",
		FindingID:    "f1",
		Timestamp:    now.Add(time.Minute),
	}))

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.FindingCount != 1 || stats.ActionCount != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	actions, err := s.GetActionsForFinding("f1")
	if err != nil || len(actions) != 1 {
		t.Fatalf("GetActionsForFinding: %v %+v", err, actions)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
