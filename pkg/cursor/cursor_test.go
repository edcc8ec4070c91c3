// Copyright 2025 Certen Protocol

package cursor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/certen-labs/watchtower/pkg/clock"
	"github.com/certen-labs/watchtower/pkg/types"
)

func newTestStore(t *testing.T, chainID string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cursor.json")
	s, err := NewStore(path, chainID, clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestStore_AdvanceIsMonotonic(t *testing.T) {
	s := newTestStore(t, "1")

	if err := s.Advance(types.NewBigInt(100)); err != nil {
		t.Fatalf("Advance(100): %v", err)
	}
	if err := s.Advance(types.NewBigInt(50)); err == nil {
		t.Fatalf("expected Advance(50) after 100 to fail")
	}
	if err := s.Advance(types.NewBigInt(100)); err != nil {
		t.Fatalf("Advance(100) idempotent repeat should succeed: %v", err)
	}
	cur, ok := s.Get()
	if !ok || cur.LastProcessedBlock.Uint64() != 100 {
		t.Fatalf("expected cursor at 100, got %+v ok=%v", cur, ok)
	}
}

func TestStore_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	c := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s1, err := NewStore(path, "1", c)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s1.Advance(types.NewBigInt(42)); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	s2, err := NewStore(path, "1", c)
	if err != nil {
		t.Fatalf("reload NewStore: %v", err)
	}
	cur, ok := s2.Get()
	if !ok || cur.LastProcessedBlock.Uint64() != 42 {
		t.Fatalf("expected reloaded cursor at 42, got %+v ok=%v", cur, ok)
	}
}

func TestStore_ChainIDMismatchTreatsCursorAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	c := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s1, err := NewStore(path, "1", c)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s1.Advance(types.NewBigInt(42)); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	s2, err := NewStore(path, "2", c)
	if err != nil {
		t.Fatalf("reload NewStore with different chainId: %v", err)
	}
	if _, ok := s2.Get(); ok {
		t.Fatalf("expected cursor to be treated as empty for a different chainId")
	}
}

func TestComputeScanRange_EmptyCursorUsesLookback(t *testing.T) {
	s := newTestStore(t, "1")
	r := s.ComputeScanRange(10_000, 1_000, 6)
	if r.StartBlock != 9_000 {
		t.Errorf("expected startBlock 9000, got %d", r.StartBlock)
	}
	if r.EndBlock != 9_994 {
		t.Errorf("expected endBlock 9994, got %d", r.EndBlock)
	}
	if r.Skip {
		t.Errorf("expected a non-skipped range")
	}
}

func TestComputeScanRange_EmptyCursorFloorsAtOne(t *testing.T) {
	s := newTestStore(t, "1")
	r := s.ComputeScanRange(10, 1_000, 0)
	if r.StartBlock != 1 {
		t.Errorf("expected startBlock floored at 1, got %d", r.StartBlock)
	}
}

func TestComputeScanRange_WithCursorResumesAtNextBlock(t *testing.T) {
	s := newTestStore(t, "1")
	if err := s.Advance(types.NewBigInt(9_990)); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	r := s.ComputeScanRange(10_000, 1_000, 6)
	if r.StartBlock != 9_991 {
		t.Errorf("expected startBlock 9991, got %d", r.StartBlock)
	}
	if r.EndBlock != 9_994 {
		t.Errorf("expected endBlock 9994, got %d", r.EndBlock)
	}
}

func TestComputeScanRange_SkipsWhenStartPastSafeBlock(t *testing.T) {
	s := newTestStore(t, "1")
	if err := s.Advance(types.NewBigInt(9_995)); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	r := s.ComputeScanRange(10_000, 1_000, 6)
	if !r.Skip {
		t.Errorf("expected the tick to be skipped, got %+v", r)
	}
}
