// Copyright 2025 Certen Protocol
//
// Ledger is the idempotency ledger: one entry per lower-cased
// receiptId, forever. Persisted as a JSON array file, following a
// small JSON-file-backed store guarded by a single mutex that makes
// its single-writer assumption explicit rather than documented-only.

package actions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/certen-labs/watchtower/pkg/types"
)

// Ledger is a file-backed, case-insensitive action idempotency ledger.
type Ledger struct {
	path    string
	mu      sync.Mutex
	entries map[string]types.ActionEntry
}

// NewLedger loads (or initializes) the ledger at path.
func NewLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, entries: make(map[string]types.ActionEntry)}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var entries []types.ActionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	for _, e := range entries {
		l.entries[strings.ToLower(e.ReceiptID)] = e
	}
	return nil
}

func (l *Ledger) persistLocked() error {
	entries := make([]types.ActionEntry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(l.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(l.path, data, 0o600)
}

// Has reports whether a (case-normalised) receiptId already has an
// entry.
func (l *Ledger) Has(receiptID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[strings.ToLower(receiptID)]
	return ok
}

// Get returns the entry for a receiptId, if any.
func (l *Ledger) Get(receiptID string) (types.ActionEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[strings.ToLower(receiptID)]
	return e, ok
}

// Record writes a new entry. A second write for the same receiptId
// fails with *types.ActionAlreadyRecordedError.
func (l *Ledger) Record(entry types.ActionEntry) error {
	key := strings.ToLower(entry.ReceiptID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[key]; exists {
		return &types.ActionAlreadyRecordedError{ReceiptID: entry.ReceiptID}
	}
	entry.ReceiptID = key
	l.entries[key] = entry
	return l.persistLocked()
}

// Size returns the number of ledger entries.
func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
