// Copyright 2025 Certen Protocol
//
// Cursor persists one BlockCursor per chain as a JSON file, enforcing
// monotonic advancement the same way pkg/actions.Ledger persists its
// entries: load-on-open, write-through, single mutex.

package cursor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/certen-labs/watchtower/pkg/clock"
	"github.com/certen-labs/watchtower/pkg/types"
)

// Store is a file-backed BlockCursor for a single chain.
type Store struct {
	path    string
	chainID string
	clock   clock.Clock

	mu     sync.Mutex
	cursor *types.BlockCursor // nil when empty
}

// NewStore loads (or initializes empty) the cursor file at path for
// chainID. If the stored chainId differs from chainID, the cursor is
// treated as empty so two chains are never cross-wired.
func NewStore(path, chainID string, c clock.Clock) (*Store, error) {
	if c == nil {
		c = clock.Real{}
	}
	s := &Store{path: path, chainID: chainID, clock: c}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var stored types.BlockCursor
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("cursor: parse %s: %w", s.path, err)
	}
	if stored.ChainID != s.chainID {
		return nil
	}
	s.cursor = &stored
	return nil
}

func (s *Store) persistLocked() error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(s.cursor, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Get returns the current cursor value, or ok=false if empty.
func (s *Store) Get() (types.BlockCursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return types.BlockCursor{}, false
	}
	return *s.cursor, true
}

// Advance writes newBlock as the last processed block. It fails if
// newBlock < the current value; newBlock == current is a no-op
// success (idempotent).
func (s *Store) Advance(newBlock types.BigInt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor != nil {
		cmp := newBlock.Cmp(&s.cursor.LastProcessedBlock.Int)
		if cmp < 0 {
			return fmt.Errorf("cursor: monotonicity violation: new block %s < current %s", newBlock.String(), s.cursor.LastProcessedBlock.String())
		}
		if cmp == 0 {
			return nil
		}
	}

	s.cursor = &types.BlockCursor{
		LastProcessedBlock: newBlock,
		UpdatedAt:          s.clock.Now(),
		ChainID:            s.chainID,
	}
	return s.persistLocked()
}

// ScanRange computes the [startBlock, endBlock] window for one poll
// tick:
//
//	safeBlock  = currentTip - confirmations
//	startBlock = (cursor+1) if cursor present else max(currentTip-lookback, 1)
//	endBlock   = safeBlock
//
// startBlock is not clamped to safeBlock: when startBlock > endBlock,
// Skip is true and the tick does nothing.
type ScanRange struct {
	StartBlock uint64
	EndBlock   uint64
	Skip       bool
}

// ComputeScanRange derives the next ScanRange from the current chain
// tip, given lookback and confirmations in blocks.
func (s *Store) ComputeScanRange(currentTip, lookback, confirmations uint64) ScanRange {
	safeBlock := int64(currentTip) - int64(confirmations)
	if safeBlock < 0 {
		safeBlock = 0
	}

	var start uint64
	if cur, ok := s.Get(); ok {
		start = cur.LastProcessedBlock.Uint64() + 1
	} else {
		tentative := int64(currentTip) - int64(lookback)
		if tentative < 1 {
			tentative = 1
		}
		start = uint64(tentative)
	}

	if start > uint64(safeBlock) {
		return ScanRange{StartBlock: start, EndBlock: uint64(safeBlock), Skip: true}
	}
	return ScanRange{StartBlock: start, EndBlock: uint64(safeBlock)}
}
