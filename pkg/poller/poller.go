// Copyright 2025 Certen Protocol
//
// Poller generalises an event-watcher poll loop into a reusable
// block-range scanning loop: compute the safe range from a cursor,
// chunk it to respect RPC provider limits, hand each chunk to a
// caller-supplied fetch function under retry, then advance the
// cursor. The concrete event decoding (contract ABI, registry topics)
// stays with the caller — this package only owns the scanning
// mechanics.

package poller

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/certen-labs/watchtower/pkg/cursor"
	"github.com/certen-labs/watchtower/pkg/resilience"
	"github.com/certen-labs/watchtower/pkg/types"
)

// TipProvider reports the current chain height.
type TipProvider interface {
	CurrentBlock(ctx context.Context) (uint64, error)
}

// FetchFunc processes one contiguous block range and returns the
// number of items it found, for logging purposes.
type FetchFunc func(ctx context.Context, fromBlock, toBlock uint64) (itemCount int, err error)

// Config tunes one Poller instance.
type Config struct {
	// PollInterval is the wait between ticks when run via Run.
	PollInterval time.Duration

	// Lookback bounds how far back to start scanning when the cursor
	// is empty.
	Lookback uint64

	// Confirmations is subtracted from the chain tip to get the safe
	// (reorg-resistant) block.
	Confirmations uint64

	// Overlap re-scans this many already-processed blocks on resume,
	// to catch late-arriving events across a reorg window (default ~50
	// for registry pollers).
	Overlap uint64

	// MaxBlockRange caps the size of a single fetch call. Zero means
	// unbounded (the whole safe range in one call).
	MaxBlockRange uint64

	// Retry configures resilience around each FetchFunc invocation.
	// A nil Retry disables retrying (the call runs exactly once).
	Retry *resilience.RetryConfig
}

// Poller ties a cursor.Store, a TipProvider, and a FetchFunc together
// into one resumable scanning loop for one chain.
type Poller struct {
	name   string
	cur    *cursor.Store
	tip    TipProvider
	fetch  FetchFunc
	cfg    Config
	logger *log.Logger
}

// New constructs a Poller. name is used only for logging (e.g. the
// chain or registry identifier). A nil logger defaults to a
// "[Poller] "-prefixed stdlib logger.
func New(name string, cur *cursor.Store, tip TipProvider, fetch FetchFunc, cfg Config, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.New(log.Writer(), "[Poller] ", log.LstdFlags)
	}
	return &Poller{name: name, cur: cur, tip: tip, fetch: fetch, cfg: cfg, logger: logger}
}

// Tick runs one scan: compute the range, apply overlap, fetch in
// MaxBlockRange-sized chunks, and advance the cursor to the safe
// block reached. It returns ticked=false when there was nothing to
// scan.
func (p *Poller) Tick(ctx context.Context) (ticked bool, err error) {
	tip, err := p.tip.CurrentBlock(ctx)
	if err != nil {
		return false, fmt.Errorf("poller[%s]: current block: %w", p.name, err)
	}

	scan := p.cur.ComputeScanRange(tip, p.cfg.Lookback, p.cfg.Confirmations)
	if scan.Skip {
		return false, nil
	}

	start := scan.StartBlock
	if p.cfg.Overlap > 0 && start > p.cfg.Overlap {
		if _, hasCursor := p.cur.Get(); hasCursor {
			start -= p.cfg.Overlap
		}
	}

	total := 0
	chunkStart := start
	for chunkStart <= scan.EndBlock {
		chunkEnd := scan.EndBlock
		if p.cfg.MaxBlockRange > 0 && chunkEnd-chunkStart > p.cfg.MaxBlockRange {
			chunkEnd = chunkStart + p.cfg.MaxBlockRange
		}

		count, err := p.fetchChunk(ctx, chunkStart, chunkEnd)
		if err != nil {
			return false, fmt.Errorf("poller[%s]: fetch [%d,%d]: %w", p.name, chunkStart, chunkEnd, err)
		}
		total += count
		chunkStart = chunkEnd + 1
	}

	if err := p.cur.Advance(types.NewBigInt(int64(scan.EndBlock))); err != nil {
		return false, fmt.Errorf("poller[%s]: advance cursor: %w", p.name, err)
	}

	if total > 0 {
		p.logger.Printf("%s: processed %d items from blocks %d to %d", p.name, total, start, scan.EndBlock)
	}
	return true, nil
}

func (p *Poller) fetchChunk(ctx context.Context, from, to uint64) (int, error) {
	if p.cfg.Retry == nil {
		return p.fetch(ctx, from, to)
	}
	res := resilience.WithRetry(ctx, *p.cfg.Retry, func(ctx context.Context) (interface{}, error) {
		return p.fetch(ctx, from, to)
	})
	if !res.Success {
		return 0, res.Err
	}
	count, _ := res.Value.(int)
	return count, nil
}

// Run ticks on PollInterval until ctx is cancelled. Errors are logged
// and do not stop the loop.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Tick(ctx); err != nil {
				p.logger.Printf("%s: tick error: %v", p.name, err)
			}
		}
	}
}
