// Copyright 2025 Certen Protocol
//
// Index maintains the receipt/dispute/solver state the rule engine's
// ChainContext queries against, built by folding decoded
// ReceiptCreated/ReceiptFinalized/DisputeOpened/DisputeResolved/
// SolverRegistered events in arrival order. The poller drives this:
// it fetches raw logs and calls ApplyEvent for each one it decodes.

package chainrpc

import (
	"encoding/hex"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/certen-labs/watchtower/pkg/rules"
	"github.com/certen-labs/watchtower/pkg/types"
)

func stringField(data map[string]interface{}, key string) string {
	v, ok := data[key]
	if !ok {
		return ""
	}
	switch b := v.(type) {
	case string:
		return b
	case [32]byte:
		return "0x" + hex.EncodeToString(b[:])
	case interface{ Hex() string }:
		return b.Hex()
	default:
		return ""
	}
}

func timeField(data map[string]interface{}, key string) time.Time {
	v, ok := data[key]
	if !ok {
		return time.Time{}
	}
	switch n := v.(type) {
	case *big.Int:
		return time.Unix(n.Int64(), 0).UTC()
	case int64:
		return time.Unix(n, 0).UTC()
	default:
		return time.Time{}
	}
}

func bigIntField(data map[string]interface{}, key string) types.BigInt {
	v, ok := data[key]
	if !ok {
		return types.BigInt{}
	}
	if n, ok := v.(*big.Int); ok {
		var b types.BigInt
		b.Set(n)
		return b
	}
	return types.BigInt{}
}

// Index is a mutable, mutex-guarded view of on-chain receipt/dispute/
// solver state, keyed case-insensitively like every other identifier
// in this system.
type Index struct {
	mu       sync.RWMutex
	receipts map[string]rules.Receipt
	disputes map[string]rules.Dispute
	solvers  map[string]rules.SolverInfo
}

// NewIndex constructs an empty Index.
func NewIndex() *Index {
	return &Index{
		receipts: make(map[string]rules.Receipt),
		disputes: make(map[string]rules.Dispute),
		solvers:  make(map[string]rules.SolverInfo),
	}
}

// ApplyEvent folds one decoded ChainEvent into the index. Unknown
// event names are ignored; the index only tracks what the rule
// engine's ChainContext surfaces.
func (idx *Index) ApplyEvent(ev rules.ChainEvent) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	switch ev.Name {
	case "ReceiptCreated":
		receiptID, _ := ev.Data["receiptId"].(string)
		key := strings.ToLower(receiptID)
		idx.receipts[key] = rules.Receipt{
			ReceiptID:         receiptID,
			SolverID:          stringField(ev.Data, "solver"),
			IntentHash:        stringField(ev.Data, "intentHash"),
			Amount:            bigIntField(ev.Data, "amount"),
			ChallengeDeadline: timeField(ev.Data, "challengeDeadline"),
			Status:            rules.ReceiptPending,
			BlockNumber:       types.NewBigInt(int64(ev.BlockNumber)),
			TxHash:            ev.TxHash,
		}
	case "ReceiptFinalized":
		receiptID, _ := ev.Data["receiptId"].(string)
		key := strings.ToLower(receiptID)
		if r, ok := idx.receipts[key]; ok {
			r.Status = rules.ReceiptFinalized
			idx.receipts[key] = r
		}
	case "DisputeOpened":
		disputeID, _ := ev.Data["disputeId"].(string)
		receiptID, _ := ev.Data["receiptId"].(string)
		key := strings.ToLower(disputeID)
		idx.disputes[key] = rules.Dispute{
			DisputeID: disputeID,
			ReceiptID: receiptID,
			BondAmount: bigIntField(ev.Data, "bondAmount"),
			OpenedAt:  timeField(ev.Data, "openedAt"),
		}
		if rk, ok := idx.receipts[strings.ToLower(receiptID)]; ok {
			rk.Status = rules.ReceiptDisputed
			idx.receipts[strings.ToLower(receiptID)] = rk
		}
	case "DisputeResolved":
		disputeID, _ := ev.Data["disputeId"].(string)
		delete(idx.disputes, strings.ToLower(disputeID))
	case "SolverRegistered":
		solverID := stringField(ev.Data, "solver")
		active, _ := ev.Data["active"].(bool)
		idx.solvers[strings.ToLower(solverID)] = rules.SolverInfo{
			SolverID: solverID,
			Bond:     bigIntField(ev.Data, "bond"),
			Active:   active,
		}
	}
}

// ReceiptsInChallengeWindow returns every tracked receipt, whatever its
// status (finalized and disputed receipts included); the rule itself
// filters by status and deadline.
func (idx *Index) ReceiptsInChallengeWindow() []rules.Receipt {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]rules.Receipt, 0, len(idx.receipts))
	for _, r := range idx.receipts {
		out = append(out, r)
	}
	return out
}

// ActiveDisputes returns every currently open dispute.
func (idx *Index) ActiveDisputes() []rules.Dispute {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]rules.Dispute, 0, len(idx.disputes))
	for _, d := range idx.disputes {
		out = append(out, d)
	}
	return out
}

// SolverInfo looks up one solver, case-insensitively.
func (idx *Index) SolverInfo(solverID string) (rules.SolverInfo, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	info, ok := idx.solvers[strings.ToLower(solverID)]
	return info, ok
}
