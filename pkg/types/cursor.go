// Copyright 2025 Certen Protocol

package types

import "time"

// BlockCursor is the one-per-chain resumption marker. It is monotonic
// non-decreasing once written.
type BlockCursor struct {
	LastProcessedBlock BigInt    `json:"lastProcessedBlock"`
	UpdatedAt          time.Time `json:"updatedAt"`
	ChainID            string    `json:"chainId"`
}
