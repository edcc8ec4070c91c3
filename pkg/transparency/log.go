// Copyright 2025 Certen Protocol
//
// Log appends signed TransparencyLeaf records to one NDJSON file per
// UTC day, the append-only idiom pkg/evidence.Store already uses for
// its JSONL records, re-applied to a signed leaf instead of an
// evidence line.

package transparency

import (
	"bufio"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/certen-labs/watchtower/pkg/agentscore"
	"github.com/certen-labs/watchtower/pkg/clock"
	"github.com/certen-labs/watchtower/pkg/types"
)

// LeafInput is the caller-supplied content a leaf binds: one agent's
// risk report at a point in time, optionally tied to a specific
// on-chain receipt or solver run.
type LeafInput struct {
	AgentID        string
	RiskReportHash string
	OverallRisk    int
	ReceiptID      string
	RunID          string
	ReportVersion  string
	GeneratedAt    time.Time
}

// Log appends Ed25519-signed leaves to daily NDJSON files.
type Log struct {
	dir   string
	keys  *KeyManager
	clock clock.Clock
	mu    sync.Mutex
}

// NewLog constructs a Log writing under dir, signing with keys.
func NewLog(dir string, keys *KeyManager, c clock.Clock) *Log {
	if c == nil {
		c = clock.Real{}
	}
	return &Log{dir: dir, keys: keys, clock: c}
}

type leafIDInput struct {
	AgentID        string `json:"agentId"`
	RiskReportHash string `json:"riskReportHash"`
	OverallRisk    int    `json:"overallRisk"`
	ReceiptID      string `json:"receiptId,omitempty"`
	RunID          string `json:"runId,omitempty"`
	LeafVersion    string `json:"leafVersion"`
}

type signedPayload struct {
	AgentID        string `json:"agentId"`
	GeneratedAt    string `json:"generatedAt"`
	ReportVersion  string `json:"reportVersion"`
	RiskReportHash string `json:"riskReportHash"`
}

// BuildLeaf computes a leaf's content-addressed id and Ed25519
// signature over its payload, without appending it to the log.
func (l *Log) BuildLeaf(in LeafInput) (types.TransparencyLeaf, error) {
	now := l.clock.Now()

	leafID, err := agentscore.HashCanonicalJSON(leafIDInput{
		AgentID:        in.AgentID,
		RiskReportHash: in.RiskReportHash,
		OverallRisk:    in.OverallRisk,
		ReceiptID:      in.ReceiptID,
		RunID:          in.RunID,
		LeafVersion:    types.LeafVersion,
	})
	if err != nil {
		return types.TransparencyLeaf{}, fmt.Errorf("transparency: hash leaf id: %w", err)
	}

	payloadBytes, err := agentscore.CanonicalJSON(signedPayload{
		AgentID:        in.AgentID,
		GeneratedAt:    in.GeneratedAt.UTC().Format(time.RFC3339Nano),
		ReportVersion:  in.ReportVersion,
		RiskReportHash: in.RiskReportHash,
	})
	if err != nil {
		return types.TransparencyLeaf{}, fmt.Errorf("transparency: canonicalize payload: %w", err)
	}

	sig := l.keys.Sign(payloadBytes)

	return types.TransparencyLeaf{
		LeafID:         leafID,
		LeafVersion:    types.LeafVersion,
		AgentID:        in.AgentID,
		RiskReportHash: in.RiskReportHash,
		OverallRisk:    in.OverallRisk,
		ReceiptID:      in.ReceiptID,
		RunID:          in.RunID,
		ReportVersion:  in.ReportVersion,
		GeneratedAt:    in.GeneratedAt,
		WrittenAt:      now,
		WatchtowerSig:  base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// Append builds a leaf from in and appends it to today's (UTC) log
// file, creating the log directory and file as needed.
func (l *Log) Append(in LeafInput) (types.TransparencyLeaf, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	leaf, err := l.BuildLeaf(in)
	if err != nil {
		return types.TransparencyLeaf{}, err
	}

	line, err := json.Marshal(leaf)
	if err != nil {
		return types.TransparencyLeaf{}, fmt.Errorf("transparency: marshal leaf: %w", err)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return types.TransparencyLeaf{}, fmt.Errorf("transparency: create log dir: %w", err)
	}

	path := l.pathForDay(leaf.WrittenAt)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return types.TransparencyLeaf{}, fmt.Errorf("transparency: open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return types.TransparencyLeaf{}, fmt.Errorf("transparency: append leaf: %w", err)
	}

	return leaf, nil
}

func (l *Log) pathForDay(t time.Time) string {
	return filepath.Join(l.dir, fmt.Sprintf("leaves-%s.ndjson", t.UTC().Format("2006-01-02")))
}

// Dir returns the directory leaves are written under.
func (l *Log) Dir() string { return l.dir }

// PublicKey returns the Ed25519 public key leaves are signed with.
func (l *Log) PublicKey() ed25519.PublicKey { return l.keys.PublicKey() }

// LeavesForDate parses and returns every leaf appended on date
// (YYYY-MM-DD, UTC), or an empty slice if no log file exists for it.
func (l *Log) LeavesForDate(date string) ([]types.TransparencyLeaf, error) {
	path := filepath.Join(l.dir, fmt.Sprintf("leaves-%s.ndjson", date))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("transparency: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var leaves []types.TransparencyLeaf
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var leaf types.TransparencyLeaf
		if err := json.Unmarshal(raw, &leaf); err != nil {
			return nil, fmt.Errorf("transparency: parse %s: %w", path, err)
		}
		leaves = append(leaves, leaf)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transparency: scan %s: %w", path, err)
	}
	return leaves, nil
}

// LatestDate returns the most recent YYYY-MM-DD for which a log file
// exists under Dir, or "" if the directory is empty or absent.
func (l *Log) LatestDate() (string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("transparency: read log dir: %w", err)
	}
	var latest string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "leaves-") || !strings.HasSuffix(name, ".ndjson") {
			continue
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, "leaves-"), ".ndjson")
		if date > latest {
			latest = date
		}
	}
	return latest, nil
}

// StatusSummary is the /v1/transparency/status response: the latest
// date with leaves, a rolling verification summary over the last N
// days, and the public key leaves are signed with.
type StatusSummary struct {
	LatestDate      string
	TotalLeaves     int
	ValidLeaves     int
	InvalidLeaves   int
	DaysInspected   int
	PublicKeyBase64 string
}

// Status verifies the last days (UTC, counting back from today)
// worth of log files and summarizes the result.
func (l *Log) Status(days int) (StatusSummary, error) {
	summary := StatusSummary{PublicKeyBase64: l.keys.PublicKeyBase64()}

	latest, err := l.LatestDate()
	if err != nil {
		return summary, err
	}
	summary.LatestDate = latest

	now := l.clock.Now().UTC()
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")
		path := filepath.Join(l.dir, fmt.Sprintf("leaves-%s.ndjson", date))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		summary.DaysInspected++
		result, err := VerifyFile(path, l.keys.PublicKey())
		if err != nil {
			return summary, err
		}
		summary.TotalLeaves += result.TotalLeaves
		summary.ValidLeaves += result.ValidLeaves
		summary.InvalidLeaves += result.InvalidLeaves
	}
	return summary, nil
}

// VerificationError is one per-line problem found during offline
// verification.
type VerificationError struct {
	Line int
	Code string
	Err  string
}

// VerificationResult summarizes an offline pass over one or more log
// files.
type VerificationResult struct {
	TotalLeaves   int
	ValidLeaves   int
	InvalidLeaves int
	Errors        []VerificationError
}

const (
	ErrParseError       = "PARSE_ERROR"
	ErrLeafIDMismatch   = "LEAF_ID_MISMATCH"
	ErrSignatureInvalid = "SIGNATURE_INVALID"
)

// VerifyFile re-derives and checks every leaf in path against
// publicKey: leafId recomputation and Ed25519 signature verification.
func VerifyFile(path string, publicKey []byte) (VerificationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("transparency: open %s: %w", path, err)
	}
	defer f.Close()

	var result VerificationResult
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := scanner.Text()
		if raw == "" {
			continue
		}
		result.TotalLeaves++

		var leaf types.TransparencyLeaf
		if err := json.Unmarshal([]byte(raw), &leaf); err != nil {
			result.InvalidLeaves++
			result.Errors = append(result.Errors, VerificationError{Line: lineNum, Code: ErrParseError, Err: err.Error()})
			continue
		}

		if code, verr := verifyLeaf(leaf, publicKey); verr != "" {
			result.InvalidLeaves++
			result.Errors = append(result.Errors, VerificationError{Line: lineNum, Code: code, Err: verr})
			continue
		}
		result.ValidLeaves++
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("transparency: scan %s: %w", path, err)
	}
	return result, nil
}

func verifyLeaf(leaf types.TransparencyLeaf, publicKey []byte) (code, errMsg string) {
	wantID, err := agentscore.HashCanonicalJSON(leafIDInput{
		AgentID:        leaf.AgentID,
		RiskReportHash: leaf.RiskReportHash,
		OverallRisk:    leaf.OverallRisk,
		ReceiptID:      leaf.ReceiptID,
		RunID:          leaf.RunID,
		LeafVersion:    leaf.LeafVersion,
	})
	if err != nil {
		return ErrParseError, err.Error()
	}
	if wantID != leaf.LeafID {
		return ErrLeafIDMismatch, fmt.Sprintf("expected %s got %s", wantID, leaf.LeafID)
	}

	sig, err := base64.StdEncoding.DecodeString(leaf.WatchtowerSig)
	if err != nil {
		return ErrSignatureInvalid, fmt.Sprintf("decode signature: %v", err)
	}

	payload, err := agentscore.CanonicalJSON(signedPayload{
		AgentID:        leaf.AgentID,
		GeneratedAt:    leaf.GeneratedAt.UTC().Format(time.RFC3339Nano),
		ReportVersion:  leaf.ReportVersion,
		RiskReportHash: leaf.RiskReportHash,
	})
	if err != nil {
		return ErrParseError, err.Error()
	}
	if len(publicKey) != ed25519.PublicKeySize || !ed25519.Verify(publicKey, payload, sig) {
		return ErrSignatureInvalid, "signature does not verify against public key"
	}
	return "", ""
}
