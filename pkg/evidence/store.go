// Copyright 2025 Certen Protocol
//
// Store is the append-only JSONL evidence log: one date-stemmed file
// per UTC day, rotated by size, written one self-contained JSON line
// per record. Follows the file-backed-store idiom of load/append/
// persist under a single mutex, as in pkg/actions.Ledger, but
// append-only rather than rewrite-the-whole-file, since the whole
// point here is a durable audit trail a concurrent reader can tail.

package evidence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/certen-labs/watchtower/pkg/clock"
	"github.com/certen-labs/watchtower/pkg/types"
)

// Config tunes one Store.
type Config struct {
	DataDir          string
	MaxFileSizeBytes int64
	ValidateOnWrite  bool
}

// Store is a single append-only JSONL evidence log directory.
type Store struct {
	cfg   Config
	clock clock.Clock
	mu    sync.Mutex
}

// NewStore constructs a Store rooted at cfg.DataDir, creating the
// directory if needed.
func NewStore(cfg Config, c clock.Clock) (*Store, error) {
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 * 1024 * 1024 // 10 MiB default
	}
	if c == nil {
		c = clock.Real{}
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("evidence: create data dir: %w", err)
	}
	return &Store{cfg: cfg, clock: c}, nil
}

// AppendFinding writes a FindingRecord as one finding-typed line.
func (s *Store) AppendFinding(rec types.FindingRecord) error {
	if s.cfg.ValidateOnWrite {
		if err := validateFindingRecord(rec); err != nil {
			return err
		}
	}
	return s.appendLine(types.EvidenceLine{
		Type:          types.EvidenceTypeFinding,
		SchemaVersion: types.CurrentSchemaVersion,
		Data:          rec,
	}, rec.CreatedAt)
}

// AppendActionResult writes an ActionResultRecord as one action-typed
// line.
func (s *Store) AppendActionResult(rec types.ActionResultRecord) error {
	if s.cfg.ValidateOnWrite {
		if err := validateActionResultRecord(rec); err != nil {
			return err
		}
	}
	return s.appendLine(types.EvidenceLine{
		Type:          types.EvidenceTypeAction,
		SchemaVersion: types.CurrentSchemaVersion,
		Data:          rec,
	}, rec.Timestamp)
}

func validateFindingRecord(rec types.FindingRecord) error {
	if rec.ID == "" || rec.RuleID == "" {
		return &types.ValidationError{Subject: "FindingRecord", Reason: "id and ruleId are required"}
	}
	if rec.ChainID == "" {
		return &types.ValidationError{Subject: "FindingRecord", Reason: "chainId is required"}
	}
	return nil
}

func validateActionResultRecord(rec types.ActionResultRecord) error {
	if rec.FindingID == "" {
		return &types.ValidationError{Subject: "ActionResultRecord", Reason: "findingId is required"}
	}
	if rec.ChainID == "" {
		return &types.ValidationError{Subject: "ActionResultRecord", Reason: "chainId is required"}
	}
	return nil
}

func (s *Store) appendLine(line types.EvidenceLine, recordTime time.Time) error {
	payload, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("evidence: marshal line: %w", err)
	}
	payload = append(payload, '\n')

	date := recordTime.UTC().Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.pickTargetFileLocked(date)
	if err != nil {
		return fmt.Errorf("evidence: pick target file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("evidence: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("evidence: append %s: %w", path, err)
	}
	return nil
}

// pickTargetFileLocked finds the date-stem file to append to: the
// first of evidence-DATE.jsonl, evidence-DATE-1.jsonl, ... that does
// not exist or is still under MaxFileSizeBytes.
func (s *Store) pickTargetFileLocked(date string) (string, error) {
	for n := 0; ; n++ {
		name := fmt.Sprintf("evidence-%s.jsonl", date)
		if n > 0 {
			name = fmt.Sprintf("evidence-%s-%d.jsonl", date, n)
		}
		path := filepath.Join(s.cfg.DataDir, name)
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
		if info.Size() < s.cfg.MaxFileSizeBytes {
			return path, nil
		}
	}
}

// ListFiles returns every evidence file in lexicographic (therefore
// chronological) order.
func (s *Store) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "evidence-") && strings.HasSuffix(name, ".jsonl") {
			files = append(files, filepath.Join(s.cfg.DataDir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Record is one parsed evidence line, discriminated by Finding/Action
// being non-nil.
type Record struct {
	Finding *types.FindingRecord
	Action  *types.ActionResultRecord
}

func (r Record) timestamp() time.Time {
	if r.Finding != nil {
		return r.Finding.CreatedAt
	}
	if r.Action != nil {
		return r.Action.Timestamp
	}
	return time.Time{}
}

// rawLine mirrors EvidenceLine but keeps Data undecoded until the
// type tag is known.
type rawLine struct {
	Type          types.EvidenceRecordType `json:"type"`
	SchemaVersion int                      `json:"schemaVersion"`
	Data          json.RawMessage          `json:"data"`
}

func parseLine(line []byte) (Record, bool) {
	var raw rawLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return Record{}, false
	}
	if raw.SchemaVersion > types.CurrentSchemaVersion {
		return Record{}, false
	}
	switch raw.Type {
	case types.EvidenceTypeFinding:
		var fr types.FindingRecord
		if err := json.Unmarshal(raw.Data, &fr); err != nil {
			return Record{}, false
		}
		return Record{Finding: &fr}, true
	case types.EvidenceTypeAction:
		var ar types.ActionResultRecord
		if err := json.Unmarshal(raw.Data, &ar); err != nil {
			return Record{}, false
		}
		return Record{Action: &ar}, true
	default:
		return Record{}, false
	}
}

func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	// On a Scanner error (e.g. a line exceeding the 4 MiB buffer)
	// scanning stops and the lines read so far are returned; the error
	// is never propagated to the caller.
	return lines, nil
}

// QueryOptions filters and paginates Query, applied in a fixed order:
// type, chainId, receiptId, ruleId, severity, startDate, endDate,
// then offset, then limit.
type QueryOptions struct {
	Type      types.EvidenceRecordType
	ChainID   string
	ReceiptID string
	RuleID    string
	Severity  types.Severity
	HasSeverity bool
	StartDate *time.Time
	EndDate   *time.Time
	Offset    int
	Limit     int
}

// Query scans every evidence file in order, applies filters, then
// slices by offset and limit.
func (s *Store) Query(opts QueryOptions) ([]Record, error) {
	files, err := s.ListFiles()
	if err != nil {
		return nil, err
	}

	var matched []Record
	for _, path := range files {
		lines, err := readLines(path)
		if err != nil {
			continue
		}
		for _, line := range lines {
			rec, ok := parseLine(line)
			if !ok {
				continue
			}
			if matchesFilters(rec, opts) {
				matched = append(matched, rec)
			}
		}
	}

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return matched[start:end], nil
}

func matchesFilters(rec Record, opts QueryOptions) bool {
	if opts.Type != "" {
		if opts.Type == types.EvidenceTypeFinding && rec.Finding == nil {
			return false
		}
		if opts.Type == types.EvidenceTypeAction && rec.Action == nil {
			return false
		}
	}

	chainID := ""
	if rec.Finding != nil {
		chainID = rec.Finding.ChainID
	} else if rec.Action != nil {
		chainID = rec.Action.ChainID
	}
	if opts.ChainID != "" && !strings.EqualFold(chainID, opts.ChainID) {
		return false
	}

	if opts.ReceiptID != "" {
		receiptID := ""
		if rec.Finding != nil {
			receiptID = rec.Finding.ReceiptID
		} else if rec.Action != nil {
			receiptID = rec.Action.ReceiptID
		}
		if !strings.EqualFold(receiptID, opts.ReceiptID) {
			return false
		}
	}

	if opts.RuleID != "" {
		if rec.Finding == nil || rec.Finding.RuleID != opts.RuleID {
			return false
		}
	}

	if opts.HasSeverity {
		if rec.Finding == nil || rec.Finding.Severity != opts.Severity {
			return false
		}
	}

	ts := rec.timestamp()
	if opts.StartDate != nil && ts.Before(*opts.StartDate) {
		return false
	}
	if opts.EndDate != nil && ts.After(*opts.EndDate) {
		return false
	}

	return true
}

// GetFindingByID scans every file for a finding with the given id.
func (s *Store) GetFindingByID(id string) (*types.FindingRecord, error) {
	records, err := s.Query(QueryOptions{Type: types.EvidenceTypeFinding})
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Finding != nil && r.Finding.ID == id {
			return r.Finding, nil
		}
	}
	return nil, &types.NotFoundError{Kind: "finding", ID: id}
}

// GetActionsForFinding returns every action result recorded against
// findingID, in file (chronological) order.
func (s *Store) GetActionsForFinding(findingID string) ([]types.ActionResultRecord, error) {
	records, err := s.Query(QueryOptions{Type: types.EvidenceTypeAction})
	if err != nil {
		return nil, err
	}
	var out []types.ActionResultRecord
	for _, r := range records {
		if r.Action != nil && r.Action.FindingID == findingID {
			out = append(out, *r.Action)
		}
	}
	return out, nil
}

// Stats summarizes the evidence log's contents.
type Stats struct {
	FileCount     int
	FindingCount  int
	ActionCount   int
	OldestRecord  time.Time
	NewestRecord  time.Time
}

// GetStats scans the entire log to compute summary counters.
func (s *Store) GetStats() (Stats, error) {
	files, err := s.ListFiles()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{FileCount: len(files)}

	records, err := s.Query(QueryOptions{})
	if err != nil {
		return Stats{}, err
	}
	for i, r := range records {
		if r.Finding != nil {
			stats.FindingCount++
		}
		if r.Action != nil {
			stats.ActionCount++
		}
		ts := r.timestamp()
		if i == 0 || ts.Before(stats.OldestRecord) {
			stats.OldestRecord = ts
		}
		if i == 0 || ts.After(stats.NewestRecord) {
			stats.NewestRecord = ts
		}
	}
	return stats, nil
}
