// Copyright 2025 Certen Protocol
//
// Config loads watchtower configuration from environment variables:
// a struct with no hidden defaults for anything security sensitive,
// and a separate Validate() pass the caller must invoke.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var addressRE = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// SignerType selects the tagged signer-backend variant.
type SignerType string

const (
	SignerLocal        SignerType = "local"
	SignerAgentPasskey SignerType = "agent-passkey"
	SignerGCPKMS       SignerType = "gcp-kms"
	SignerLitPKP       SignerType = "lit-pkp"
)

// ChainConfig describes one chain in multi-chain mode (CHAINS_CONFIG).
type ChainConfig struct {
	Name      string            `json:"name"`
	RPCURL    string            `json:"rpcUrl"`
	ChainID   int64             `json:"chainId"`
	Contracts map[string]string `json:"contracts"`
	Enabled   bool              `json:"enabled"`
}

// Config holds all watchtower configuration.
type Config struct {
	// Primary chain endpoint
	RPCURL  string
	ChainID int64
	Chains  []ChainConfig // from CHAINS_CONFIG, optional

	// Contract addresses
	SolverRegistryAddress   string
	IntentReceiptHubAddress string
	DisputeModuleAddress    string
	AgentRegistryAddress    string

	// Agent scoring sweep
	AgentScoreIntervalMs int64
	NewbornAgeSeconds    int64
	ChurnWindowSeconds   int64
	ChurnThreshold       int

	SignerType SignerType

	// Signer key material. Only the fields relevant to SignerType need
	// be set. Validate() requires SignerPrivateKeyHex or SignerKeyPath
	// for local, and SignerRemoteURL plus a valid SignerRemoteAddress for
	// agent-passkey, gcp-kms and lit-pkp; an unknown SignerType is
	// rejected.
	SignerPrivateKeyHex  string
	SignerKeyPath        string
	SignerRemoteURL      string
	SignerRemoteAPIKey   string
	SignerRemoteAddress  string
	SignerRemoteTimeoutMs int64

	// Poller tuning
	ScanIntervalMs int64
	LookbackBlocks uint64

	// Rule tuning
	ChallengeWindowSeconds int64
	MinReceiptAgeSeconds   int64
	MaxActionsPerScan      int
	DryRun                 bool
	AllowlistSolverIDs     []string
	AllowlistReceiptIDs    []string
	StateDir               string
	BlockConfirmations     uint64

	// Resilience
	RPCMaxRetries                  int
	RPCRetryBaseDelayMs            int64
	RPCRetryMaxDelayMs             int64
	CircuitBreakerFailureThreshold int
	CircuitBreakerResetTimeoutMs   int64
	CircuitBreakerSuccessThreshold int

	// RPCMaxRequestsPerSecond paces outbound RPC calls per chain via
	// pkg/resilience's token-bucket limiter. Zero disables pacing.
	RPCMaxRequestsPerSecond float64
	RPCBurst                int

	// Evidence store
	EvidenceEnabled          bool
	EvidenceDataDir          string
	EvidenceMaxFileSizeBytes int64
	EvidenceValidateOnWrite  bool

	// Webhooks
	WebhookEnabled             bool
	WebhookURL                 string
	WebhookSecret              string
	WebhookTimeoutMs           int64
	WebhookMaxRetries          int
	WebhookRetryDelayMs        int64
	WebhookSendHeartbeat       bool
	WebhookHeartbeatIntervalMs int64

	// Storage / API
	DBPath  string
	KeyPath string
	LogDir  string
	APIKey  string
	APIPort int
	APIHost string

	// RuleOverlayPath, if set, names a YAML file read via
	// LoadRuleOverlay for rule-tuning knobs that don't fit a CSV
	// env var.
	RuleOverlayPath string
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid integer for %s: %w", key, err)
	}
	return n, nil
}

func getenvUint64(key string, def uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid unsigned integer for %s: %w", key, err)
	}
	return n, nil
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid integer for %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat64(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid float for %s: %w", key, err)
	}
	return f, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: invalid boolean for %s: %w", key, err)
	}
	return b, nil
}

func getenvCSV(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from environment variables. Call
// Validate() afterward to confirm required fields were supplied.
func Load() (*Config, error) {
	cfg := &Config{
		RPCURL:                  os.Getenv("RPC_URL"),
		SolverRegistryAddress:   os.Getenv("SOLVER_REGISTRY_ADDRESS"),
		IntentReceiptHubAddress: os.Getenv("INTENT_RECEIPT_HUB_ADDRESS"),
		DisputeModuleAddress:    os.Getenv("DISPUTE_MODULE_ADDRESS"),
		AgentRegistryAddress:    os.Getenv("AGENT_REGISTRY_ADDRESS"),
		SignerType:              SignerType(getenv("SIGNER_TYPE", string(SignerLocal))),
		SignerPrivateKeyHex:     os.Getenv("SIGNER_PRIVATE_KEY_HEX"),
		SignerKeyPath:           os.Getenv("SIGNER_KEY_PATH"),
		SignerRemoteURL:         os.Getenv("SIGNER_REMOTE_URL"),
		SignerRemoteAPIKey:      os.Getenv("SIGNER_REMOTE_API_KEY"),
		SignerRemoteAddress:     os.Getenv("SIGNER_REMOTE_ADDRESS"),
		StateDir:                getenv("STATE_DIR", ".state"),
		WebhookURL:              os.Getenv("WEBHOOK_URL"),
		WebhookSecret:           os.Getenv("WEBHOOK_SECRET"),
		DBPath:                  os.Getenv("WATCHTOWER_DB_PATH"),
		KeyPath:                 os.Getenv("WATCHTOWER_KEY_PATH"),
		LogDir:                  os.Getenv("WATCHTOWER_LOG_DIR"),
		APIKey:                  os.Getenv("WATCHTOWER_API_KEY"),
		APIHost:                 getenv("WATCHTOWER_API_HOST", "0.0.0.0"),
		EvidenceDataDir:         getenv("EVIDENCE_DATA_DIR", ".state/evidence"),
		RuleOverlayPath:         os.Getenv("RULE_OVERLAY_PATH"),
	}

	var err error
	if cfg.ChainID, err = getenvInt64("CHAIN_ID", 0); err != nil {
		return nil, err
	}
	if cfg.ScanIntervalMs, err = getenvInt64("SCAN_INTERVAL_MS", 60000); err != nil {
		return nil, err
	}
	// LOOKBACK_BLOCKS and SCAN_LOOKBACK_BLOCKS are treated as aliases;
	// SCAN_LOOKBACK_BLOCKS wins if both are set.
	lookback, err := getenvUint64("LOOKBACK_BLOCKS", 1000)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("SCAN_LOOKBACK_BLOCKS"); v != "" {
		lookback, err = getenvUint64("SCAN_LOOKBACK_BLOCKS", lookback)
		if err != nil {
			return nil, err
		}
	}
	cfg.LookbackBlocks = lookback

	if cfg.ChallengeWindowSeconds, err = getenvInt64("CHALLENGE_WINDOW_SECONDS", 3600); err != nil {
		return nil, err
	}
	if cfg.MinReceiptAgeSeconds, err = getenvInt64("MIN_RECEIPT_AGE_SECONDS", 0); err != nil {
		return nil, err
	}
	if cfg.MaxActionsPerScan, err = getenvInt("MAX_ACTIONS_PER_SCAN", 10); err != nil {
		return nil, err
	}
	if cfg.DryRun, err = getenvBool("DRY_RUN", true); err != nil {
		return nil, err
	}
	cfg.AllowlistSolverIDs = getenvCSV("ACTION_ALLOWLIST_SOLVER_IDS")
	cfg.AllowlistReceiptIDs = getenvCSV("ACTION_ALLOWLIST_RECEIPT_IDS")

	blockConf, err := getenvUint64("BLOCK_CONFIRMATIONS", 6)
	if err != nil {
		return nil, err
	}
	cfg.BlockConfirmations = blockConf

	if cfg.RPCMaxRetries, err = getenvInt("RPC_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.RPCRetryBaseDelayMs, err = getenvInt64("RPC_RETRY_BASE_DELAY_MS", 250); err != nil {
		return nil, err
	}
	if cfg.RPCRetryMaxDelayMs, err = getenvInt64("RPC_RETRY_MAX_DELAY_MS", 10000); err != nil {
		return nil, err
	}
	if cfg.CircuitBreakerFailureThreshold, err = getenvInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5); err != nil {
		return nil, err
	}
	if cfg.CircuitBreakerResetTimeoutMs, err = getenvInt64("CIRCUIT_BREAKER_RESET_TIMEOUT_MS", 30000); err != nil {
		return nil, err
	}
	if cfg.CircuitBreakerSuccessThreshold, err = getenvInt("CIRCUIT_BREAKER_SUCCESS_THRESHOLD", 2); err != nil {
		return nil, err
	}
	if cfg.RPCMaxRequestsPerSecond, err = getenvFloat64("RPC_MAX_REQUESTS_PER_SECOND", 0); err != nil {
		return nil, err
	}
	if cfg.RPCBurst, err = getenvInt("RPC_BURST", 0); err != nil {
		return nil, err
	}

	if cfg.EvidenceEnabled, err = getenvBool("EVIDENCE_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.EvidenceMaxFileSizeBytes, err = getenvInt64("EVIDENCE_MAX_FILE_SIZE_BYTES", 10*1024*1024); err != nil {
		return nil, err
	}
	if cfg.EvidenceValidateOnWrite, err = getenvBool("EVIDENCE_VALIDATE_ON_WRITE", true); err != nil {
		return nil, err
	}

	if cfg.WebhookEnabled, err = getenvBool("WEBHOOK_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.WebhookTimeoutMs, err = getenvInt64("WEBHOOK_TIMEOUT_MS", 5000); err != nil {
		return nil, err
	}
	if cfg.WebhookMaxRetries, err = getenvInt("WEBHOOK_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.WebhookRetryDelayMs, err = getenvInt64("WEBHOOK_RETRY_DELAY_MS", 1000); err != nil {
		return nil, err
	}
	if cfg.WebhookSendHeartbeat, err = getenvBool("WEBHOOK_SEND_HEARTBEAT", false); err != nil {
		return nil, err
	}
	if cfg.WebhookHeartbeatIntervalMs, err = getenvInt64("WEBHOOK_HEARTBEAT_INTERVAL_MS", 60000); err != nil {
		return nil, err
	}

	if cfg.APIPort, err = getenvInt("WATCHTOWER_API_PORT", 8090); err != nil {
		return nil, err
	}

	if cfg.AgentScoreIntervalMs, err = getenvInt64("AGENT_SCORE_INTERVAL_MS", 300000); err != nil {
		return nil, err
	}
	if cfg.NewbornAgeSeconds, err = getenvInt64("NEWBORN_AGE_SECONDS", 86400); err != nil {
		return nil, err
	}
	if cfg.ChurnWindowSeconds, err = getenvInt64("CHURN_WINDOW_SECONDS", 86400); err != nil {
		return nil, err
	}
	if cfg.ChurnThreshold, err = getenvInt("CHURN_THRESHOLD", 3); err != nil {
		return nil, err
	}
	if cfg.SignerRemoteTimeoutMs, err = getenvInt64("SIGNER_REMOTE_TIMEOUT_MS", 0); err != nil {
		return nil, err
	}

	if raw := os.Getenv("CHAINS_CONFIG"); raw != "" {
		var chains []ChainConfig
		if err := json.Unmarshal([]byte(raw), &chains); err != nil {
			return nil, fmt.Errorf("config: invalid CHAINS_CONFIG: %w", err)
		}
		cfg.Chains = chains
	}

	return cfg, nil
}

// Validate confirms all required fields are present and well-formed.
// Required variables have no defaults and must be explicitly set.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		if c.RPCURL == "" {
			return fmt.Errorf("config: RPC_URL is required when CHAINS_CONFIG is not set")
		}
		if c.ChainID == 0 {
			return fmt.Errorf("config: CHAIN_ID is required when CHAINS_CONFIG is not set")
		}
	}
	for _, addr := range []struct{ name, value string }{
		{"SOLVER_REGISTRY_ADDRESS", c.SolverRegistryAddress},
		{"INTENT_RECEIPT_HUB_ADDRESS", c.IntentReceiptHubAddress},
		{"DISPUTE_MODULE_ADDRESS", c.DisputeModuleAddress},
		{"AGENT_REGISTRY_ADDRESS", c.AgentRegistryAddress},
	} {
		if addr.value != "" && !addressRE.MatchString(addr.value) {
			return fmt.Errorf("config: %s is not a valid 0x-prefixed 40-hex address: %q", addr.name, addr.value)
		}
	}
	switch c.SignerType {
	case SignerLocal:
		if c.SignerPrivateKeyHex == "" && c.SignerKeyPath == "" {
			return fmt.Errorf("config: SIGNER_PRIVATE_KEY_HEX or SIGNER_KEY_PATH is required when SIGNER_TYPE=local")
		}
	case SignerAgentPasskey, SignerGCPKMS, SignerLitPKP:
		if c.SignerRemoteURL == "" {
			return fmt.Errorf("config: SIGNER_REMOTE_URL is required when SIGNER_TYPE=%s", c.SignerType)
		}
		if !addressRE.MatchString(c.SignerRemoteAddress) {
			return fmt.Errorf("config: SIGNER_REMOTE_ADDRESS must be a valid 0x-prefixed 40-hex address when SIGNER_TYPE=%s", c.SignerType)
		}
	default:
		return fmt.Errorf("config: unknown SIGNER_TYPE %q", c.SignerType)
	}
	if c.ScanIntervalMs < 1000 {
		return fmt.Errorf("config: SCAN_INTERVAL_MS must be >= 1000, got %d", c.ScanIntervalMs)
	}
	if c.LookbackBlocks < 1 {
		return fmt.Errorf("config: LOOKBACK_BLOCKS must be >= 1, got %d", c.LookbackBlocks)
	}
	if c.MaxActionsPerScan < 0 || c.MaxActionsPerScan > 100 {
		return fmt.Errorf("config: MAX_ACTIONS_PER_SCAN must be in [0,100], got %d", c.MaxActionsPerScan)
	}
	if c.RPCMaxRetries < 0 || c.RPCMaxRetries > 10 {
		return fmt.Errorf("config: RPC_MAX_RETRIES must be in [0,10], got %d", c.RPCMaxRetries)
	}
	if c.WebhookEnabled {
		if c.WebhookURL == "" {
			return fmt.Errorf("config: WEBHOOK_URL is required when WEBHOOK_ENABLED is true")
		}
		if len(c.WebhookSecret) < 32 {
			return fmt.Errorf("config: WEBHOOK_SECRET must be at least 32 characters")
		}
	}
	return nil
}

// ScanInterval returns ScanIntervalMs as a time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMs) * time.Millisecond
}
