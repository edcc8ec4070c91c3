// Copyright 2025 Certen Protocol
//
// chainRuntime bundles every per-chain dependency main wires up:
// an RPC provider, the receipt/dispute index the rule engine reads,
// the registry and event pollers, and the action executor that turns
// findings into transactions. setupChain builds one from a chainSpec
// and the shared, chain-independent dependencies (signer, storage,
// evidence, transparency, webhook, metrics).

package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/certen-labs/watchtower/pkg/actions"
	"github.com/certen-labs/watchtower/pkg/chainrpc"
	agentcontext "github.com/certen-labs/watchtower/pkg/context"
	"github.com/certen-labs/watchtower/pkg/clock"
	"github.com/certen-labs/watchtower/pkg/config"
	"github.com/certen-labs/watchtower/pkg/cursor"
	"github.com/certen-labs/watchtower/pkg/evidence"
	"github.com/certen-labs/watchtower/pkg/identity"
	"github.com/certen-labs/watchtower/pkg/metrics"
	"github.com/certen-labs/watchtower/pkg/poller"
	"github.com/certen-labs/watchtower/pkg/resilience"
	"github.com/certen-labs/watchtower/pkg/rules"
	"github.com/certen-labs/watchtower/pkg/signer"
	"github.com/certen-labs/watchtower/pkg/storage"
	"github.com/certen-labs/watchtower/pkg/transparency"
	"github.com/certen-labs/watchtower/pkg/types"
	"github.com/certen-labs/watchtower/pkg/webhook"
)

// chainRuntime is everything one chain needs to scan, score, and act.
type chainRuntime struct {
	spec      chainSpec
	provider  *chainrpc.Provider
	index     *chainrpc.Index
	contracts []common.Address

	engine          *rules.Engine
	executor        *actions.Executor
	disputeHandler  *actions.DisputeHandler
	evidenceHandler *actions.EvidenceHandler

	eventCursor    *cursor.Store
	eventPoller    *poller.Poller
	identityCursor *cursor.Store
	identityPoller *poller.Poller

	fetcher       *agentcontext.Fetcher
	sweep         chainSweepState
	confirmations uint64

	store    *storage.Store
	evidence *evidence.Store
	translog *transparency.Log
	sender   *webhook.Sender
	metrics  *metrics.Metrics
	logger   *log.Logger
}

// chainSweepState caches each agent's most recently fetched transfer
// window in memory so the next sweep's burst/dormancy signals have a
// prior window to compare against. It does not survive a restart: the
// first sweep after a restart simply treats every agent as having no
// prior window.
type chainSweepState struct {
	mu      sync.Mutex
	windows map[string][]agentcontext.Transfer
}

func newChainSweepState() chainSweepState {
	return chainSweepState{windows: make(map[string][]agentcontext.Transfer)}
}

func (s *chainSweepState) swap(agentID string, next []agentcontext.Transfer) []agentcontext.Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior := s.windows[agentID]
	s.windows[agentID] = next
	return prior
}

type sharedDeps struct {
	clock           clock.Clock
	signer          signer.Signer
	store           *storage.Store
	evidenceStore   *evidence.Store
	translog        *transparency.Log
	sender          *webhook.Sender
	metrics         *metrics.Metrics
	cfg             *config.Config
	overlay         config.RuleOverlay
	notifyHandler   *actions.NotifyHandler
	logOnlyEscalate *actions.LogOnlyHandler
	logOnlyReview   *actions.LogOnlyHandler
}

func setupChain(spec chainSpec, deps sharedDeps, logger *log.Logger) (*chainRuntime, error) {
	retry := resilience.RetryConfig{
		MaxRetries:   deps.cfg.RPCMaxRetries,
		BaseDelayMs:  deps.cfg.RPCRetryBaseDelayMs,
		MaxDelayMs:   deps.cfg.RPCRetryMaxDelayMs,
		JitterFactor: 0.2,
	}
	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		FailureThreshold: deps.cfg.CircuitBreakerFailureThreshold,
		ResetTimeoutMs:   deps.cfg.CircuitBreakerResetTimeoutMs,
		SuccessThreshold: deps.cfg.CircuitBreakerSuccessThreshold,
	}, deps.clock)

	provider, err := chainrpc.NewProvider(spec.RPCURL, spec.Name, retry, breaker)
	if err != nil {
		return nil, fmt.Errorf("chain %s: dial provider: %w", spec.Name, err)
	}
	provider = provider.WithRateLimit(resilience.NewRateLimiter(resilience.RateLimiterConfig{
		RequestsPerSecond: deps.cfg.RPCMaxRequestsPerSecond,
		Burst:             deps.cfg.RPCBurst,
	}))

	contracts := []common.Address{
		common.HexToAddress(spec.SolverRegistry),
		common.HexToAddress(spec.IntentReceiptHub),
		common.HexToAddress(spec.DisputeModule),
	}
	index := chainrpc.NewIndex()

	registry := rules.NewRegistry()
	registry.Register(rules.NewReceiptStaleRule(rules.ReceiptStaleConfig{
		MinReceiptAgeSeconds: deps.cfg.MinReceiptAgeSeconds,
		SolverIDAllowlist:    deps.overlay.AllowlistSolverIDs,
		ReceiptIDAllowlist:   deps.overlay.AllowlistReceiptIDs,
	}))
	delegationCfg := rules.DelegationPaymentConfig{
		FacilitatorAddress:     spec.IntentReceiptHub,
		BlockWindow:            deps.overlay.DelegationPayment.BlockWindow,
		MaxSettlementsPerEpoch: deps.overlay.DelegationPayment.MaxSettlementsPerEpoch,
	}
	if threshold, err := deps.overlay.AmountThresholdBigInt(); err == nil && threshold != nil {
		delegationCfg.AmountThresholdWei = threshold
	}
	registry.Register(rules.NewDelegationPaymentRule(delegationCfg))
	engine := rules.NewEngine(registry, logger)

	chainIDBig := big.NewInt(spec.ChainIDNum)
	writer := actions.NewChainWriter(provider, common.HexToAddress(spec.DisputeModule), chainIDBig, deps.signer)
	disputeHandler, err := actions.NewDisputeHandler(writer)
	if err != nil {
		return nil, fmt.Errorf("chain %s: dispute handler: %w", spec.Name, err)
	}
	evidenceHandler, err := actions.NewEvidenceHandler(writer)
	if err != nil {
		return nil, fmt.Errorf("chain %s: evidence handler: %w", spec.Name, err)
	}

	ledger, err := actions.NewLedger(fmt.Sprintf("%s/ledger-%s.json", deps.cfg.StateDir, spec.Name))
	if err != nil {
		return nil, fmt.Errorf("chain %s: open ledger: %w", spec.Name, err)
	}
	handlers := map[types.ActionType]actions.Handler{
		types.ActionOpenDispute:    disputeHandler,
		types.ActionSubmitEvidence: evidenceHandler,
		types.ActionManualReview:   deps.logOnlyReview,
		types.ActionEscalate:       deps.logOnlyEscalate,
	}
	if deps.notifyHandler != nil {
		handlers[types.ActionNotify] = deps.notifyHandler
	}
	executor := actions.NewExecutor(actions.ExecutorConfig{
		DryRun:             deps.cfg.DryRun,
		MaxActionsPerBatch: deps.cfg.MaxActionsPerScan,
	}, ledger, handlers, logger)

	eventCursor, err := cursor.NewStore(fmt.Sprintf("%s/cursor-events-%s.json", deps.cfg.StateDir, spec.Name), spec.Name, deps.clock)
	if err != nil {
		return nil, fmt.Errorf("chain %s: event cursor: %w", spec.Name, err)
	}
	identityCursor, err := cursor.NewStore(fmt.Sprintf("%s/cursor-identity-%s.json", deps.cfg.StateDir, spec.Name), spec.Name, deps.clock)
	if err != nil {
		return nil, fmt.Errorf("chain %s: identity cursor: %w", spec.Name, err)
	}

	pollCfg := poller.Config{
		PollInterval:  time.Duration(deps.cfg.ScanIntervalMs) * time.Millisecond,
		Lookback:      deps.cfg.LookbackBlocks,
		Confirmations: deps.cfg.BlockConfirmations,
		Retry:         &retry,
	}
	abi := chainrpc.ParseWatchedEventsABI()
	eventPoller := poller.New(spec.Name+":events", eventCursor, provider, func(ctx context.Context, from, to uint64) (int, error) {
		return fetchAndIndexEvents(ctx, provider, abi, contracts, index, from, to)
	}, pollCfg, logger)

	sink := &identitySink{
		store:     deps.store,
		clock:     deps.clock,
		cardCfg:   identity.CardFetchConfig{},
		signalCfg: identity.Config{NewbornAge: time.Duration(deps.cfg.NewbornAgeSeconds) * time.Second, ChurnWindow: time.Duration(deps.cfg.ChurnWindowSeconds) * time.Second, ChurnThreshold: deps.cfg.ChurnThreshold},
		translog:  deps.translog,
		sender:    deps.sender,
		metrics:   deps.metrics,
		chainID:   spec.Name,
		logger:    logger,
	}
	scanner := identity.NewRegistryScanner(provider, common.HexToAddress(spec.AgentRegistry), spec.Name, sink, deps.clock)
	identityPollCfg := pollCfg
	identityPollCfg.Overlap = 50
	identityPoller := identity.NewRegistryPoller(spec.Name+":identity", identityCursor, provider, scanner, identityPollCfg, logger)

	return &chainRuntime{
		spec:            spec,
		provider:        provider,
		index:           index,
		contracts:       contracts,
		engine:          engine,
		executor:        executor,
		disputeHandler:  disputeHandler,
		evidenceHandler: evidenceHandler,
		eventCursor:     eventCursor,
		eventPoller:     eventPoller,
		identityCursor:  identityCursor,
		identityPoller:  identityPoller,
		fetcher:         agentcontext.NewFetcher(provider),
		sweep:           newChainSweepState(),
		confirmations:   deps.cfg.BlockConfirmations,
		store:           deps.store,
		evidence:        deps.evidenceStore,
		translog:        deps.translog,
		sender:          deps.sender,
		metrics:         deps.metrics,
		logger:          logger,
	}, nil
}

// fetchAndIndexEvents is the event poller's FetchFunc: it pulls raw
// logs for the watched contracts and folds every decodable one into
// index, so the rule engine always reads a current view.
func fetchAndIndexEvents(ctx context.Context, provider *chainrpc.Provider, parsed gethabi.ABI, contracts []common.Address, index *chainrpc.Index, from, to uint64) (int, error) {
	logs, err := provider.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: contracts,
	})
	if err != nil {
		return 0, fmt.Errorf("chainrpc: filter logs [%d,%d]: %w", from, to, err)
	}

	count := 0
	for _, lg := range logs {
		ev, err := chainrpc.DecodeLog(parsed, lg)
		if err != nil {
			continue
		}
		index.ApplyEvent(*ev)
		count++
	}
	return count, nil
}
