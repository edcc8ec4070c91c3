// Copyright 2025 Certen Protocol
//
// watchtower scans one or more EVM chains for stale intent receipts
// and suspicious delegation-payment settlements, tracks ERC-8004 agent
// registrations, and folds both into a continuously re-scored
// per-agent risk report. cmd/watchtower wires every pkg/ package
// together into the running service; the packages themselves stay
// free of process-lifecycle concerns.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/certen-labs/watchtower/pkg/actions"
	"github.com/certen-labs/watchtower/pkg/clock"
	"github.com/certen-labs/watchtower/pkg/config"
	"github.com/certen-labs/watchtower/pkg/evidence"
	"github.com/certen-labs/watchtower/pkg/httpapi"
	"github.com/certen-labs/watchtower/pkg/metrics"
	"github.com/certen-labs/watchtower/pkg/rules"
	"github.com/certen-labs/watchtower/pkg/signer"
	"github.com/certen-labs/watchtower/pkg/storage"
	"github.com/certen-labs/watchtower/pkg/transparency"
	"github.com/certen-labs/watchtower/pkg/webhook"
)

// version is stamped at build time via -ldflags; left as a default
// for local builds.
var version = "dev"

func printHelp() {
	fmt.Println("watchtower: on-chain intent-settlement and agent-risk monitor")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  watchtower [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -config string   path to a rule overlay YAML file (overrides RULE_OVERLAY_PATH)")
	fmt.Println("  -version         print the build version and exit")
	fmt.Println("  -help            show this message")
	fmt.Println()
	fmt.Println("Configuration is otherwise read entirely from environment variables;")
	fmt.Println("see pkg/config.Load for the full list.")
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		overlayPath = flag.String("config", "", "path to a rule overlay YAML file")
		showVersion = flag.Bool("version", false, "print the build version and exit")
		showHelp    = flag.Bool("help", false, "show this help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}
	if *showVersion {
		fmt.Println(version)
		return
	}

	log.Printf("watchtower %s starting up", version)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *overlayPath != "" {
		cfg.RuleOverlayPath = *overlayPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	overlay, err := config.LoadRuleOverlay(cfg.RuleOverlayPath)
	if err != nil {
		log.Fatalf("load rule overlay: %v", err)
	}

	realClock := clock.Real{}
	m := metrics.New()
	health := NewHealthStatus()

	log.Println("connecting to storage")
	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(context.Background()); err != nil {
		log.Fatalf("migrate storage: %v", err)
	}
	health.SetStorage("connected")

	log.Println("initializing signer")
	sgnr, err := signer.New(signer.Config{
		Type:          cfg.SignerType,
		PrivateKeyHex: cfg.SignerPrivateKeyHex,
		KeyPath:       cfg.SignerKeyPath,
		RemoteURL:     cfg.SignerRemoteURL,
		RemoteAPIKey:  cfg.SignerRemoteAPIKey,
		RemoteAddress: cfg.SignerRemoteAddress,
		RemoteTimeout: cfg.SignerRemoteTimeoutMs,
	})
	if err != nil {
		health.SetSigner("error")
		log.Fatalf("initialize signer: %v", err)
	}
	health.SetSigner("ready")

	var evidenceStore *evidence.Store
	if cfg.EvidenceEnabled {
		evidenceStore, err = evidence.NewStore(evidence.Config{
			DataDir:          cfg.EvidenceDataDir,
			MaxFileSizeBytes: cfg.EvidenceMaxFileSizeBytes,
			ValidateOnWrite:  cfg.EvidenceValidateOnWrite,
		}, realClock)
		if err != nil {
			health.SetEvidence("error")
			log.Fatalf("open evidence store: %v", err)
		}
		health.SetEvidence("active")
	}

	log.Println("loading transparency signing key")
	keyManager := transparency.NewKeyManager(cfg.KeyPath)
	if err := keyManager.LoadOrGenerate(); err != nil {
		log.Fatalf("load transparency key: %v", err)
	}
	translog := transparency.NewLog(cfg.LogDir, keyManager, realClock)

	var sender *webhook.Sender
	if cfg.WebhookEnabled {
		sender = webhook.NewSender(webhook.Config{
			URL:                 cfg.WebhookURL,
			Secret:              cfg.WebhookSecret,
			TimeoutMs:           cfg.WebhookTimeoutMs,
			MaxRetries:          cfg.WebhookMaxRetries,
			RetryDelayMs:        cfg.WebhookRetryDelayMs,
			SendHeartbeat:       cfg.WebhookSendHeartbeat,
			HeartbeatIntervalMs: cfg.WebhookHeartbeatIntervalMs,
		}, uuid.NewString)
		health.SetWebhook("active")
	}

	chains, err := resolveChains(cfg)
	if err != nil {
		log.Fatalf("resolve chains: %v", err)
	}

	actionLogger := log.New(log.Writer(), "[actions] ", log.LstdFlags)
	deps := sharedDeps{
		clock:           realClock,
		signer:          sgnr,
		store:           store,
		evidenceStore:   evidenceStore,
		translog:        translog,
		sender:          sender,
		metrics:         m,
		cfg:             cfg,
		overlay:         overlay,
		logOnlyEscalate: actions.NewLogOnlyHandler("ESCALATE", actionLogger.Printf),
		logOnlyReview:   actions.NewLogOnlyHandler("MANUAL_REVIEW", actionLogger.Printf),
	}
	if sender != nil {
		deps.notifyHandler = actions.NewNotifyHandler(sender)
	}

	runtimes := make([]*chainRuntime, 0, len(chains))
	for _, spec := range chains {
		chainLogger := log.New(log.Writer(), fmt.Sprintf("[%s] ", spec.Name), log.LstdFlags)
		cr, err := setupChain(spec, deps, chainLogger)
		if err != nil {
			log.Fatalf("set up chain %s: %v", spec.Name, err)
		}
		runtimes = append(runtimes, cr)
		health.SetChain(spec.Name, "ok")
	}
	primary := runtimes[0]

	buildChainCtx := func(r *http.Request) (rules.ChainContext, error) {
		return buildPrimaryChainContext(r.Context(), primary)
	}

	server := httpapi.NewServer(httpapi.Config{
		Store:           store,
		Engine:          primary.engine,
		BuildChainCtx:   buildChainCtx,
		Executor:        primary.executor,
		DisputeHandler:  primary.disputeHandler,
		EvidenceHandler: primary.evidenceHandler,
		Evidence:        evidenceStore,
		TransparencyLog: translog,
		Webhook:         sender,
		Metrics:         m,
		DryRun:          cfg.DryRun,
		Version:         version,
	})

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		body, err := health.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})
	rootMux.Handle("/", server.Mux())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort),
		Handler: rootMux,
	}

	ctx, cancel := context.WithCancel(context.Background())

	pollInterval := time.Duration(cfg.ScanIntervalMs) * time.Millisecond
	sweepInterval := time.Duration(cfg.AgentScoreIntervalMs) * time.Millisecond
	for _, cr := range runtimes {
		go cr.runEventPoller(ctx, pollInterval, health)
		go cr.runIdentityPoller(ctx, pollInterval)
		go cr.runAgentSweep(ctx, sweepInterval)
	}
	if sender != nil && cfg.WebhookSendHeartbeat {
		go sender.RunHeartbeat(ctx)
	}

	go func() {
		log.Printf("http api listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	log.Printf("watchtower running: %d chain(s), dry_run=%v", len(runtimes), cfg.DryRun)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutdown signal received, stopping")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}

	log.Println("watchtower stopped")
}
