// Copyright 2025 Certen Protocol
//
// Server wires every HTTP dependency (storage, rule engine, action
// executor, transparency log, metrics) behind one mux, following the
// prefix-route-then-strip-inside-the-handler idiom this module's
// predecessor uses for its REST surface.

package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen-labs/watchtower/pkg/actions"
	"github.com/certen-labs/watchtower/pkg/evidence"
	"github.com/certen-labs/watchtower/pkg/metrics"
	"github.com/certen-labs/watchtower/pkg/rules"
	"github.com/certen-labs/watchtower/pkg/storage"
	"github.com/certen-labs/watchtower/pkg/transparency"
	"github.com/certen-labs/watchtower/pkg/webhook"
)

// ChainContextFunc builds a fresh rules.ChainContext snapshot for a
// manual /scan call.
type ChainContextFunc func(r *http.Request) (rules.ChainContext, error)

// Config bundles every dependency the HTTP surface needs.
type Config struct {
	Store           *storage.Store
	Engine          *rules.Engine
	BuildChainCtx   ChainContextFunc
	Executor        *actions.Executor
	DisputeHandler  *actions.DisputeHandler
	EvidenceHandler *actions.EvidenceHandler
	Evidence        *evidence.Store
	TransparencyLog *transparency.Log
	Webhook         *webhook.Sender
	Metrics         *metrics.Metrics
	DryRun          bool
	Version         string
	Logger          *log.Logger
}

// Server holds the wired dependencies and exposes the routed mux.
type Server struct {
	cfg       Config
	logger    *log.Logger
	startedAt time.Time

	agents        *AgentsHandlers
	receipts      *ReceiptsHandlers
	transparency  *TransparencyHandlers
	scan          *ScanHandlers
	actionsRoutes *ActionsHandlers
}

// NewServer constructs a Server. A nil logger defaults to a
// "[HTTPAPI] "-prefixed stdlib logger, matching the per-component
// logger convention used throughout this module.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTPAPI] ", log.LstdFlags)
	}
	s := &Server{cfg: cfg, logger: logger, startedAt: time.Now()}
	s.agents = &AgentsHandlers{store: cfg.Store, logger: logger}
	s.receipts = &ReceiptsHandlers{
		store:           cfg.Store,
		transparencyLog: cfg.TransparencyLog,
		webhook:         cfg.Webhook,
		logger:          logger,
	}
	s.transparency = &TransparencyHandlers{log: cfg.TransparencyLog, logger: logger}
	s.scan = &ScanHandlers{
		engine:        cfg.Engine,
		buildChainCtx: cfg.BuildChainCtx,
		executor:      cfg.Executor,
		metrics:       cfg.Metrics,
		logger:        logger,
	}
	s.actionsRoutes = &ActionsHandlers{
		disputeHandler:  cfg.DisputeHandler,
		evidenceHandler: cfg.EvidenceHandler,
		dryRun:          cfg.DryRun,
		metrics:         cfg.Metrics,
		logger:          logger,
	}
	return s
}

// Mux builds the routed http.ServeMux for this server.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)

	mux.HandleFunc("/v1/agents", s.agents.HandleListAgents)
	mux.HandleFunc("/v1/agents/", s.agents.HandleAgentSubresource)

	mux.HandleFunc("/v1/receipts/ingest", s.receipts.HandleIngest)

	mux.HandleFunc("/v1/transparency/leaves", s.transparency.HandleLeaves)
	mux.HandleFunc("/v1/transparency/status", s.transparency.HandleStatus)

	mux.HandleFunc("/scan", s.scan.HandleScan)

	mux.HandleFunc("/actions/open-dispute", s.actionsRoutes.HandleOpenDispute)
	mux.HandleFunc("/actions/submit-evidence", s.actionsRoutes.HandleSubmitEvidence)

	return mux
}

type healthzResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptimeSeconds"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, healthzResponse{
		Status:  "ok",
		Version: s.cfg.Version,
		UptimeS: int64(time.Since(s.startedAt).Seconds()),
	})
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
