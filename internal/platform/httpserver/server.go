package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	campaignservice "revuhub/contexts/campaign-ops/campaign-service"
	jobservice "revuhub/contexts/campaign-ops/job-service"
	pricingservice "revuhub/contexts/creator-network/pricing-service"
	payoutengine "revuhub/contexts/finance-core/payout-engine"
	tokenledger "revuhub/contexts/finance-core/token-ledger"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "revuhub/internal/platform/httpserver/docs"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	wallet    tokenledger.Module
	campaigns campaignservice.Module
	jobs      jobservice.Module
	payouts   payoutengine.Module
	pricing   pricingservice.Module
}

func New(
	wallet tokenledger.Module,
	campaigns campaignservice.Module,
	jobs jobservice.Module,
	payouts payoutengine.Module,
	pricing pricingservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		wallet:    wallet,
		campaigns: campaigns,
		jobs:      jobs,
		payouts:   payouts,
		pricing:   pricing,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the route table for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/shops/{shop_id}/wallet/credit", s.handleWalletCredit)
	s.mux.HandleFunc("GET /api/shops/{shop_id}/wallet/balance", s.handleWalletBalance)
	s.mux.HandleFunc("GET /api/shops/{shop_id}/wallet/expiring", s.handleWalletExpiring)
	s.mux.HandleFunc("GET /api/shops/{shop_id}/wallet/usage", s.handleWalletUsage)

	s.mux.HandleFunc("POST /api/campaigns", s.handleOpenCampaign)
	s.mux.HandleFunc("GET /api/campaigns", s.handleListCampaigns)
	s.mux.HandleFunc("GET /api/campaigns/{campaign_id}", s.handleGetCampaign)
	s.mux.HandleFunc("POST /api/campaigns/{campaign_id}/status", s.handleCampaignStatus)

	s.mux.HandleFunc("POST /api/campaigns/{campaign_id}/jobs", s.handleAcceptJob)
	s.mux.HandleFunc("POST /api/campaigns/{campaign_id}/proposals", s.handleProposeJob)
	s.mux.HandleFunc("GET /api/campaigns/{campaign_id}/jobs", s.handleListCampaignJobs)
	s.mux.HandleFunc("POST /api/jobs/{job_id}/accept", s.handleAcceptProposal)
	s.mux.HandleFunc("POST /api/jobs/{job_id}/start", s.handleStartJob)
	s.mux.HandleFunc("POST /api/jobs/{job_id}/submit", s.handleSubmitJob)
	s.mux.HandleFunc("POST /api/jobs/{job_id}/approve", s.handleApproveJob)
	s.mux.HandleFunc("POST /api/jobs/{job_id}/reject", s.handleRejectJob)
	s.mux.HandleFunc("POST /api/jobs/{job_id}/cancel", s.handleCancelJob)
	s.mux.HandleFunc("GET /api/jobs/{job_id}", s.handleGetJob)
	s.mux.HandleFunc("GET /api/jobs/{job_id}/settlement", s.handleGetSettlement)

	s.mux.HandleFunc("POST /api/creators/{creator_id}/pricing", s.handleOpenPriceRange)
	s.mux.HandleFunc("GET /api/creators/{creator_id}/pricing", s.handleCurrentPriceRange)
	s.mux.HandleFunc("GET /api/creators/{creator_id}/pricing/history", s.handlePriceHistory)
	s.mux.HandleFunc("GET /api/creators/{creator_id}/jobs", s.handleListCreatorJobs)
	s.mux.HandleFunc("GET /api/creators/{creator_id}/earnings", s.handleEarnings)
	s.mux.HandleFunc("GET /api/creators/{creator_id}/stats", s.handleCreatorStats)
}

func (s *Server) decodeJSON(
	w http.ResponseWriter,
	r *http.Request,
	dst any,
	writeErr func(http.ResponseWriter, int, string, string),
) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
