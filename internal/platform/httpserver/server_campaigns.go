package httpserver

import (
	"errors"
	"net/http"
	"strings"

	campaignerrors "revuhub/contexts/campaign-ops/campaign-service/domain/errors"
	campaignhttp "revuhub/contexts/campaign-ops/campaign-service/transport/http"
	walleterrors "revuhub/contexts/finance-core/token-ledger/domain/errors"
)

func writeCampaignError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, campaignhttp.ErrorResponse{Code: code, Message: message})
}

func writeCampaignDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaignerrors.ErrInvalidCampaignInput),
		errors.Is(err, campaignerrors.ErrInvalidBudgetAmount):
		writeCampaignError(w, http.StatusBadRequest, "invalid_request", err.Error())
	// Opening a campaign debits the shop wallet, so funding failures
	// surface through this mapper too.
	case errors.Is(err, walleterrors.ErrInsufficientBalance):
		writeCampaignError(w, http.StatusPaymentRequired, "insufficient_balance", err.Error())
	case errors.Is(err, campaignerrors.ErrCampaignNotFound):
		writeCampaignError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, campaignerrors.ErrCampaignClosed):
		writeCampaignError(w, http.StatusGone, "campaign_closed", err.Error())
	case errors.Is(err, campaignerrors.ErrInvalidStateTransition):
		writeCampaignError(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
	case errors.Is(err, campaignerrors.ErrIdempotencyKeyConflict),
		errors.Is(err, campaignerrors.ErrConflict):
		writeCampaignError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeCampaignError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func requireShop(w http.ResponseWriter, r *http.Request) (string, bool) {
	shopID := strings.TrimSpace(r.Header.Get("X-Shop-Id"))
	if shopID == "" {
		writeCampaignError(w, http.StatusUnauthorized, "missing_shop", "X-Shop-Id header is required")
		return "", false
	}
	return shopID, true
}

func (s *Server) handleOpenCampaign(w http.ResponseWriter, r *http.Request) {
	shopID, ok := requireShop(w, r)
	if !ok {
		return
	}
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	var req campaignhttp.OpenCampaignRequest
	if !s.decodeJSON(w, r, &req, writeCampaignError) {
		return
	}

	resp, err := s.campaigns.Handler.OpenCampaignHandler(r.Context(), shopID, idempotencyKey, req)
	if err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	resp, err := s.campaigns.Handler.GetCampaignHandler(r.Context(), r.PathValue("campaign_id"))
	if err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.campaigns.Handler.ListCampaignsHandler(r.Context(), query.Get("shop_id"), query.Get("status"))
	if err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCampaignStatus(w http.ResponseWriter, r *http.Request) {
	shopID, ok := requireShop(w, r)
	if !ok {
		return
	}

	var req campaignhttp.StatusActionRequest
	if !s.decodeJSON(w, r, &req, writeCampaignError) {
		return
	}

	resp, err := s.campaigns.Handler.ChangeStatusHandler(r.Context(), r.PathValue("campaign_id"), shopID, req)
	if err != nil {
		writeCampaignDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
