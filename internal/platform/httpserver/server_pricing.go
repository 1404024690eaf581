package httpserver

import (
	"errors"
	"net/http"
	"strings"

	pricingerrors "revuhub/contexts/creator-network/pricing-service/domain/errors"
	pricinghttp "revuhub/contexts/creator-network/pricing-service/transport/http"
)

func writePricingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pricinghttp.ErrorResponse{Code: code, Message: message})
}

func writePricingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricingerrors.ErrInvalidPriceInput),
		errors.Is(err, pricingerrors.ErrInvalidPriceRange):
		writePricingError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, pricingerrors.ErrNoPriceSet):
		writePricingError(w, http.StatusNotFound, "no_price_set", err.Error())
	case errors.Is(err, pricingerrors.ErrConflict):
		writePricingError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writePricingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleOpenPriceRange(w http.ResponseWriter, r *http.Request) {
	var req pricinghttp.OpenRangeRequest
	if !s.decodeJSON(w, r, &req, writePricingError) {
		return
	}

	creatorID := r.PathValue("creator_id")
	changedBy := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if changedBy == "" {
		changedBy = creatorID
	}

	resp, err := s.pricing.Handler.OpenRangeHandler(r.Context(), creatorID, changedBy, req)
	if err != nil {
		writePricingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrentPriceRange(w http.ResponseWriter, r *http.Request) {
	resp, err := s.pricing.Handler.CurrentRangeHandler(r.Context(), r.PathValue("creator_id"))
	if err != nil {
		writePricingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	resp, err := s.pricing.Handler.HistoryHandler(r.Context(), r.PathValue("creator_id"))
	if err != nil {
		writePricingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
