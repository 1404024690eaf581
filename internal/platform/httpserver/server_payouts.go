package httpserver

import (
	"errors"
	"net/http"

	payouterrors "revuhub/contexts/finance-core/payout-engine/domain/errors"
	payouthttp "revuhub/contexts/finance-core/payout-engine/transport/http"
)

func writePayoutError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, payouthttp.ErrorResponse{Code: code, Message: message})
}

func writePayoutDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payouterrors.ErrInvalidPayoutInput):
		writePayoutError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, payouterrors.ErrSettlementNotFound):
		writePayoutError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, payouterrors.ErrAlreadySettled):
		writePayoutError(w, http.StatusConflict, "already_settled", err.Error())
	case errors.Is(err, payouterrors.ErrConflict):
		writePayoutError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writePayoutError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	resp, err := s.payouts.Handler.GetSettlementHandler(r.Context(), r.PathValue("job_id"))
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	resp, err := s.payouts.Handler.EarningsHandler(r.Context(), r.PathValue("creator_id"))
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreatorStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.payouts.Handler.StatsHandler(r.Context(), r.PathValue("creator_id"))
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
