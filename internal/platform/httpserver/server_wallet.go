package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	walleterrors "revuhub/contexts/finance-core/token-ledger/domain/errors"
	wallethttp "revuhub/contexts/finance-core/token-ledger/transport/http"
)

func writeWalletError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, wallethttp.ErrorResponse{Code: code, Message: message})
}

func writeWalletDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, walleterrors.ErrInvalidShopID),
		errors.Is(err, walleterrors.ErrInvalidAmount),
		errors.Is(err, walleterrors.ErrInvalidExpiry):
		writeWalletError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, walleterrors.ErrInsufficientBalance):
		writeWalletError(w, http.StatusPaymentRequired, "insufficient_balance", err.Error())
	case errors.Is(err, walleterrors.ErrIdempotencyKeyConflict),
		errors.Is(err, walleterrors.ErrConflict):
		writeWalletError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeWalletError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleWalletCredit(w http.ResponseWriter, r *http.Request) {
	shopID := r.PathValue("shop_id")
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	var req wallethttp.CreditRequest
	if !s.decodeJSON(w, r, &req, writeWalletError) {
		return
	}

	resp, err := s.wallet.Handler.CreditHandler(r.Context(), shopID, idempotencyKey, req)
	if err != nil {
		writeWalletDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	resp, err := s.wallet.Handler.BalanceHandler(r.Context(), r.PathValue("shop_id"))
	if err != nil {
		writeWalletDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWalletExpiring(w http.ResponseWriter, r *http.Request) {
	windowDays := 0
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeWalletError(w, http.StatusBadRequest, "invalid_window", "window_days must be an integer")
			return
		}
		windowDays = parsed
	}

	resp, err := s.wallet.Handler.ExpiringHandler(r.Context(), r.PathValue("shop_id"), windowDays)
	if err != nil {
		writeWalletDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWalletUsage(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeWalletError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.wallet.Handler.UsageHandler(r.Context(), r.PathValue("shop_id"), limit)
	if err != nil {
		writeWalletDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
