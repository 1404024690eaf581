package httpserver

import (
	"errors"
	"net/http"
	"strings"

	campaignerrors "revuhub/contexts/campaign-ops/campaign-service/domain/errors"
	joberrors "revuhub/contexts/campaign-ops/job-service/domain/errors"
	jobhttp "revuhub/contexts/campaign-ops/job-service/transport/http"
	payouterrors "revuhub/contexts/finance-core/payout-engine/domain/errors"
)

func writeJobError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, jobhttp.ErrorResponse{Code: code, Message: message})
}

func writeJobDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, joberrors.ErrInvalidJobInput):
		writeJobError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, joberrors.ErrJobNotFound):
		writeJobError(w, http.StatusNotFound, "not_found", err.Error())
	// Budget reservations go through the campaign service, so its errors
	// can surface on job creation.
	case errors.Is(err, campaignerrors.ErrCampaignNotFound):
		writeJobError(w, http.StatusNotFound, "campaign_not_found", err.Error())
	case errors.Is(err, campaignerrors.ErrCampaignClosed):
		writeJobError(w, http.StatusGone, "campaign_closed", err.Error())
	case errors.Is(err, joberrors.ErrDuplicateAssignment):
		writeJobError(w, http.StatusConflict, "duplicate_assignment", err.Error())
	case errors.Is(err, joberrors.ErrBudgetExhausted):
		writeJobError(w, http.StatusConflict, "budget_exhausted", err.Error())
	case errors.Is(err, payouterrors.ErrAlreadySettled):
		writeJobError(w, http.StatusConflict, "already_settled", err.Error())
	case errors.Is(err, joberrors.ErrInvalidStateTransition):
		writeJobError(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
	case errors.Is(err, joberrors.ErrIdempotencyKeyConflict),
		errors.Is(err, joberrors.ErrConflict),
		errors.Is(err, campaignerrors.ErrConflict):
		writeJobError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeJobError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if actorID == "" {
		writeJobError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return actorID, true
}

func (s *Server) handleAcceptJob(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	var req jobhttp.AssignmentRequest
	if !s.decodeJSON(w, r, &req, writeJobError) {
		return
	}
	req.CampaignID = r.PathValue("campaign_id")
	if strings.TrimSpace(req.CreatorID) == "" {
		req.CreatorID = actorID
	}

	resp, err := s.jobs.Handler.AcceptHandler(r.Context(), actorID, idempotencyKey, req)
	if err != nil {
		writeJobDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleProposeJob(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	var req jobhttp.AssignmentRequest
	if !s.decodeJSON(w, r, &req, writeJobError) {
		return
	}
	req.CampaignID = r.PathValue("campaign_id")

	resp, err := s.jobs.Handler.ProposeHandler(r.Context(), creatorID, idempotencyKey, req)
	if err != nil {
		writeJobDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleAcceptProposal(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	resp, err := s.jobs.Handler.AcceptProposalHandler(r.Context(), r.PathValue("job_id"), actorID)
	if err != nil {
		writeJobDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	resp, err := s.jobs.Handler.StartHandler(r.Context(), r.PathValue("job_id"), actorID)
	if err != nil {
		writeJobDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req jobhttp.SubmitRequest
	if !s.decodeJSON(w, r, &req, writeJobError) {
		return
	}

	resp, err := s.jobs.Handler.SubmitHandler(r.Context(), r.PathValue("job_id"), actorID, req)
	if err != nil {
		writeJobDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApproveJob(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	resp, err := s.jobs.Handler.ApproveHandler(r.Context(), r.PathValue("job_id"), actorID)
	if err != nil {
		writeJobDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRejectJob(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req jobhttp.CloseRequest
	if !s.decodeJSON(w, r, &req, writeJobError) {
		return
	}

	resp, err := s.jobs.Handler.RejectHandler(r.Context(), r.PathValue("job_id"), actorID, req)
	if err != nil {
		writeJobDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req jobhttp.CloseRequest
	if !s.decodeJSON(w, r, &req, writeJobError) {
		return
	}

	resp, err := s.jobs.Handler.CancelHandler(r.Context(), r.PathValue("job_id"), actorID, req)
	if err != nil {
		writeJobDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	resp, err := s.jobs.Handler.GetJobHandler(r.Context(), r.PathValue("job_id"))
	if err != nil {
		writeJobDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCampaignJobs(w http.ResponseWriter, r *http.Request) {
	resp, err := s.jobs.Handler.ListByCampaignHandler(r.Context(), r.PathValue("campaign_id"))
	if err != nil {
		writeJobDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCreatorJobs(w http.ResponseWriter, r *http.Request) {
	resp, err := s.jobs.Handler.ListByCreatorHandler(r.Context(), r.PathValue("creator_id"))
	if err != nil {
		writeJobDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
