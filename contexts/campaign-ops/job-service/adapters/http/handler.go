package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"revuhub/contexts/campaign-ops/job-service/application"
	"revuhub/contexts/campaign-ops/job-service/domain/entities"
	httptransport "revuhub/contexts/campaign-ops/job-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) ProposeHandler(
	ctx context.Context,
	creatorID string,
	idempotencyKey string,
	req httptransport.AssignmentRequest,
) (httptransport.JobResponse, error) {
	job, replayed, err := h.Service.Propose(ctx, idempotencyKey, application.AssignmentInput{
		CampaignID:  req.CampaignID,
		CreatorID:   creatorID,
		AgreedPrice: req.AgreedPrice,
		ActorID:     creatorID,
	})
	if err != nil {
		return httptransport.JobResponse{}, err
	}
	return httptransport.JobResponse{
		Status:   "success",
		Replayed: replayed,
		Data:     toJobDTO(job),
	}, nil
}

func (h Handler) AcceptHandler(
	ctx context.Context,
	actorID string,
	idempotencyKey string,
	req httptransport.AssignmentRequest,
) (httptransport.JobResponse, error) {
	job, replayed, err := h.Service.Accept(ctx, idempotencyKey, application.AssignmentInput{
		CampaignID:  req.CampaignID,
		CreatorID:   req.CreatorID,
		AgreedPrice: req.AgreedPrice,
		ActorID:     actorID,
	})
	if err != nil {
		return httptransport.JobResponse{}, err
	}
	return httptransport.JobResponse{
		Status:   "success",
		Replayed: replayed,
		Data:     toJobDTO(job),
	}, nil
}

func (h Handler) AcceptProposalHandler(ctx context.Context, jobID, actorID string) (httptransport.JobResponse, error) {
	job, err := h.Service.AcceptProposal(ctx, jobID, actorID)
	if err != nil {
		return httptransport.JobResponse{}, err
	}
	return successResponse(job), nil
}

func (h Handler) StartHandler(ctx context.Context, jobID, actorID string) (httptransport.JobResponse, error) {
	job, err := h.Service.Start(ctx, jobID, actorID)
	if err != nil {
		return httptransport.JobResponse{}, err
	}
	return successResponse(job), nil
}

func (h Handler) SubmitHandler(
	ctx context.Context,
	jobID string,
	actorID string,
	req httptransport.SubmitRequest,
) (httptransport.JobResponse, error) {
	job, err := h.Service.Submit(ctx, jobID, application.SubmissionInput{
		ReviewLink:  req.ReviewLink,
		ReviewNotes: req.ReviewNotes,
		ActorID:     actorID,
	})
	if err != nil {
		return httptransport.JobResponse{}, err
	}
	return successResponse(job), nil
}

func (h Handler) ApproveHandler(ctx context.Context, jobID, actorID string) (httptransport.JobResponse, error) {
	job, err := h.Service.Approve(ctx, jobID, actorID)
	if err != nil {
		return httptransport.JobResponse{}, err
	}
	return successResponse(job), nil
}

func (h Handler) RejectHandler(
	ctx context.Context,
	jobID string,
	actorID string,
	req httptransport.CloseRequest,
) (httptransport.JobResponse, error) {
	job, err := h.Service.Reject(ctx, jobID, actorID, req.Reason)
	if err != nil {
		return httptransport.JobResponse{}, err
	}
	return successResponse(job), nil
}

func (h Handler) CancelHandler(
	ctx context.Context,
	jobID string,
	actorID string,
	req httptransport.CloseRequest,
) (httptransport.JobResponse, error) {
	job, err := h.Service.Cancel(ctx, jobID, actorID, req.Reason)
	if err != nil {
		return httptransport.JobResponse{}, err
	}
	return successResponse(job), nil
}

func (h Handler) GetJobHandler(ctx context.Context, jobID string) (httptransport.JobResponse, error) {
	job, err := h.Service.Get(ctx, jobID)
	if err != nil {
		return httptransport.JobResponse{}, err
	}
	return successResponse(job), nil
}

func (h Handler) ListByCampaignHandler(ctx context.Context, campaignID string) (httptransport.ListJobsResponse, error) {
	jobs, err := h.Service.ListByCampaign(ctx, campaignID)
	if err != nil {
		return httptransport.ListJobsResponse{}, err
	}
	return toListResponse(jobs), nil
}

func (h Handler) ListByCreatorHandler(ctx context.Context, creatorID string) (httptransport.ListJobsResponse, error) {
	jobs, err := h.Service.ListByCreator(ctx, creatorID)
	if err != nil {
		return httptransport.ListJobsResponse{}, err
	}
	return toListResponse(jobs), nil
}

func successResponse(job entities.Job) httptransport.JobResponse {
	return httptransport.JobResponse{
		Status: "success",
		Data:   toJobDTO(job),
	}
}

func toListResponse(jobs []entities.Job) httptransport.ListJobsResponse {
	resp := httptransport.ListJobsResponse{
		Status: "success",
		Data:   make([]httptransport.JobDTO, 0, len(jobs)),
	}
	for _, job := range jobs {
		resp.Data = append(resp.Data, toJobDTO(job))
	}
	return resp
}

func toJobDTO(job entities.Job) httptransport.JobDTO {
	dto := httptransport.JobDTO{
		JobID:              job.JobID,
		CampaignID:         job.CampaignID,
		CreatorID:          job.CreatorID,
		AgreedPrice:        job.AgreedPrice,
		Status:             string(job.Status),
		TokensPaid:         job.TokensPaid,
		PlatformCommission: job.PlatformCommission,
		CreatorEarning:     job.CreatorEarning,
		ReviewLink:         job.ReviewLink,
		ReviewNotes:        job.ReviewNotes,
		CloseReason:        job.CloseReason,
		CreatedAt:          job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          job.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if job.AcceptedAt != nil {
		dto.AcceptedAt = job.AcceptedAt.UTC().Format(time.RFC3339)
	}
	if job.StartedAt != nil {
		dto.StartedAt = job.StartedAt.UTC().Format(time.RFC3339)
	}
	if job.SubmittedAt != nil {
		dto.SubmittedAt = job.SubmittedAt.UTC().Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = job.CompletedAt.UTC().Format(time.RFC3339)
	}
	if job.ClosedAt != nil {
		dto.ClosedAt = job.ClosedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
