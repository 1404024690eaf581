package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"revuhub/contexts/campaign-ops/campaign-service/application/commands"
	"revuhub/contexts/campaign-ops/campaign-service/application/queries"
	"revuhub/contexts/campaign-ops/campaign-service/domain/entities"
	domainerrors "revuhub/contexts/campaign-ops/campaign-service/domain/errors"
	"revuhub/contexts/campaign-ops/campaign-service/ports"
	httptransport "revuhub/contexts/campaign-ops/campaign-service/transport/http"
)

type Handler struct {
	OpenCampaign  commands.OpenCampaignUseCase
	ChangeStatus  commands.ChangeStatusUseCase
	GetCampaign   queries.GetCampaignUseCase
	ListCampaigns queries.ListCampaignsUseCase
	Logger        *slog.Logger
}

func (h Handler) OpenCampaignHandler(
	ctx context.Context,
	shopID string,
	idempotencyKey string,
	req httptransport.OpenCampaignRequest,
) (httptransport.OpenCampaignResponse, error) {
	startDate, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		return httptransport.OpenCampaignResponse{}, domainerrors.ErrInvalidCampaignInput
	}
	endDate, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		return httptransport.OpenCampaignResponse{}, domainerrors.ErrInvalidCampaignInput
	}

	campaign, replayed, err := h.OpenCampaign.Execute(ctx, commands.OpenCampaignCommand{
		ShopID:          shopID,
		IdempotencyKey:  idempotencyKey,
		Title:           req.Title,
		Description:     req.Description,
		TotalBudget:     req.TotalBudget,
		TargetReviewers: req.TargetReviewers,
		StartDate:       startDate,
		EndDate:         endDate,
	})
	if err != nil {
		return httptransport.OpenCampaignResponse{}, err
	}
	return httptransport.OpenCampaignResponse{
		Status:   "success",
		Replayed: replayed,
		Data:     toCampaignDTO(campaign),
	}, nil
}

func (h Handler) ChangeStatusHandler(
	ctx context.Context,
	campaignID string,
	actorID string,
	req httptransport.StatusActionRequest,
) (httptransport.GetCampaignResponse, error) {
	campaign, err := h.ChangeStatus.Execute(ctx, commands.ChangeStatusCommand{
		CampaignID: campaignID,
		ActorID:    actorID,
		ToStatus:   entities.CampaignStatus(req.Status),
		Reason:     req.Reason,
	})
	if err != nil {
		return httptransport.GetCampaignResponse{}, err
	}
	return httptransport.GetCampaignResponse{
		Status: "success",
		Data:   toCampaignDTO(campaign),
	}, nil
}

func (h Handler) GetCampaignHandler(ctx context.Context, campaignID string) (httptransport.GetCampaignResponse, error) {
	campaign, err := h.GetCampaign.Execute(ctx, campaignID)
	if err != nil {
		return httptransport.GetCampaignResponse{}, err
	}
	return httptransport.GetCampaignResponse{
		Status: "success",
		Data:   toCampaignDTO(campaign),
	}, nil
}

func (h Handler) ListCampaignsHandler(
	ctx context.Context,
	shopID string,
	status string,
) (httptransport.ListCampaignsResponse, error) {
	campaigns, err := h.ListCampaigns.Execute(ctx, ports.CampaignFilter{
		ShopID: shopID,
		Status: entities.CampaignStatus(status),
	})
	if err != nil {
		return httptransport.ListCampaignsResponse{}, err
	}
	resp := httptransport.ListCampaignsResponse{
		Status: "success",
		Data:   make([]httptransport.CampaignDTO, 0, len(campaigns)),
	}
	for _, campaign := range campaigns {
		resp.Data = append(resp.Data, toCampaignDTO(campaign))
	}
	return resp, nil
}

func toCampaignDTO(campaign entities.Campaign) httptransport.CampaignDTO {
	dto := httptransport.CampaignDTO{
		CampaignID:      campaign.CampaignID,
		ShopID:          campaign.ShopID,
		Title:           campaign.Title,
		Description:     campaign.Description,
		TotalBudget:     campaign.TotalBudget,
		RemainingBudget: campaign.RemainingBudget,
		SpentBudget:     campaign.SpentBudget,
		TargetReviewers: campaign.TargetReviewers,
		StartDate:       campaign.StartDate.UTC().Format(time.RFC3339),
		EndDate:         campaign.EndDate.UTC().Format(time.RFC3339),
		Status:          string(campaign.Status),
		CreatedAt:       campaign.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       campaign.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if campaign.CompletedAt != nil {
		dto.CompletedAt = campaign.CompletedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
