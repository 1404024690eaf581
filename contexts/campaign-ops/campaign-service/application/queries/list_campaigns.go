package queries

import (
	"context"
	"log/slog"

	"revuhub/contexts/campaign-ops/campaign-service/domain/entities"
	"revuhub/contexts/campaign-ops/campaign-service/ports"
)

type ListCampaignsUseCase struct {
	Campaigns ports.CampaignRepository
	Logger    *slog.Logger
}

func (uc ListCampaignsUseCase) Execute(ctx context.Context, filter ports.CampaignFilter) ([]entities.Campaign, error) {
	return uc.Campaigns.ListCampaigns(ctx, filter)
}
