package commands

import (
	"context"
	"log/slog"
	"strings"

	application "revuhub/contexts/campaign-ops/campaign-service/application"
	"revuhub/contexts/campaign-ops/campaign-service/domain/entities"
	domainerrors "revuhub/contexts/campaign-ops/campaign-service/domain/errors"
	"revuhub/contexts/campaign-ops/campaign-service/ports"
)

type ChangeStatusCommand struct {
	CampaignID string
	ActorID    string
	ToStatus   entities.CampaignStatus
	Reason     string
}

type ChangeStatusUseCase struct {
	Campaigns ports.CampaignRepository
	History   ports.HistoryRepository
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc ChangeStatusUseCase) Execute(ctx context.Context, cmd ChangeStatusCommand) (entities.Campaign, error) {
	if !entities.IsSupportedStatus(cmd.ToStatus) {
		return entities.Campaign{}, domainerrors.ErrInvalidCampaignInput
	}
	campaign, err := uc.Campaigns.GetCampaign(ctx, strings.TrimSpace(cmd.CampaignID))
	if err != nil {
		return entities.Campaign{}, err
	}
	if strings.TrimSpace(cmd.ActorID) != "" && campaign.ShopID != strings.TrimSpace(cmd.ActorID) {
		return entities.Campaign{}, domainerrors.ErrInvalidCampaignInput
	}
	if !entities.ValidTransition(campaign.Status, cmd.ToStatus) {
		return entities.Campaign{}, domainerrors.ErrInvalidStateTransition
	}

	now := uc.Clock.Now().UTC()
	fromStatus := campaign.Status
	campaign.Status = cmd.ToStatus
	campaign.UpdatedAt = now
	if campaign.IsTerminal() {
		completedAt := now
		campaign.CompletedAt = &completedAt
	}
	if err := uc.Campaigns.UpdateCampaign(ctx, campaign); err != nil {
		return entities.Campaign{}, err
	}

	historyID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Campaign{}, err
	}
	if err := uc.History.AppendState(ctx, entities.StateHistory{
		HistoryID:    historyID,
		CampaignID:   campaign.CampaignID,
		FromState:    fromStatus,
		ToState:      campaign.Status,
		ChangedBy:    strings.TrimSpace(cmd.ActorID),
		ChangeReason: strings.TrimSpace(cmd.Reason),
		CreatedAt:    now,
	}); err != nil {
		return entities.Campaign{}, err
	}

	if uc.Outbox != nil {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Campaign{}, err
		}
		envelope, err := newCampaignEnvelope(eventID, "campaign.status_changed", campaign.CampaignID, now, map[string]any{
			"campaign_id": campaign.CampaignID,
			"from_status": string(fromStatus),
			"to_status":   string(campaign.Status),
			"reason":      strings.TrimSpace(cmd.Reason),
		})
		if err != nil {
			return entities.Campaign{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return entities.Campaign{}, err
		}
	}

	application.ResolveLogger(uc.Logger).Info("campaign status changed",
		"event", "campaign_status_changed",
		"module", "campaign-ops/campaign-service",
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"from_status", string(fromStatus),
		"to_status", string(campaign.Status),
	)
	return campaign, nil
}
