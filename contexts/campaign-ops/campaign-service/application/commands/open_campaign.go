package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "revuhub/contexts/campaign-ops/campaign-service/application"
	"revuhub/contexts/campaign-ops/campaign-service/domain/entities"
	domainerrors "revuhub/contexts/campaign-ops/campaign-service/domain/errors"
	"revuhub/contexts/campaign-ops/campaign-service/ports"
)

type OpenCampaignCommand struct {
	ShopID          string
	IdempotencyKey  string
	Title           string
	Description     string
	TotalBudget     int64
	TargetReviewers int
	StartDate       time.Time
	EndDate         time.Time
}

// OpenCampaignUseCase escrows the full budget out of the shop wallet before
// the campaign row exists. If the wallet debit fails nothing is created; if
// the create itself fails the debit is compensated with a refund.
type OpenCampaignUseCase struct {
	Campaigns      ports.CampaignRepository
	History        ports.HistoryRepository
	Funding        ports.WalletFunding
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func (uc OpenCampaignUseCase) Execute(ctx context.Context, cmd OpenCampaignCommand) (entities.Campaign, bool, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.Clock.Now().UTC()

	campaign := entities.Campaign{
		ShopID:          strings.TrimSpace(cmd.ShopID),
		Title:           strings.TrimSpace(cmd.Title),
		Description:     strings.TrimSpace(cmd.Description),
		TotalBudget:     cmd.TotalBudget,
		RemainingBudget: cmd.TotalBudget,
		TargetReviewers: cmd.TargetReviewers,
		StartDate:       cmd.StartDate.UTC(),
		EndDate:         cmd.EndDate.UTC(),
		Status:          entities.CampaignStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !campaign.ValidateBasics() {
		return entities.Campaign{}, false, domainerrors.ErrInvalidCampaignInput
	}

	requestHash := hashOpenCommand(cmd)
	if key := strings.TrimSpace(cmd.IdempotencyKey); key != "" {
		record, found, err := uc.Idempotency.GetRecord(ctx, key, now)
		if err != nil {
			return entities.Campaign{}, false, err
		}
		if found {
			if record.RequestHash != requestHash {
				return entities.Campaign{}, false, domainerrors.ErrIdempotencyKeyConflict
			}
			var replayed entities.Campaign
			if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
				return entities.Campaign{}, false, err
			}
			return replayed, true, nil
		}
	}

	campaignID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Campaign{}, false, err
	}
	campaign.CampaignID = campaignID

	if err := uc.Funding.Debit(ctx, campaign.ShopID, campaign.TotalBudget, "campaign_funding:"+campaignID); err != nil {
		return entities.Campaign{}, false, err
	}
	if err := uc.Campaigns.CreateCampaign(ctx, campaign); err != nil {
		if refundErr := uc.Funding.Refund(ctx, campaign.ShopID, campaign.TotalBudget, "campaign_funding_rollback:"+campaignID); refundErr != nil {
			logger.Error("campaign funding rollback failed",
				"event", "campaign_funding_rollback_failed",
				"module", "campaign-ops/campaign-service",
				"layer", "application",
				"campaign_id", campaignID,
				"shop_id", campaign.ShopID,
				"error", refundErr.Error(),
			)
		}
		return entities.Campaign{}, false, err
	}

	logID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Campaign{}, false, err
	}
	if err := uc.History.AppendBudget(ctx, entities.BudgetLog{
		LogID:       logID,
		CampaignID:  campaign.CampaignID,
		AmountDelta: campaign.TotalBudget,
		Reason:      "campaign_funded",
		CreatedAt:   now,
	}); err != nil {
		return entities.Campaign{}, false, err
	}

	if uc.Outbox != nil {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Campaign{}, false, err
		}
		envelope, err := newCampaignEnvelope(eventID, "campaign.created", campaign.CampaignID, now, map[string]any{
			"campaign_id":      campaign.CampaignID,
			"shop_id":          campaign.ShopID,
			"budget_total":     campaign.TotalBudget,
			"target_reviewers": campaign.TargetReviewers,
			"start_date":       campaign.StartDate.Format(time.RFC3339),
			"end_date":         campaign.EndDate.Format(time.RFC3339),
		})
		if err != nil {
			return entities.Campaign{}, false, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return entities.Campaign{}, false, err
		}
	}

	if key := strings.TrimSpace(cmd.IdempotencyKey); key != "" {
		payload, err := json.Marshal(campaign)
		if err != nil {
			return entities.Campaign{}, false, err
		}
		ttl := uc.IdempotencyTTL
		if ttl <= 0 {
			ttl = 7 * 24 * time.Hour
		}
		if err := uc.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
			Key:             strings.TrimSpace(cmd.IdempotencyKey),
			RequestHash:     requestHash,
			ResponsePayload: payload,
			ExpiresAt:       now.Add(ttl),
		}); err != nil {
			return entities.Campaign{}, false, err
		}
	}

	logger.Info("campaign opened",
		"event", "campaign_opened",
		"module", "campaign-ops/campaign-service",
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"shop_id", campaign.ShopID,
		"budget_total", campaign.TotalBudget,
	)
	return campaign, false, nil
}

func hashOpenCommand(cmd OpenCampaignCommand) string {
	raw, _ := json.Marshal(map[string]any{
		"shop_id":          strings.TrimSpace(cmd.ShopID),
		"title":            strings.TrimSpace(cmd.Title),
		"total_budget":     cmd.TotalBudget,
		"target_reviewers": cmd.TargetReviewers,
		"start_date":       cmd.StartDate.UTC().Format(time.RFC3339Nano),
		"end_date":         cmd.EndDate.UTC().Format(time.RFC3339Nano),
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
