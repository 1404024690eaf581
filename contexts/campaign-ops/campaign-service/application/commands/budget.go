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

// ReserveBudgetUseCase is the linchpin against over-allocation: the
// repository performs the check-and-decrement as one atomic unit, so under
// concurrent reservations only the ones that fit the remaining budget win.
type ReserveBudgetUseCase struct {
	Budget ports.BudgetRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc ReserveBudgetUseCase) Execute(ctx context.Context, campaignID string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, domainerrors.ErrInvalidBudgetAmount
	}
	now := uc.Clock.Now().UTC()
	campaign, ok, err := uc.Budget.ReserveBudget(ctx, strings.TrimSpace(campaignID), amount, now)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := uc.appendBudgetUpdated(ctx, campaign); err != nil {
		return false, err
	}
	application.ResolveLogger(uc.Logger).Info("campaign budget reserved",
		"event", "campaign_budget_reserved",
		"module", "campaign-ops/campaign-service",
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"amount", amount,
		"budget_remaining", campaign.RemainingBudget,
	)
	return true, nil
}

func (uc ReserveBudgetUseCase) appendBudgetUpdated(ctx context.Context, campaign entities.Campaign) error {
	return appendBudgetUpdated(ctx, uc.Outbox, uc.IDGen, uc.Clock, campaign)
}

// ReleaseBudgetUseCase returns a reservation to the remaining budget when a
// job closes before payout. The repository caps the result at the total.
type ReleaseBudgetUseCase struct {
	Budget ports.BudgetRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc ReleaseBudgetUseCase) Execute(ctx context.Context, campaignID string, amount int64) error {
	if amount <= 0 {
		return domainerrors.ErrInvalidBudgetAmount
	}
	now := uc.Clock.Now().UTC()
	campaign, err := uc.Budget.ReleaseBudget(ctx, strings.TrimSpace(campaignID), amount, now)
	if err != nil {
		return err
	}

	if err := appendBudgetUpdated(ctx, uc.Outbox, uc.IDGen, uc.Clock, campaign); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("campaign budget released",
		"event", "campaign_budget_released",
		"module", "campaign-ops/campaign-service",
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"amount", amount,
		"budget_remaining", campaign.RemainingBudget,
	)
	return nil
}

// SettleBudgetUseCase records a completed payout for audit. The remaining
// counter is untouched: the tokens left the wallet when the campaign was
// funded.
type SettleBudgetUseCase struct {
	Budget ports.BudgetRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc SettleBudgetUseCase) Execute(ctx context.Context, campaignID string, amount int64) error {
	if amount <= 0 {
		return domainerrors.ErrInvalidBudgetAmount
	}
	now := uc.Clock.Now().UTC()
	campaign, err := uc.Budget.SettleBudget(ctx, strings.TrimSpace(campaignID), amount, now)
	if err != nil {
		return err
	}

	if err := appendBudgetUpdated(ctx, uc.Outbox, uc.IDGen, uc.Clock, campaign); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("campaign budget settled",
		"event", "campaign_budget_settled",
		"module", "campaign-ops/campaign-service",
		"layer", "application",
		"campaign_id", campaign.CampaignID,
		"amount", amount,
		"budget_spent", campaign.SpentBudget,
	)
	return nil
}

func appendBudgetUpdated(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idgen ports.IDGenerator,
	clock ports.Clock,
	campaign entities.Campaign,
) error {
	if outbox == nil {
		return nil
	}
	eventID, err := idgen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newCampaignEnvelope(
		eventID,
		"campaign.budget_updated",
		campaign.CampaignID,
		clock.Now().UTC(),
		budgetEventPayload(campaign.CampaignID, campaign.TotalBudget, campaign.RemainingBudget, campaign.SpentBudget),
	)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, envelope)
}
