package application

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"revuhub/contexts/finance-core/payout-engine/domain/entities"
	domainerrors "revuhub/contexts/finance-core/payout-engine/domain/errors"
	"revuhub/contexts/finance-core/payout-engine/ports"
	"revuhub/internal/shared/events"
)

const sourceService = "payout-engine"

type SettleInput struct {
	JobID       string
	CampaignID  string
	CreatorID   string
	GrossAmount int64
}

type Service struct {
	Payouts        ports.PayoutRepository
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	CommissionRate float64
	HoldDuration   time.Duration
	Logger         *slog.Logger
}

// Settle splits the gross amount into platform commission and creator
// earning, records the settlement, and puts the earning on hold. Exactly one
// settlement can exist per job; a repeat call fails with ErrAlreadySettled and
// changes nothing.
func (s Service) Settle(ctx context.Context, input SettleInput) (entities.Settlement, error) {
	jobID := strings.TrimSpace(input.JobID)
	creatorID := strings.TrimSpace(input.CreatorID)
	if jobID == "" || creatorID == "" {
		return entities.Settlement{}, domainerrors.ErrInvalidPayoutInput
	}
	if input.GrossAmount <= 0 {
		return entities.Settlement{}, domainerrors.ErrInvalidPayoutInput
	}

	now := s.now()
	rate := s.commissionRate()
	commission := int64(math.Round(float64(input.GrossAmount) * rate))
	earningAmount := input.GrossAmount - commission

	settlementID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Settlement{}, err
	}
	earningID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Settlement{}, err
	}

	settlement := entities.Settlement{
		SettlementID:       settlementID,
		JobID:              jobID,
		CampaignID:         strings.TrimSpace(input.CampaignID),
		CreatorID:          creatorID,
		GrossAmount:        input.GrossAmount,
		CommissionRate:     rate,
		PlatformCommission: commission,
		CreatorEarning:     earningAmount,
		SettledAt:          now,
	}
	earning := entities.Earning{
		EarningID:   earningID,
		CreatorID:   creatorID,
		JobID:       jobID,
		CampaignID:  settlement.CampaignID,
		Amount:      earningAmount,
		Status:      entities.EarningStatusPending,
		CreatedAt:   now,
		AvailableAt: now.Add(s.holdDuration()),
	}

	if err := s.Payouts.RecordSettlement(ctx, settlement, earning); err != nil {
		return entities.Settlement{}, err
	}

	if err := s.appendPayoutOutbox(ctx, "payout.settled", settlement); err != nil {
		return entities.Settlement{}, err
	}

	ResolveLogger(s.Logger).Info("payout settled",
		"event", "payout_settled",
		"module", "finance-core/payout-engine",
		"layer", "application",
		"job_id", settlement.JobID,
		"creator_id", settlement.CreatorID,
		"gross_amount", settlement.GrossAmount,
		"platform_commission", settlement.PlatformCommission,
		"creator_earning", settlement.CreatorEarning,
	)
	return settlement, nil
}

// Void reverses a recorded settlement: the settlement and its earning are
// removed and the creator stats bump is undone. Callers use it to compensate
// a settlement whose job never reached completed. Voiding a job with no
// settlement fails with ErrSettlementNotFound.
func (s Service) Void(ctx context.Context, jobID string) (entities.Settlement, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return entities.Settlement{}, domainerrors.ErrInvalidPayoutInput
	}

	settlement, err := s.Payouts.VoidSettlement(ctx, jobID)
	if err != nil {
		return entities.Settlement{}, err
	}

	if err := s.appendPayoutOutbox(ctx, "payout.voided", settlement); err != nil {
		return entities.Settlement{}, err
	}

	ResolveLogger(s.Logger).Info("payout voided",
		"event", "payout_voided",
		"module", "finance-core/payout-engine",
		"layer", "application",
		"job_id", settlement.JobID,
		"creator_id", settlement.CreatorID,
		"creator_earning", settlement.CreatorEarning,
	)
	return settlement, nil
}

func (s Service) GetSettlement(ctx context.Context, jobID string) (entities.Settlement, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return entities.Settlement{}, domainerrors.ErrInvalidPayoutInput
	}
	return s.Payouts.GetSettlementByJob(ctx, jobID)
}

// EarningsSummary classifies earnings by the clock, not the stored status, so
// an earning whose hold elapsed counts as available even before the release
// worker touches its row.
func (s Service) EarningsSummary(ctx context.Context, creatorID string) (entities.EarningsSummary, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return entities.EarningsSummary{}, domainerrors.ErrInvalidPayoutInput
	}
	earnings, err := s.Payouts.ListEarnings(ctx, creatorID)
	if err != nil {
		return entities.EarningsSummary{}, err
	}

	now := s.now()
	summary := entities.EarningsSummary{Entries: earnings}
	for _, earning := range earnings {
		summary.TotalEarned += earning.Amount
		if earning.AvailableNow(now) {
			summary.Available += earning.Amount
		} else {
			summary.Pending += earning.Amount
		}
	}
	sort.Slice(summary.Entries, func(i, j int) bool {
		return summary.Entries[i].CreatedAt.After(summary.Entries[j].CreatedAt)
	})
	return summary, nil
}

func (s Service) Stats(ctx context.Context, creatorID string) (entities.CreatorStats, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return entities.CreatorStats{}, domainerrors.ErrInvalidPayoutInput
	}
	return s.Payouts.GetStats(ctx, creatorID)
}

func (s Service) appendPayoutOutbox(ctx context.Context, eventType string, settlement entities.Settlement) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, eventType, sourceService, "job_id", settlement.JobID, settlement.SettledAt, map[string]any{
		"job_id":              settlement.JobID,
		"campaign_id":         settlement.CampaignID,
		"creator_id":          settlement.CreatorID,
		"gross_amount":        settlement.GrossAmount,
		"platform_commission": settlement.PlatformCommission,
		"creator_earning":     settlement.CreatorEarning,
	})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Service) commissionRate() float64 {
	if s.CommissionRate > 0 && s.CommissionRate < 1 {
		return s.CommissionRate
	}
	return 0.20
}

func (s Service) holdDuration() time.Duration {
	if s.HoldDuration > 0 {
		return s.HoldDuration
	}
	return 7 * 24 * time.Hour
}
