package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"revuhub/contexts/finance-core/payout-engine/application"
	"revuhub/contexts/finance-core/payout-engine/domain/entities"
	httptransport "revuhub/contexts/finance-core/payout-engine/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) GetSettlementHandler(ctx context.Context, jobID string) (httptransport.SettlementResponse, error) {
	settlement, err := h.Service.GetSettlement(ctx, jobID)
	if err != nil {
		return httptransport.SettlementResponse{}, err
	}
	return httptransport.SettlementResponse{
		Status: "success",
		Data:   toSettlementDTO(settlement),
	}, nil
}

func (h Handler) EarningsHandler(ctx context.Context, creatorID string) (httptransport.EarningsSummaryResponse, error) {
	summary, err := h.Service.EarningsSummary(ctx, creatorID)
	if err != nil {
		return httptransport.EarningsSummaryResponse{}, err
	}
	dto := httptransport.EarningsSummaryDTO{
		TotalEarned: summary.TotalEarned,
		Available:   summary.Available,
		Pending:     summary.Pending,
		Entries:     make([]httptransport.EarningDTO, 0, len(summary.Entries)),
	}
	for _, earning := range summary.Entries {
		dto.Entries = append(dto.Entries, toEarningDTO(earning))
	}
	return httptransport.EarningsSummaryResponse{
		Status: "success",
		Data:   dto,
	}, nil
}

func (h Handler) StatsHandler(ctx context.Context, creatorID string) (httptransport.CreatorStatsResponse, error) {
	stats, err := h.Service.Stats(ctx, creatorID)
	if err != nil {
		return httptransport.CreatorStatsResponse{}, err
	}
	dto := httptransport.CreatorStatsDTO{
		CreatorID:        stats.CreatorID,
		TotalReviews:     stats.TotalReviews,
		CompletedReviews: stats.CompletedReviews,
		TotalEarnings:    stats.TotalEarnings,
	}
	if !stats.UpdatedAt.IsZero() {
		dto.UpdatedAt = stats.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return httptransport.CreatorStatsResponse{
		Status: "success",
		Data:   dto,
	}, nil
}

func toSettlementDTO(settlement entities.Settlement) httptransport.SettlementDTO {
	return httptransport.SettlementDTO{
		SettlementID:       settlement.SettlementID,
		JobID:              settlement.JobID,
		CampaignID:         settlement.CampaignID,
		CreatorID:          settlement.CreatorID,
		GrossAmount:        settlement.GrossAmount,
		CommissionRate:     settlement.CommissionRate,
		PlatformCommission: settlement.PlatformCommission,
		CreatorEarning:     settlement.CreatorEarning,
		SettledAt:          settlement.SettledAt.UTC().Format(time.RFC3339),
	}
}

func toEarningDTO(earning entities.Earning) httptransport.EarningDTO {
	return httptransport.EarningDTO{
		EarningID:   earning.EarningID,
		JobID:       earning.JobID,
		CampaignID:  earning.CampaignID,
		Amount:      earning.Amount,
		Status:      string(earning.Status),
		CreatedAt:   earning.CreatedAt.UTC().Format(time.RFC3339),
		AvailableAt: earning.AvailableAt.UTC().Format(time.RFC3339),
	}
}
