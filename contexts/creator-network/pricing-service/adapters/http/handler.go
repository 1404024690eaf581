package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"revuhub/contexts/creator-network/pricing-service/application"
	"revuhub/contexts/creator-network/pricing-service/domain/entities"
	httptransport "revuhub/contexts/creator-network/pricing-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) OpenRangeHandler(
	ctx context.Context,
	creatorID string,
	changedBy string,
	req httptransport.OpenRangeRequest,
) (httptransport.PriceRangeResponse, error) {
	entry, err := h.Service.OpenRange(ctx, creatorID, application.OpenRangeInput{
		PriceMin:  req.PriceMin,
		PriceMax:  req.PriceMax,
		ChangedBy: changedBy,
		Reason:    req.Reason,
	})
	if err != nil {
		return httptransport.PriceRangeResponse{}, err
	}
	return httptransport.PriceRangeResponse{
		Status: "success",
		Data:   toPriceRangeDTO(entry),
	}, nil
}

func (h Handler) CurrentRangeHandler(ctx context.Context, creatorID string) (httptransport.PriceRangeResponse, error) {
	entry, err := h.Service.CurrentRange(ctx, creatorID)
	if err != nil {
		return httptransport.PriceRangeResponse{}, err
	}
	return httptransport.PriceRangeResponse{
		Status: "success",
		Data:   toPriceRangeDTO(entry),
	}, nil
}

func (h Handler) HistoryHandler(ctx context.Context, creatorID string) (httptransport.PriceHistoryResponse, error) {
	entries, err := h.Service.History(ctx, creatorID)
	if err != nil {
		return httptransport.PriceHistoryResponse{}, err
	}
	resp := httptransport.PriceHistoryResponse{
		Status: "success",
		Data:   make([]httptransport.PriceRangeDTO, 0, len(entries)),
	}
	for _, entry := range entries {
		resp.Data = append(resp.Data, toPriceRangeDTO(entry))
	}
	return resp, nil
}

func toPriceRangeDTO(entry entities.PriceHistoryEntry) httptransport.PriceRangeDTO {
	dto := httptransport.PriceRangeDTO{
		EntryID:       entry.EntryID,
		CreatorID:     entry.CreatorID,
		PriceMin:      entry.PriceMin,
		PriceMax:      entry.PriceMax,
		EffectiveFrom: entry.EffectiveFrom.UTC().Format(time.RFC3339),
		ChangedBy:     entry.ChangedBy,
		Reason:        entry.Reason,
	}
	if entry.EffectiveTo != nil {
		dto.EffectiveTo = entry.EffectiveTo.UTC().Format(time.RFC3339)
	}
	return dto
}
