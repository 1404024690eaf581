package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"revuhub/contexts/finance-core/token-ledger/application"
	"revuhub/contexts/finance-core/token-ledger/domain/entities"
	domainerrors "revuhub/contexts/finance-core/token-ledger/domain/errors"
	httptransport "revuhub/contexts/finance-core/token-ledger/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreditHandler(
	ctx context.Context,
	shopID string,
	idempotencyKey string,
	req httptransport.CreditRequest,
) (httptransport.CreditResponse, error) {
	var expiresAt time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return httptransport.CreditResponse{}, domainerrors.ErrInvalidExpiry
		}
		expiresAt = parsed
	}

	batch, replayed, err := h.Service.Credit(ctx, idempotencyKey, application.CreditInput{
		ShopID:    shopID,
		Amount:    req.Amount,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return httptransport.CreditResponse{}, err
	}
	return httptransport.CreditResponse{
		Status:   "success",
		Replayed: replayed,
		Data:     toBatchDTO(batch),
	}, nil
}

func (h Handler) BalanceHandler(ctx context.Context, shopID string) (httptransport.BalanceResponse, error) {
	balance, err := h.Service.Balance(ctx, shopID)
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	resp := httptransport.BalanceResponse{Status: "success"}
	resp.Data.ShopID = shopID
	resp.Data.Balance = balance
	return resp, nil
}

func (h Handler) ExpiringHandler(ctx context.Context, shopID string, windowDays int) (httptransport.ExpiringResponse, error) {
	summary, err := h.Service.ExpiringSoon(ctx, shopID, windowDays)
	if err != nil {
		return httptransport.ExpiringResponse{}, err
	}
	resp := httptransport.ExpiringResponse{Status: "success"}
	resp.Data.Amount = summary.Amount
	resp.Data.Batches = make([]httptransport.TokenBatchDTO, 0, len(summary.Batches))
	for _, batch := range summary.Batches {
		resp.Data.Batches = append(resp.Data.Batches, toBatchDTO(batch))
	}
	return resp, nil
}

func (h Handler) UsageHandler(ctx context.Context, shopID string, limit int) (httptransport.UsageResponse, error) {
	usages, err := h.Service.ListUsage(ctx, shopID, limit)
	if err != nil {
		return httptransport.UsageResponse{}, err
	}
	resp := httptransport.UsageResponse{
		Status: "success",
		Data:   make([]httptransport.TokenUsageDTO, 0, len(usages)),
	}
	for _, usage := range usages {
		resp.Data = append(resp.Data, toUsageDTO(usage))
	}
	return resp, nil
}

func toBatchDTO(batch entities.TokenBatch) httptransport.TokenBatchDTO {
	return httptransport.TokenBatchDTO{
		BatchID:     batch.BatchID,
		ShopID:      batch.ShopID,
		Amount:      batch.Amount,
		Remaining:   batch.Remaining,
		PurchasedAt: batch.PurchasedAt.UTC().Format(time.RFC3339),
		ExpiresAt:   batch.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func toUsageDTO(usage entities.TokenUsage) httptransport.TokenUsageDTO {
	dto := httptransport.TokenUsageDTO{
		UsageID:   usage.UsageID,
		ShopID:    usage.ShopID,
		Amount:    usage.Amount,
		Reason:    usage.Reason,
		Batches:   make([]httptransport.BatchConsumptionDTO, 0, len(usage.Batches)),
		CreatedAt: usage.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, item := range usage.Batches {
		dto.Batches = append(dto.Batches, httptransport.BatchConsumptionDTO{
			BatchID: item.BatchID,
			Amount:  item.Amount,
		})
	}
	return dto
}
