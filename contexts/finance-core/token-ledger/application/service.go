package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"revuhub/contexts/finance-core/token-ledger/domain/entities"
	domainerrors "revuhub/contexts/finance-core/token-ledger/domain/errors"
	"revuhub/contexts/finance-core/token-ledger/ports"
	"revuhub/internal/shared/events"
)

const sourceService = "token-ledger"

type CreditInput struct {
	ShopID    string
	Amount    int64
	ExpiresAt time.Time
}

type Service struct {
	Wallet         ports.WalletRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	DefaultExpiry  time.Duration
	Logger         *slog.Logger
}

// Credit appends a new batch to the shop's wallet. A zero ExpiresAt falls
// back to now + DefaultExpiry, matching the purchase flow's default token
// lifetime.
func (s Service) Credit(ctx context.Context, idempotencyKey string, input CreditInput) (entities.TokenBatch, bool, error) {
	shopID := strings.TrimSpace(input.ShopID)
	if shopID == "" {
		return entities.TokenBatch{}, false, domainerrors.ErrInvalidShopID
	}
	if input.Amount <= 0 {
		return entities.TokenBatch{}, false, domainerrors.ErrInvalidAmount
	}

	now := s.now()
	expiresAt := input.ExpiresAt.UTC()
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.defaultExpiry())
	}
	if !expiresAt.After(now) {
		return entities.TokenBatch{}, false, domainerrors.ErrInvalidExpiry
	}

	requestHash := hashPayload(map[string]any{
		"shop_id":    shopID,
		"amount":     input.Amount,
		"expires_at": input.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		record, found, err := s.Idempotency.GetRecord(ctx, key, now)
		if err != nil {
			return entities.TokenBatch{}, false, err
		}
		if found {
			if record.RequestHash != requestHash {
				return entities.TokenBatch{}, false, domainerrors.ErrIdempotencyKeyConflict
			}
			var replayed entities.TokenBatch
			if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
				return entities.TokenBatch{}, false, err
			}
			return replayed, true, nil
		}
	}

	batchID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.TokenBatch{}, false, err
	}
	batch := entities.TokenBatch{
		BatchID:     batchID,
		ShopID:      shopID,
		Amount:      input.Amount,
		Remaining:   input.Amount,
		PurchasedAt: now,
		ExpiresAt:   expiresAt,
	}
	if err := s.Wallet.CreateBatch(ctx, batch); err != nil {
		return entities.TokenBatch{}, false, err
	}

	if err := s.appendWalletOutbox(ctx, "wallet.credited", shopID, now, map[string]any{
		"shop_id":    shopID,
		"batch_id":   batch.BatchID,
		"amount":     batch.Amount,
		"expires_at": batch.ExpiresAt.Format(time.RFC3339),
	}); err != nil {
		return entities.TokenBatch{}, false, err
	}

	if key := strings.TrimSpace(idempotencyKey); key != "" {
		payload, err := json.Marshal(batch)
		if err != nil {
			return entities.TokenBatch{}, false, err
		}
		if err := s.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
			Key:             key,
			RequestHash:     requestHash,
			ResponsePayload: payload,
			ExpiresAt:       now.Add(s.idempotencyTTL()),
		}); err != nil {
			return entities.TokenBatch{}, false, err
		}
	}

	ResolveLogger(s.Logger).Info("wallet credited",
		"event", "wallet_credited",
		"module", "finance-core/token-ledger",
		"layer", "application",
		"shop_id", shopID,
		"batch_id", batch.BatchID,
		"amount", batch.Amount,
	)
	return batch, false, nil
}

// Debit consumes the requested amount across live batches, oldest expiry
// first. All-or-nothing: on ErrInsufficientBalance no batch is touched.
func (s Service) Debit(ctx context.Context, shopID string, amount int64, reason string) ([]entities.BatchConsumption, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return nil, domainerrors.ErrInvalidShopID
	}
	if amount <= 0 {
		return nil, domainerrors.ErrInvalidAmount
	}

	now := s.now()
	usageID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return nil, err
	}
	consumed, err := s.Wallet.DebitBatches(ctx, shopID, amount, entities.TokenUsage{
		UsageID:   usageID,
		ShopID:    shopID,
		Amount:    amount,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.appendWalletOutbox(ctx, "wallet.debited", shopID, now, map[string]any{
		"shop_id":  shopID,
		"usage_id": usageID,
		"amount":   amount,
		"reason":   strings.TrimSpace(reason),
		"batches":  consumed,
	}); err != nil {
		return nil, err
	}

	ResolveLogger(s.Logger).Info("wallet debited",
		"event", "wallet_debited",
		"module", "finance-core/token-ledger",
		"layer", "application",
		"shop_id", shopID,
		"usage_id", usageID,
		"amount", amount,
		"batches_consumed", len(consumed),
	)
	return consumed, nil
}

// Balance is always the live sum over non-expired batches; there is no
// stored counter to drift.
func (s Service) Balance(ctx context.Context, shopID string) (int64, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return 0, domainerrors.ErrInvalidShopID
	}
	batches, err := s.Wallet.ListBatches(ctx, shopID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	var total int64
	for _, batch := range batches {
		if batch.Live(now) {
			total += batch.Remaining
		}
	}
	return total, nil
}

func (s Service) ExpiringSoon(ctx context.Context, shopID string, windowDays int) (entities.ExpiringSummary, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return entities.ExpiringSummary{}, domainerrors.ErrInvalidShopID
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	batches, err := s.Wallet.ListBatches(ctx, shopID)
	if err != nil {
		return entities.ExpiringSummary{}, err
	}

	now := s.now()
	cutoff := now.Add(time.Duration(windowDays) * 24 * time.Hour)
	summary := entities.ExpiringSummary{Batches: make([]entities.TokenBatch, 0)}
	for _, batch := range batches {
		if batch.Live(now) && !batch.ExpiresAt.After(cutoff) {
			summary.Amount += batch.Remaining
			summary.Batches = append(summary.Batches, batch)
		}
	}
	sort.Slice(summary.Batches, func(i, j int) bool {
		return summary.Batches[i].ExpiresAt.Before(summary.Batches[j].ExpiresAt)
	})
	return summary, nil
}

func (s Service) ListUsage(ctx context.Context, shopID string, limit int) ([]entities.TokenUsage, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return nil, domainerrors.ErrInvalidShopID
	}
	if limit <= 0 {
		limit = 50
	}
	return s.Wallet.ListUsage(ctx, shopID, limit)
}

func (s Service) appendWalletOutbox(ctx context.Context, eventType, shopID string, occurredAt time.Time, payload map[string]any) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, eventType, sourceService, "shop_id", shopID, occurredAt, payload)
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

func (s Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 7 * 24 * time.Hour
}

func (s Service) defaultExpiry() time.Duration {
	if s.DefaultExpiry > 0 {
		return s.DefaultExpiry
	}
	return 90 * 24 * time.Hour
}

func hashPayload(payload map[string]any) string {
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
