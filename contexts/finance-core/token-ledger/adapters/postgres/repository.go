package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"revuhub/contexts/finance-core/token-ledger/domain/entities"
	domainerrors "revuhub/contexts/finance-core/token-ledger/domain/errors"
	"revuhub/contexts/finance-core/token-ledger/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"

	conflictRetryLimit = 3
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&tokenBatchModel{},
		&tokenUsageModel{},
		&idempotencyModel{},
		&outboxModel{},
	)
}

func (r *Repository) CreateBatch(ctx context.Context, batch entities.TokenBatch) error {
	row := tokenBatchModel{
		BatchID:     strings.TrimSpace(batch.BatchID),
		ShopID:      strings.TrimSpace(batch.ShopID),
		Amount:      batch.Amount,
		Remaining:   batch.Remaining,
		PurchasedAt: batch.PurchasedAt.UTC(),
		ExpiresAt:   batch.ExpiresAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return err
	}
	return nil
}

func (r *Repository) ListBatches(ctx context.Context, shopID string) ([]entities.TokenBatch, error) {
	var rows []tokenBatchModel
	if err := r.db.WithContext(ctx).
		Where("shop_id = ?", strings.TrimSpace(shopID)).
		Order("expires_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.TokenBatch, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// DebitBatches locks the shop's live batches, verifies the live sum, and
// shrinks them oldest-expiry-first, all inside one transaction. The usage
// audit row rides in the same transaction so either everything lands or
// nothing does.
func (r *Repository) DebitBatches(ctx context.Context, shopID string, amount int64, usage entities.TokenUsage) ([]entities.BatchConsumption, error) {
	var consumed []entities.BatchConsumption
	err := r.withConflictRetry(func() error {
		consumed = nil
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := usage.CreatedAt.UTC()
			if now.IsZero() {
				now = time.Now().UTC()
			}

			var rows []tokenBatchModel
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("shop_id = ? AND remaining > 0 AND expires_at > ?", strings.TrimSpace(shopID), now).
				Order("expires_at ASC").
				Find(&rows).
				Error; err != nil {
				return err
			}

			var total int64
			for _, row := range rows {
				total += row.Remaining
			}
			if total < amount {
				return domainerrors.ErrInsufficientBalance
			}

			remaining := amount
			for _, row := range rows {
				if remaining == 0 {
					break
				}
				take := row.Remaining
				if take > remaining {
					take = remaining
				}
				if err := tx.Model(&tokenBatchModel{}).
					Where("batch_id = ?", row.BatchID).
					Update("remaining", gorm.Expr("remaining - ?", take)).
					Error; err != nil {
					return err
				}
				remaining -= take
				consumed = append(consumed, entities.BatchConsumption{BatchID: row.BatchID, Amount: take})
			}

			breakdown, err := json.Marshal(consumed)
			if err != nil {
				return err
			}
			usageRow := tokenUsageModel{
				UsageID:   strings.TrimSpace(usage.UsageID),
				ShopID:    strings.TrimSpace(usage.ShopID),
				Amount:    usage.Amount,
				Reason:    strings.TrimSpace(usage.Reason),
				Batches:   breakdown,
				CreatedAt: now,
			}
			return tx.Create(&usageRow).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

func (r *Repository) ListUsage(ctx context.Context, shopID string, limit int) ([]entities.TokenUsage, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []tokenUsageModel
	if err := r.db.WithContext(ctx).
		Where("shop_id = ?", strings.TrimSpace(shopID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.TokenUsage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) PruneBatches(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	result := r.db.WithContext(ctx).
		Where("batch_id IN (?)", r.db.Model(&tokenBatchModel{}).
			Select("batch_id").
			Where("remaining = 0 OR expires_at <= ?", now.UTC()).
			Limit(limit)).
		Delete(&tokenBatchModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}

	return ports.IdempotencyRecord{
		Key:             row.Key,
		RequestHash:     row.RequestHash,
		ResponsePayload: append([]byte(nil), row.ResponsePayload...),
		ExpiresAt:       row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             strings.TrimSpace(record.Key),
		RequestHash:     record.RequestHash,
		ResponsePayload: append([]byte(nil), record.ResponsePayload...),
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != row.RequestHash || !bytes.Equal(existing.ResponsePayload, row.ResponsePayload) {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return err
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

// withConflictRetry reruns the closure on serialization failures and
// deadlocks before surfacing the generic conflict error.
func (r *Repository) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetryLimit; attempt++ {
		err = fn()
		if err == nil || !isRetryableConflict(err) {
			return err
		}
	}
	r.logger.Warn("wallet transaction conflicted past retry budget",
		"event", "wallet_conflict_retries_exhausted",
		"module", "finance-core/token-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	return domainerrors.ErrConflict
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isRetryableConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

type tokenBatchModel struct {
	BatchID     string    `gorm:"column:batch_id;primaryKey"`
	ShopID      string    `gorm:"column:shop_id;index"`
	Amount      int64     `gorm:"column:amount"`
	Remaining   int64     `gorm:"column:remaining"`
	PurchasedAt time.Time `gorm:"column:purchased_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at;index"`
}

func (tokenBatchModel) TableName() string { return "token_batches" }

func (m tokenBatchModel) toEntity() entities.TokenBatch {
	return entities.TokenBatch{
		BatchID:     m.BatchID,
		ShopID:      m.ShopID,
		Amount:      m.Amount,
		Remaining:   m.Remaining,
		PurchasedAt: m.PurchasedAt.UTC(),
		ExpiresAt:   m.ExpiresAt.UTC(),
	}
}

type tokenUsageModel struct {
	UsageID   string    `gorm:"column:usage_id;primaryKey"`
	ShopID    string    `gorm:"column:shop_id;index"`
	Amount    int64     `gorm:"column:amount"`
	Reason    string    `gorm:"column:reason"`
	Batches   []byte    `gorm:"column:batches;type:jsonb"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (tokenUsageModel) TableName() string { return "token_usages" }

func (m tokenUsageModel) toEntity() entities.TokenUsage {
	usage := entities.TokenUsage{
		UsageID:   m.UsageID,
		ShopID:    m.ShopID,
		Amount:    m.Amount,
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt.UTC(),
	}
	_ = json.Unmarshal(m.Batches, &usage.Batches)
	return usage
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string { return "token_ledger_idempotency" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "token_ledger_outbox" }
