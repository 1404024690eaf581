package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"revuhub/contexts/creator-network/pricing-service/domain/entities"
	domainerrors "revuhub/contexts/creator-network/pricing-service/domain/errors"
	"revuhub/contexts/creator-network/pricing-service/ports"

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
	if err := r.db.AutoMigrate(
		&priceHistoryModel{},
		&outboxModel{},
	); err != nil {
		return err
	}
	// One open range per creator, enforced at the storage layer.
	return r.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_price_history_open_range
		ON creator_price_history (creator_id)
		WHERE effective_to IS NULL`).Error
}

// AppendRange closes the open range and inserts the new one in a single
// transaction. The open row is locked first so concurrent price changes for
// one creator serialize instead of both inserting open rows.
func (r *Repository) AppendRange(ctx context.Context, entry entities.PriceHistoryEntry) error {
	err := r.withConflictRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var open priceHistoryModel
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("creator_id = ? AND effective_to IS NULL", strings.TrimSpace(entry.CreatorID)).
				First(&open).
				Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err == nil {
				if err := tx.Model(&priceHistoryModel{}).
					Where("entry_id = ?", open.EntryID).
					Update("effective_to", entry.EffectiveFrom.UTC()).
					Error; err != nil {
					return err
				}
			}

			row := priceHistoryModelFromEntity(entry)
			return tx.Create(&row).Error
		})
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return err
	}
	return nil
}

func (r *Repository) CurrentRange(ctx context.Context, creatorID string) (entities.PriceHistoryEntry, bool, error) {
	var row priceHistoryModel
	err := r.db.WithContext(ctx).
		Where("creator_id = ? AND effective_to IS NULL", strings.TrimSpace(creatorID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.PriceHistoryEntry{}, false, nil
		}
		return entities.PriceHistoryEntry{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) RangeAt(ctx context.Context, creatorID string, at time.Time) (entities.PriceHistoryEntry, bool, error) {
	var row priceHistoryModel
	err := r.db.WithContext(ctx).
		Where("creator_id = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)",
			strings.TrimSpace(creatorID), at.UTC(), at.UTC()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.PriceHistoryEntry{}, false, nil
		}
		return entities.PriceHistoryEntry{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListHistory(ctx context.Context, creatorID string) ([]entities.PriceHistoryEntry, error) {
	var rows []priceHistoryModel
	if err := r.db.WithContext(ctx).
		Where("creator_id = ?", strings.TrimSpace(creatorID)).
		Order("effective_from ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.PriceHistoryEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
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
		return domainerrors.ErrConflict
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

func (r *Repository) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetryLimit; attempt++ {
		err = fn()
		if err == nil || !isRetryableConflict(err) {
			return err
		}
	}
	r.logger.Warn("pricing transaction conflicted past retry budget",
		"event", "pricing_conflict_retries_exhausted",
		"module", "creator-network/pricing-service",
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

type priceHistoryModel struct {
	EntryID       string     `gorm:"column:entry_id;primaryKey"`
	CreatorID     string     `gorm:"column:creator_id;index"`
	PriceMin      int64      `gorm:"column:price_min"`
	PriceMax      int64      `gorm:"column:price_max"`
	EffectiveFrom time.Time  `gorm:"column:effective_from;index"`
	EffectiveTo   *time.Time `gorm:"column:effective_to"`
	ChangedBy     string     `gorm:"column:changed_by"`
	Reason        string     `gorm:"column:reason"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
}

func (priceHistoryModel) TableName() string { return "creator_price_history" }

func priceHistoryModelFromEntity(entry entities.PriceHistoryEntry) priceHistoryModel {
	return priceHistoryModel{
		EntryID:       strings.TrimSpace(entry.EntryID),
		CreatorID:     strings.TrimSpace(entry.CreatorID),
		PriceMin:      entry.PriceMin,
		PriceMax:      entry.PriceMax,
		EffectiveFrom: entry.EffectiveFrom.UTC(),
		EffectiveTo:   entry.EffectiveTo,
		ChangedBy:     strings.TrimSpace(entry.ChangedBy),
		Reason:        strings.TrimSpace(entry.Reason),
		CreatedAt:     entry.CreatedAt.UTC(),
	}
}

func (m priceHistoryModel) toEntity() entities.PriceHistoryEntry {
	return entities.PriceHistoryEntry{
		EntryID:       m.EntryID,
		CreatorID:     m.CreatorID,
		PriceMin:      m.PriceMin,
		PriceMax:      m.PriceMax,
		EffectiveFrom: m.EffectiveFrom.UTC(),
		EffectiveTo:   m.EffectiveTo,
		ChangedBy:     m.ChangedBy,
		Reason:        m.Reason,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "pricing_outbox" }
