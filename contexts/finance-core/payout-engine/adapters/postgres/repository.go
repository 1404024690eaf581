package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"revuhub/contexts/finance-core/payout-engine/domain/entities"
	domainerrors "revuhub/contexts/finance-core/payout-engine/domain/errors"
	"revuhub/contexts/finance-core/payout-engine/ports"

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
		&settlementModel{},
		&earningModel{},
		&creatorStatsModel{},
		&outboxModel{},
	)
}

// RecordSettlement writes the settlement, the earning, and the stats upsert
// in one transaction. The unique index on job_id is what makes settle
// idempotent: the losing transaction surfaces ErrAlreadySettled.
func (r *Repository) RecordSettlement(ctx context.Context, settlement entities.Settlement, earning entities.Earning) error {
	err := r.withConflictRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			row := settlementModelFromEntity(settlement)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}

			earningRow := earningModelFromEntity(earning)
			if err := tx.Create(&earningRow).Error; err != nil {
				return err
			}

			return tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "creator_id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"total_reviews":     gorm.Expr("creator_stats.total_reviews + 1"),
					"completed_reviews": gorm.Expr("creator_stats.completed_reviews + 1"),
					"total_earnings":    gorm.Expr("creator_stats.total_earnings + ?", settlement.CreatorEarning),
					"updated_at":        settlement.SettledAt.UTC(),
				}),
			}).Create(&creatorStatsModel{
				CreatorID:        settlement.CreatorID,
				TotalReviews:     1,
				CompletedReviews: 1,
				TotalEarnings:    settlement.CreatorEarning,
				UpdatedAt:        settlement.SettledAt.UTC(),
			}).Error
		})
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadySettled
		}
		return err
	}
	return nil
}

// VoidSettlement deletes the settlement and its earning and reverses the
// stats bump in one transaction. The settlement row is locked first so a
// concurrent void or re-settle serializes behind it.
func (r *Repository) VoidSettlement(ctx context.Context, jobID string) (entities.Settlement, error) {
	jobID = strings.TrimSpace(jobID)

	var voided entities.Settlement
	err := r.withConflictRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row settlementModel
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("job_id = ?", jobID).
				First(&row).
				Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domainerrors.ErrSettlementNotFound
				}
				return err
			}

			if err := tx.Where("job_id = ?", jobID).Delete(&settlementModel{}).Error; err != nil {
				return err
			}
			if err := tx.Where("job_id = ?", jobID).Delete(&earningModel{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&creatorStatsModel{}).
				Where("creator_id = ?", row.CreatorID).
				Updates(map[string]any{
					"total_reviews":     gorm.Expr("total_reviews - 1"),
					"completed_reviews": gorm.Expr("completed_reviews - 1"),
					"total_earnings":    gorm.Expr("total_earnings - ?", row.CreatorEarning),
					"updated_at":        time.Now().UTC(),
				}).Error; err != nil {
				return err
			}

			voided = row.toEntity()
			return nil
		})
	})
	if err != nil {
		return entities.Settlement{}, err
	}
	return voided, nil
}

func (r *Repository) GetSettlementByJob(ctx context.Context, jobID string) (entities.Settlement, error) {
	var row settlementModel
	err := r.db.WithContext(ctx).
		Where("job_id = ?", strings.TrimSpace(jobID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Settlement{}, domainerrors.ErrSettlementNotFound
		}
		return entities.Settlement{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListEarnings(ctx context.Context, creatorID string) ([]entities.Earning, error) {
	var rows []earningModel
	if err := r.db.WithContext(ctx).
		Where("creator_id = ?", strings.TrimSpace(creatorID)).
		Order("created_at DESC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.Earning, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ReleaseDueEarnings(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}

	var released int
	err := r.withConflictRetry(func() error {
		released = 0
		result := r.db.WithContext(ctx).Exec(`UPDATE creator_earnings
			SET status = ?
			WHERE earning_id IN (
				SELECT earning_id FROM creator_earnings
				WHERE status = ? AND available_at <= ?
				ORDER BY available_at ASC
				LIMIT ?
			)`,
			string(entities.EarningStatusAvailable),
			string(entities.EarningStatusPending),
			now.UTC(),
			limit,
		)
		if result.Error != nil {
			return result.Error
		}
		released = int(result.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

func (r *Repository) GetStats(ctx context.Context, creatorID string) (entities.CreatorStats, error) {
	var row creatorStatsModel
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", strings.TrimSpace(creatorID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.CreatorStats{CreatorID: strings.TrimSpace(creatorID)}, nil
		}
		return entities.CreatorStats{}, err
	}
	return entities.CreatorStats{
		CreatorID:        row.CreatorID,
		TotalReviews:     row.TotalReviews,
		CompletedReviews: row.CompletedReviews,
		TotalEarnings:    row.TotalEarnings,
		UpdatedAt:        row.UpdatedAt.UTC(),
	}, nil
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
	r.logger.Warn("payout transaction conflicted past retry budget",
		"event", "payout_conflict_retries_exhausted",
		"module", "finance-core/payout-engine",
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

type settlementModel struct {
	SettlementID       string    `gorm:"column:settlement_id;primaryKey"`
	JobID              string    `gorm:"column:job_id;uniqueIndex"`
	CampaignID         string    `gorm:"column:campaign_id;index"`
	CreatorID          string    `gorm:"column:creator_id;index"`
	GrossAmount        int64     `gorm:"column:gross_amount"`
	CommissionRate     float64   `gorm:"column:commission_rate"`
	PlatformCommission int64     `gorm:"column:platform_commission"`
	CreatorEarning     int64     `gorm:"column:creator_earning"`
	SettledAt          time.Time `gorm:"column:settled_at"`
}

func (settlementModel) TableName() string { return "payout_settlements" }

func settlementModelFromEntity(settlement entities.Settlement) settlementModel {
	return settlementModel{
		SettlementID:       strings.TrimSpace(settlement.SettlementID),
		JobID:              strings.TrimSpace(settlement.JobID),
		CampaignID:         strings.TrimSpace(settlement.CampaignID),
		CreatorID:          strings.TrimSpace(settlement.CreatorID),
		GrossAmount:        settlement.GrossAmount,
		CommissionRate:     settlement.CommissionRate,
		PlatformCommission: settlement.PlatformCommission,
		CreatorEarning:     settlement.CreatorEarning,
		SettledAt:          settlement.SettledAt.UTC(),
	}
}

func (m settlementModel) toEntity() entities.Settlement {
	return entities.Settlement{
		SettlementID:       m.SettlementID,
		JobID:              m.JobID,
		CampaignID:         m.CampaignID,
		CreatorID:          m.CreatorID,
		GrossAmount:        m.GrossAmount,
		CommissionRate:     m.CommissionRate,
		PlatformCommission: m.PlatformCommission,
		CreatorEarning:     m.CreatorEarning,
		SettledAt:          m.SettledAt.UTC(),
	}
}

type earningModel struct {
	EarningID   string    `gorm:"column:earning_id;primaryKey"`
	CreatorID   string    `gorm:"column:creator_id;index"`
	JobID       string    `gorm:"column:job_id;index"`
	CampaignID  string    `gorm:"column:campaign_id"`
	Amount      int64     `gorm:"column:amount"`
	Status      string    `gorm:"column:status;index"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	AvailableAt time.Time `gorm:"column:available_at;index"`
}

func (earningModel) TableName() string { return "creator_earnings" }

func earningModelFromEntity(earning entities.Earning) earningModel {
	return earningModel{
		EarningID:   strings.TrimSpace(earning.EarningID),
		CreatorID:   strings.TrimSpace(earning.CreatorID),
		JobID:       strings.TrimSpace(earning.JobID),
		CampaignID:  strings.TrimSpace(earning.CampaignID),
		Amount:      earning.Amount,
		Status:      string(earning.Status),
		CreatedAt:   earning.CreatedAt.UTC(),
		AvailableAt: earning.AvailableAt.UTC(),
	}
}

func (m earningModel) toEntity() entities.Earning {
	return entities.Earning{
		EarningID:   m.EarningID,
		CreatorID:   m.CreatorID,
		JobID:       m.JobID,
		CampaignID:  m.CampaignID,
		Amount:      m.Amount,
		Status:      entities.EarningStatus(m.Status),
		CreatedAt:   m.CreatedAt.UTC(),
		AvailableAt: m.AvailableAt.UTC(),
	}
}

type creatorStatsModel struct {
	CreatorID        string    `gorm:"column:creator_id;primaryKey"`
	TotalReviews     int64     `gorm:"column:total_reviews"`
	CompletedReviews int64     `gorm:"column:completed_reviews"`
	TotalEarnings    int64     `gorm:"column:total_earnings"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (creatorStatsModel) TableName() string { return "creator_stats" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "payout_outbox" }
