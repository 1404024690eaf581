package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"revuhub/contexts/campaign-ops/campaign-service/domain/entities"
	domainerrors "revuhub/contexts/campaign-ops/campaign-service/domain/errors"
	"revuhub/contexts/campaign-ops/campaign-service/ports"

	"github.com/google/uuid"
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
		&campaignModel{},
		&stateHistoryModel{},
		&budgetLogModel{},
		&idempotencyModel{},
		&outboxModel{},
	)
}

func (r *Repository) CreateCampaign(ctx context.Context, campaign entities.Campaign) error {
	row := campaignModelFromEntity(campaign)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidCampaignInput
		}
		return err
	}
	return nil
}

func (r *Repository) GetCampaign(ctx context.Context, campaignID string) (entities.Campaign, error) {
	var row campaignModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Campaign{}, domainerrors.ErrCampaignNotFound
		}
		return entities.Campaign{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateCampaign(ctx context.Context, campaign entities.Campaign) error {
	result := r.db.WithContext(ctx).
		Model(&campaignModel{}).
		Where("campaign_id = ?", strings.TrimSpace(campaign.CampaignID)).
		Updates(campaignUpdatesFromEntity(campaign))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrCampaignNotFound
	}
	return nil
}

func (r *Repository) ListCampaigns(ctx context.Context, filter ports.CampaignFilter) ([]entities.Campaign, error) {
	tx := r.db.WithContext(ctx).Model(&campaignModel{})
	if strings.TrimSpace(filter.ShopID) != "" {
		tx = tx.Where("shop_id = ?", strings.TrimSpace(filter.ShopID))
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}

	var rows []campaignModel
	if err := tx.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]entities.Campaign, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// ReserveBudget locks the campaign row and performs the check-and-decrement
// plus its budget log entry in one transaction.
func (r *Repository) ReserveBudget(ctx context.Context, campaignID string, amount int64, now time.Time) (entities.Campaign, bool, error) {
	var campaign entities.Campaign
	var reserved bool
	err := r.withConflictRetry(func() error {
		reserved = false
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			row, err := lockCampaign(tx, campaignID)
			if err != nil {
				return err
			}

			campaign = row.toEntity()
			if !campaign.CanAllocate(now) {
				return domainerrors.ErrCampaignClosed
			}
			if campaign.RemainingBudget < amount {
				return nil
			}

			campaign.RemainingBudget -= amount
			campaign.UpdatedAt = now.UTC()
			if err := tx.Model(&campaignModel{}).
				Where("campaign_id = ?", campaign.CampaignID).
				Updates(campaignUpdatesFromEntity(campaign)).
				Error; err != nil {
				return err
			}
			reserved = true
			return tx.Create(&budgetLogModel{
				LogID:       uuid.NewString(),
				CampaignID:  campaign.CampaignID,
				AmountDelta: -amount,
				Reason:      "budget_reserved",
				CreatedAt:   now.UTC(),
			}).Error
		})
	})
	if err != nil {
		return entities.Campaign{}, false, err
	}
	return campaign, reserved, nil
}

func (r *Repository) ReleaseBudget(ctx context.Context, campaignID string, amount int64, now time.Time) (entities.Campaign, error) {
	var campaign entities.Campaign
	err := r.withConflictRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			row, err := lockCampaign(tx, campaignID)
			if err != nil {
				return err
			}

			campaign = row.toEntity()
			campaign.RemainingBudget += amount
			if campaign.RemainingBudget > campaign.TotalBudget {
				campaign.RemainingBudget = campaign.TotalBudget
			}
			campaign.UpdatedAt = now.UTC()
			if err := tx.Model(&campaignModel{}).
				Where("campaign_id = ?", campaign.CampaignID).
				Updates(campaignUpdatesFromEntity(campaign)).
				Error; err != nil {
				return err
			}
			return tx.Create(&budgetLogModel{
				LogID:       uuid.NewString(),
				CampaignID:  campaign.CampaignID,
				AmountDelta: amount,
				Reason:      "budget_released",
				CreatedAt:   now.UTC(),
			}).Error
		})
	})
	if err != nil {
		return entities.Campaign{}, err
	}
	return campaign, nil
}

func (r *Repository) SettleBudget(ctx context.Context, campaignID string, amount int64, now time.Time) (entities.Campaign, error) {
	var campaign entities.Campaign
	err := r.withConflictRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			row, err := lockCampaign(tx, campaignID)
			if err != nil {
				return err
			}

			campaign = row.toEntity()
			campaign.SpentBudget += amount
			campaign.UpdatedAt = now.UTC()
			if err := tx.Model(&campaignModel{}).
				Where("campaign_id = ?", campaign.CampaignID).
				Updates(campaignUpdatesFromEntity(campaign)).
				Error; err != nil {
				return err
			}
			return tx.Create(&budgetLogModel{
				LogID:       uuid.NewString(),
				CampaignID:  campaign.CampaignID,
				AmountDelta: 0,
				Reason:      "payout_settled",
				CreatedAt:   now.UTC(),
			}).Error
		})
	})
	if err != nil {
		return entities.Campaign{}, err
	}
	return campaign, nil
}

func (r *Repository) AppendState(ctx context.Context, item entities.StateHistory) error {
	row := stateHistoryModel{
		HistoryID:    strings.TrimSpace(item.HistoryID),
		CampaignID:   strings.TrimSpace(item.CampaignID),
		FromState:    string(item.FromState),
		ToState:      string(item.ToState),
		ChangedBy:    strings.TrimSpace(item.ChangedBy),
		ChangeReason: strings.TrimSpace(item.ChangeReason),
		CreatedAt:    item.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidCampaignInput
		}
		return err
	}
	return nil
}

func (r *Repository) AppendBudget(ctx context.Context, item entities.BudgetLog) error {
	row := budgetLogModel{
		LogID:       strings.TrimSpace(item.LogID),
		CampaignID:  strings.TrimSpace(item.CampaignID),
		AmountDelta: item.AmountDelta,
		Reason:      strings.TrimSpace(item.Reason),
		CreatedAt:   item.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidCampaignInput
		}
		return err
	}
	return nil
}

func (r *Repository) ListBudgetLog(ctx context.Context, campaignID string) ([]entities.BudgetLog, error) {
	var rows []budgetLogModel
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		Order("created_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.BudgetLog, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.BudgetLog{
			LogID:       row.LogID,
			CampaignID:  row.CampaignID,
			AmountDelta: row.AmountDelta,
			Reason:      row.Reason,
			CreatedAt:   row.CreatedAt.UTC(),
		})
	}
	return items, nil
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

func lockCampaign(tx *gorm.DB, campaignID string) (campaignModel, error) {
	var row campaignModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("campaign_id = ?", strings.TrimSpace(campaignID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return campaignModel{}, domainerrors.ErrCampaignNotFound
		}
		return campaignModel{}, err
	}
	return row, nil
}

func (r *Repository) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetryLimit; attempt++ {
		err = fn()
		if err == nil || !isRetryableConflict(err) {
			return err
		}
	}
	r.logger.Warn("campaign transaction conflicted past retry budget",
		"event", "campaign_conflict_retries_exhausted",
		"module", "campaign-ops/campaign-service",
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

type campaignModel struct {
	CampaignID      string     `gorm:"column:campaign_id;primaryKey"`
	ShopID          string     `gorm:"column:shop_id;index"`
	Title           string     `gorm:"column:title"`
	Description     string     `gorm:"column:description"`
	TotalBudget     int64      `gorm:"column:total_budget"`
	RemainingBudget int64      `gorm:"column:remaining_budget"`
	SpentBudget     int64      `gorm:"column:spent_budget"`
	TargetReviewers int        `gorm:"column:target_reviewers"`
	StartDate       time.Time  `gorm:"column:start_date"`
	EndDate         time.Time  `gorm:"column:end_date"`
	Status          string     `gorm:"column:status;index"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
	CompletedAt     *time.Time `gorm:"column:completed_at"`
}

func (campaignModel) TableName() string { return "campaigns" }

func campaignModelFromEntity(campaign entities.Campaign) campaignModel {
	return campaignModel{
		CampaignID:      strings.TrimSpace(campaign.CampaignID),
		ShopID:          strings.TrimSpace(campaign.ShopID),
		Title:           campaign.Title,
		Description:     campaign.Description,
		TotalBudget:     campaign.TotalBudget,
		RemainingBudget: campaign.RemainingBudget,
		SpentBudget:     campaign.SpentBudget,
		TargetReviewers: campaign.TargetReviewers,
		StartDate:       campaign.StartDate.UTC(),
		EndDate:         campaign.EndDate.UTC(),
		Status:          string(campaign.Status),
		CreatedAt:       campaign.CreatedAt.UTC(),
		UpdatedAt:       campaign.UpdatedAt.UTC(),
		CompletedAt:     campaign.CompletedAt,
	}
}

func campaignUpdatesFromEntity(campaign entities.Campaign) map[string]any {
	updates := map[string]any{
		"title":            campaign.Title,
		"description":      campaign.Description,
		"total_budget":     campaign.TotalBudget,
		"remaining_budget": campaign.RemainingBudget,
		"spent_budget":     campaign.SpentBudget,
		"target_reviewers": campaign.TargetReviewers,
		"start_date":       campaign.StartDate.UTC(),
		"end_date":         campaign.EndDate.UTC(),
		"status":           string(campaign.Status),
		"updated_at":       campaign.UpdatedAt.UTC(),
	}
	if campaign.CompletedAt != nil {
		updates["completed_at"] = campaign.CompletedAt.UTC()
	}
	return updates
}

func (m campaignModel) toEntity() entities.Campaign {
	return entities.Campaign{
		CampaignID:      m.CampaignID,
		ShopID:          m.ShopID,
		Title:           m.Title,
		Description:     m.Description,
		TotalBudget:     m.TotalBudget,
		RemainingBudget: m.RemainingBudget,
		SpentBudget:     m.SpentBudget,
		TargetReviewers: m.TargetReviewers,
		StartDate:       m.StartDate.UTC(),
		EndDate:         m.EndDate.UTC(),
		Status:          entities.CampaignStatus(m.Status),
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
		CompletedAt:     m.CompletedAt,
	}
}

type stateHistoryModel struct {
	HistoryID    string    `gorm:"column:history_id;primaryKey"`
	CampaignID   string    `gorm:"column:campaign_id;index"`
	FromState    string    `gorm:"column:from_state"`
	ToState      string    `gorm:"column:to_state"`
	ChangedBy    string    `gorm:"column:changed_by"`
	ChangeReason string    `gorm:"column:change_reason"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (stateHistoryModel) TableName() string { return "campaign_state_history" }

type budgetLogModel struct {
	LogID       string    `gorm:"column:log_id;primaryKey"`
	CampaignID  string    `gorm:"column:campaign_id;index"`
	AmountDelta int64     `gorm:"column:amount_delta"`
	Reason      string    `gorm:"column:reason"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (budgetLogModel) TableName() string { return "campaign_budget_log" }

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string { return "campaign_idempotency" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "campaign_outbox" }
