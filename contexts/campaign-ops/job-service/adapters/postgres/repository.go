package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"revuhub/contexts/campaign-ops/job-service/domain/entities"
	domainerrors "revuhub/contexts/campaign-ops/job-service/domain/errors"
	"revuhub/contexts/campaign-ops/job-service/ports"

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
		&jobModel{},
		&stateHistoryModel{},
		&idempotencyModel{},
		&outboxModel{},
	); err != nil {
		return err
	}
	// Partial unique index backing the one-active-job rule. AutoMigrate
	// cannot express the WHERE clause, so it is created directly.
	return r.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_active_assignment
		ON review_jobs (campaign_id, creator_id)
		WHERE status NOT IN ('completed', 'rejected', 'cancelled')`).Error
}

func (r *Repository) CreateJob(ctx context.Context, job entities.Job) error {
	row := jobModelFromEntity(job)
	err := r.withConflictRetry(func() error {
		return r.db.WithContext(ctx).Create(&row).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateAssignment
		}
		return err
	}
	return nil
}

func (r *Repository) GetJob(ctx context.Context, jobID string) (entities.Job, error) {
	var row jobModel
	err := r.db.WithContext(ctx).
		Where("job_id = ?", strings.TrimSpace(jobID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Job{}, domainerrors.ErrJobNotFound
		}
		return entities.Job{}, err
	}
	return row.toEntity(), nil
}

// UpdateJobFrom is a compare-and-swap on the status column. Zero rows
// affected means another transition got there first (or the job vanished);
// the service re-derives the failure from a fresh read.
func (r *Repository) UpdateJobFrom(ctx context.Context, job entities.Job, fromStatus entities.JobStatus) (bool, error) {
	var applied bool
	err := r.withConflictRetry(func() error {
		applied = false
		result := r.db.WithContext(ctx).
			Model(&jobModel{}).
			Where("job_id = ? AND status = ?", strings.TrimSpace(job.JobID), string(fromStatus)).
			Updates(jobUpdatesFromEntity(job))
		if result.Error != nil {
			return result.Error
		}
		applied = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *Repository) FindActiveJob(ctx context.Context, campaignID, creatorID string) (entities.Job, bool, error) {
	var row jobModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND creator_id = ? AND status NOT IN ?",
			strings.TrimSpace(campaignID),
			strings.TrimSpace(creatorID),
			terminalStatuses()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Job{}, false, nil
		}
		return entities.Job{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListByCampaign(ctx context.Context, campaignID string) ([]entities.Job, error) {
	return r.listJobs(ctx, "campaign_id = ?", strings.TrimSpace(campaignID))
}

func (r *Repository) ListByCreator(ctx context.Context, creatorID string) ([]entities.Job, error) {
	return r.listJobs(ctx, "creator_id = ?", strings.TrimSpace(creatorID))
}

func (r *Repository) listJobs(ctx context.Context, query string, arg any) ([]entities.Job, error) {
	var rows []jobModel
	if err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("created_at DESC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.Job, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) AppendState(ctx context.Context, record entities.StateHistory) error {
	row := stateHistoryModel{
		HistoryID:    strings.TrimSpace(record.HistoryID),
		JobID:        strings.TrimSpace(record.JobID),
		FromState:    string(record.FromState),
		ToState:      string(record.ToState),
		ChangedBy:    strings.TrimSpace(record.ChangedBy),
		ChangeReason: strings.TrimSpace(record.ChangeReason),
		CreatedAt:    record.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return err
	}
	return nil
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

func (r *Repository) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetryLimit; attempt++ {
		err = fn()
		if err == nil || !isRetryableConflict(err) {
			return err
		}
	}
	r.logger.Warn("job transaction conflicted past retry budget",
		"event", "job_conflict_retries_exhausted",
		"module", "campaign-ops/job-service",
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

func terminalStatuses() []string {
	return []string{
		string(entities.JobStatusCompleted),
		string(entities.JobStatusRejected),
		string(entities.JobStatusCancelled),
	}
}

type jobModel struct {
	JobID              string     `gorm:"column:job_id;primaryKey"`
	CampaignID         string     `gorm:"column:campaign_id;index"`
	CreatorID          string     `gorm:"column:creator_id;index"`
	AgreedPrice        int64      `gorm:"column:agreed_price"`
	Status             string     `gorm:"column:status;index"`
	TokensPaid         int64      `gorm:"column:tokens_paid"`
	PlatformCommission int64      `gorm:"column:platform_commission"`
	CreatorEarning     int64      `gorm:"column:creator_earning"`
	ReviewLink         string     `gorm:"column:review_link"`
	ReviewNotes        string     `gorm:"column:review_notes"`
	CloseReason        string     `gorm:"column:close_reason"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
	AcceptedAt         *time.Time `gorm:"column:accepted_at"`
	StartedAt          *time.Time `gorm:"column:started_at"`
	SubmittedAt        *time.Time `gorm:"column:submitted_at"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`
	ClosedAt           *time.Time `gorm:"column:closed_at"`
}

func (jobModel) TableName() string { return "review_jobs" }

func jobModelFromEntity(job entities.Job) jobModel {
	return jobModel{
		JobID:              strings.TrimSpace(job.JobID),
		CampaignID:         strings.TrimSpace(job.CampaignID),
		CreatorID:          strings.TrimSpace(job.CreatorID),
		AgreedPrice:        job.AgreedPrice,
		Status:             string(job.Status),
		TokensPaid:         job.TokensPaid,
		PlatformCommission: job.PlatformCommission,
		CreatorEarning:     job.CreatorEarning,
		ReviewLink:         job.ReviewLink,
		ReviewNotes:        job.ReviewNotes,
		CloseReason:        job.CloseReason,
		CreatedAt:          job.CreatedAt.UTC(),
		UpdatedAt:          job.UpdatedAt.UTC(),
		AcceptedAt:         job.AcceptedAt,
		StartedAt:          job.StartedAt,
		SubmittedAt:        job.SubmittedAt,
		CompletedAt:        job.CompletedAt,
		ClosedAt:           job.ClosedAt,
	}
}

func jobUpdatesFromEntity(job entities.Job) map[string]any {
	updates := map[string]any{
		"status":              string(job.Status),
		"tokens_paid":         job.TokensPaid,
		"platform_commission": job.PlatformCommission,
		"creator_earning":     job.CreatorEarning,
		"review_link":         job.ReviewLink,
		"review_notes":        job.ReviewNotes,
		"close_reason":        job.CloseReason,
		"updated_at":          job.UpdatedAt.UTC(),
	}
	if job.AcceptedAt != nil {
		updates["accepted_at"] = job.AcceptedAt.UTC()
	}
	if job.StartedAt != nil {
		updates["started_at"] = job.StartedAt.UTC()
	}
	if job.SubmittedAt != nil {
		updates["submitted_at"] = job.SubmittedAt.UTC()
	}
	if job.CompletedAt != nil {
		updates["completed_at"] = job.CompletedAt.UTC()
	}
	if job.ClosedAt != nil {
		updates["closed_at"] = job.ClosedAt.UTC()
	}
	return updates
}

func (m jobModel) toEntity() entities.Job {
	return entities.Job{
		JobID:              m.JobID,
		CampaignID:         m.CampaignID,
		CreatorID:          m.CreatorID,
		AgreedPrice:        m.AgreedPrice,
		Status:             entities.JobStatus(m.Status),
		TokensPaid:         m.TokensPaid,
		PlatformCommission: m.PlatformCommission,
		CreatorEarning:     m.CreatorEarning,
		ReviewLink:         m.ReviewLink,
		ReviewNotes:        m.ReviewNotes,
		CloseReason:        m.CloseReason,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
		AcceptedAt:         m.AcceptedAt,
		StartedAt:          m.StartedAt,
		SubmittedAt:        m.SubmittedAt,
		CompletedAt:        m.CompletedAt,
		ClosedAt:           m.ClosedAt,
	}
}

type stateHistoryModel struct {
	HistoryID    string    `gorm:"column:history_id;primaryKey"`
	JobID        string    `gorm:"column:job_id;index"`
	FromState    string    `gorm:"column:from_state"`
	ToState      string    `gorm:"column:to_state"`
	ChangedBy    string    `gorm:"column:changed_by"`
	ChangeReason string    `gorm:"column:change_reason"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (stateHistoryModel) TableName() string { return "job_state_history" }

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string { return "job_idempotency" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "job_outbox" }
