package ports

import (
	"context"
	"time"

	"revuhub/contexts/campaign-ops/job-service/domain/entities"
	"revuhub/internal/shared/events"
)

type JobRepository interface {
	// CreateJob persists a new job. It fails with ErrDuplicateAssignment
	// when the creator already holds a non-terminal job in the campaign.
	CreateJob(ctx context.Context, job entities.Job) error
	GetJob(ctx context.Context, jobID string) (entities.Job, error)
	// UpdateJobFrom applies the job row only while the stored status still
	// equals fromStatus. It reports false when a concurrent transition won.
	UpdateJobFrom(ctx context.Context, job entities.Job, fromStatus entities.JobStatus) (bool, error)
	FindActiveJob(ctx context.Context, campaignID, creatorID string) (entities.Job, bool, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]entities.Job, error)
	ListByCreator(ctx context.Context, creatorID string) ([]entities.Job, error)
	AppendState(ctx context.Context, record entities.StateHistory) error
}

// BudgetGateway fronts the campaign budget. Implementations delegate to the
// campaign service's budget use cases.
type BudgetGateway interface {
	Reserve(ctx context.Context, campaignID string, amount int64) (bool, error)
	Release(ctx context.Context, campaignID string, amount int64) error
	Settle(ctx context.Context, campaignID string, amount int64) error
}

type PayoutInput struct {
	JobID       string
	CampaignID  string
	CreatorID   string
	AgreedPrice int64
}

type PayoutResult struct {
	PlatformCommission int64
	CreatorEarning     int64
	TokensPaid         int64
}

// PayoutGateway settles a completed job's payout exactly once per job. Void
// compensates a settlement whose job failed to close: it reverses the
// settlement so the job can be settled again later.
type PayoutGateway interface {
	Settle(ctx context.Context, input PayoutInput) (PayoutResult, error)
	Void(ctx context.Context, jobID string) error
}

// PriceSource resolves a creator's current asking price. Assignments created
// without an explicit agreed price fall back to it; found is false when the
// creator has no open price range.
type PriceSource interface {
	DefaultPrice(ctx context.Context, creatorID string) (int64, bool, error)
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = events.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
