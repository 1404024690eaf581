package ports

import (
	"context"
	"time"

	"revuhub/contexts/finance-core/payout-engine/domain/entities"
	"revuhub/internal/shared/events"
)

// PayoutRepository persists settlements and their creator-side legs.
// RecordSettlement writes the settlement, its earning, and the creator stats
// bump in one atomic unit, and fails with ErrAlreadySettled when a settlement
// for the job already exists. VoidSettlement reverses all three in one atomic
// unit and returns the removed settlement; it fails with
// ErrSettlementNotFound when the job has none.
type PayoutRepository interface {
	RecordSettlement(ctx context.Context, settlement entities.Settlement, earning entities.Earning) error
	VoidSettlement(ctx context.Context, jobID string) (entities.Settlement, error)
	GetSettlementByJob(ctx context.Context, jobID string) (entities.Settlement, error)
	ListEarnings(ctx context.Context, creatorID string) ([]entities.Earning, error)
	// ReleaseDueEarnings flips pending earnings whose hold has elapsed to
	// available and reports how many rows changed.
	ReleaseDueEarnings(ctx context.Context, now time.Time, limit int) (int, error)
	GetStats(ctx context.Context, creatorID string) (entities.CreatorStats, error)
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
