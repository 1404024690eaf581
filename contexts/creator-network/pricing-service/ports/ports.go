package ports

import (
	"context"
	"time"

	"revuhub/contexts/creator-network/pricing-service/domain/entities"
	"revuhub/internal/shared/events"
)

// PricingRepository owns a creator's price history. AppendRange closes the
// creator's open range (if any) at the new entry's EffectiveFrom and inserts
// the new open entry in one atomic unit, preserving the single-open-range
// invariant under concurrent writers.
type PricingRepository interface {
	AppendRange(ctx context.Context, entry entities.PriceHistoryEntry) error
	CurrentRange(ctx context.Context, creatorID string) (entities.PriceHistoryEntry, bool, error)
	RangeAt(ctx context.Context, creatorID string, at time.Time) (entities.PriceHistoryEntry, bool, error)
	ListHistory(ctx context.Context, creatorID string) ([]entities.PriceHistoryEntry, error)
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
