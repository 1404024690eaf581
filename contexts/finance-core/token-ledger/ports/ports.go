package ports

import (
	"context"
	"time"

	"revuhub/contexts/finance-core/token-ledger/domain/entities"
	"revuhub/internal/shared/events"
)

// WalletRepository owns the batch set of a shop. DebitBatches is the one
// multi-row mutation and must serialize per shop: the full amount is consumed
// FIFO by expiry across live batches, with the usage audit row written in the
// same atomic unit, or nothing is applied at all.
type WalletRepository interface {
	CreateBatch(ctx context.Context, batch entities.TokenBatch) error
	ListBatches(ctx context.Context, shopID string) ([]entities.TokenBatch, error)
	DebitBatches(ctx context.Context, shopID string, amount int64, usage entities.TokenUsage) ([]entities.BatchConsumption, error)
	ListUsage(ctx context.Context, shopID string, limit int) ([]entities.TokenUsage, error)
	PruneBatches(ctx context.Context, now time.Time, limit int) (int, error)
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
