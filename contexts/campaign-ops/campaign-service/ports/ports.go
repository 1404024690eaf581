package ports

import (
	"context"
	"time"

	"revuhub/contexts/campaign-ops/campaign-service/domain/entities"
	"revuhub/internal/shared/events"
)

type CampaignFilter struct {
	ShopID string
	Status entities.CampaignStatus
}

type CampaignRepository interface {
	CreateCampaign(ctx context.Context, campaign entities.Campaign) error
	GetCampaign(ctx context.Context, campaignID string) (entities.Campaign, error)
	UpdateCampaign(ctx context.Context, campaign entities.Campaign) error
	ListCampaigns(ctx context.Context, filter CampaignFilter) ([]entities.Campaign, error)
}

// BudgetRepository hosts the two aggregate-atomic budget mutations.
// ReserveBudget is a single check-and-decrement: ok=false means the remaining
// budget could not cover the amount and nothing was changed. Both calls
// append their budget log row inside the same atomic unit.
type BudgetRepository interface {
	ReserveBudget(ctx context.Context, campaignID string, amount int64, now time.Time) (entities.Campaign, bool, error)
	ReleaseBudget(ctx context.Context, campaignID string, amount int64, now time.Time) (entities.Campaign, error)
	SettleBudget(ctx context.Context, campaignID string, amount int64, now time.Time) (entities.Campaign, error)
}

type HistoryRepository interface {
	AppendState(ctx context.Context, item entities.StateHistory) error
	AppendBudget(ctx context.Context, item entities.BudgetLog) error
	ListBudgetLog(ctx context.Context, campaignID string) ([]entities.BudgetLog, error)
}

// WalletFunding is the outbound port to the shop token wallet. The concrete
// implementation is glued in at the composition root so this context never
// imports the ledger's packages. Debit errors surface unchanged, including
// the ledger's insufficient-balance failure.
type WalletFunding interface {
	Debit(ctx context.Context, shopID string, amount int64, reason string) error
	Refund(ctx context.Context, shopID string, amount int64, reason string) error
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
