package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"revuhub/contexts/campaign-ops/campaign-service/domain/entities"
	domainerrors "revuhub/contexts/campaign-ops/campaign-service/domain/errors"
	"revuhub/contexts/campaign-ops/campaign-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.RWMutex

	campaigns   map[string]entities.Campaign
	stateLog    []entities.StateHistory
	budgetLog   []entities.BudgetLog
	idempotency map[string]ports.IdempotencyRecord
	outbox      []outboxRow
}

type outboxRow struct {
	message   ports.OutboxMessage
	published bool
}

func NewStore() *Store {
	return &Store{
		campaigns:   make(map[string]entities.Campaign),
		stateLog:    make([]entities.StateHistory, 0),
		budgetLog:   make([]entities.BudgetLog, 0),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make([]outboxRow, 0),
	}
}

func (s *Store) CreateCampaign(_ context.Context, campaign entities.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[campaign.CampaignID]; exists {
		return domainerrors.ErrInvalidCampaignInput
	}
	s.campaigns[campaign.CampaignID] = campaign
	return nil
}

func (s *Store) GetCampaign(_ context.Context, campaignID string) (entities.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.campaigns[strings.TrimSpace(campaignID)]
	if !exists {
		return entities.Campaign{}, domainerrors.ErrCampaignNotFound
	}
	return item, nil
}

func (s *Store) UpdateCampaign(_ context.Context, campaign entities.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[campaign.CampaignID]; !exists {
		return domainerrors.ErrCampaignNotFound
	}
	s.campaigns[campaign.CampaignID] = campaign
	return nil
}

func (s *Store) ListCampaigns(_ context.Context, filter ports.CampaignFilter) ([]entities.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Campaign, 0, len(s.campaigns))
	for _, campaign := range s.campaigns {
		if strings.TrimSpace(filter.ShopID) != "" && campaign.ShopID != strings.TrimSpace(filter.ShopID) {
			continue
		}
		if filter.Status != "" && campaign.Status != filter.Status {
			continue
		}
		items = append(items, campaign)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// ReserveBudget holds the store lock for the whole check-and-decrement, so
// concurrent reservations on one campaign serialize here.
func (s *Store) ReserveBudget(_ context.Context, campaignID string, amount int64, now time.Time) (entities.Campaign, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, exists := s.campaigns[strings.TrimSpace(campaignID)]
	if !exists {
		return entities.Campaign{}, false, domainerrors.ErrCampaignNotFound
	}
	if !campaign.CanAllocate(now) {
		return entities.Campaign{}, false, domainerrors.ErrCampaignClosed
	}
	if campaign.RemainingBudget < amount {
		return entities.Campaign{}, false, nil
	}

	campaign.RemainingBudget -= amount
	campaign.UpdatedAt = now
	s.campaigns[campaign.CampaignID] = campaign
	s.budgetLog = append(s.budgetLog, entities.BudgetLog{
		LogID:       uuid.NewString(),
		CampaignID:  campaign.CampaignID,
		AmountDelta: -amount,
		Reason:      "budget_reserved",
		CreatedAt:   now,
	})
	return campaign, true, nil
}

func (s *Store) ReleaseBudget(_ context.Context, campaignID string, amount int64, now time.Time) (entities.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, exists := s.campaigns[strings.TrimSpace(campaignID)]
	if !exists {
		return entities.Campaign{}, domainerrors.ErrCampaignNotFound
	}

	campaign.RemainingBudget += amount
	if campaign.RemainingBudget > campaign.TotalBudget {
		campaign.RemainingBudget = campaign.TotalBudget
	}
	campaign.UpdatedAt = now
	s.campaigns[campaign.CampaignID] = campaign
	s.budgetLog = append(s.budgetLog, entities.BudgetLog{
		LogID:       uuid.NewString(),
		CampaignID:  campaign.CampaignID,
		AmountDelta: amount,
		Reason:      "budget_released",
		CreatedAt:   now,
	})
	return campaign, nil
}

func (s *Store) SettleBudget(_ context.Context, campaignID string, amount int64, now time.Time) (entities.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, exists := s.campaigns[strings.TrimSpace(campaignID)]
	if !exists {
		return entities.Campaign{}, domainerrors.ErrCampaignNotFound
	}

	campaign.SpentBudget += amount
	campaign.UpdatedAt = now
	s.campaigns[campaign.CampaignID] = campaign
	s.budgetLog = append(s.budgetLog, entities.BudgetLog{
		LogID:       uuid.NewString(),
		CampaignID:  campaign.CampaignID,
		AmountDelta: 0,
		Reason:      "payout_settled",
		CreatedAt:   now,
	})
	return campaign, nil
}

func (s *Store) AppendState(_ context.Context, item entities.StateHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateLog = append(s.stateLog, item)
	return nil
}

func (s *Store) AppendBudget(_ context.Context, item entities.BudgetLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.budgetLog = append(s.budgetLog, item)
	return nil
}

func (s *Store) ListBudgetLog(_ context.Context, campaignID string) ([]entities.BudgetLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.BudgetLog, 0)
	for _, item := range s.budgetLog {
		if item.CampaignID == strings.TrimSpace(campaignID) {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.idempotency[record.Key]
	if exists {
		if existing.RequestHash != record.RequestHash || !bytes.Equal(existing.ResponsePayload, record.ResponsePayload) {
			return domainerrors.ErrIdempotencyKeyConflict
		}
	}
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbox = append(s.outbox, outboxRow{
		message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].message.OutboxID == outboxID {
			s.outbox[i].published = true
			return nil
		}
	}
	return domainerrors.ErrConflict
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
