package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"revuhub/contexts/finance-core/payout-engine/domain/entities"
	domainerrors "revuhub/contexts/finance-core/payout-engine/domain/errors"
	"revuhub/contexts/finance-core/payout-engine/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.RWMutex

	settlementsByJob map[string]entities.Settlement
	earnings         []entities.Earning
	stats            map[string]entities.CreatorStats
	outbox           []outboxRow
}

type outboxRow struct {
	message   ports.OutboxMessage
	published bool
}

func NewStore() *Store {
	return &Store{
		settlementsByJob: make(map[string]entities.Settlement),
		earnings:         make([]entities.Earning, 0),
		stats:            make(map[string]entities.CreatorStats),
		outbox:           make([]outboxRow, 0),
	}
}

// RecordSettlement applies the settlement, its earning, and the stats bump
// under one lock hold, mirroring the single postgres transaction.
func (s *Store) RecordSettlement(_ context.Context, settlement entities.Settlement, earning entities.Earning) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.settlementsByJob[settlement.JobID]; exists {
		return domainerrors.ErrAlreadySettled
	}
	s.settlementsByJob[settlement.JobID] = settlement
	s.earnings = append(s.earnings, earning)

	stat := s.stats[settlement.CreatorID]
	stat.CreatorID = settlement.CreatorID
	stat.TotalReviews++
	stat.CompletedReviews++
	stat.TotalEarnings += settlement.CreatorEarning
	stat.UpdatedAt = settlement.SettledAt
	s.stats[settlement.CreatorID] = stat
	return nil
}

// VoidSettlement removes the settlement, drops its earning, and reverses the
// stats bump under one lock hold. The job becomes settleable again.
func (s *Store) VoidSettlement(_ context.Context, jobID string) (entities.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settlement, exists := s.settlementsByJob[jobID]
	if !exists {
		return entities.Settlement{}, domainerrors.ErrSettlementNotFound
	}
	delete(s.settlementsByJob, jobID)

	kept := s.earnings[:0]
	for _, earning := range s.earnings {
		if earning.JobID != jobID {
			kept = append(kept, earning)
		}
	}
	s.earnings = kept

	stat := s.stats[settlement.CreatorID]
	stat.TotalReviews--
	stat.CompletedReviews--
	stat.TotalEarnings -= settlement.CreatorEarning
	s.stats[settlement.CreatorID] = stat
	return settlement, nil
}

func (s *Store) GetSettlementByJob(_ context.Context, jobID string) (entities.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settlement, exists := s.settlementsByJob[jobID]
	if !exists {
		return entities.Settlement{}, domainerrors.ErrSettlementNotFound
	}
	return settlement, nil
}

func (s *Store) ListEarnings(_ context.Context, creatorID string) ([]entities.Earning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Earning, 0)
	for _, earning := range s.earnings {
		if earning.CreatorID == creatorID {
			items = append(items, earning)
		}
	}
	return items, nil
}

func (s *Store) ReleaseDueEarnings(_ context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 200
	}
	released := 0
	for i := range s.earnings {
		if released == limit {
			break
		}
		if s.earnings[i].Status == entities.EarningStatusPending && s.earnings[i].AvailableNow(now) {
			s.earnings[i].Status = entities.EarningStatusAvailable
			released++
		}
	}
	return released, nil
}

func (s *Store) GetStats(_ context.Context, creatorID string) (entities.CreatorStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stat, exists := s.stats[creatorID]
	if !exists {
		return entities.CreatorStats{CreatorID: creatorID}, nil
	}
	return stat, nil
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
