package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"revuhub/contexts/creator-network/pricing-service/domain/entities"
	domainerrors "revuhub/contexts/creator-network/pricing-service/domain/errors"
	"revuhub/contexts/creator-network/pricing-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.RWMutex

	history map[string][]entities.PriceHistoryEntry
	outbox  []outboxRow
}

type outboxRow struct {
	message   ports.OutboxMessage
	published bool
}

func NewStore() *Store {
	return &Store{
		history: make(map[string][]entities.PriceHistoryEntry),
		outbox:  make([]outboxRow, 0),
	}
}

// AppendRange closes the open range and appends the new one under a single
// lock hold, which is the in-memory version of the postgres transaction.
func (s *Store) AppendRange(_ context.Context, entry entities.PriceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ranges := s.history[entry.CreatorID]
	for i := range ranges {
		if ranges[i].EffectiveTo == nil {
			closedAt := entry.EffectiveFrom
			ranges[i].EffectiveTo = &closedAt
		}
	}
	s.history[entry.CreatorID] = append(ranges, entry)
	return nil
}

func (s *Store) CurrentRange(_ context.Context, creatorID string) (entities.PriceHistoryEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.history[creatorID] {
		if entry.EffectiveTo == nil {
			return entry, true, nil
		}
	}
	return entities.PriceHistoryEntry{}, false, nil
}

func (s *Store) RangeAt(_ context.Context, creatorID string, at time.Time) (entities.PriceHistoryEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.history[creatorID] {
		if entry.CoversAt(at) {
			return entry, true, nil
		}
	}
	return entities.PriceHistoryEntry{}, false, nil
}

func (s *Store) ListHistory(_ context.Context, creatorID string) ([]entities.PriceHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.PriceHistoryEntry, len(s.history[creatorID]))
	copy(items, s.history[creatorID])
	sort.Slice(items, func(i, j int) bool {
		return items[i].EffectiveFrom.Before(items[j].EffectiveFrom)
	})
	return items, nil
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
