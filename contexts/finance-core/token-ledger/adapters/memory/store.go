package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"revuhub/contexts/finance-core/token-ledger/domain/entities"
	domainerrors "revuhub/contexts/finance-core/token-ledger/domain/errors"
	"revuhub/contexts/finance-core/token-ledger/ports"

	"github.com/google/uuid"
)

// Store keeps every wallet aggregate behind one mutex, which gives the
// per-shop serialization the debit contract requires.
type Store struct {
	mu sync.RWMutex

	batches     map[string]entities.TokenBatch
	usage       []entities.TokenUsage
	idempotency map[string]ports.IdempotencyRecord
	outbox      []outboxRow
}

type outboxRow struct {
	message   ports.OutboxMessage
	published bool
}

func NewStore() *Store {
	return &Store{
		batches:     make(map[string]entities.TokenBatch),
		usage:       make([]entities.TokenUsage, 0),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make([]outboxRow, 0),
	}
}

func (s *Store) CreateBatch(_ context.Context, batch entities.TokenBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.BatchID]; exists {
		return domainerrors.ErrConflict
	}
	s.batches[batch.BatchID] = batch
	return nil
}

func (s *Store) ListBatches(_ context.Context, shopID string) ([]entities.TokenBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.TokenBatch, 0)
	for _, batch := range s.batches {
		if batch.ShopID == strings.TrimSpace(shopID) {
			items = append(items, batch)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ExpiresAt.Before(items[j].ExpiresAt)
	})
	return items, nil
}

func (s *Store) DebitBatches(_ context.Context, shopID string, amount int64, usage entities.TokenUsage) ([]entities.BatchConsumption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := usage.CreatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	live := make([]entities.TokenBatch, 0)
	var total int64
	for _, batch := range s.batches {
		if batch.ShopID == shopID && batch.Live(now) {
			live = append(live, batch)
			total += batch.Remaining
		}
	}
	if total < amount {
		return nil, domainerrors.ErrInsufficientBalance
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].ExpiresAt.Before(live[j].ExpiresAt)
	})

	remaining := amount
	consumed := make([]entities.BatchConsumption, 0, len(live))
	for _, batch := range live {
		if remaining == 0 {
			break
		}
		take := batch.Remaining
		if take > remaining {
			take = remaining
		}
		batch.Remaining -= take
		remaining -= take
		s.batches[batch.BatchID] = batch
		consumed = append(consumed, entities.BatchConsumption{BatchID: batch.BatchID, Amount: take})
	}

	usage.Batches = append([]entities.BatchConsumption(nil), consumed...)
	s.usage = append(s.usage, usage)
	return consumed, nil
}

func (s *Store) ListUsage(_ context.Context, shopID string, limit int) ([]entities.TokenUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.TokenUsage, 0)
	for _, row := range s.usage {
		if row.ShopID == strings.TrimSpace(shopID) {
			items = append(items, row)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) PruneBatches(_ context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, batch := range s.batches {
		if limit > 0 && pruned >= limit {
			break
		}
		if batch.Remaining == 0 || !batch.ExpiresAt.After(now) {
			delete(s.batches, id)
			pruned++
		}
	}
	return pruned, nil
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
