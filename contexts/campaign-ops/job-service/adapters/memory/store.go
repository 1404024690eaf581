package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"revuhub/contexts/campaign-ops/job-service/domain/entities"
	domainerrors "revuhub/contexts/campaign-ops/job-service/domain/errors"
	"revuhub/contexts/campaign-ops/job-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.RWMutex

	jobs        map[string]entities.Job
	stateLog    []entities.StateHistory
	idempotency map[string]ports.IdempotencyRecord
	outbox      []outboxRow
}

type outboxRow struct {
	message   ports.OutboxMessage
	published bool
}

func NewStore() *Store {
	return &Store{
		jobs:        make(map[string]entities.Job),
		stateLog:    make([]entities.StateHistory, 0),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make([]outboxRow, 0),
	}
}

// CreateJob enforces the one-active-job-per-creator-per-campaign rule under
// the store lock, which is what the partial unique index does in postgres.
func (s *Store) CreateJob(_ context.Context, job entities.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.jobs {
		if existing.CampaignID == job.CampaignID && existing.CreatorID == job.CreatorID && !existing.IsTerminal() {
			return domainerrors.ErrDuplicateAssignment
		}
	}
	if _, exists := s.jobs[job.JobID]; exists {
		return domainerrors.ErrConflict
	}
	s.jobs[job.JobID] = job
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (entities.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[strings.TrimSpace(jobID)]
	if !exists {
		return entities.Job{}, domainerrors.ErrJobNotFound
	}
	return job, nil
}

func (s *Store) UpdateJobFrom(_ context.Context, job entities.Job, fromStatus entities.JobStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.jobs[job.JobID]
	if !exists {
		return false, domainerrors.ErrJobNotFound
	}
	if current.Status != fromStatus {
		return false, nil
	}
	s.jobs[job.JobID] = job
	return true, nil
}

func (s *Store) FindActiveJob(_ context.Context, campaignID, creatorID string) (entities.Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.jobs {
		if job.CampaignID == campaignID && job.CreatorID == creatorID && !job.IsTerminal() {
			return job, true, nil
		}
	}
	return entities.Job{}, false, nil
}

func (s *Store) ListByCampaign(_ context.Context, campaignID string) ([]entities.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Job, 0)
	for _, job := range s.jobs {
		if job.CampaignID == campaignID {
			items = append(items, job)
		}
	}
	sortJobs(items)
	return items, nil
}

func (s *Store) ListByCreator(_ context.Context, creatorID string) ([]entities.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Job, 0)
	for _, job := range s.jobs {
		if job.CreatorID == creatorID {
			items = append(items, job)
		}
	}
	sortJobs(items)
	return items, nil
}

func sortJobs(items []entities.Job) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func (s *Store) AppendState(_ context.Context, record entities.StateHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateLog = append(s.stateLog, record)
	return nil
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
