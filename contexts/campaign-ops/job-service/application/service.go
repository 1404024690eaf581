package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"revuhub/contexts/campaign-ops/job-service/domain/entities"
	domainerrors "revuhub/contexts/campaign-ops/job-service/domain/errors"
	"revuhub/contexts/campaign-ops/job-service/ports"
	"revuhub/internal/shared/events"
)

const sourceService = "job-service"

type Service struct {
	Jobs           ports.JobRepository
	Budget         ports.BudgetGateway
	Payout         ports.PayoutGateway
	Prices         ports.PriceSource
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

type AssignmentInput struct {
	CampaignID  string
	CreatorID   string
	AgreedPrice int64
	ActorID     string
}

func (in AssignmentInput) validate() error {
	if strings.TrimSpace(in.CampaignID) == "" || strings.TrimSpace(in.CreatorID) == "" {
		return fmt.Errorf("%w: campaign id and creator id are required", domainerrors.ErrInvalidJobInput)
	}
	if in.AgreedPrice <= 0 {
		return fmt.Errorf("%w: agreed price must be positive", domainerrors.ErrInvalidJobInput)
	}
	return nil
}

// Propose creates a pending job offer from a creator. The agreed price is
// reserved against the campaign budget immediately, so accepting the proposal
// later never re-checks funds.
func (s Service) Propose(ctx context.Context, idempotencyKey string, input AssignmentInput) (entities.Job, bool, error) {
	input, err := s.withDefaultPrice(ctx, input)
	if err != nil {
		return entities.Job{}, false, err
	}
	return s.createJob(ctx, idempotencyKey, input, entities.JobStatusPending)
}

// Accept assigns a creator to a campaign. A pending proposal for the same
// pair is promoted to accepted without touching the budget again; any other
// live job for the pair is a duplicate assignment.
func (s Service) Accept(ctx context.Context, idempotencyKey string, input AssignmentInput) (entities.Job, bool, error) {
	input, err := s.withDefaultPrice(ctx, input)
	if err != nil {
		return entities.Job{}, false, err
	}
	if err := input.validate(); err != nil {
		return entities.Job{}, false, err
	}
	existing, found, err := s.Jobs.FindActiveJob(ctx, strings.TrimSpace(input.CampaignID), strings.TrimSpace(input.CreatorID))
	if err != nil {
		return entities.Job{}, false, err
	}
	if found {
		if !existing.CanAccept() {
			return entities.Job{}, false, domainerrors.ErrDuplicateAssignment
		}
		job, err := s.AcceptProposal(ctx, existing.JobID, input.ActorID)
		return job, false, err
	}
	return s.createJob(ctx, idempotencyKey, input, entities.JobStatusAccepted)
}

// withDefaultPrice fills a zero agreed price from the creator's current
// asking price. Explicit prices always win.
func (s Service) withDefaultPrice(ctx context.Context, input AssignmentInput) (AssignmentInput, error) {
	if input.AgreedPrice != 0 || s.Prices == nil {
		return input, nil
	}
	price, found, err := s.Prices.DefaultPrice(ctx, strings.TrimSpace(input.CreatorID))
	if err != nil {
		return AssignmentInput{}, err
	}
	if found {
		input.AgreedPrice = price
	}
	return input, nil
}

func (s Service) createJob(ctx context.Context, idempotencyKey string, input AssignmentInput, status entities.JobStatus) (entities.Job, bool, error) {
	if err := input.validate(); err != nil {
		return entities.Job{}, false, err
	}
	campaignID := strings.TrimSpace(input.CampaignID)
	creatorID := strings.TrimSpace(input.CreatorID)
	now := s.now()

	requestHash := hashPayload(map[string]any{
		"campaign_id":  campaignID,
		"creator_id":   creatorID,
		"agreed_price": input.AgreedPrice,
		"status":       string(status),
	})
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		record, found, err := s.Idempotency.GetRecord(ctx, key, now)
		if err != nil {
			return entities.Job{}, false, err
		}
		if found {
			if record.RequestHash != requestHash {
				return entities.Job{}, false, domainerrors.ErrIdempotencyKeyConflict
			}
			var replayed entities.Job
			if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
				return entities.Job{}, false, err
			}
			return replayed, true, nil
		}
	}

	reserved, err := s.Budget.Reserve(ctx, campaignID, input.AgreedPrice)
	if err != nil {
		return entities.Job{}, false, err
	}
	if !reserved {
		return entities.Job{}, false, domainerrors.ErrBudgetExhausted
	}

	jobID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Job{}, false, err
	}
	job := entities.Job{
		JobID:       jobID,
		CampaignID:  campaignID,
		CreatorID:   creatorID,
		AgreedPrice: input.AgreedPrice,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status == entities.JobStatusAccepted {
		job.AcceptedAt = &now
	}

	if err := s.Jobs.CreateJob(ctx, job); err != nil {
		// Lost a concurrent assignment race. Hand the reservation back
		// before reporting the failure.
		if releaseErr := s.Budget.Release(ctx, campaignID, input.AgreedPrice); releaseErr != nil {
			ResolveLogger(s.Logger).Error("job reservation release failed",
				"event", "job_reservation_release_failed",
				"module", "campaign-ops/job-service",
				"layer", "application",
				"campaign_id", campaignID,
				"error", releaseErr.Error(),
			)
		}
		return entities.Job{}, false, err
	}

	if err := s.appendStateLog(ctx, job, "", job.Status, input.ActorID, "created"); err != nil {
		return entities.Job{}, false, err
	}
	if err := s.appendJobOutbox(ctx, "job.created", job); err != nil {
		return entities.Job{}, false, err
	}

	if key := strings.TrimSpace(idempotencyKey); key != "" {
		payload, err := json.Marshal(job)
		if err != nil {
			return entities.Job{}, false, err
		}
		if err := s.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
			Key:             key,
			RequestHash:     requestHash,
			ResponsePayload: payload,
			ExpiresAt:       now.Add(s.idempotencyTTL()),
		}); err != nil {
			return entities.Job{}, false, err
		}
	}

	ResolveLogger(s.Logger).Info("job created",
		"event", "job_created",
		"module", "campaign-ops/job-service",
		"layer", "application",
		"job_id", job.JobID,
		"campaign_id", job.CampaignID,
		"creator_id", job.CreatorID,
		"status", string(job.Status),
		"agreed_price", job.AgreedPrice,
	)
	return job, false, nil
}

// AcceptProposal promotes a pending proposal to accepted. The budget hold
// taken at proposal time carries over unchanged.
func (s Service) AcceptProposal(ctx context.Context, jobID, actorID string) (entities.Job, error) {
	return s.transition(ctx, jobID, actorID, "accepted", func(job *entities.Job, now time.Time) error {
		if !job.CanAccept() {
			return transitionError(job.Status, entities.JobStatusAccepted)
		}
		job.Status = entities.JobStatusAccepted
		job.AcceptedAt = &now
		return nil
	})
}

func (s Service) Start(ctx context.Context, jobID, actorID string) (entities.Job, error) {
	return s.transition(ctx, jobID, actorID, "started", func(job *entities.Job, now time.Time) error {
		if !job.CanStart() {
			return transitionError(job.Status, entities.JobStatusInProgress)
		}
		job.Status = entities.JobStatusInProgress
		job.StartedAt = &now
		return nil
	})
}

type SubmissionInput struct {
	ReviewLink  string
	ReviewNotes string
	ActorID     string
}

func (s Service) Submit(ctx context.Context, jobID string, input SubmissionInput) (entities.Job, error) {
	link, err := url.ParseRequestURI(strings.TrimSpace(input.ReviewLink))
	if err != nil || (link.Scheme != "http" && link.Scheme != "https") {
		return entities.Job{}, fmt.Errorf("%w: review link must be an http(s) url", domainerrors.ErrInvalidJobInput)
	}
	return s.transition(ctx, jobID, input.ActorID, "submitted", func(job *entities.Job, now time.Time) error {
		if !job.CanSubmit() {
			return transitionError(job.Status, entities.JobStatusSubmitted)
		}
		job.Status = entities.JobStatusSubmitted
		job.ReviewLink = link.String()
		job.ReviewNotes = strings.TrimSpace(input.ReviewNotes)
		job.SubmittedAt = &now
		return nil
	})
}

// Approve completes a submitted job. The payout is settled before the status
// flip: a lost race between two approvals then surfaces as an already-settled
// error instead of paying twice. When the flip itself loses, because the job
// was cancelled or rejected in between, the settlement is voided so the
// creator is not paid for a job that never completed.
func (s Service) Approve(ctx context.Context, jobID, actorID string) (entities.Job, error) {
	job, err := s.Jobs.GetJob(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return entities.Job{}, err
	}
	if !job.CanApprove() {
		return entities.Job{}, transitionError(job.Status, entities.JobStatusCompleted)
	}

	result, err := s.Payout.Settle(ctx, ports.PayoutInput{
		JobID:       job.JobID,
		CampaignID:  job.CampaignID,
		CreatorID:   job.CreatorID,
		AgreedPrice: job.AgreedPrice,
	})
	if err != nil {
		return entities.Job{}, err
	}

	fromStatus := job.Status
	now := s.now()
	job.Status = entities.JobStatusCompleted
	job.TokensPaid = result.TokensPaid
	job.PlatformCommission = result.PlatformCommission
	job.CreatorEarning = result.CreatorEarning
	job.CompletedAt = &now
	job.UpdatedAt = now

	applied, err := s.Jobs.UpdateJobFrom(ctx, job, fromStatus)
	if err != nil {
		return entities.Job{}, err
	}
	if !applied {
		if voidErr := s.Payout.Void(ctx, job.JobID); voidErr != nil {
			ResolveLogger(s.Logger).Error("payout void failed",
				"event", "job_payout_void_failed",
				"module", "campaign-ops/job-service",
				"layer", "application",
				"job_id", job.JobID,
				"error", voidErr.Error(),
			)
		}
		return entities.Job{}, transitionError(fromStatus, entities.JobStatusCompleted)
	}
	if err := s.appendStateLog(ctx, job, fromStatus, job.Status, actorID, "approved"); err != nil {
		return entities.Job{}, err
	}
	if err := s.Budget.Settle(ctx, job.CampaignID, job.AgreedPrice); err != nil {
		ResolveLogger(s.Logger).Error("budget settle failed",
			"event", "job_budget_settle_failed",
			"module", "campaign-ops/job-service",
			"layer", "application",
			"job_id", job.JobID,
			"error", err.Error(),
		)
	}
	if err := s.appendJobOutbox(ctx, "job.completed", job); err != nil {
		return entities.Job{}, err
	}

	ResolveLogger(s.Logger).Info("job completed",
		"event", "job_completed",
		"module", "campaign-ops/job-service",
		"layer", "application",
		"job_id", job.JobID,
		"tokens_paid", job.TokensPaid,
		"platform_commission", job.PlatformCommission,
		"creator_earning", job.CreatorEarning,
	)
	return job, nil
}

func (s Service) Reject(ctx context.Context, jobID, actorID, reason string) (entities.Job, error) {
	return s.close(ctx, jobID, actorID, reason, entities.JobStatusRejected, "rejected", entities.Job.CanReject)
}

func (s Service) Cancel(ctx context.Context, jobID, actorID, reason string) (entities.Job, error) {
	return s.close(ctx, jobID, actorID, reason, entities.JobStatusCancelled, "cancelled", entities.Job.CanCancel)
}

// close moves the job to a terminal status and releases the budget hold the
// job has carried since creation. The status flip happens first, so only the
// winner of two concurrent closes releases the hold.
func (s Service) close(ctx context.Context, jobID, actorID, reason string, target entities.JobStatus, event string, allowed func(entities.Job) bool) (entities.Job, error) {
	job, err := s.Jobs.GetJob(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return entities.Job{}, err
	}
	if !allowed(job) {
		return entities.Job{}, transitionError(job.Status, target)
	}

	fromStatus := job.Status
	now := s.now()
	job.Status = target
	job.CloseReason = strings.TrimSpace(reason)
	job.ClosedAt = &now
	job.UpdatedAt = now

	applied, err := s.Jobs.UpdateJobFrom(ctx, job, fromStatus)
	if err != nil {
		return entities.Job{}, err
	}
	if !applied {
		return entities.Job{}, transitionError(fromStatus, target)
	}
	if err := s.Budget.Release(ctx, job.CampaignID, job.AgreedPrice); err != nil {
		ResolveLogger(s.Logger).Error("budget release failed",
			"event", "job_budget_release_failed",
			"module", "campaign-ops/job-service",
			"layer", "application",
			"job_id", job.JobID,
			"campaign_id", job.CampaignID,
			"error", err.Error(),
		)
	}
	if err := s.appendStateLog(ctx, job, fromStatus, target, actorID, job.CloseReason); err != nil {
		return entities.Job{}, err
	}
	if err := s.appendJobOutbox(ctx, "job."+event, job); err != nil {
		return entities.Job{}, err
	}

	ResolveLogger(s.Logger).Info("job closed",
		"event", "job_"+event,
		"module", "campaign-ops/job-service",
		"layer", "application",
		"job_id", job.JobID,
		"campaign_id", job.CampaignID,
		"released_amount", job.AgreedPrice,
	)
	return job, nil
}

func (s Service) transition(ctx context.Context, jobID, actorID, event string, apply func(*entities.Job, time.Time) error) (entities.Job, error) {
	job, err := s.Jobs.GetJob(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return entities.Job{}, err
	}

	fromStatus := job.Status
	now := s.now()
	if err := apply(&job, now); err != nil {
		return entities.Job{}, err
	}
	job.UpdatedAt = now

	applied, err := s.Jobs.UpdateJobFrom(ctx, job, fromStatus)
	if err != nil {
		return entities.Job{}, err
	}
	if !applied {
		return entities.Job{}, transitionError(fromStatus, job.Status)
	}
	if err := s.appendStateLog(ctx, job, fromStatus, job.Status, actorID, event); err != nil {
		return entities.Job{}, err
	}
	if err := s.appendJobOutbox(ctx, "job."+event, job); err != nil {
		return entities.Job{}, err
	}

	ResolveLogger(s.Logger).Info("job transitioned",
		"event", "job_"+event,
		"module", "campaign-ops/job-service",
		"layer", "application",
		"job_id", job.JobID,
		"from_status", string(fromStatus),
		"to_status", string(job.Status),
	)
	return job, nil
}

func (s Service) Get(ctx context.Context, jobID string) (entities.Job, error) {
	return s.Jobs.GetJob(ctx, strings.TrimSpace(jobID))
}

func (s Service) ListByCampaign(ctx context.Context, campaignID string) ([]entities.Job, error) {
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaign id is required", domainerrors.ErrInvalidJobInput)
	}
	return s.Jobs.ListByCampaign(ctx, campaignID)
}

func (s Service) ListByCreator(ctx context.Context, creatorID string) ([]entities.Job, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, fmt.Errorf("%w: creator id is required", domainerrors.ErrInvalidJobInput)
	}
	return s.Jobs.ListByCreator(ctx, creatorID)
}

func (s Service) appendStateLog(ctx context.Context, job entities.Job, from, to entities.JobStatus, actorID, reason string) error {
	historyID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return s.Jobs.AppendState(ctx, entities.StateHistory{
		HistoryID:    historyID,
		JobID:        job.JobID,
		FromState:    from,
		ToState:      to,
		ChangedBy:    strings.TrimSpace(actorID),
		ChangeReason: reason,
		CreatedAt:    s.now(),
	})
}

func (s Service) appendJobOutbox(ctx context.Context, eventType string, job entities.Job) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, eventType, sourceService, "job_id", job.JobID, s.now(), map[string]any{
		"job_id":       job.JobID,
		"campaign_id":  job.CampaignID,
		"creator_id":   job.CreatorID,
		"status":       string(job.Status),
		"agreed_price": job.AgreedPrice,
		"tokens_paid":  job.TokensPaid,
	})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 7 * 24 * time.Hour
}

func transitionError(from, to entities.JobStatus) error {
	return fmt.Errorf("%w: %s -> %s", domainerrors.ErrInvalidStateTransition, from, to)
}

func hashPayload(payload map[string]any) string {
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
