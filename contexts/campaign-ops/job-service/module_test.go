package jobservice

import (
	"context"
	"errors"
	"sync"
	"testing"

	"revuhub/contexts/campaign-ops/job-service/application"
	"revuhub/contexts/campaign-ops/job-service/domain/entities"
	domainerrors "revuhub/contexts/campaign-ops/job-service/domain/errors"
	"revuhub/contexts/campaign-ops/job-service/ports"
)

type fakeBudget struct {
	mu        sync.Mutex
	remaining int64
	released  int64
	settled   int64
	reserves  int
}

func (b *fakeBudget) Reserve(_ context.Context, _ string, amount int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining < amount {
		return false, nil
	}
	b.remaining -= amount
	b.reserves++
	return true, nil
}

func (b *fakeBudget) Release(_ context.Context, _ string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining += amount
	b.released += amount
	return nil
}

func (b *fakeBudget) Settle(_ context.Context, _ string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settled += amount
	return nil
}

func (b *fakeBudget) snapshot() (int64, int64, int64, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining, b.released, b.settled, b.reserves
}

var errAlreadySettled = errors.New("job payout already settled")

type fakePayout struct {
	mu      sync.Mutex
	settled map[string]ports.PayoutResult
	calls   int
	voids   int
}

func newFakePayout() *fakePayout {
	return &fakePayout{settled: make(map[string]ports.PayoutResult)}
}

func (p *fakePayout) Settle(_ context.Context, input ports.PayoutInput) (ports.PayoutResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.settled[input.JobID]; exists {
		return ports.PayoutResult{}, errAlreadySettled
	}
	commission := input.AgreedPrice / 5
	result := ports.PayoutResult{
		PlatformCommission: commission,
		CreatorEarning:     input.AgreedPrice - commission,
		TokensPaid:         input.AgreedPrice,
	}
	p.settled[input.JobID] = result
	p.calls++
	return result, nil
}

func (p *fakePayout) Void(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.settled[jobID]; !exists {
		return errors.New("no settlement for job")
	}
	delete(p.settled, jobID)
	p.voids++
	return nil
}

func (p *fakePayout) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakePayout) voidCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voids
}

func (p *fakePayout) settledCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.settled)
}

// hookedPayout runs afterSettle once a settlement lands, before Settle
// returns. Tests use it to squeeze a state change into the window between
// the settlement and the job's status flip.
type hookedPayout struct {
	*fakePayout
	afterSettle func()
}

func (p *hookedPayout) Settle(ctx context.Context, input ports.PayoutInput) (ports.PayoutResult, error) {
	result, err := p.fakePayout.Settle(ctx, input)
	if err == nil && p.afterSettle != nil {
		p.afterSettle()
	}
	return result, err
}

func assignment(creatorID string, price int64) application.AssignmentInput {
	return application.AssignmentInput{
		CampaignID:  "campaign-1",
		CreatorID:   creatorID,
		AgreedPrice: price,
		ActorID:     "shop-1",
	}
}

func TestJobLifecycleHappyPath(t *testing.T) {
	budget := &fakeBudget{remaining: 5000}
	payout := newFakePayout()
	module := NewInMemoryModule(budget, payout, nil, nil)
	ctx := context.Background()

	job, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 1000))
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if job.Status != entities.JobStatusAccepted || job.AcceptedAt == nil {
		t.Fatalf("expected accepted job with timestamp, got %+v", job)
	}

	job, err = module.Service.Start(ctx, job.JobID, "creator-1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if job.Status != entities.JobStatusInProgress || job.StartedAt == nil {
		t.Fatalf("expected in-progress job, got %+v", job)
	}

	job, err = module.Service.Submit(ctx, job.JobID, application.SubmissionInput{
		ReviewLink:  "https://reviews.example.com/r/123",
		ReviewNotes: "posted with photos",
		ActorID:     "creator-1",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if job.Status != entities.JobStatusSubmitted || job.SubmittedAt == nil {
		t.Fatalf("expected submitted job, got %+v", job)
	}

	job, err = module.Service.Approve(ctx, job.JobID, "shop-1")
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if job.Status != entities.JobStatusCompleted || job.CompletedAt == nil {
		t.Fatalf("expected completed job, got %+v", job)
	}
	if job.TokensPaid != 1000 || job.PlatformCommission != 200 || job.CreatorEarning != 800 {
		t.Fatalf("unexpected payout figures: %+v", job)
	}

	remaining, released, settled, _ := budget.snapshot()
	if remaining != 4000 {
		t.Fatalf("expected completion to keep the hold consumed, remaining %d", remaining)
	}
	if released != 0 {
		t.Fatalf("expected no release on completion, got %d", released)
	}
	if settled != 1000 {
		t.Fatalf("expected settle recorded for audit, got %d", settled)
	}
}

func TestAcceptPromotesPendingProposal(t *testing.T) {
	budget := &fakeBudget{remaining: 2000}
	module := NewInMemoryModule(budget, newFakePayout(), nil, nil)
	ctx := context.Background()

	proposal, _, err := module.Service.Propose(ctx, "", assignment("creator-1", 700))
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	if proposal.Status != entities.JobStatusPending {
		t.Fatalf("expected pending proposal, got %s", proposal.Status)
	}

	accepted, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 700))
	if err != nil {
		t.Fatalf("accept of proposal failed: %v", err)
	}
	if accepted.JobID != proposal.JobID {
		t.Fatalf("expected promotion of the existing proposal, got new job %s", accepted.JobID)
	}
	if accepted.Status != entities.JobStatusAccepted {
		t.Fatalf("expected accepted status, got %s", accepted.Status)
	}

	_, _, _, reserves := budget.snapshot()
	if reserves != 1 {
		t.Fatalf("expected the proposal's hold to carry over, reserves %d", reserves)
	}
}

func TestDuplicateAssignmentRefused(t *testing.T) {
	budget := &fakeBudget{remaining: 5000}
	module := NewInMemoryModule(budget, newFakePayout(), nil, nil)
	ctx := context.Background()

	if _, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 500)); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	_, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 500))
	if !errors.Is(err, domainerrors.ErrDuplicateAssignment) {
		t.Fatalf("expected duplicate assignment, got %v", err)
	}

	remaining, _, _, reserves := budget.snapshot()
	if reserves != 1 || remaining != 4500 {
		t.Fatalf("expected no second hold, reserves %d remaining %d", reserves, remaining)
	}
}

func TestBudgetExhaustedRefusesAssignment(t *testing.T) {
	budget := &fakeBudget{remaining: 1000}
	module := NewInMemoryModule(budget, newFakePayout(), nil, nil)
	ctx := context.Background()

	if _, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 600)); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}
	_, _, err := module.Service.Accept(ctx, "", assignment("creator-2", 600))
	if !errors.Is(err, domainerrors.ErrBudgetExhausted) {
		t.Fatalf("expected budget exhausted, got %v", err)
	}

	jobs, err := module.Service.ListByCampaign(ctx, "campaign-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected the refused assignment to create nothing, got %d jobs", len(jobs))
	}
}

func TestConcurrentAcceptHonorsBudget(t *testing.T) {
	budget := &fakeBudget{remaining: 1000}
	module := NewInMemoryModule(budget, newFakePayout(), nil, nil)
	ctx := context.Background()

	creators := []string{"creator-1", "creator-2"}
	var wg sync.WaitGroup
	results := make(chan error, len(creators))
	for _, creatorID := range creators {
		wg.Add(1)
		go func(creatorID string) {
			defer wg.Done()
			_, _, err := module.Service.Accept(ctx, "", assignment(creatorID, 600))
			results <- err
		}(creatorID)
	}
	wg.Wait()
	close(results)

	succeeded, exhausted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domainerrors.ErrBudgetExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected accept error: %v", err)
		}
	}
	if succeeded != 1 || exhausted != 1 {
		t.Fatalf("expected exactly one winner on a 1000 budget, got %d wins %d exhausted", succeeded, exhausted)
	}

	remaining, _, _, reserves := budget.snapshot()
	if remaining != 400 || reserves != 1 {
		t.Fatalf("expected a single 600 hold, remaining %d reserves %d", remaining, reserves)
	}

	jobs, err := module.Service.ListByCampaign(ctx, "campaign-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one accepted job, got %d", len(jobs))
	}
}

func TestRejectReleasesHold(t *testing.T) {
	budget := &fakeBudget{remaining: 1000}
	module := NewInMemoryModule(budget, newFakePayout(), nil, nil)
	ctx := context.Background()

	job, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 600))
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	rejected, err := module.Service.Reject(ctx, job.JobID, "shop-1", "quality concerns")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != entities.JobStatusRejected || rejected.ClosedAt == nil {
		t.Fatalf("expected rejected job, got %+v", rejected)
	}
	if rejected.CloseReason != "quality concerns" {
		t.Fatalf("expected close reason recorded, got %q", rejected.CloseReason)
	}

	remaining, released, _, _ := budget.snapshot()
	if remaining != 1000 || released != 600 {
		t.Fatalf("expected hold returned on reject, remaining %d released %d", remaining, released)
	}

	// The terminal job no longer blocks the pair.
	if _, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 400)); err != nil {
		t.Fatalf("re-accept after reject failed: %v", err)
	}
}

func TestApproveRequiresSubmitted(t *testing.T) {
	budget := &fakeBudget{remaining: 1000}
	payout := newFakePayout()
	module := NewInMemoryModule(budget, payout, nil, nil)
	ctx := context.Background()

	job, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 500))
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	_, err = module.Service.Approve(ctx, job.JobID, "shop-1")
	if !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if payout.callCount() != 0 {
		t.Fatalf("expected no settlement attempt for an unapprovable job")
	}

	current, err := module.Service.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Status != entities.JobStatusAccepted {
		t.Fatalf("expected refused approve to leave the job untouched, got %s", current.Status)
	}
}

func TestSubmitValidatesReviewLink(t *testing.T) {
	module := NewInMemoryModule(&fakeBudget{remaining: 1000}, newFakePayout(), nil, nil)
	ctx := context.Background()

	job, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 500))
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	for _, link := range []string{"", "not a url", "ftp://files.example.com/review"} {
		_, err := module.Service.Submit(ctx, job.JobID, application.SubmissionInput{ReviewLink: link, ActorID: "creator-1"})
		if !errors.Is(err, domainerrors.ErrInvalidJobInput) {
			t.Fatalf("expected invalid input for link %q, got %v", link, err)
		}
	}
}

func TestCancelFromNonTerminalOnly(t *testing.T) {
	budget := &fakeBudget{remaining: 2000}
	module := NewInMemoryModule(budget, newFakePayout(), nil, nil)
	ctx := context.Background()

	job, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 500))
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if _, err := module.Service.Start(ctx, job.JobID, "creator-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	cancelled, err := module.Service.Cancel(ctx, job.JobID, "shop-1", "campaign wound down")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != entities.JobStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	_, err = module.Service.Cancel(ctx, job.JobID, "shop-1", "again")
	if !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected terminal job to refuse cancel, got %v", err)
	}

	_, released, _, _ := budget.snapshot()
	if released != 500 {
		t.Fatalf("expected exactly one release, got %d", released)
	}
}

func TestConcurrentApproveSettlesOnce(t *testing.T) {
	budget := &fakeBudget{remaining: 2000}
	payout := newFakePayout()
	module := NewInMemoryModule(budget, payout, nil, nil)
	ctx := context.Background()

	job, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 1000))
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if _, err := module.Service.Submit(ctx, job.JobID, application.SubmissionInput{
		ReviewLink: "https://reviews.example.com/r/9",
		ActorID:    "creator-1",
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	const approvers = 8
	var wg sync.WaitGroup
	results := make(chan error, approvers)
	for i := 0; i < approvers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := module.Service.Approve(ctx, job.JobID, "shop-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one approval to win, got %d", succeeded)
	}
	if payout.callCount() != 1 {
		t.Fatalf("expected one settlement, got %d", payout.callCount())
	}

	_, _, settled, _ := budget.snapshot()
	if settled != 1000 {
		t.Fatalf("expected budget settle recorded once, got %d", settled)
	}
}

func TestApproveVoidsSettlementWhenJobCloses(t *testing.T) {
	budget := &fakeBudget{remaining: 2000}
	payout := &hookedPayout{fakePayout: newFakePayout()}
	module := NewInMemoryModule(budget, payout, nil, nil)
	ctx := context.Background()

	job, _, err := module.Service.Accept(ctx, "", assignment("creator-1", 1000))
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if _, err := module.Service.Submit(ctx, job.JobID, application.SubmissionInput{
		ReviewLink: "https://reviews.example.com/r/17",
		ActorID:    "creator-1",
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// The shop cancels after the settlement lands but before the approval
	// flips the status, so the approval loses its compare-and-swap.
	var cancelErr error
	payout.afterSettle = func() {
		_, cancelErr = module.Service.Cancel(ctx, job.JobID, "shop-1", "campaign withdrawn")
	}

	_, err = module.Service.Approve(ctx, job.JobID, "shop-1")
	if !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected the approval to lose, got %v", err)
	}
	if cancelErr != nil {
		t.Fatalf("interleaved cancel failed: %v", cancelErr)
	}

	final, err := module.Service.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if final.Status != entities.JobStatusCancelled {
		t.Fatalf("expected cancelled job, got %s", final.Status)
	}
	if payout.settledCount() != 0 {
		t.Fatalf("expected the settlement voided, %d remain", payout.settledCount())
	}
	if payout.voidCount() != 1 {
		t.Fatalf("expected exactly one void, got %d", payout.voidCount())
	}

	remaining, released, settled, _ := budget.snapshot()
	if remaining != 2000 || released != 1000 {
		t.Fatalf("expected the cancel to return the hold, remaining %d released %d", remaining, released)
	}
	if settled != 0 {
		t.Fatalf("expected no budget settle for a cancelled job, got %d", settled)
	}
}

type fakePrices struct {
	price int64
}

func (p fakePrices) DefaultPrice(_ context.Context, _ string) (int64, bool, error) {
	if p.price <= 0 {
		return 0, false, nil
	}
	return p.price, true, nil
}

func TestProposeDefaultsPriceFromCreatorRange(t *testing.T) {
	budget := &fakeBudget{remaining: 5000}
	module := NewInMemoryModule(budget, newFakePayout(), fakePrices{price: 750}, nil)
	ctx := context.Background()

	job, _, err := module.Service.Propose(ctx, "", assignment("creator-1", 0))
	if err != nil {
		t.Fatalf("propose without explicit price failed: %v", err)
	}
	if job.AgreedPrice != 750 {
		t.Fatalf("expected defaulted price 750, got %d", job.AgreedPrice)
	}
	remaining, _, _, _ := budget.snapshot()
	if remaining != 4250 {
		t.Fatalf("expected reservation at the defaulted price, got remaining %d", remaining)
	}

	// Explicit prices always win over the creator's range.
	explicit, _, err := module.Service.Accept(ctx, "", assignment("creator-2", 900))
	if err != nil {
		t.Fatalf("accept with explicit price failed: %v", err)
	}
	if explicit.AgreedPrice != 900 {
		t.Fatalf("expected explicit price 900, got %d", explicit.AgreedPrice)
	}

	// No open range and no explicit price is rejected as invalid input.
	unpriced := NewInMemoryModule(&fakeBudget{remaining: 5000}, newFakePayout(), fakePrices{}, nil)
	if _, _, err := unpriced.Service.Propose(ctx, "", assignment("creator-3", 0)); !errors.Is(err, domainerrors.ErrInvalidJobInput) {
		t.Fatalf("expected invalid input without a price, got %v", err)
	}
}
