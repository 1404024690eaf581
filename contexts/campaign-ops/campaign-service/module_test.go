package campaignservice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"revuhub/contexts/campaign-ops/campaign-service/application/commands"
	"revuhub/contexts/campaign-ops/campaign-service/domain/entities"
	domainerrors "revuhub/contexts/campaign-ops/campaign-service/domain/errors"
	"revuhub/contexts/campaign-ops/campaign-service/ports"
)

type fakeFunding struct {
	mu       sync.Mutex
	debits   map[string]int64
	refunds  map[string]int64
	debitErr error
}

func newFakeFunding() *fakeFunding {
	return &fakeFunding{
		debits:  make(map[string]int64),
		refunds: make(map[string]int64),
	}
}

func (f *fakeFunding) Debit(_ context.Context, shopID string, amount int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitErr != nil {
		return f.debitErr
	}
	f.debits[shopID] += amount
	return nil
}

func (f *fakeFunding) Refund(_ context.Context, shopID string, amount int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds[shopID] += amount
	return nil
}

func (f *fakeFunding) debited(shopID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.debits[shopID]
}

func openCommand(shopID string, budget int64) commands.OpenCampaignCommand {
	now := time.Now().UTC()
	return commands.OpenCampaignCommand{
		ShopID:          shopID,
		Title:           "Spring review push",
		Description:     "Reviews for the new product line",
		TotalBudget:     budget,
		TargetReviewers: 5,
		StartDate:       now,
		EndDate:         now.Add(30 * 24 * time.Hour),
	}
}

func TestOpenCampaignEscrowsBudget(t *testing.T) {
	funding := newFakeFunding()
	module := NewInMemoryModule(funding, nil)
	ctx := context.Background()

	campaign, replayed, err := module.Handler.OpenCampaign.Execute(ctx, openCommand("shop-1", 3000))
	if err != nil {
		t.Fatalf("open campaign failed: %v", err)
	}
	if replayed {
		t.Fatalf("first open must not be a replay")
	}
	if campaign.Status != entities.CampaignStatusActive {
		t.Fatalf("expected active campaign, got %s", campaign.Status)
	}
	if campaign.RemainingBudget != 3000 || campaign.SpentBudget != 0 {
		t.Fatalf("unexpected budget counters: %+v", campaign)
	}
	if funding.debited("shop-1") != 3000 {
		t.Fatalf("expected full budget debited from wallet, got %d", funding.debited("shop-1"))
	}
}

func TestOpenCampaignFundingFailureCreatesNothing(t *testing.T) {
	funding := newFakeFunding()
	walletErr := errors.New("live token balance is insufficient")
	funding.debitErr = walletErr
	module := NewInMemoryModule(funding, nil)
	ctx := context.Background()

	_, _, err := module.Handler.OpenCampaign.Execute(ctx, openCommand("shop-1", 3000))
	if !errors.Is(err, walletErr) {
		t.Fatalf("expected the wallet error to surface unchanged, got %v", err)
	}

	campaigns, err := module.Handler.ListCampaigns.Execute(ctx, ports.CampaignFilter{ShopID: "shop-1"})
	if err != nil {
		t.Fatalf("list campaigns failed: %v", err)
	}
	if len(campaigns) != 0 {
		t.Fatalf("expected no campaign after funding failure, got %d", len(campaigns))
	}
}

func TestOpenCampaignReplay(t *testing.T) {
	funding := newFakeFunding()
	module := NewInMemoryModule(funding, nil)
	ctx := context.Background()

	cmd := openCommand("shop-1", 1500)
	cmd.IdempotencyKey = "idem-open-1"

	first, _, err := module.Handler.OpenCampaign.Execute(ctx, cmd)
	if err != nil {
		t.Fatalf("open campaign failed: %v", err)
	}
	second, replayed, err := module.Handler.OpenCampaign.Execute(ctx, cmd)
	if err != nil {
		t.Fatalf("replay open failed: %v", err)
	}
	if !replayed {
		t.Fatalf("expected replayed response")
	}
	if second.CampaignID != first.CampaignID {
		t.Fatalf("expected same campaign on replay, got %s and %s", first.CampaignID, second.CampaignID)
	}
	if funding.debited("shop-1") != 1500 {
		t.Fatalf("expected wallet debited once across replays, got %d", funding.debited("shop-1"))
	}
}

func TestReserveThenReleaseCapsAtTotal(t *testing.T) {
	module := NewInMemoryModule(newFakeFunding(), nil)
	ctx := context.Background()

	campaign, _, err := module.Handler.OpenCampaign.Execute(ctx, openCommand("shop-1", 1000))
	if err != nil {
		t.Fatalf("open campaign failed: %v", err)
	}

	ok, err := module.ReserveBudget.Execute(ctx, campaign.CampaignID, 600)
	if err != nil || !ok {
		t.Fatalf("expected first reservation to fit, ok=%v err=%v", ok, err)
	}
	ok, err = module.ReserveBudget.Execute(ctx, campaign.CampaignID, 600)
	if err != nil {
		t.Fatalf("second reservation errored: %v", err)
	}
	if ok {
		t.Fatalf("expected 600 against remaining 400 to be refused")
	}

	if err := module.ReleaseBudget.Execute(ctx, campaign.CampaignID, 600); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	// A duplicate release must not push remaining past the total.
	if err := module.ReleaseBudget.Execute(ctx, campaign.CampaignID, 600); err != nil {
		t.Fatalf("duplicate release failed: %v", err)
	}

	current, err := module.Handler.GetCampaign.Execute(ctx, campaign.CampaignID)
	if err != nil {
		t.Fatalf("get campaign failed: %v", err)
	}
	if current.RemainingBudget != 1000 {
		t.Fatalf("expected remaining capped at total, got %d", current.RemainingBudget)
	}
}

func TestConcurrentReserveBudgetAdmitsExactlyOne(t *testing.T) {
	module := NewInMemoryModule(newFakeFunding(), nil)
	ctx := context.Background()

	campaign, _, err := module.Handler.OpenCampaign.Execute(ctx, openCommand("shop-1", 1000))
	if err != nil {
		t.Fatalf("open campaign failed: %v", err)
	}

	const reservers = 2
	var wg sync.WaitGroup
	type outcome struct {
		ok  bool
		err error
	}
	results := make(chan outcome, reservers)
	for i := 0; i < reservers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := module.ReserveBudget.Execute(ctx, campaign.CampaignID, 600)
			results <- outcome{ok: ok, err: err}
		}()
	}
	wg.Wait()
	close(results)

	admitted, refused := 0, 0
	for res := range results {
		if res.err != nil {
			t.Fatalf("reserve errored: %v", res.err)
		}
		if res.ok {
			admitted++
		} else {
			refused++
		}
	}
	if admitted != 1 || refused != 1 {
		t.Fatalf("expected exactly one 600 hold on a 1000 budget, admitted %d refused %d", admitted, refused)
	}

	current, err := module.Handler.GetCampaign.Execute(ctx, campaign.CampaignID)
	if err != nil {
		t.Fatalf("get campaign failed: %v", err)
	}
	if current.RemainingBudget != 400 {
		t.Fatalf("expected remaining 400 after one hold, got %d", current.RemainingBudget)
	}
}

func TestSettleBudgetLeavesRemainingUntouched(t *testing.T) {
	module := NewInMemoryModule(newFakeFunding(), nil)
	ctx := context.Background()

	campaign, _, err := module.Handler.OpenCampaign.Execute(ctx, openCommand("shop-1", 1000))
	if err != nil {
		t.Fatalf("open campaign failed: %v", err)
	}
	if ok, err := module.ReserveBudget.Execute(ctx, campaign.CampaignID, 400); err != nil || !ok {
		t.Fatalf("reserve failed, ok=%v err=%v", ok, err)
	}
	if err := module.SettleBudget.Execute(ctx, campaign.CampaignID, 400); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	current, err := module.Handler.GetCampaign.Execute(ctx, campaign.CampaignID)
	if err != nil {
		t.Fatalf("get campaign failed: %v", err)
	}
	if current.RemainingBudget != 600 {
		t.Fatalf("expected settle not to restore remaining, got %d", current.RemainingBudget)
	}
	if current.SpentBudget != 400 {
		t.Fatalf("expected spent counter at 400, got %d", current.SpentBudget)
	}
}

func TestCampaignStatusMachine(t *testing.T) {
	module := NewInMemoryModule(newFakeFunding(), nil)
	ctx := context.Background()

	campaign, _, err := module.Handler.OpenCampaign.Execute(ctx, openCommand("shop-1", 1000))
	if err != nil {
		t.Fatalf("open campaign failed: %v", err)
	}

	paused, err := module.Handler.ChangeStatus.Execute(ctx, commands.ChangeStatusCommand{
		CampaignID: campaign.CampaignID,
		ActorID:    "shop-1",
		ToStatus:   entities.CampaignStatusPaused,
	})
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if paused.Status != entities.CampaignStatusPaused {
		t.Fatalf("expected paused, got %s", paused.Status)
	}

	// A paused campaign refuses new reservations.
	if _, err := module.ReserveBudget.Execute(ctx, campaign.CampaignID, 100); !errors.Is(err, domainerrors.ErrCampaignClosed) {
		t.Fatalf("expected closed-campaign refusal while paused, got %v", err)
	}

	completed, err := module.Handler.ChangeStatus.Execute(ctx, commands.ChangeStatusCommand{
		CampaignID: campaign.CampaignID,
		ActorID:    "shop-1",
		ToStatus:   entities.CampaignStatusCompleted,
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.CompletedAt == nil {
		t.Fatalf("expected completion timestamp on terminal state")
	}

	_, err = module.Handler.ChangeStatus.Execute(ctx, commands.ChangeStatusCommand{
		CampaignID: campaign.CampaignID,
		ActorID:    "shop-1",
		ToStatus:   entities.CampaignStatusActive,
	})
	if !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected terminal state to have no outgoing edges, got %v", err)
	}
}

func TestReserveBudgetValidation(t *testing.T) {
	module := NewInMemoryModule(newFakeFunding(), nil)
	ctx := context.Background()

	if _, err := module.ReserveBudget.Execute(ctx, "c-missing", 0); !errors.Is(err, domainerrors.ErrInvalidBudgetAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := module.ReserveBudget.Execute(ctx, "c-missing", 100); !errors.Is(err, domainerrors.ErrCampaignNotFound) {
		t.Fatalf("expected campaign not found, got %v", err)
	}
}
