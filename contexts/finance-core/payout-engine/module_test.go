package payoutengine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"revuhub/contexts/finance-core/payout-engine/adapters/memory"
	"revuhub/contexts/finance-core/payout-engine/application"
	"revuhub/contexts/finance-core/payout-engine/application/workers"
	"revuhub/contexts/finance-core/payout-engine/domain/entities"
	domainerrors "revuhub/contexts/finance-core/payout-engine/domain/errors"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestModule(now time.Time) (Module, *memory.Store, *stubClock) {
	store := memory.NewStore()
	clock := &stubClock{now: now}
	module := NewModule(Dependencies{
		Payouts:        store,
		Outbox:         store,
		Clock:          clock,
		IDGenerator:    store,
		CommissionRate: 0.20,
		HoldDuration:   7 * 24 * time.Hour,
	})
	module.Store = store
	return module, store, clock
}

func settleInput(jobID string, gross int64) application.SettleInput {
	return application.SettleInput{
		JobID:       jobID,
		CampaignID:  "campaign-1",
		CreatorID:   "creator-1",
		GrossAmount: gross,
	}
}

func TestSettleSplitsCommission(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, _, _ := newTestModule(now)
	ctx := context.Background()

	settlement, err := module.Service.Settle(ctx, settleInput("job-1", 1000))
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if settlement.PlatformCommission != 200 || settlement.CreatorEarning != 800 {
		t.Fatalf("expected 200/800 split of 1000, got %d/%d", settlement.PlatformCommission, settlement.CreatorEarning)
	}
	if settlement.CommissionRate != 0.20 {
		t.Fatalf("expected rate 0.20 recorded, got %f", settlement.CommissionRate)
	}

	stored, err := module.Service.GetSettlement(ctx, "job-1")
	if err != nil {
		t.Fatalf("get settlement failed: %v", err)
	}
	if stored.SettlementID != settlement.SettlementID {
		t.Fatalf("expected stored settlement, got %+v", stored)
	}
}

func TestSettleRoundsCommission(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, _, _ := newTestModule(now)
	ctx := context.Background()

	// 20% of 333 is 66.6; the commission rounds and the earning absorbs the
	// remainder so the two legs always sum to the gross amount.
	settlement, err := module.Service.Settle(ctx, settleInput("job-odd", 333))
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if settlement.PlatformCommission+settlement.CreatorEarning != 333 {
		t.Fatalf("legs must sum to gross, got %d+%d", settlement.PlatformCommission, settlement.CreatorEarning)
	}
	if settlement.PlatformCommission != 67 {
		t.Fatalf("expected rounded commission 67, got %d", settlement.PlatformCommission)
	}
}

func TestSettleTwiceRefused(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, _, _ := newTestModule(now)
	ctx := context.Background()

	if _, err := module.Service.Settle(ctx, settleInput("job-1", 1000)); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	_, err := module.Service.Settle(ctx, settleInput("job-1", 1000))
	if !errors.Is(err, domainerrors.ErrAlreadySettled) {
		t.Fatalf("expected already settled, got %v", err)
	}

	summary, err := module.Service.EarningsSummary(ctx, "creator-1")
	if err != nil {
		t.Fatalf("earnings summary failed: %v", err)
	}
	if summary.TotalEarned != 800 {
		t.Fatalf("expected the refused repeat to add nothing, total %d", summary.TotalEarned)
	}
}

func TestSettleValidation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, _, _ := newTestModule(now)
	ctx := context.Background()

	if _, err := module.Service.Settle(ctx, settleInput("job-1", 0)); !errors.Is(err, domainerrors.ErrInvalidPayoutInput) {
		t.Fatalf("expected invalid input for zero gross, got %v", err)
	}
	if _, err := module.Service.Settle(ctx, settleInput("", 100)); !errors.Is(err, domainerrors.ErrInvalidPayoutInput) {
		t.Fatalf("expected invalid input for missing job, got %v", err)
	}
	if _, err := module.Service.GetSettlement(ctx, "job-unknown"); !errors.Is(err, domainerrors.ErrSettlementNotFound) {
		t.Fatalf("expected settlement not found, got %v", err)
	}
}

func TestVoidReversesSettlement(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, _, _ := newTestModule(now)
	ctx := context.Background()

	if _, err := module.Service.Settle(ctx, settleInput("job-1", 1000)); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	voided, err := module.Service.Void(ctx, "job-1")
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if voided.CreatorEarning != 800 {
		t.Fatalf("expected the removed settlement returned, got %+v", voided)
	}

	if _, err := module.Service.GetSettlement(ctx, "job-1"); !errors.Is(err, domainerrors.ErrSettlementNotFound) {
		t.Fatalf("expected the settlement gone, got %v", err)
	}

	summary, err := module.Service.EarningsSummary(ctx, "creator-1")
	if err != nil {
		t.Fatalf("earnings summary failed: %v", err)
	}
	if summary.TotalEarned != 0 {
		t.Fatalf("expected the earning removed, total %d", summary.TotalEarned)
	}

	stats, err := module.Service.Stats(ctx, "creator-1")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.CompletedReviews != 0 || stats.TotalEarnings != 0 {
		t.Fatalf("expected the stats bump undone, got %+v", stats)
	}

	// The job is settleable again once its settlement is voided.
	if _, err := module.Service.Settle(ctx, settleInput("job-1", 1000)); err != nil {
		t.Fatalf("re-settle after void failed: %v", err)
	}
}

func TestVoidWithoutSettlementRefused(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, _, _ := newTestModule(now)
	ctx := context.Background()

	if _, err := module.Service.Void(ctx, "job-unknown"); !errors.Is(err, domainerrors.ErrSettlementNotFound) {
		t.Fatalf("expected settlement not found, got %v", err)
	}
	if _, err := module.Service.Void(ctx, "  "); !errors.Is(err, domainerrors.ErrInvalidPayoutInput) {
		t.Fatalf("expected invalid input for blank job, got %v", err)
	}
}

func TestEarningsHoldWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, _, clock := newTestModule(now)
	ctx := context.Background()

	if _, err := module.Service.Settle(ctx, settleInput("job-1", 1000)); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	summary, err := module.Service.EarningsSummary(ctx, "creator-1")
	if err != nil {
		t.Fatalf("earnings summary failed: %v", err)
	}
	if summary.Pending != 800 || summary.Available != 0 {
		t.Fatalf("expected fresh earning on hold, pending %d available %d", summary.Pending, summary.Available)
	}

	clock.Advance(8 * 24 * time.Hour)

	summary, err = module.Service.EarningsSummary(ctx, "creator-1")
	if err != nil {
		t.Fatalf("earnings summary failed: %v", err)
	}
	if summary.Available != 800 || summary.Pending != 0 {
		t.Fatalf("expected elapsed hold to count as available, pending %d available %d", summary.Pending, summary.Available)
	}
}

func TestEarningReleaserFlipsDueRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, store, clock := newTestModule(now)
	ctx := context.Background()

	if _, err := module.Service.Settle(ctx, settleInput("job-1", 1000)); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	releaser := workers.EarningReleaser{Payouts: store, Clock: clock, BatchSize: 10}
	if err := releaser.RunOnce(ctx); err != nil {
		t.Fatalf("releaser run failed: %v", err)
	}
	earnings, err := store.ListEarnings(ctx, "creator-1")
	if err != nil {
		t.Fatalf("list earnings failed: %v", err)
	}
	if earnings[0].Status != entities.EarningStatusPending {
		t.Fatalf("expected earning still pending inside the hold, got %s", earnings[0].Status)
	}

	clock.Advance(8 * 24 * time.Hour)
	if err := releaser.RunOnce(ctx); err != nil {
		t.Fatalf("releaser run failed: %v", err)
	}
	earnings, err = store.ListEarnings(ctx, "creator-1")
	if err != nil {
		t.Fatalf("list earnings failed: %v", err)
	}
	if earnings[0].Status != entities.EarningStatusAvailable {
		t.Fatalf("expected due earning released, got %s", earnings[0].Status)
	}
}

func TestStatsAccumulate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, _, _ := newTestModule(now)
	ctx := context.Background()

	if _, err := module.Service.Settle(ctx, settleInput("job-1", 1000)); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if _, err := module.Service.Settle(ctx, settleInput("job-2", 500)); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	stats, err := module.Service.Stats(ctx, "creator-1")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.CompletedReviews != 2 {
		t.Fatalf("expected 2 completed reviews, got %d", stats.CompletedReviews)
	}
	if stats.TotalEarnings != 1200 {
		t.Fatalf("expected accumulated earnings 1200, got %d", stats.TotalEarnings)
	}
}
