package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	campaigncommands "revuhub/contexts/campaign-ops/campaign-service/application/commands"
	jobapplication "revuhub/contexts/campaign-ops/job-service/application"
	jobentities "revuhub/contexts/campaign-ops/job-service/domain/entities"
	joberrors "revuhub/contexts/campaign-ops/job-service/domain/errors"
	walletapplication "revuhub/contexts/finance-core/token-ledger/application"
	walletworkers "revuhub/contexts/finance-core/token-ledger/application/workers"
	walleterrors "revuhub/contexts/finance-core/token-ledger/domain/errors"
	"revuhub/internal/platform/messaging"
	"revuhub/internal/shared/events"
)

func openCommand(shopID string, budget int64) campaigncommands.OpenCampaignCommand {
	now := time.Now().UTC()
	return campaigncommands.OpenCampaignCommand{
		ShopID:          shopID,
		Title:           "Launch reviews",
		Description:     "Reviews for the launch window",
		TotalBudget:     budget,
		TargetReviewers: 3,
		StartDate:       now,
		EndDate:         now.Add(30 * 24 * time.Hour),
	}
}

func TestPlatformEndToEndFlow(t *testing.T) {
	platform := NewInMemoryPlatform(nil)
	ctx := context.Background()

	// The shop buys 5000 tokens.
	if _, _, err := platform.Wallet.Service.Credit(ctx, "", walletapplication.CreditInput{
		ShopID: "shop-1",
		Amount: 5000,
	}); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	// Opening a 3000-token campaign escrows the budget out of the wallet.
	campaign, _, err := platform.Campaigns.Handler.OpenCampaign.Execute(ctx, openCommand("shop-1", 3000))
	if err != nil {
		t.Fatalf("open campaign failed: %v", err)
	}
	balance, err := platform.Wallet.Service.Balance(ctx, "shop-1")
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance != 2000 {
		t.Fatalf("expected wallet balance 2000 after escrow, got %d", balance)
	}

	// A creator takes a 1000-token job and walks it through to approval.
	job, _, err := platform.Jobs.Service.Accept(ctx, "", jobapplication.AssignmentInput{
		CampaignID:  campaign.CampaignID,
		CreatorID:   "creator-1",
		AgreedPrice: 1000,
		ActorID:     "shop-1",
	})
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if _, err := platform.Jobs.Service.Start(ctx, job.JobID, "creator-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := platform.Jobs.Service.Submit(ctx, job.JobID, jobapplication.SubmissionInput{
		ReviewLink: "https://reviews.example.com/r/1",
		ActorID:    "creator-1",
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	completed, err := platform.Jobs.Service.Approve(ctx, job.JobID, "shop-1")
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if completed.Status != jobentities.JobStatusCompleted {
		t.Fatalf("expected completed job, got %s", completed.Status)
	}
	if completed.PlatformCommission != 200 || completed.CreatorEarning != 800 {
		t.Fatalf("expected 200/800 split, got %d/%d", completed.PlatformCommission, completed.CreatorEarning)
	}

	// The payout engine holds the settlement and the creator's earning.
	settlement, err := platform.Payouts.Service.GetSettlement(ctx, job.JobID)
	if err != nil {
		t.Fatalf("get settlement failed: %v", err)
	}
	if settlement.PlatformCommission != 200 || settlement.CreatorEarning != 800 {
		t.Fatalf("unexpected settlement: %+v", settlement)
	}
	summary, err := platform.Payouts.Service.EarningsSummary(ctx, "creator-1")
	if err != nil {
		t.Fatalf("earnings summary failed: %v", err)
	}
	if summary.TotalEarned != 800 || summary.Pending != 800 {
		t.Fatalf("expected fresh earning on hold, got %+v", summary)
	}

	// 2000 tokens of campaign budget remain; a 2500-token job cannot fit.
	_, _, err = platform.Jobs.Service.Accept(ctx, "", jobapplication.AssignmentInput{
		CampaignID:  campaign.CampaignID,
		CreatorID:   "creator-2",
		AgreedPrice: 2500,
		ActorID:     "shop-1",
	})
	if !errors.Is(err, joberrors.ErrBudgetExhausted) {
		t.Fatalf("expected budget exhausted, got %v", err)
	}

	// The wallet holds 2000, so another 3000-token campaign fails at funding.
	_, _, err = platform.Campaigns.Handler.OpenCampaign.Execute(ctx, openCommand("shop-1", 3000))
	if !errors.Is(err, walleterrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient wallet balance, got %v", err)
	}
}

func TestWalletOutboxRelayPublishes(t *testing.T) {
	platform := NewInMemoryPlatform(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kafka, err := messaging.NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("kafka build failed: %v", err)
	}

	var mu sync.Mutex
	received := make([]events.Envelope, 0)
	if err := kafka.Subscribe(ctx, "wallet.credited", "test-cg", func(_ context.Context, event events.Envelope) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		return nil
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if _, _, err := platform.Wallet.Service.Credit(ctx, "", walletapplication.CreditInput{
		ShopID: "shop-1",
		Amount: 100,
	}); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	relay := walletworkers.OutboxRelay{
		Outbox:    platform.Wallet.Store,
		Publisher: kafka,
		BatchSize: 10,
	}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		count := len(received)
		mu.Unlock()
		if count > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected the credited event on the bus")
		case <-time.After(10 * time.Millisecond):
		}
	}

	pending, err := platform.Wallet.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected relay to mark rows published, %d still pending", len(pending))
	}
}
