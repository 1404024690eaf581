package bootstrap

import (
	"context"
	"errors"

	campaigncommands "revuhub/contexts/campaign-ops/campaign-service/application/commands"
	jobports "revuhub/contexts/campaign-ops/job-service/ports"
	pricingapplication "revuhub/contexts/creator-network/pricing-service/application"
	pricingerrors "revuhub/contexts/creator-network/pricing-service/domain/errors"
	payoutapplication "revuhub/contexts/finance-core/payout-engine/application"
	walletapplication "revuhub/contexts/finance-core/token-ledger/application"
)

// Cross-context glue lives here so no context ever imports another context's
// packages. Each adapter narrows one module's application surface to the
// outbound port a neighbor declares.

// walletFunding funds campaigns from the shop token wallet. Debit surfaces
// the ledger's errors unchanged so insufficient balance reaches the caller.
type walletFunding struct {
	wallet walletapplication.Service
}

func (f walletFunding) Debit(ctx context.Context, shopID string, amount int64, reason string) error {
	_, err := f.wallet.Debit(ctx, shopID, amount, reason)
	return err
}

// Refund credits the tokens back. The reason strings the campaign side
// passes are deterministic per campaign, which makes them safe replay keys.
func (f walletFunding) Refund(ctx context.Context, shopID string, amount int64, reason string) error {
	_, _, err := f.wallet.Credit(ctx, reason, walletapplication.CreditInput{
		ShopID: shopID,
		Amount: amount,
	})
	return err
}

// budgetGateway routes job-side budget holds through the campaign module's
// budget use cases.
type budgetGateway struct {
	reserve campaigncommands.ReserveBudgetUseCase
	release campaigncommands.ReleaseBudgetUseCase
	settle  campaigncommands.SettleBudgetUseCase
}

func (g budgetGateway) Reserve(ctx context.Context, campaignID string, amount int64) (bool, error) {
	return g.reserve.Execute(ctx, campaignID, amount)
}

func (g budgetGateway) Release(ctx context.Context, campaignID string, amount int64) error {
	return g.release.Execute(ctx, campaignID, amount)
}

func (g budgetGateway) Settle(ctx context.Context, campaignID string, amount int64) error {
	return g.settle.Execute(ctx, campaignID, amount)
}

// payoutGateway settles a job's payout through the payout engine. Settlement
// errors pass through unchanged so the job side can recognize a replay.
type payoutGateway struct {
	payouts payoutapplication.Service
}

func (g payoutGateway) Settle(ctx context.Context, input jobports.PayoutInput) (jobports.PayoutResult, error) {
	settlement, err := g.payouts.Settle(ctx, payoutapplication.SettleInput{
		JobID:       input.JobID,
		CampaignID:  input.CampaignID,
		CreatorID:   input.CreatorID,
		GrossAmount: input.AgreedPrice,
	})
	if err != nil {
		return jobports.PayoutResult{}, err
	}
	return jobports.PayoutResult{
		PlatformCommission: settlement.PlatformCommission,
		CreatorEarning:     settlement.CreatorEarning,
		TokensPaid:         settlement.GrossAmount,
	}, nil
}

func (g payoutGateway) Void(ctx context.Context, jobID string) error {
	_, err := g.payouts.Void(ctx, jobID)
	return err
}

// priceGateway resolves default assignment prices from the creator's open
// price range. The low bound is the creator's asking price.
type priceGateway struct {
	pricing pricingapplication.Service
}

func (g priceGateway) DefaultPrice(ctx context.Context, creatorID string) (int64, bool, error) {
	entry, err := g.pricing.CurrentRange(ctx, creatorID)
	if err != nil {
		if errors.Is(err, pricingerrors.ErrNoPriceSet) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return entry.PriceMin, true, nil
}
