package workers

import (
	"context"
	"log/slog"
	"time"

	application "revuhub/contexts/finance-core/payout-engine/application"
	"revuhub/contexts/finance-core/payout-engine/ports"
)

// EarningReleaser flips pending earnings whose hold window has elapsed to
// available. Summaries already classify by the clock, so this only keeps the
// stored status in line with what readers compute anyway.
type EarningReleaser struct {
	Payouts   ports.PayoutRepository
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r EarningReleaser) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 200
	}
	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	released, err := r.Payouts.ReleaseDueEarnings(ctx, now, limit)
	if err != nil {
		logger.Error("earning release failed",
			"event", "earning_release_failed",
			"module", "finance-core/payout-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if released > 0 {
		logger.Info("earnings released",
			"event", "earnings_released",
			"module", "finance-core/payout-engine",
			"layer", "worker",
			"released", released,
		)
	}
	return nil
}
