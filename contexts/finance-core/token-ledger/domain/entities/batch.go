package entities

import "time"

// TokenBatch is one purchased (or granted) block of tokens. Remaining shrinks
// on debit and never goes negative; a batch past ExpiresAt is dead weight
// regardless of what Remaining says.
type TokenBatch struct {
	BatchID     string
	ShopID      string
	Amount      int64
	Remaining   int64
	PurchasedAt time.Time
	ExpiresAt   time.Time
}

func (b TokenBatch) Live(now time.Time) bool {
	return b.Remaining > 0 && b.ExpiresAt.After(now)
}

// BatchConsumption records how much of one batch a debit consumed.
type BatchConsumption struct {
	BatchID string
	Amount  int64
}

// TokenUsage is the append-only audit row written alongside every debit.
type TokenUsage struct {
	UsageID   string
	ShopID    string
	Amount    int64
	Reason    string
	Batches   []BatchConsumption
	CreatedAt time.Time
}

// ExpiringSummary backs the wallet expiry warning in the shop dashboard.
type ExpiringSummary struct {
	Amount  int64
	Batches []TokenBatch
}
