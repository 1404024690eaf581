package entities

import "time"

// Settlement is the immutable record of one job payout. At most one exists
// per job; a second settle attempt finds it and fails as already settled.
type Settlement struct {
	SettlementID       string
	JobID              string
	CampaignID         string
	CreatorID          string
	GrossAmount        int64
	CommissionRate     float64
	PlatformCommission int64
	CreatorEarning     int64
	SettledAt          time.Time
}

type EarningStatus string

const (
	EarningStatusPending   EarningStatus = "pending"
	EarningStatusAvailable EarningStatus = "available"
)

// Earning is the creator-side leg of a settlement. It stays on hold until
// AvailableAt passes; the stored status is hygiene, availability is always
// judged against the clock.
type Earning struct {
	EarningID   string
	CreatorID   string
	JobID       string
	CampaignID  string
	Amount      int64
	Status      EarningStatus
	CreatedAt   time.Time
	AvailableAt time.Time
}

func (e Earning) AvailableNow(now time.Time) bool {
	return !e.AvailableAt.After(now)
}

type CreatorStats struct {
	CreatorID        string
	TotalReviews     int64
	CompletedReviews int64
	TotalEarnings    int64
	UpdatedAt        time.Time
}

type EarningsSummary struct {
	TotalEarned int64
	Available   int64
	Pending     int64
	Entries     []Earning
}
