package entities

import (
	"strings"
	"time"
)

type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Campaign escrows a fixed token budget out of the shop wallet at creation.
// RemainingBudget only moves through reserve/release; settled payouts
// accumulate in SpentBudget and never touch the remaining counter.
type Campaign struct {
	CampaignID      string
	ShopID          string
	Title           string
	Description     string
	TotalBudget     int64
	RemainingBudget int64
	SpentBudget     int64
	TargetReviewers int
	StartDate       time.Time
	EndDate         time.Time
	Status          CampaignStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

func (c Campaign) IsTerminal() bool {
	return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusCancelled
}

// CanAllocate gates new reservations: only a live, unexpired, active
// campaign may commit more of its budget.
func (c Campaign) CanAllocate(now time.Time) bool {
	return c.Status == CampaignStatusActive && c.EndDate.After(now)
}

func (c Campaign) ValidateBasics() bool {
	return strings.TrimSpace(c.ShopID) != "" &&
		strings.TrimSpace(c.Title) != "" &&
		c.TotalBudget > 0 &&
		c.TargetReviewers > 0 &&
		!c.StartDate.IsZero() &&
		c.EndDate.After(c.StartDate)
}

func IsSupportedStatus(value CampaignStatus) bool {
	switch value {
	case CampaignStatusActive, CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// ValidTransition encodes the campaign status machine. Terminal states have
// no outgoing edges.
func ValidTransition(from, to CampaignStatus) bool {
	switch from {
	case CampaignStatusActive:
		return to == CampaignStatusPaused || to == CampaignStatusCompleted || to == CampaignStatusCancelled
	case CampaignStatusPaused:
		return to == CampaignStatusActive || to == CampaignStatusCompleted || to == CampaignStatusCancelled
	default:
		return false
	}
}

type StateHistory struct {
	HistoryID    string
	CampaignID   string
	FromState    CampaignStatus
	ToState      CampaignStatus
	ChangedBy    string
	ChangeReason string
	CreatedAt    time.Time
}

type BudgetLog struct {
	LogID       string
	CampaignID  string
	AmountDelta int64
	Reason      string
	CreatedAt   time.Time
}
