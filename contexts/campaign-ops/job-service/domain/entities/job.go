package entities

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusAccepted   JobStatus = "accepted"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusSubmitted  JobStatus = "submitted"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusRejected   JobStatus = "rejected"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Job is one creator's commitment inside a campaign. Every non-terminal job
// holds its agreed price against the campaign budget, including pending
// proposals, so closing a job always releases exactly what it reserved.
type Job struct {
	JobID              string
	CampaignID         string
	CreatorID          string
	AgreedPrice        int64
	Status             JobStatus
	TokensPaid         int64
	PlatformCommission int64
	CreatorEarning     int64
	ReviewLink         string
	ReviewNotes        string
	CloseReason        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	AcceptedAt         *time.Time
	StartedAt          *time.Time
	SubmittedAt        *time.Time
	CompletedAt        *time.Time
	ClosedAt           *time.Time
}

func (j Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusRejected, JobStatusCancelled:
		return true
	default:
		return false
	}
}

func (j Job) CanAccept() bool {
	return j.Status == JobStatusPending
}

func (j Job) CanStart() bool {
	return j.Status == JobStatusAccepted
}

func (j Job) CanSubmit() bool {
	return j.Status == JobStatusAccepted || j.Status == JobStatusInProgress
}

func (j Job) CanApprove() bool {
	return j.Status == JobStatusSubmitted
}

func (j Job) CanReject() bool {
	switch j.Status {
	case JobStatusPending, JobStatusAccepted, JobStatusSubmitted:
		return true
	default:
		return false
	}
}

func (j Job) CanCancel() bool {
	return !j.IsTerminal()
}

type StateHistory struct {
	HistoryID    string
	JobID        string
	FromState    JobStatus
	ToState      JobStatus
	ChangedBy    string
	ChangeReason string
	CreatedAt    time.Time
}
