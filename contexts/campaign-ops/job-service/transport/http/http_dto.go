package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AssignmentRequest struct {
	CampaignID  string `json:"campaign_id"`
	CreatorID   string `json:"creator_id"`
	AgreedPrice int64  `json:"agreed_price"`
}

type SubmitRequest struct {
	ReviewLink  string `json:"review_link"`
	ReviewNotes string `json:"review_notes,omitempty"`
}

type CloseRequest struct {
	Reason string `json:"reason,omitempty"`
}

type JobDTO struct {
	JobID              string `json:"job_id"`
	CampaignID         string `json:"campaign_id"`
	CreatorID          string `json:"creator_id"`
	AgreedPrice        int64  `json:"agreed_price"`
	Status             string `json:"status"`
	TokensPaid         int64  `json:"tokens_paid,omitempty"`
	PlatformCommission int64  `json:"platform_commission,omitempty"`
	CreatorEarning     int64  `json:"creator_earning,omitempty"`
	ReviewLink         string `json:"review_link,omitempty"`
	ReviewNotes        string `json:"review_notes,omitempty"`
	CloseReason        string `json:"close_reason,omitempty"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
	AcceptedAt         string `json:"accepted_at,omitempty"`
	StartedAt          string `json:"started_at,omitempty"`
	SubmittedAt        string `json:"submitted_at,omitempty"`
	CompletedAt        string `json:"completed_at,omitempty"`
	ClosedAt           string `json:"closed_at,omitempty"`
}

type JobResponse struct {
	Status   string `json:"status"`
	Replayed bool   `json:"replayed,omitempty"`
	Data     JobDTO `json:"data"`
}

type ListJobsResponse struct {
	Status string   `json:"status"`
	Data   []JobDTO `json:"data"`
}
