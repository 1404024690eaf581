package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type OpenCampaignRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	TotalBudget     int64  `json:"total_budget"`
	TargetReviewers int    `json:"target_reviewers"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
}

type StatusActionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type CampaignDTO struct {
	CampaignID      string `json:"campaign_id"`
	ShopID          string `json:"shop_id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	TotalBudget     int64  `json:"total_budget"`
	RemainingBudget int64  `json:"remaining_budget"`
	SpentBudget     int64  `json:"spent_budget"`
	TargetReviewers int    `json:"target_reviewers"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

type OpenCampaignResponse struct {
	Status   string      `json:"status"`
	Replayed bool        `json:"replayed,omitempty"`
	Data     CampaignDTO `json:"data"`
}

type GetCampaignResponse struct {
	Status string      `json:"status"`
	Data   CampaignDTO `json:"data"`
}

type ListCampaignsResponse struct {
	Status string        `json:"status"`
	Data   []CampaignDTO `json:"data"`
}
