package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SettlementDTO struct {
	SettlementID       string  `json:"settlement_id"`
	JobID              string  `json:"job_id"`
	CampaignID         string  `json:"campaign_id"`
	CreatorID          string  `json:"creator_id"`
	GrossAmount        int64   `json:"gross_amount"`
	CommissionRate     float64 `json:"commission_rate"`
	PlatformCommission int64   `json:"platform_commission"`
	CreatorEarning     int64   `json:"creator_earning"`
	SettledAt          string  `json:"settled_at"`
}

type EarningDTO struct {
	EarningID   string `json:"earning_id"`
	JobID       string `json:"job_id"`
	CampaignID  string `json:"campaign_id"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	AvailableAt string `json:"available_at"`
}

type SettlementResponse struct {
	Status string        `json:"status"`
	Data   SettlementDTO `json:"data"`
}

type EarningsSummaryDTO struct {
	TotalEarned int64        `json:"total_earned"`
	Available   int64        `json:"available"`
	Pending     int64        `json:"pending"`
	Entries     []EarningDTO `json:"entries"`
}

type EarningsSummaryResponse struct {
	Status string             `json:"status"`
	Data   EarningsSummaryDTO `json:"data"`
}

type CreatorStatsDTO struct {
	CreatorID        string `json:"creator_id"`
	TotalReviews     int64  `json:"total_reviews"`
	CompletedReviews int64  `json:"completed_reviews"`
	TotalEarnings    int64  `json:"total_earnings"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

type CreatorStatsResponse struct {
	Status string          `json:"status"`
	Data   CreatorStatsDTO `json:"data"`
}
