package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreditRequest struct {
	Amount    int64  `json:"amount"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type TokenBatchDTO struct {
	BatchID     string `json:"batch_id"`
	ShopID      string `json:"shop_id"`
	Amount      int64  `json:"amount"`
	Remaining   int64  `json:"remaining"`
	PurchasedAt string `json:"purchased_at"`
	ExpiresAt   string `json:"expires_at"`
}

type CreditResponse struct {
	Status   string        `json:"status"`
	Replayed bool          `json:"replayed,omitempty"`
	Data     TokenBatchDTO `json:"data"`
}

type BalanceResponse struct {
	Status string `json:"status"`
	Data   struct {
		ShopID  string `json:"shop_id"`
		Balance int64  `json:"balance"`
	} `json:"data"`
}

type ExpiringResponse struct {
	Status string `json:"status"`
	Data   struct {
		Amount  int64           `json:"amount"`
		Batches []TokenBatchDTO `json:"batches"`
	} `json:"data"`
}

type BatchConsumptionDTO struct {
	BatchID string `json:"batch_id"`
	Amount  int64  `json:"amount"`
}

type TokenUsageDTO struct {
	UsageID   string                `json:"usage_id"`
	ShopID    string                `json:"shop_id"`
	Amount    int64                 `json:"amount"`
	Reason    string                `json:"reason,omitempty"`
	Batches   []BatchConsumptionDTO `json:"batches"`
	CreatedAt string                `json:"created_at"`
}

type UsageResponse struct {
	Status string          `json:"status"`
	Data   []TokenUsageDTO `json:"data"`
}
