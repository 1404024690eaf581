package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type OpenRangeRequest struct {
	PriceMin int64  `json:"price_min"`
	PriceMax int64  `json:"price_max"`
	Reason   string `json:"reason,omitempty"`
}

type PriceRangeDTO struct {
	EntryID       string `json:"entry_id"`
	CreatorID     string `json:"creator_id"`
	PriceMin      int64  `json:"price_min"`
	PriceMax      int64  `json:"price_max"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
	ChangedBy     string `json:"changed_by,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type PriceRangeResponse struct {
	Status string        `json:"status"`
	Data   PriceRangeDTO `json:"data"`
}

type PriceHistoryResponse struct {
	Status string          `json:"status"`
	Data   []PriceRangeDTO `json:"data"`
}
