package commands

import (
	"time"

	"revuhub/contexts/campaign-ops/campaign-service/ports"
	"revuhub/internal/shared/events"
)

const sourceService = "campaign-service"

func newCampaignEnvelope(eventID, eventType, campaignID string, occurredAt time.Time, payload map[string]any) (ports.EventEnvelope, error) {
	return events.New(eventID, eventType, sourceService, "campaign_id", campaignID, occurredAt, payload)
}

func budgetEventPayload(campaignID string, total, remaining, spent int64) map[string]any {
	return map[string]any{
		"campaign_id":      campaignID,
		"budget_total":     total,
		"budget_remaining": remaining,
		"budget_spent":     spent,
	}
}
