package events

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical, versioned event envelope shared by every
// revuhub service. Outbox rows persist it as marshalled JSON and the worker
// relay republishes it verbatim, so the shape must stay backward compatible.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// New fills the envelope boilerplate for a service-local event. The event ID
// doubles as trace ID when the caller has no inbound trace to propagate.
func New(eventID, eventType, sourceService, partitionKeyPath, partitionKey string, occurredAt time.Time, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             data,
	}, nil
}
