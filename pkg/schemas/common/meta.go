package common

import (
	"time"

	"github.com/google/uuid"
)

type Meta struct {
	// Trace / request correlation ID. For locally-authored chat actions this
	// is the idempotency token, so the eventual confirmation can be matched.
	CorrelationID string `json:"correlation_id,omitempty"`
	// Unique event ID
	ID string `json:"id"`
	// Emitting service and version
	Producer string `json:"producer,omitempty"`
	// Timestamp when the event was emitted
	Time time.Time `json:"time"`
	// Event name and version, e.g. rfqchat.message.posted.v1
	Type string `json:"type"`
}

func NewMeta(eventType, producer string) Meta {
	id := uuid.NewString()
	return Meta{
		ID:            id,
		CorrelationID: id,
		Producer:      producer,
		Time:          time.Now().UTC(),
		Type:          eventType,
	}
}
