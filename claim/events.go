package claim

import (
	"context"
	"time"
)

// Notifier queues an outward message. Implemented by the outbox.
type Notifier interface {
	Enqueue(ctx context.Context, topic string, payload any) error
}

const (
	EventClaimReceived      = "CLAIM_RECEIVED"
	EventClaimStatusChanged = "CLAIM_STATUS_CHANGED"
)

// StatusEvent is the wire payload published on every status change. Field
// names are shared with the downstream claims systems and must not change.
type StatusEvent struct {
	EventType        string    `json:"eventType"`
	ClaimReferenceID string    `json:"claimReferenceId"`
	PreviousStatus   *string   `json:"previousStatus"`
	NewStatus        string    `json:"newStatus"`
	UpdatedBy        string    `json:"updatedBy,omitempty"`
	SourceSystem     string    `json:"sourceSystem,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Notes            string    `json:"notes,omitempty"`
}
