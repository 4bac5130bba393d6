package outbox

import "time"

const (
	// TopicClaimStatusChanged carries claim.StatusEvent payloads for the claims system.
	TopicClaimStatusChanged = "claim.status_changed"
	// TopicVerificationRequested asks the employer system to confirm employment.
	TopicVerificationRequested = "verification.requested"
	// TopicVerificationCompleted tells the claims system an employer answered.
	TopicVerificationCompleted = "verification.completed"
	// TopicTaxCalculated delivers a tax result to the claims system.
	TopicTaxCalculated = "tax.calculated"
)

// Status is the delivery state of a message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusDead      Status = "dead"
)

// Message represents a transactional outbox entry. It is inserted in the
// same unit of work as the state change it announces.
type Message struct {
	ID            string
	Topic         string
	Payload       []byte
	Status        Status
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}
