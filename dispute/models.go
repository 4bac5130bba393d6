package dispute

import "time"

// Status represents the lifecycle of a dispute record.
type Status string

const (
	StatusUnderReview Status = "under_review"
	StatusResolved    Status = "resolved"
)

// Record is opened when an employer disputes a claimant's employment details.
type Record struct {
	ID         string
	ClaimRef   string
	RequestID  string
	Status     Status
	Reason     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}
