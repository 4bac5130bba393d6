package verification

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"claimflow/apperr"
)

// Status is the lifecycle of a request. A request is completed exactly once.
// A pending request is cancelled when its claim is finalized or rejected first.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Outcome is the employer's answer.
type Outcome string

const (
	OutcomeVerified Outcome = "verified"
	OutcomeDisputed Outcome = "disputed"
)

// ParseOutcome accepts either case, so "VERIFIED" and "verified" are equivalent.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeVerified, OutcomeDisputed:
		return o, nil
	}
	return "", apperr.Validation(fmt.Sprintf("verification: unknown verification status %q", s))
}

// Request asks one employer to confirm a claimant's employment.
type Request struct {
	ID               string
	ClaimRef         string
	EmployerID       string
	ClaimantName     string
	ClaimantSSNLast4 string
	LastEmployer     string
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
	Status           Status
	Response         *Response
	CreatedAt        time.Time
	CompletedAt      *time.Time // also set on cancellation
	NotifyCount      int
	LastNotifiedAt   time.Time
}

// EmploymentDetails is what the employer reports back. Every field is optional.
type EmploymentDetails struct {
	EmployerName        string           `json:"employerName,omitempty"`
	StartDate           string           `json:"startDate,omitempty"`
	EndDate             string           `json:"endDate,omitempty"`
	Position            string           `json:"position,omitempty"`
	VerifiedWages       *decimal.Decimal `json:"verifiedWages,omitempty"`
	SeparationConfirmed *bool            `json:"separationConfirmed,omitempty"`
}

// Response is stored with the request once completed.
type Response struct {
	Outcome     Outcome           `json:"verificationStatus"`
	Details     EmploymentDetails `json:"employmentDetails"`
	Comments    string            `json:"additionalComments"`
	MatchScore  float64           `json:"matchScore"`
	RespondedBy string            `json:"respondedBy,omitempty"`
	RespondedAt time.Time         `json:"respondedAt"`
}

// RequestedPayload is sent to the employer system when a request opens or is re-notified.
type RequestedPayload struct {
	RequestID        string     `json:"requestId"`
	ClaimID          string     `json:"claimId"`
	EmployerID       string     `json:"employerId"`
	ClaimantName     string     `json:"claimantName"`
	ClaimantSSNLast4 string     `json:"claimantSsnLast4,omitempty"`
	LastEmployer     string     `json:"lastEmployer"`
	StartDate        *time.Time `json:"startDate,omitempty"`
	EndDate          *time.Time `json:"endDate,omitempty"`
	Reminder         int        `json:"reminder,omitempty"`
}

// CompletedPayload is sent to the claims system when an employer answers.
type CompletedPayload struct {
	ClaimID            string            `json:"claimId"`
	RequestID          string            `json:"requestId"`
	EmployerID         string            `json:"employerId"`
	VerificationStatus string            `json:"verificationStatus"`
	EmploymentDetails  EmploymentDetails `json:"employmentDetails"`
	AdditionalComments string            `json:"additionalComments"`
}
