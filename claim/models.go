package claim

import (
	"time"

	"github.com/shopspring/decimal"
)

// Claim is the aggregate owned by the store. History and EmploymentRecords
// are ordered oldest first.
type Claim struct {
	ReferenceID       string
	ClaimantID        string
	ClaimantName      string
	ClaimantSSNLast4  string
	FilingDate        time.Time
	Status            Status
	SeparationReason  string
	History           []HistoryEntry
	EmploymentRecords []EmploymentRecord
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LatestEmployment returns the most recently added employment record.
func (c Claim) LatestEmployment() (EmploymentRecord, bool) {
	if len(c.EmploymentRecords) == 0 {
		return EmploymentRecord{}, false
	}
	return c.EmploymentRecords[len(c.EmploymentRecords)-1], true
}

// TotalWages sums the wages of every employment record.
func (c Claim) TotalWages() decimal.Decimal {
	total := decimal.Zero
	for _, rec := range c.EmploymentRecords {
		total = total.Add(rec.Wages)
	}
	return total
}

// EmploymentRecord is immutable once stored.
type EmploymentRecord struct {
	ID           int64
	EmployerID   string
	EmployerName string
	StartDate    time.Time
	EndDate      time.Time
	Wages        decimal.Decimal
	Position     string
	CreatedAt    time.Time
}

// HistoryEntry is one append-only row of a claim's status history. Seq starts at 1.
type HistoryEntry struct {
	Seq    int
	Status Status
	Reason string
	Actor  string
	At     time.Time
}

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	Status     Status
	ClaimantID string
	Page       int
	PageSize   int
}

// Normalized applies the paging defaults: page 1 and 20 rows, with at most 100 rows a page.
func (f ListFilter) Normalized() ListFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
	return f
}

const (
	// SystemActor stamps entries written without a human actor.
	SystemActor = "system"
	// InitialReason is recorded on the first history entry of every claim.
	InitialReason = "Initial claim submission"
)
