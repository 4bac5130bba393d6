package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"claimflow/apperr"
	"claimflow/claim"
	"claimflow/dispute"
	"claimflow/employer"
	"claimflow/tax"
	"claimflow/verification"
)

const dateLayout = "2006-01-02"

type claimResponse struct {
	ReferenceID       string               `json:"referenceId"`
	ClaimantID        string               `json:"claimantId"`
	ClaimantName      string               `json:"claimantName,omitempty"`
	FilingDate        string               `json:"filingDate"`
	Status            string               `json:"status"`
	SeparationReason  string               `json:"separationReason"`
	EmploymentRecords []employmentResponse `json:"employmentRecords,omitempty"`
	CreatedAt         string               `json:"createdAt"`
	UpdatedAt         string               `json:"updatedAt"`
}

type employmentResponse struct {
	ID           int64  `json:"id"`
	EmployerID   string `json:"employerId,omitempty"`
	EmployerName string `json:"employerName"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	Wages        string `json:"wages"`
	Position     string `json:"position,omitempty"`
}

type historyResponse struct {
	Seq       int    `json:"seq"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	ChangedBy string `json:"changedBy"`
	ChangedAt string `json:"changedAt"`
}

type verificationResponse struct {
	ID           string                 `json:"id"`
	ClaimID      string                 `json:"claimId"`
	EmployerID   string                 `json:"employerId"`
	ClaimantName string                 `json:"claimantName"`
	LastEmployer string                 `json:"lastEmployer"`
	StartDate    string                 `json:"startDate,omitempty"`
	EndDate      string                 `json:"endDate,omitempty"`
	Status       string                 `json:"status"`
	NotifyCount  int                    `json:"notifyCount"`
	Response     *verification.Response `json:"response,omitempty"`
	CreatedAt    string                 `json:"createdAt"`
	CompletedAt  string                 `json:"completedAt,omitempty"`
}

// taxResponse carries money as JSON numbers with two decimals.
type taxResponse struct {
	ClaimID          string      `json:"claimId"`
	WageBase         json.Number `json:"wageBase"`
	StateTaxRate     json.Number `json:"stateTaxRate"`
	FederalTaxRate   json.Number `json:"federalTaxRate"`
	StateTaxAmount   json.Number `json:"stateTaxAmount"`
	FederalTaxAmount json.Number `json:"federalTaxAmount"`
	TotalTaxAmount   json.Number `json:"totalTaxAmount"`
	CalculatedBy     string      `json:"calculatedBy"`
	CalculatedAt     string      `json:"calculatedAt"`
}

type rateResponse struct {
	StateTaxRate   json.Number `json:"stateTaxRate"`
	FederalTaxRate json.Number `json:"federalTaxRate"`
	UpdatedBy      string      `json:"updatedBy"`
	UpdatedAt      string      `json:"updatedAt"`
}

type employerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Fein      string `json:"fein,omitempty"`
	Verified  bool   `json:"verified"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type disputeResponse struct {
	ID         string `json:"id"`
	ClaimID    string `json:"claimId"`
	RequestID  string `json:"requestId,omitempty"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
	ResolvedAt string `json:"resolvedAt,omitempty"`
}

func toClaimResponse(c claim.Claim) claimResponse {
	resp := claimResponse{
		ReferenceID:      c.ReferenceID,
		ClaimantID:       c.ClaimantID,
		ClaimantName:     c.ClaimantName,
		FilingDate:       c.FilingDate.Format(dateLayout),
		Status:           string(c.Status),
		SeparationReason: c.SeparationReason,
		CreatedAt:        c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        c.UpdatedAt.Format(time.RFC3339),
	}
	for _, rec := range c.EmploymentRecords {
		resp.EmploymentRecords = append(resp.EmploymentRecords, toEmploymentResponse(rec))
	}
	return resp
}

func toEmploymentResponse(rec claim.EmploymentRecord) employmentResponse {
	return employmentResponse{
		ID:           rec.ID,
		EmployerID:   rec.EmployerID,
		EmployerName: rec.EmployerName,
		StartDate:    rec.StartDate.Format(dateLayout),
		EndDate:      rec.EndDate.Format(dateLayout),
		Wages:        rec.Wages.StringFixed(2),
		Position:     rec.Position,
	}
}

func toHistoryResponses(entries []claim.HistoryEntry) []historyResponse {
	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyResponse{
			Seq:       e.Seq,
			Status:    string(e.Status),
			Reason:    e.Reason,
			ChangedBy: e.Actor,
			ChangedAt: e.At.Format(time.RFC3339),
		})
	}
	return out
}

func toVerificationResponse(r verification.Request) verificationResponse {
	resp := verificationResponse{
		ID:           r.ID,
		ClaimID:      r.ClaimRef,
		EmployerID:   r.EmployerID,
		ClaimantName: r.ClaimantName,
		LastEmployer: r.LastEmployer,
		Status:       string(r.Status),
		NotifyCount:  r.NotifyCount,
		Response:     r.Response,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
	if r.PeriodStart != nil {
		resp.StartDate = r.PeriodStart.Format(dateLayout)
	}
	if r.PeriodEnd != nil {
		resp.EndDate = r.PeriodEnd.Format(dateLayout)
	}
	if r.CompletedAt != nil {
		resp.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func toVerificationResponses(reqs []verification.Request) []verificationResponse {
	out := make([]verificationResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toVerificationResponse(r))
	}
	return out
}

func toTaxResponse(c tax.Calculation) taxResponse {
	return taxResponse{
		ClaimID:          c.ClaimRef,
		WageBase:         tax.Cents(c.WageBase),
		StateTaxRate:     json.Number(c.StateRate.String()),
		FederalTaxRate:   json.Number(c.FederalRate.String()),
		StateTaxAmount:   tax.Cents(c.StateTax),
		FederalTaxAmount: tax.Cents(c.FederalTax),
		TotalTaxAmount:   tax.Cents(c.Total),
		CalculatedBy:     c.CalculatedBy,
		CalculatedAt:     c.CalculatedAt.Format(time.RFC3339),
	}
}

func toRateResponse(r tax.Rate) rateResponse {
	return rateResponse{
		StateTaxRate:   json.Number(r.StateRate.String()),
		FederalTaxRate: json.Number(r.FederalRate.String()),
		UpdatedBy:      r.UpdatedBy,
		UpdatedAt:      r.UpdatedAt.Format(time.RFC3339),
	}
}

func toEmployerResponse(p employer.Profile) employerResponse {
	resp := employerResponse{ID: p.ID, Name: p.Name, Fein: p.Fein, Verified: p.Verified}
	if !p.CreatedAt.IsZero() {
		resp.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

func toDisputeResponse(r dispute.Record) disputeResponse {
	resp := disputeResponse{
		ID:        r.ID,
		ClaimID:   r.ClaimRef,
		RequestID: r.RequestID,
		Status:    string(r.Status),
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
	if r.ResolvedAt != nil {
		resp.ResolvedAt = r.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

// parseDate accepts 2006-01-02 or RFC 3339. An empty string is the zero time.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperr.Validation(fmt.Sprintf("%s: expected YYYY-MM-DD, got %q", field, s))
	}
	return t.UTC(), nil
}

func optionalDate(field, s string) (*time.Time, error) {
	t, err := parseDate(field, s)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}
