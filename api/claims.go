package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"claimflow/claim"
	"claimflow/tax"
	"claimflow/workflow"
)

type employmentRequest struct {
	EmployerID   string          `json:"employerId"`
	EmployerName string          `json:"employerName"`
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate"`
	Wages        decimal.Decimal `json:"wages"`
	Position     string          `json:"position"`
}

func (r employmentRequest) toRecord() (claim.EmploymentRecord, error) {
	start, err := parseDate("startDate", r.StartDate)
	if err != nil {
		return claim.EmploymentRecord{}, err
	}
	end, err := parseDate("endDate", r.EndDate)
	if err != nil {
		return claim.EmploymentRecord{}, err
	}
	return claim.EmploymentRecord{
		EmployerID:   r.EmployerID,
		EmployerName: r.EmployerName,
		StartDate:    start,
		EndDate:      end,
		Wages:        r.Wages,
		Position:     r.Position,
	}, nil
}

type fileClaimRequest struct {
	ClaimantID        string              `json:"claimantId"`
	ClaimantName      string              `json:"claimantName"`
	ClaimantSSNLast4  string              `json:"claimantSsnLast4"`
	SeparationReason  string              `json:"separationReason"`
	FilingDate        string              `json:"filingDate"`
	EmploymentRecords []employmentRequest `json:"employmentRecords"`
}

type transitionRequest struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	ChangedBy string `json:"changedBy"`
}

func (s *Server) handleFileClaim(c *gin.Context) {
	var body fileClaimRequest
	if !bindJSON(c, &body) {
		return
	}
	filing, err := parseDate("filingDate", body.FilingDate)
	if err != nil {
		respondError(c, err)
		return
	}
	params := claim.FileParams{
		ClaimantID:       body.ClaimantID,
		ClaimantName:     body.ClaimantName,
		ClaimantSSNLast4: body.ClaimantSSNLast4,
		SeparationReason: body.SeparationReason,
		FilingDate:       filing,
		IdempotencyKey:   c.GetHeader("Idempotency-Key"),
	}
	for _, r := range body.EmploymentRecords {
		rec, err := r.toRecord()
		if err != nil {
			respondError(c, err)
			return
		}
		params.EmploymentRecords = append(params.EmploymentRecords, rec)
	}

	created, err := s.claims.File(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toClaimResponse(created))
}

func (s *Server) handleListClaims(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	filter := claim.ListFilter{
		Status:     claim.Status(c.Query("status")),
		ClaimantID: c.Query("claimantId"),
		Page:       page,
		PageSize:   size,
	}.Normalized()

	claims, total, err := s.claims.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]claimResponse, 0, len(claims))
	for _, cl := range claims {
		items = append(items, toClaimResponse(cl))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": filter.Page, "pageSize": filter.PageSize})
}

func (s *Server) handleGetClaim(c *gin.Context) {
	cl, err := s.claims.Get(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClaimResponse(cl))
}

func (s *Server) handleClaimHistory(c *gin.Context) {
	entries, err := s.claims.History(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toHistoryResponses(entries)})
}

// handleClaimDetails aggregates the claim with its verifications and tax result.
func (s *Server) handleClaimDetails(c *gin.Context) {
	ctx := c.Request.Context()
	ref := c.Param("ref")

	cl, err := s.claims.Get(ctx, ref)
	if err != nil {
		respondError(c, err)
		return
	}
	history, err := s.claims.History(ctx, ref)
	if err != nil {
		respondError(c, err)
		return
	}
	reqs, err := s.verifications.ForClaim(ctx, ref)
	if err != nil {
		respondError(c, err)
		return
	}

	payload := gin.H{
		"claim":         toClaimResponse(cl),
		"history":       toHistoryResponses(history),
		"verifications": toVerificationResponses(reqs),
	}
	calc, err := s.taxes.Get(ctx, ref)
	switch {
	case err == nil:
		payload["tax"] = toTaxResponse(calc)
	case !isKind(err, tax.ErrNotCalculated):
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleTransition(c *gin.Context) {
	var body transitionRequest
	if !bindJSON(c, &body) {
		return
	}
	next, err := claim.ParseStatus(body.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	updated, err := s.workflow.Transition(c.Request.Context(), workflow.TransitionParams{
		ClaimRef: c.Param("ref"),
		Next:     next,
		Reason:   body.Reason,
		Actor:    body.ChangedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClaimResponse(updated))
}

func (s *Server) handleAddEmployment(c *gin.Context) {
	var body employmentRequest
	if !bindJSON(c, &body) {
		return
	}
	rec, err := body.toRecord()
	if err != nil {
		respondError(c, err)
		return
	}
	stored, err := s.claims.AddEmploymentRecord(c.Request.Context(), c.Param("ref"), rec)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toEmploymentResponse(stored))
}

func (s *Server) handleCalculateTax(c *gin.Context) {
	calc, err := s.taxes.Calculate(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaxResponse(calc))
}

func (s *Server) handleGetTax(c *gin.Context) {
	calc, err := s.taxes.Get(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaxResponse(calc))
}
