package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"claimflow/apperr"
)

type setRateRequest struct {
	StateTaxRate   *decimal.Decimal `json:"stateTaxRate"`
	FederalTaxRate *decimal.Decimal `json:"federalTaxRate"`
	UpdatedBy      string           `json:"updatedBy"`
}

func (s *Server) handleListEmployers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	profiles, err := s.employers.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]employerResponse, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, toEmployerResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (s *Server) handleGetEmployer(c *gin.Context) {
	p, err := s.employers.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEmployerResponse(p))
}

func (s *Server) handleEmployerVerifications(c *gin.Context) {
	reqs, err := s.verifications.ForEmployer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toVerificationResponses(reqs)})
}

func (s *Server) handleGetRate(c *gin.Context) {
	rate, err := s.taxes.CurrentRate(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRateResponse(rate))
}

func (s *Server) handleSetRate(c *gin.Context) {
	var body setRateRequest
	if !bindJSON(c, &body) {
		return
	}
	if body.StateTaxRate == nil || body.FederalTaxRate == nil {
		respondError(c, apperr.Validation("stateTaxRate and federalTaxRate are required"))
		return
	}
	rate, err := s.taxes.SetRate(c.Request.Context(), *body.StateTaxRate, *body.FederalTaxRate, body.UpdatedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRateResponse(rate))
}

func (s *Server) handleRecentCalculations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	calcs, err := s.taxes.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]taxResponse, 0, len(calcs))
	for _, calc := range calcs {
		items = append(items, toTaxResponse(calc))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleListDisputes(c *gin.Context) {
	records, err := s.disputes.List(c.Request.Context(), c.Query("claimId"))
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]disputeResponse, 0, len(records))
	for _, r := range records {
		items = append(items, toDisputeResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleResolveDispute(c *gin.Context) {
	rec, err := s.disputes.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDisputeResponse(rec))
}
