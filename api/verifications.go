package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"claimflow/verification"
)

type requestVerificationRequest struct {
	ClaimID          string `json:"claimId"`
	ClaimantName     string `json:"claimantName"`
	ClaimantSSNLast4 string `json:"claimantSsnLast4"`
	LastEmployer     string `json:"lastEmployer"`
	EmployerID       string `json:"employerId"`
	StartDate        string `json:"startDate"`
	EndDate          string `json:"endDate"`
	RequestedBy      string `json:"requestedBy"`
}

type submitResponseRequest struct {
	VerificationStatus string                         `json:"verificationStatus"`
	EmploymentDetails  verification.EmploymentDetails `json:"employmentDetails"`
	AdditionalComments string                         `json:"additionalComments"`
	RespondedBy        string                         `json:"respondedBy"`
}

func (s *Server) handleRequestVerification(c *gin.Context) {
	var body requestVerificationRequest
	if !bindJSON(c, &body) {
		return
	}
	start, err := optionalDate("startDate", body.StartDate)
	if err != nil {
		respondError(c, err)
		return
	}
	end, err := optionalDate("endDate", body.EndDate)
	if err != nil {
		respondError(c, err)
		return
	}

	req, err := s.verifications.RequestVerification(c.Request.Context(), verification.RequestParams{
		ClaimRef:         body.ClaimID,
		EmployerID:       body.EmployerID,
		ClaimantName:     body.ClaimantName,
		ClaimantSSNLast4: body.ClaimantSSNLast4,
		LastEmployer:     body.LastEmployer,
		PeriodStart:      start,
		PeriodEnd:        end,
		Actor:            body.RequestedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toVerificationResponse(req))
}

func (s *Server) handleGetVerification(c *gin.Context) {
	req, err := s.verifications.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVerificationResponse(req))
}

func (s *Server) handleSubmitResponse(c *gin.Context) {
	var body submitResponseRequest
	if !bindJSON(c, &body) {
		return
	}
	req, err := s.verifications.SubmitResponse(c.Request.Context(), verification.ResponseParams{
		RequestID:   c.Param("id"),
		Status:      body.VerificationStatus,
		Details:     body.EmploymentDetails,
		Comments:    body.AdditionalComments,
		RespondedBy: body.RespondedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVerificationResponse(req))
}
