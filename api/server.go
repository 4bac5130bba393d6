// Package api exposes claimflow over HTTP with gin. Handlers translate JSON to
// service calls and map error kinds to status codes; no business rule lives here.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"claimflow/claim"
	"claimflow/dispute"
	"claimflow/employer"
	"claimflow/tax"
	"claimflow/verification"
	"claimflow/workflow"
)

type ClaimService interface {
	File(ctx context.Context, params claim.FileParams) (claim.Claim, error)
	Get(ctx context.Context, referenceID string) (claim.Claim, error)
	List(ctx context.Context, filter claim.ListFilter) ([]claim.Claim, int, error)
	History(ctx context.Context, referenceID string) ([]claim.HistoryEntry, error)
	AddEmploymentRecord(ctx context.Context, referenceID string, rec claim.EmploymentRecord) (claim.EmploymentRecord, error)
}

type StatusChanger interface {
	Transition(ctx context.Context, p workflow.TransitionParams) (claim.Claim, error)
}

type VerificationService interface {
	RequestVerification(ctx context.Context, p verification.RequestParams) (verification.Request, error)
	SubmitResponse(ctx context.Context, p verification.ResponseParams) (verification.Request, error)
	Get(ctx context.Context, id string) (verification.Request, error)
	ForClaim(ctx context.Context, claimRef string) ([]verification.Request, error)
	ForEmployer(ctx context.Context, employerID string) ([]verification.Request, error)
}

type TaxService interface {
	Calculate(ctx context.Context, claimRef string) (tax.Calculation, error)
	Get(ctx context.Context, claimRef string) (tax.Calculation, error)
	Recent(ctx context.Context, limit int) ([]tax.Calculation, error)
	CurrentRate(ctx context.Context) (tax.Rate, error)
	SetRate(ctx context.Context, state, federal decimal.Decimal, updatedBy string) (tax.Rate, error)
}

type EmployerService interface {
	GetByID(ctx context.Context, id string) (employer.Profile, error)
	List(ctx context.Context, limit int) ([]employer.Profile, error)
}

type DisputeService interface {
	List(ctx context.Context, claimRef string) ([]dispute.Record, error)
	Resolve(ctx context.Context, id string) (dispute.Record, error)
}

// Services groups the dependencies of the HTTP surface.
type Services struct {
	Claims        ClaimService
	Workflow      StatusChanger
	Verifications VerificationService
	Taxes         TaxService
	Employers     EmployerService
	Disputes      DisputeService
}

type Server struct {
	claims        ClaimService
	workflow      StatusChanger
	verifications VerificationService
	taxes         TaxService
	employers     EmployerService
	disputes      DisputeService
	log           logrus.FieldLogger
	router        *gin.Engine
}

// NewServer registers every route under /api.
func NewServer(svc Services, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		claims:        svc.Claims,
		workflow:      svc.Workflow,
		verifications: svc.Verifications,
		taxes:         svc.Taxes,
		employers:     svc.Employers,
		disputes:      svc.Disputes,
		log:           log,
		router:        router,
	}

	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)

		api.POST("/claims", s.handleFileClaim)
		api.GET("/claims", s.handleListClaims)
		api.GET("/claims/:ref", s.handleGetClaim)
		api.GET("/claims/:ref/details", s.handleClaimDetails)
		api.GET("/claims/:ref/history", s.handleClaimHistory)
		api.POST("/claims/:ref/status", s.handleTransition)
		api.POST("/claims/:ref/employment", s.handleAddEmployment)
		api.POST("/claims/:ref/tax", s.handleCalculateTax)
		api.GET("/claims/:ref/tax", s.handleGetTax)

		api.POST("/verifications", s.handleRequestVerification)
		api.GET("/verifications/:id", s.handleGetVerification)
		api.POST("/verifications/:id/response", s.handleSubmitResponse)

		api.GET("/employers", s.handleListEmployers)
		api.GET("/employers/:id", s.handleGetEmployer)
		api.GET("/employers/:id/verifications", s.handleEmployerVerifications)

		api.GET("/tax/rates", s.handleGetRate)
		api.PUT("/tax/rates", s.handleSetRate)
		api.GET("/tax/calculations", s.handleRecentCalculations)

		api.GET("/disputes", s.handleListDisputes)
		api.POST("/disputes/:id/resolve", s.handleResolveDispute)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}
