// Package verification tracks employer verification requests. A request is
// opened for a claim waiting on its employer and closed by a separate
// response call; nothing waits inline for the employer.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"claimflow/apperr"
	"claimflow/claim"
	"claimflow/dispute"
	"claimflow/employer"
	"claimflow/outbox"
	"claimflow/workflow"
)

// Workflow serializes the coordinator's writes with the claim's status changes.
type Workflow interface {
	WithClaim(ctx context.Context, referenceID string, fn func(ctx context.Context, tx *workflow.Tx) error) error
}

type EmployerDirectory interface {
	GetByID(ctx context.Context, id string) (employer.Profile, error)
}

type DisputeOpener interface {
	Open(ctx context.Context, claimRef, requestID, reason string) (dispute.Record, error)
}

type Notifier interface {
	Enqueue(ctx context.Context, topic string, payload any) error
}

type RequestParams struct {
	ClaimRef         string
	EmployerID       string
	ClaimantName     string
	ClaimantSSNLast4 string
	LastEmployer     string
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
	Actor            string
}

type ResponseParams struct {
	RequestID   string
	Status      string
	Details     EmploymentDetails
	Comments    string
	RespondedBy string
}

type Coordinator struct {
	store       Store
	workflow    Workflow
	notifier    Notifier
	employers   EmployerDirectory
	disputes    DisputeOpener
	log         logrus.FieldLogger
	sla         time.Duration
	autoRequest bool
	idGenerator func() string
	now         func() time.Time
}

func NewCoordinator(store Store, wf Workflow, notifier Notifier, log logrus.FieldLogger) *Coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{
		store:       store,
		workflow:    wf,
		notifier:    notifier,
		log:         log,
		sla:         72 * time.Hour,
		idGenerator: uuid.NewString,
		now:         time.Now,
	}
}

// WithEmployers makes RequestVerification reject employers missing from dir.
func (c *Coordinator) WithEmployers(dir EmployerDirectory) *Coordinator {
	c.employers = dir
	return c
}

// WithDisputes opens a dispute for every disputed response.
func (c *Coordinator) WithDisputes(d DisputeOpener) *Coordinator {
	c.disputes = d
	return c
}

func (c *Coordinator) WithSLA(sla time.Duration) *Coordinator {
	if sla > 0 {
		c.sla = sla
	}
	return c
}

// WithAutoRequest opens a request whenever a claim enters waiting_for_employer.
func (c *Coordinator) WithAutoRequest(enabled bool) *Coordinator {
	c.autoRequest = enabled
	return c
}

func (c *Coordinator) WithIDGenerator(gen func() string) *Coordinator {
	c.idGenerator = gen
	return c
}

func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// RequestVerification opens a pending request for the claim. A claim still in
// processing is moved to waiting_for_employer in the same locked section.
func (c *Coordinator) RequestVerification(ctx context.Context, p RequestParams) (Request, error) {
	if strings.TrimSpace(p.ClaimRef) == "" {
		return Request{}, apperr.Validation("verification: claim id required")
	}

	var created Request
	err := c.workflow.WithClaim(ctx, p.ClaimRef, func(ctx context.Context, tx *workflow.Tx) error {
		cl := tx.Claim()
		if cl.Status != claim.StatusProcessing && cl.Status != claim.StatusWaitingForEmployer {
			return fmt.Errorf("verification: claim %s is %s: %w", cl.ReferenceID, cl.Status, ErrClaimNotAwaiting)
		}

		req, err := c.buildRequest(ctx, cl, p)
		if err != nil {
			return err
		}
		if created, err = c.store.Create(ctx, req); err != nil {
			return err
		}

		if cl.Status == claim.StatusProcessing {
			if _, err := tx.Transition(ctx, claim.StatusWaitingForEmployer, "Employer verification requested", p.Actor); err != nil {
				return err
			}
		}
		return c.notifyRequested(ctx, created)
	})
	if err != nil {
		return Request{}, err
	}

	c.log.WithFields(logrus.Fields{"claim_ref": created.ClaimRef, "request_id": created.ID, "employer_id": created.EmployerID}).
		Info("verification requested")
	return created, nil
}

func (c *Coordinator) buildRequest(ctx context.Context, cl claim.Claim, p RequestParams) (Request, error) {
	now := c.now().UTC()
	req := Request{
		ID:               c.idGenerator(),
		ClaimRef:         cl.ReferenceID,
		EmployerID:       strings.TrimSpace(p.EmployerID),
		ClaimantName:     strings.TrimSpace(p.ClaimantName),
		ClaimantSSNLast4: p.ClaimantSSNLast4,
		LastEmployer:     strings.TrimSpace(p.LastEmployer),
		PeriodStart:      p.PeriodStart,
		PeriodEnd:        p.PeriodEnd,
		Status:           StatusPending,
		CreatedAt:        now,
		LastNotifiedAt:   now,
	}

	if rec, ok := cl.LatestEmployment(); ok {
		if req.EmployerID == "" {
			req.EmployerID = rec.EmployerID
		}
		if req.LastEmployer == "" {
			req.LastEmployer = rec.EmployerName
		}
		if req.PeriodStart == nil {
			start := rec.StartDate
			req.PeriodStart = &start
		}
		if req.PeriodEnd == nil {
			end := rec.EndDate
			req.PeriodEnd = &end
		}
	}
	if req.ClaimantName == "" {
		req.ClaimantName = cl.ClaimantName
	}
	if req.ClaimantName == "" {
		req.ClaimantName = cl.ClaimantID
	}
	if req.ClaimantSSNLast4 == "" {
		req.ClaimantSSNLast4 = cl.ClaimantSSNLast4
	}
	if req.EmployerID == "" {
		return Request{}, apperr.Validation("verification: employer id required")
	}

	if c.employers != nil {
		profile, err := c.employers.GetByID(ctx, req.EmployerID)
		if err != nil {
			return Request{}, fmt.Errorf("verification: employer %s: %w", req.EmployerID, err)
		}
		if req.LastEmployer == "" {
			req.LastEmployer = profile.Name
		}
	}
	return req, nil
}

// SubmitResponse completes a pending request and moves the claim to verified.
// Completing the request, opening a dispute, the status change and the outbox
// message are one unit of work: if any step fails none of them is kept.
func (c *Coordinator) SubmitResponse(ctx context.Context, p ResponseParams) (Request, error) {
	outcome, err := ParseOutcome(p.Status)
	if err != nil {
		return Request{}, err
	}
	if _, err := uuid.Parse(p.RequestID); err != nil {
		return Request{}, ErrNotFound
	}

	req, err := c.store.Get(ctx, p.RequestID)
	if err != nil {
		return Request{}, err
	}
	switch req.Status {
	case StatusCompleted:
		return Request{}, ErrAlreadyCompleted
	case StatusCancelled:
		return Request{}, ErrCancelled
	}

	var completed Request
	err = c.workflow.WithClaim(ctx, req.ClaimRef, func(ctx context.Context, tx *workflow.Tx) error {
		cl := tx.Claim()
		if !claim.CanTransition(cl.Status, claim.StatusVerified) {
			return fmt.Errorf("verification: claim %s is %s: %w", cl.ReferenceID, cl.Status, ErrClaimNotAwaiting)
		}

		now := c.now().UTC()
		resp := Response{
			Outcome:     outcome,
			Details:     p.Details,
			Comments:    strings.TrimSpace(p.Comments),
			MatchScore:  MatchScore(req.LastEmployer, p.Details.EmployerName),
			RespondedBy: p.RespondedBy,
			RespondedAt: now,
		}
		var err error
		if completed, err = c.store.Complete(ctx, req.ID, resp, now); err != nil {
			return err
		}

		if outcome == OutcomeDisputed && c.disputes != nil {
			if _, err := c.disputes.Open(ctx, req.ClaimRef, req.ID, disputeReason(resp)); err != nil {
				return fmt.Errorf("verification: open dispute: %w", err)
			}
		}

		actor := p.RespondedBy
		if actor == "" {
			actor = "employer:" + req.EmployerID
		}
		if _, err := tx.Transition(ctx, claim.StatusVerified, "Employer verification "+string(outcome), actor); err != nil {
			return err
		}
		return c.notifyCompleted(ctx, completed)
	})
	if err != nil {
		return Request{}, err
	}

	c.log.WithFields(logrus.Fields{
		"claim_ref":   completed.ClaimRef,
		"request_id":  completed.ID,
		"outcome":     outcome,
		"match_score": completed.Response.MatchScore,
	}).Info("verification completed")
	return completed, nil
}

func disputeReason(resp Response) string {
	if resp.Comments != "" {
		return resp.Comments
	}
	return "Employer disputed the reported employment"
}

func (c *Coordinator) Get(ctx context.Context, id string) (Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, ErrNotFound
	}
	return c.store.Get(ctx, id)
}

func (c *Coordinator) ForClaim(ctx context.Context, claimRef string) ([]Request, error) {
	return c.store.ListByClaim(ctx, claimRef)
}

// ForEmployer lists an employer's requests. Unknown employers are NotFound when a directory is configured.
func (c *Coordinator) ForEmployer(ctx context.Context, employerID string) ([]Request, error) {
	if c.employers != nil {
		if _, err := c.employers.GetByID(ctx, employerID); err != nil {
			return nil, err
		}
	}
	return c.store.ListByEmployer(ctx, employerID)
}

// VerifiedWages returns the wages reported by the latest completed response that carries any.
func (c *Coordinator) VerifiedWages(ctx context.Context, claimRef string) (decimal.Decimal, bool, error) {
	reqs, err := c.store.ListByClaim(ctx, claimRef)
	if err != nil {
		return decimal.Zero, false, err
	}
	var (
		latest *Request
		wages  decimal.Decimal
	)
	for i := range reqs {
		r := &reqs[i]
		if r.Status != StatusCompleted || r.Response == nil || r.Response.Details.VerifiedWages == nil {
			continue
		}
		if latest == nil || r.CompletedAt.After(*latest.CompletedAt) {
			latest = r
			wages = *r.Response.Details.VerifiedWages
		}
	}
	return wages, latest != nil, nil
}

// SweepOverdue re-notifies every request pending longer than the SLA and
// returns how many were re-sent. Requests whose claim was finalized or
// rejected meanwhile are cancelled instead.
func (c *Coordinator) SweepOverdue(ctx context.Context) (int, error) {
	now := c.now().UTC()
	overdue, err := c.store.ListOverdue(ctx, now.Add(-c.sla), 100)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, req := range overdue {
		resent, err := c.remind(ctx, req.ID, req.ClaimRef, now)
		if err != nil {
			return sent, err
		}
		if resent {
			sent++
		}
	}
	return sent, nil
}

// remind re-checks the request and its claim under the claim lock, then either
// records the reminder with its outbox message or cancels the request.
func (c *Coordinator) remind(ctx context.Context, id, claimRef string, now time.Time) (bool, error) {
	resent := false
	err := c.workflow.WithClaim(ctx, claimRef, func(ctx context.Context, tx *workflow.Tx) error {
		req, err := c.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return nil
		}
		if tx.Claim().Status.Terminal() {
			return c.cancel(ctx, req, tx.Claim().Status, now)
		}

		if err := c.store.MarkNotified(ctx, req.ID, now); err != nil {
			return err
		}
		req.NotifyCount++
		if err := c.notifyRequested(ctx, req); err != nil {
			return err
		}
		resent = true
		c.log.WithFields(logrus.Fields{
			"claim_ref":    req.ClaimRef,
			"request_id":   req.ID,
			"notify_count": req.NotifyCount,
			"pending_for":  now.Sub(req.CreatedAt).Round(time.Minute).String(),
		}).Warn("verification overdue; employer re-notified")
		return nil
	})
	return resent, err
}

func (c *Coordinator) cancel(ctx context.Context, req Request, claimStatus claim.Status, now time.Time) error {
	if _, err := c.store.Cancel(ctx, req.ID, now); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{
		"claim_ref":    req.ClaimRef,
		"request_id":   req.ID,
		"claim_status": claimStatus,
	}).Info("verification request cancelled")
	return nil
}

// OnStatusChanged is a workflow subscriber. Entering waiting_for_employer opens
// a request when auto-request is on. Entering a terminal status cancels the
// claim's pending requests.
func (c *Coordinator) OnStatusChanged(ctx context.Context, ev workflow.Event) {
	if ev.Next.Terminal() {
		if err := c.cancelPending(ctx, ev.ClaimRef); err != nil {
			c.log.WithError(err).WithField("claim_ref", ev.ClaimRef).Warn("pending verification not cancelled")
		}
		return
	}
	if !c.autoRequest || ev.Next != claim.StatusWaitingForEmployer {
		return
	}
	_, err := c.RequestVerification(ctx, RequestParams{ClaimRef: ev.ClaimRef, Actor: claim.SystemActor})
	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateRequest):
		c.log.WithField("claim_ref", ev.ClaimRef).Debug("verification already open")
	default:
		c.log.WithError(err).WithField("claim_ref", ev.ClaimRef).Warn("automatic verification request failed")
	}
}

// cancelPending cancels the open requests of a finalized or rejected claim.
func (c *Coordinator) cancelPending(ctx context.Context, claimRef string) error {
	return c.workflow.WithClaim(ctx, claimRef, func(ctx context.Context, tx *workflow.Tx) error {
		status := tx.Claim().Status
		if !status.Terminal() {
			return nil
		}
		reqs, err := c.store.ListByClaim(ctx, claimRef)
		if err != nil {
			return err
		}
		now := c.now().UTC()
		for _, req := range reqs {
			if req.Status != StatusPending {
				continue
			}
			if err := c.cancel(ctx, req, status, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Coordinator) notifyRequested(ctx context.Context, req Request) error {
	return c.enqueue(ctx, outbox.TopicVerificationRequested, RequestedPayload{
		RequestID:        req.ID,
		ClaimID:          req.ClaimRef,
		EmployerID:       req.EmployerID,
		ClaimantName:     req.ClaimantName,
		ClaimantSSNLast4: req.ClaimantSSNLast4,
		LastEmployer:     req.LastEmployer,
		StartDate:        req.PeriodStart,
		EndDate:          req.PeriodEnd,
		Reminder:         req.NotifyCount,
	})
}

func (c *Coordinator) notifyCompleted(ctx context.Context, req Request) error {
	return c.enqueue(ctx, outbox.TopicVerificationCompleted, CompletedPayload{
		ClaimID:            req.ClaimRef,
		RequestID:          req.ID,
		EmployerID:         req.EmployerID,
		VerificationStatus: strings.ToUpper(string(req.Response.Outcome)),
		EmploymentDetails:  req.Response.Details,
		AdditionalComments: req.Response.Comments,
	})
}

func (c *Coordinator) enqueue(ctx context.Context, topic string, payload any) error {
	if c.notifier == nil {
		return nil
	}
	if err := c.notifier.Enqueue(ctx, topic, payload); err != nil {
		return fmt.Errorf("verification: enqueue %s: %w", topic, err)
	}
	return nil
}
