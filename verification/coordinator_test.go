package verification

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"claimflow/apperr"
	"claimflow/claim"
	"claimflow/dispute"
	"claimflow/employer"
	"claimflow/outbox"
	"claimflow/workflow"
)

type sentMessage struct {
	topic   string
	payload any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (n *recordingNotifier) Enqueue(_ context.Context, topic string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("outbox down")
	}
	n.sent = append(n.sent, sentMessage{topic: topic, payload: payload})
	return nil
}

func (n *recordingNotifier) byTopic(topic string) []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []any
	for _, m := range n.sent {
		if m.topic == topic {
			out = append(out, m.payload)
		}
	}
	return out
}

type fixture struct {
	claims      *claim.Service
	store       *claim.MemoryStore
	workflow    *workflow.Workflow
	requests    *MemoryStore
	disputes    *dispute.MemoryRepository
	notifier    *recordingNotifier
	coordinator *Coordinator
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		store:    claim.NewMemoryStore(),
		requests: NewMemoryStore(),
		disputes: dispute.NewMemoryRepository(),
		notifier: &recordingNotifier{},
		now:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.claims = claim.NewService(f.store, nil, log)
	f.workflow = workflow.New(f.store, nil, log).WithClock(clock)
	f.coordinator = NewCoordinator(f.requests, f.workflow, f.notifier, log).
		WithEmployers(employer.NewMemoryDirectory(employer.DefaultProfiles()...)).
		WithDisputes(dispute.NewService(f.disputes).WithClock(clock)).
		WithSLA(72 * time.Hour).
		WithClock(clock)
	return f
}

// processingClaim files a claim with one EMP001 record and moves it to processing.
func (f *fixture) processingClaim(t *testing.T) claim.Claim {
	t.Helper()
	ctx := context.Background()
	c, err := f.claims.File(ctx, claim.FileParams{
		ClaimantID:       "C-100",
		ClaimantName:     "Jane Doe",
		ClaimantSSNLast4: "1234",
		SeparationReason: "Layoff",
		EmploymentRecords: []claim.EmploymentRecord{{
			EmployerID:   "EMP001",
			EmployerName: "Acme Industries",
			StartDate:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:      time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			Wages:        decimal.NewFromInt(14000),
		}},
	})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if _, err := f.workflow.Transition(ctx, workflow.TransitionParams{ClaimRef: c.ReferenceID, Next: claim.StatusProcessing}); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	return c
}

func (f *fixture) status(t *testing.T, ref string) claim.Status {
	t.Helper()
	c, err := f.store.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	return c.Status
}

func TestRequestVerification_DefaultsFromLatestEmployment(t *testing.T) {
	f := newFixture(t)
	c := f.processingClaim(t)

	req, err := f.coordinator.RequestVerification(context.Background(), RequestParams{ClaimRef: c.ReferenceID})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.EmployerID != "EMP001" || req.LastEmployer != "Acme Industries" || req.ClaimantName != "Jane Doe" {
		t.Fatalf("unexpected defaults: %+v", req)
	}
	if req.Status != StatusPending || req.PeriodStart == nil || req.PeriodEnd == nil {
		t.Fatalf("unexpected request: %+v", req)
	}
	if got := f.status(t, c.ReferenceID); got != claim.StatusWaitingForEmployer {
		t.Fatalf("expected waiting_for_employer, got %s", got)
	}

	sent := f.notifier.byTopic(outbox.TopicVerificationRequested)
	if len(sent) != 1 {
		t.Fatalf("expected one request notification, got %d", len(sent))
	}
	payload := sent[0].(RequestedPayload)
	if payload.RequestID != req.ID || payload.ClaimID != c.ReferenceID || payload.Reminder != 0 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestRequestVerification_SecondOpenRequestConflicts(t *testing.T) {
	f := newFixture(t)
	c := f.processingClaim(t)
	ctx := context.Background()

	if _, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID})
	if !errors.Is(err, ErrDuplicateRequest) || !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
	reqs, _ := f.coordinator.ForClaim(ctx, c.ReferenceID)
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
}

func TestRequestVerification_RejectsClaimsNotAwaitingEmployer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.claims.File(ctx, claim.FileParams{ClaimantID: "C-1", SeparationReason: "Layoff"})
	if err != nil {
		t.Fatalf("file: %v", err)
	}

	_, err = f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID, EmployerID: "EMP001"})
	if !errors.Is(err, ErrClaimNotAwaiting) || !errors.Is(err, apperr.ErrPrecondition) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	if got := f.status(t, c.ReferenceID); got != claim.StatusReceived {
		t.Fatalf("status changed to %s", got)
	}
}

func TestRequestVerification_InputErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.coordinator.RequestVerification(ctx, RequestParams{}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: "CL-MISSING"}); !errors.Is(err, claim.ErrNotFound) {
		t.Fatalf("expected claim not found, got %v", err)
	}

	c, err := f.claims.File(ctx, claim.FileParams{ClaimantID: "C-2", SeparationReason: "Layoff"})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if _, err := f.workflow.Transition(ctx, workflow.TransitionParams{ClaimRef: c.ReferenceID, Next: claim.StatusProcessing}); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if _, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected missing employer validation, got %v", err)
	}
	if _, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID, EmployerID: "EMP999"}); !errors.Is(err, employer.ErrNotFound) {
		t.Fatalf("expected unknown employer, got %v", err)
	}
	if got := f.status(t, c.ReferenceID); got != claim.StatusProcessing {
		t.Fatalf("failed requests must not move the claim, got %s", got)
	}
}

func TestSubmitResponse_VerifiedMovesClaimOnce(t *testing.T) {
	f := newFixture(t)
	c := f.processingClaim(t)
	ctx := context.Background()

	req, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	wages := decimal.RequireFromString("15000.50")
	done, err := f.coordinator.SubmitResponse(ctx, ResponseParams{
		RequestID: req.ID,
		Status:    "VERIFIED",
		Details:   EmploymentDetails{EmployerName: "ACME Industries, Inc.", VerifiedWages: &wages},
		Comments:  "Confirmed",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if done.Status != StatusCompleted || done.Response == nil || done.Response.Outcome != OutcomeVerified {
		t.Fatalf("unexpected completed request: %+v", done)
	}
	if done.Response.MatchScore != 1 {
		t.Fatalf("expected normalized names to match, got %v", done.Response.MatchScore)
	}
	if got := f.status(t, c.ReferenceID); got != claim.StatusVerified {
		t.Fatalf("expected verified, got %s", got)
	}

	_, err = f.coordinator.SubmitResponse(ctx, ResponseParams{RequestID: req.ID, Status: "VERIFIED"})
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
	history, _ := f.store.History(ctx, c.ReferenceID)
	verified := 0
	for _, h := range history {
		if h.Status == claim.StatusVerified {
			verified++
		}
	}
	if verified != 1 {
		t.Fatalf("expected one verified entry, got %d", verified)
	}

	sent := f.notifier.byTopic(outbox.TopicVerificationCompleted)
	if len(sent) != 1 {
		t.Fatalf("expected one completion notification, got %d", len(sent))
	}
	payload := sent[0].(CompletedPayload)
	if payload.VerificationStatus != "VERIFIED" || payload.ClaimID != c.ReferenceID || payload.AdditionalComments != "Confirmed" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	got, ok, err := f.coordinator.VerifiedWages(ctx, c.ReferenceID)
	if err != nil || !ok || !got.Equal(wages) {
		t.Fatalf("verified wages = %s, %v, %v", got, ok, err)
	}
}

func TestSubmitResponse_DisputedOpensDispute(t *testing.T) {
	f := newFixture(t)
	c := f.processingClaim(t)
	ctx := context.Background()

	req, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.coordinator.SubmitResponse(ctx, ResponseParams{RequestID: req.ID, Status: "disputed", Comments: "Quit voluntarily"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if got := f.status(t, c.ReferenceID); got != claim.StatusVerified {
		t.Fatalf("expected verified, got %s", got)
	}
	records, err := f.disputes.List(ctx, c.ReferenceID)
	if err != nil {
		t.Fatalf("list disputes: %v", err)
	}
	if len(records) != 1 || records[0].RequestID != req.ID || records[0].Reason != "Quit voluntarily" {
		t.Fatalf("unexpected disputes: %+v", records)
	}
	if _, ok, _ := f.coordinator.VerifiedWages(ctx, c.ReferenceID); ok {
		t.Fatalf("no wages were reported")
	}
}

func TestSubmitResponse_InputErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.coordinator.SubmitResponse(ctx, ResponseParams{RequestID: "not-a-uuid", Status: "VERIFIED"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.coordinator.SubmitResponse(ctx, ResponseParams{RequestID: "3f1b4c7e-0000-4000-8000-000000000000", Status: "VERIFIED"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.coordinator.SubmitResponse(ctx, ResponseParams{RequestID: "3f1b4c7e-0000-4000-8000-000000000000", Status: "MAYBE"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
}

// assertUntouched checks that a failed submission left the request open and the claim waiting.
func (f *fixture) assertUntouched(t *testing.T, ref, requestID string) {
	t.Helper()
	ctx := context.Background()
	if got := f.status(t, ref); got != claim.StatusWaitingForEmployer {
		t.Fatalf("expected waiting_for_employer, got %s", got)
	}
	stored, err := f.coordinator.Get(ctx, requestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if stored.Status != StatusPending || stored.Response != nil || stored.CompletedAt != nil {
		t.Fatalf("expected pending request, got %+v", stored)
	}
	history, _ := f.store.History(ctx, ref)
	for _, h := range history {
		if h.Status == claim.StatusVerified {
			t.Fatalf("rolled back submission left a verified history entry")
		}
	}
	records, _ := f.disputes.List(ctx, ref)
	if len(records) != 0 {
		t.Fatalf("rolled back submission left %d disputes", len(records))
	}
	if n := len(f.notifier.byTopic(outbox.TopicVerificationCompleted)); n != 0 {
		t.Fatalf("rolled back submission queued %d completion messages", n)
	}
}

func TestSubmitResponse_NotificationFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	c := f.processingClaim(t)
	ctx := context.Background()

	req, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	f.notifier.fail = true
	if _, err := f.coordinator.SubmitResponse(ctx, ResponseParams{RequestID: req.ID, Status: "DISPUTED", Comments: "Never employed"}); err == nil {
		t.Fatalf("expected submission to fail when the outbox is unavailable")
	}
	f.assertUntouched(t, c.ReferenceID, req.ID)

	f.notifier.fail = false
	if _, err := f.coordinator.SubmitResponse(ctx, ResponseParams{RequestID: req.ID, Status: "DISPUTED", Comments: "Never employed"}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := f.status(t, c.ReferenceID); got != claim.StatusVerified {
		t.Fatalf("expected verified after retry, got %s", got)
	}
	if records, _ := f.disputes.List(ctx, c.ReferenceID); len(records) != 1 {
		t.Fatalf("expected one dispute after retry, got %d", len(records))
	}
}

type failingDisputes struct{ err error }

func (d failingDisputes) Open(context.Context, string, string, string) (dispute.Record, error) {
	return dispute.Record{}, d.err
}

func TestSubmitResponse_DisputeFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	c := f.processingClaim(t)
	ctx := context.Background()

	req, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	f.coordinator.WithDisputes(failingDisputes{err: errors.New("disputes table locked")})
	if _, err := f.coordinator.SubmitResponse(ctx, ResponseParams{RequestID: req.ID, Status: "DISPUTED"}); err == nil {
		t.Fatalf("expected dispute failure to fail the submission")
	}
	f.assertUntouched(t, c.ReferenceID, req.ID)

	f.coordinator.WithDisputes(dispute.NewService(f.disputes).WithClock(func() time.Time { return f.now }))
	if _, err := f.coordinator.SubmitResponse(ctx, ResponseParams{RequestID: req.ID, Status: "DISPUTED"}); err != nil {
		t.Fatalf("retry must not see the request as completed: %v", err)
	}
	if got := f.status(t, c.ReferenceID); got != claim.StatusVerified {
		t.Fatalf("expected verified after retry, got %s", got)
	}
}

// staleStatusStore fails every status update, like a lost compare-and-swap.
type staleStatusStore struct {
	*claim.MemoryStore
}

func (staleStatusStore) UpdateStatus(context.Context, string, claim.Status, claim.HistoryEntry) (claim.Claim, error) {
	return claim.Claim{}, claim.ErrStaleStatus
}

func TestSubmitResponse_StatusUpdateFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	c := f.processingClaim(t)
	ctx := context.Background()

	req, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	stale := workflow.New(staleStatusStore{f.store}, nil, log)
	coord := NewCoordinator(f.requests, stale, f.notifier, log).
		WithDisputes(dispute.NewService(f.disputes)).
		WithClock(func() time.Time { return f.now })

	if _, err := coord.SubmitResponse(ctx, ResponseParams{RequestID: req.ID, Status: "DISPUTED"}); !errors.Is(err, claim.ErrStaleStatus) {
		t.Fatalf("expected stale status, got %v", err)
	}
	f.assertUntouched(t, c.ReferenceID, req.ID)
}

func TestSubmitResponse_ConcurrentSubmitsCompleteOnce(t *testing.T) {
	f := newFixture(t)
	c := f.processingClaim(t)
	ctx := context.Background()

	req, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coordinator.SubmitResponse(ctx, ResponseParams{RequestID: req.ID, Status: "VERIFIED"})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrAlreadyCompleted) && !errors.Is(err, ErrClaimNotAwaiting) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
	if n := len(f.notifier.byTopic(outbox.TopicVerificationCompleted)); n != 1 {
		t.Fatalf("expected one completion notification, got %d", n)
	}
}

func TestSweepOverdue_RenotifiesPastSLA(t *testing.T) {
	f := newFixture(t)
	c := f.processingClaim(t)
	ctx := context.Background()

	req, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	f.now = f.now.Add(24 * time.Hour)
	if n, err := f.coordinator.SweepOverdue(ctx); err != nil || n != 0 {
		t.Fatalf("sweep inside SLA = %d, %v", n, err)
	}

	f.now = f.now.Add(49 * time.Hour)
	n, err := f.coordinator.SweepOverdue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("sweep past SLA = %d, %v", n, err)
	}
	if n, _ := f.coordinator.SweepOverdue(ctx); n != 0 {
		t.Fatalf("a re-notified request must wait another SLA, got %d", n)
	}

	sent := f.notifier.byTopic(outbox.TopicVerificationRequested)
	if len(sent) != 2 {
		t.Fatalf("expected original plus reminder, got %d", len(sent))
	}
	if reminder := sent[1].(RequestedPayload); reminder.RequestID != req.ID || reminder.Reminder != 1 {
		t.Fatalf("unexpected reminder: %+v", reminder)
	}
	stored, _ := f.coordinator.Get(ctx, req.ID)
	if stored.NotifyCount != 1 || !stored.LastNotifiedAt.Equal(f.now) {
		t.Fatalf("unexpected notify state: %+v", stored)
	}
}

func TestSweepOverdue_SkipsRejectedClaims(t *testing.T) {
	f := newFixture(t)
	c := f.processingClaim(t)
	ctx := context.Background()

	req, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	// No subscriber is registered, so only the sweep can notice the rejection.
	if _, err := f.workflow.Transition(ctx, workflow.TransitionParams{ClaimRef: c.ReferenceID, Next: claim.StatusRejected, Reason: "Ineligible"}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	renotified := 0
	for i := 0; i < 3; i++ {
		f.now = f.now.Add(73 * time.Hour)
		n, err := f.coordinator.SweepOverdue(ctx)
		if err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
		renotified += n
	}
	if renotified != 0 {
		t.Fatalf("rejected claim was re-notified %d times", renotified)
	}
	stored, _ := f.coordinator.Get(ctx, req.ID)
	if stored.Status != StatusCancelled || stored.NotifyCount != 0 {
		t.Fatalf("expected cancelled request, got %+v", stored)
	}
	if sent := f.notifier.byTopic(outbox.TopicVerificationRequested); len(sent) != 1 {
		t.Fatalf("expected only the original request message, got %d", len(sent))
	}
	if _, err := f.coordinator.SubmitResponse(ctx, ResponseParams{RequestID: req.ID, Status: "VERIFIED"}); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected cancelled request to refuse responses, got %v", err)
	}
}

func TestOnStatusChanged_TerminalStatusCancelsPendingRequest(t *testing.T) {
	f := newFixture(t)
	f.workflow.Subscribe(f.coordinator.OnStatusChanged)
	c := f.processingClaim(t)
	ctx := context.Background()

	req, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.workflow.Transition(ctx, workflow.TransitionParams{ClaimRef: c.ReferenceID, Next: claim.StatusRejected}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	stored, _ := f.coordinator.Get(ctx, req.ID)
	if stored.Status != StatusCancelled || stored.CompletedAt == nil {
		t.Fatalf("expected cancelled request, got %+v", stored)
	}
	f.now = f.now.Add(73 * time.Hour)
	overdue, _ := f.requests.ListOverdue(ctx, f.now, 10)
	if len(overdue) != 0 {
		t.Fatalf("cancelled request still listed as overdue")
	}
}

func TestOnStatusChanged_AutoRequestsVerification(t *testing.T) {
	f := newFixture(t)
	f.coordinator.WithAutoRequest(true)
	f.workflow.Subscribe(f.coordinator.OnStatusChanged)
	c := f.processingClaim(t)
	ctx := context.Background()

	if _, err := f.workflow.Transition(ctx, workflow.TransitionParams{ClaimRef: c.ReferenceID, Next: claim.StatusWaitingForEmployer}); err != nil {
		t.Fatalf("to waiting: %v", err)
	}
	reqs, err := f.coordinator.ForClaim(ctx, c.ReferenceID)
	if err != nil {
		t.Fatalf("for claim: %v", err)
	}
	if len(reqs) != 1 || reqs[0].EmployerID != "EMP001" {
		t.Fatalf("expected one automatic request, got %+v", reqs)
	}

	byEmployer, err := f.coordinator.ForEmployer(ctx, "EMP001")
	if err != nil || len(byEmployer) != 1 {
		t.Fatalf("for employer = %d, %v", len(byEmployer), err)
	}
	if _, err := f.coordinator.ForEmployer(ctx, "EMP999"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected unknown employer, got %v", err)
	}
}

func TestOnStatusChanged_ExplicitRequestDoesNotDuplicate(t *testing.T) {
	f := newFixture(t)
	f.coordinator.WithAutoRequest(true)
	f.workflow.Subscribe(f.coordinator.OnStatusChanged)
	c := f.processingClaim(t)
	ctx := context.Background()

	if _, err := f.coordinator.RequestVerification(ctx, RequestParams{ClaimRef: c.ReferenceID}); err != nil {
		t.Fatalf("request: %v", err)
	}
	reqs, _ := f.coordinator.ForClaim(ctx, c.ReferenceID)
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
}
