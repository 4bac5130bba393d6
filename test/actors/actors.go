package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"claimflow/apperr"
	"claimflow/claim"
	"claimflow/db"
	"claimflow/dispute"
	"claimflow/employer"
	"claimflow/outbox"
	"claimflow/tax"
	"claimflow/verification"
	"claimflow/workflow"
)

// System is the set of services the actors drive, all backed by one pool.
type System struct {
	Pool          *pgxpool.Pool
	Claims        *claim.Service
	Workflow      *workflow.Workflow
	Verifications *verification.Coordinator
	Taxes         *tax.Calculator
	Relay         *outbox.Relay

	// Rejected counts domain refusals (conflict, precondition...); Failed counts everything else.
	Rejected atomic.Int64
	Failed   atomic.Int64
}

// NewSystem wires the PostgreSQL repositories the same way the server does.
// Automatic verification requests and tax calculation are on so subscribers race the actors.
func NewSystem(ctx context.Context, pool *pgxpool.Pool, log logrus.FieldLogger) (*System, error) {
	queue := outbox.NewQueue(outbox.NewRepository(pool))
	claimRepo := claim.NewRepository(pool)

	employers := employer.NewService(employer.NewRepository(pool))
	if err := employers.Seed(ctx, employer.DefaultProfiles()); err != nil {
		return nil, err
	}

	s := &System{Pool: pool}
	tx := db.NewTransactor(pool)
	s.Claims = claim.NewService(claimRepo, queue, log).WithTransactor(tx)
	s.Workflow = workflow.New(claimRepo, queue, log).WithTransactor(tx)
	s.Verifications = verification.NewCoordinator(verification.NewRepository(pool), s.Workflow, queue, log).
		WithEmployers(employers).
		WithDisputes(dispute.NewService(dispute.NewRepository(pool))).
		WithSLA(time.Second).
		WithAutoRequest(true)
	s.Taxes = tax.NewCalculator(tax.NewRepository(pool), s.Workflow, queue, log).
		WithWageSource(s.Verifications).
		WithAutoCalculate(true)
	s.Workflow.Subscribe(s.Verifications.OnStatusChanged)
	s.Workflow.Subscribe(s.Taxes.OnStatusChanged)

	if _, err := s.Taxes.EnsureDefaultRate(ctx, tax.DefaultStateRate, tax.DefaultFederalRate); err != nil {
		return nil, err
	}

	s.Relay = outbox.NewRelay(outbox.NewRepository(pool), flakyTransport{}, outbox.RelayConfig{
		BatchSize:      20,
		MaxAttempts:    5,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Lease:          5 * time.Second,
	}, log)
	return s, nil
}

func (s *System) record(err error) {
	if err == nil {
		return
	}
	if apperr.KindOf(err) != nil {
		s.Rejected.Add(1)
		return
	}
	s.Failed.Add(1)
}

func done(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

func pause(minMs, spreadMs int) {
	time.Sleep(time.Duration(minMs+rand.Intn(spreadMs)) * time.Millisecond)
}

// randomClaim picks a claim in one of the given statuses, or any claim when none are given.
func (s *System) randomClaim(ctx context.Context, statuses ...string) (string, bool) {
	var ref string
	var err error
	if len(statuses) == 0 {
		err = s.Pool.QueryRow(ctx, `SELECT reference_id FROM claims ORDER BY random() LIMIT 1`).Scan(&ref)
	} else {
		err = s.Pool.QueryRow(ctx, `SELECT reference_id FROM claims WHERE status = ANY($1) ORDER BY random() LIMIT 1`, statuses).Scan(&ref)
	}
	return ref, err == nil
}

// Filer files claims, sometimes reusing a small pool of idempotency keys so replays race the first call.
func Filer(ctx context.Context, s *System, id int, stop <-chan struct{}) error {
	for n := 0; !done(ctx, stop); n++ {
		params := claim.FileParams{
			ClaimantID:       fmt.Sprintf("C-%d-%d", id, n),
			ClaimantName:     "Stress Claimant",
			SeparationReason: "Layoff",
			EmploymentRecords: []claim.EmploymentRecord{{
				EmployerID:   "EMP001",
				EmployerName: "Acme Industries",
				StartDate:    time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
				EndDate:      time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
				Wages:        decimal.NewFromInt(int64(5000 + rand.Intn(20000))),
			}},
		}
		if rand.Intn(3) == 0 {
			params.IdempotencyKey = fmt.Sprintf("stress-key-%d", rand.Intn(20))
		}
		_, err := s.Claims.File(ctx, params)
		s.record(err)
		pause(10, 20)
	}
	return nil
}

// Advancer moves random claims to a random legal (or occasionally illegal) next status.
func Advancer(ctx context.Context, s *System, stop <-chan struct{}) error {
	all := []claim.Status{
		claim.StatusProcessing, claim.StatusWaitingForEmployer, claim.StatusVerified,
		claim.StatusTaxCalculated, claim.StatusFinalized, claim.StatusRejected,
	}
	for !done(ctx, stop) {
		ref, ok := s.randomClaim(ctx)
		if !ok {
			pause(10, 20)
			continue
		}
		next := all[rand.Intn(len(all))]
		// rejection ends a claim's life; keep it rare so the other actors have work
		if next == claim.StatusRejected && rand.Intn(10) != 0 {
			next = claim.StatusProcessing
		}
		_, err := s.Workflow.Transition(ctx, workflow.TransitionParams{ClaimRef: ref, Next: next, Actor: "stress-advancer"})
		s.record(err)
		pause(15, 30)
	}
	return nil
}

// Requester asks for verification on claims that may or may not be awaiting one.
func Requester(ctx context.Context, s *System, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		ref, ok := s.randomClaim(ctx, string(claim.StatusProcessing), string(claim.StatusWaitingForEmployer), string(claim.StatusReceived))
		if ok {
			_, err := s.Verifications.RequestVerification(ctx, verification.RequestParams{ClaimRef: ref, Actor: "stress-requester"})
			s.record(err)
		}
		pause(20, 30)
	}
	return nil
}

// Responder answers pending requests. Several responders race on the same request.
func Responder(ctx context.Context, s *System, stop <-chan struct{}) error {
	outcomes := []string{"VERIFIED", "VERIFIED", "VERIFIED", "DISPUTED"}
	for !done(ctx, stop) {
		var id string
		err := s.Pool.QueryRow(ctx, `SELECT id::text FROM verification_requests WHERE status = 'pending' ORDER BY random() LIMIT 1`).Scan(&id)
		if err != nil {
			pause(10, 20)
			continue
		}
		wages := decimal.NewFromInt(int64(5000 + rand.Intn(20000)))
		_, err = s.Verifications.SubmitResponse(ctx, verification.ResponseParams{
			RequestID: id,
			Status:    outcomes[rand.Intn(len(outcomes))],
			Details: verification.EmploymentDetails{
				EmployerName:  "ACME Industries, Inc.",
				VerifiedWages: &wages,
			},
			RespondedBy: "stress-responder",
		})
		s.record(err)
		pause(15, 30)
	}
	return nil
}

// TaxCalculator recalculates tax for verified or later claims, competing with the automatic subscriber.
func TaxCalculator(ctx context.Context, s *System, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		ref, ok := s.randomClaim(ctx, string(claim.StatusVerified), string(claim.StatusTaxCalculated), string(claim.StatusWaitingForEmployer))
		if ok {
			_, err := s.Taxes.Calculate(ctx, ref)
			s.record(err)
		}
		pause(20, 40)
	}
	return nil
}

// Sweeper re-notifies overdue requests. The SLA is one second so it fires often.
func Sweeper(ctx context.Context, s *System, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		_, err := s.Verifications.SweepOverdue(ctx)
		s.record(err)
		pause(200, 300)
	}
	return nil
}

// OutboxWorker drains the outbox through a transport that fails one delivery in ten.
func OutboxWorker(ctx context.Context, s *System, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		n, err := s.Relay.ProcessBatch(ctx)
		s.record(err)
		if n == 0 {
			pause(50, 50)
		}
	}
	return nil
}

var errFlaky = errors.New("simulated delivery failure")

type flakyTransport struct{}

func (flakyTransport) Deliver(ctx context.Context, _ outbox.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rand.Intn(10) == 0 {
		return errFlaky
	}
	return nil
}
