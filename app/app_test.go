package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"claimflow/claim"
	"claimflow/config"
	"claimflow/outbox"
	"claimflow/verification"
	"claimflow/workflow"
)

type capturedPost struct {
	topic string
	body  map[string]any
}

func memoryConfig(claimsURL, employerURL string) config.Config {
	return config.Config{
		Store:        config.StoreConfig{Driver: "memory"},
		Workflow:     config.WorkflowConfig{AutoRequestVerification: true, AutoCalculateTax: true},
		Verification: config.VerificationConfig{SLA: 72 * time.Hour, SweepInterval: time.Hour},
		Tax:          config.TaxConfig{DefaultStateRate: "0.02", DefaultFederalRate: "0.006", CalculatedBy: "tax-services"},
		Outbox:       config.OutboxConfig{Workers: 1, BatchSize: 50, MaxAttempts: 3, PollInterval: 10 * time.Millisecond},
		Notify: config.NotifyConfig{
			ClaimsURL:    claimsURL,
			EmployerURL:  employerURL,
			Timeout:      time.Second,
			SourceSystem: "claimflow-test",
		},
	}
}

func TestBuild_EndToEndLifecycle(t *testing.T) {
	var (
		mu    sync.Mutex
		posts []capturedPost
	)
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		posts = append(posts, capturedPost{topic: r.Header.Get("X-Message-Topic"), body: body})
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer downstream.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	ctx := context.Background()

	a, err := Build(ctx, memoryConfig(downstream.URL+"/claims", downstream.URL+"/employers"), log)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	c, err := a.Claims.File(ctx, claim.FileParams{
		ClaimantID:       "C-42",
		ClaimantName:     "Jane Doe",
		SeparationReason: "Layoff",
		EmploymentRecords: []claim.EmploymentRecord{{
			EmployerID:   "EMP001",
			EmployerName: "Acme Industries",
			StartDate:    time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:      time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
			Wages:        decimal.NewFromInt(14000),
		}},
	})
	if err != nil {
		t.Fatalf("file: %v", err)
	}

	for _, next := range []claim.Status{claim.StatusProcessing, claim.StatusWaitingForEmployer} {
		if _, err := a.Workflow.Transition(ctx, workflow.TransitionParams{ClaimRef: c.ReferenceID, Next: next, Actor: "examiner"}); err != nil {
			t.Fatalf("to %s: %v", next, err)
		}
	}

	reqs, err := a.Verifications.ForClaim(ctx, c.ReferenceID)
	if err != nil || len(reqs) != 1 {
		t.Fatalf("expected automatic verification request, got %d (%v)", len(reqs), err)
	}
	if _, err := a.Verifications.SubmitResponse(ctx, verification.ResponseParams{RequestID: reqs[0].ID, Status: "VERIFIED"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	final, err := a.Claims.Get(ctx, c.ReferenceID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != claim.StatusTaxCalculated {
		t.Fatalf("expected tax_calculated after automatic calculation, got %s", final.Status)
	}
	calc, err := a.Taxes.Get(ctx, c.ReferenceID)
	if err != nil || calc.Total.StringFixed(2) != "364.00" {
		t.Fatalf("tax = %+v, %v", calc, err)
	}

	for {
		n, err := a.Relay.ProcessBatch(ctx)
		if err != nil {
			t.Fatalf("relay: %v", err)
		}
		if n == 0 {
			break
		}
	}
	pending, _ := a.Outbox.List(ctx, outbox.StatusPending, 100)
	if len(pending) != 0 {
		t.Fatalf("expected empty outbox, got %d pending", len(pending))
	}

	mu.Lock()
	defer mu.Unlock()
	counts := map[string]int{}
	for _, p := range posts {
		counts[p.topic]++
	}
	// received, processing, waiting_for_employer, verified, tax_calculated
	if counts[outbox.TopicClaimStatusChanged] != 5 {
		t.Fatalf("expected 5 status events, got %v", counts)
	}
	if counts[outbox.TopicVerificationRequested] != 1 || counts[outbox.TopicVerificationCompleted] != 1 || counts[outbox.TopicTaxCalculated] != 1 {
		t.Fatalf("unexpected deliveries: %v", counts)
	}
	for _, p := range posts {
		if p.topic == outbox.TopicVerificationCompleted && p.body["verificationStatus"] != "VERIFIED" {
			t.Fatalf("unexpected completion payload: %v", p.body)
		}
	}
}

func TestBuild_LoadsEmployerSeedFile(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := memoryConfig("", "")
	cfg.Employers.File = t.TempDir() + "/missing.yaml"
	if _, err := Build(context.Background(), cfg, log); err == nil {
		t.Fatalf("expected error for missing seed file")
	}

	cfg.Employers.File = ""
	a, err := Build(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := a.Employers.GetByID(context.Background(), "EMP002"); err != nil {
		t.Fatalf("default employers not seeded: %v", err)
	}
	rate, err := a.Taxes.CurrentRate(context.Background())
	if err != nil || rate.FederalRate.String() != "0.006" {
		t.Fatalf("default rate = %+v, %v", rate, err)
	}
}
