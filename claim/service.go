package claim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"claimflow/apperr"
	"claimflow/db"
	"claimflow/outbox"
)

// FileParams is the input of a new filing.
type FileParams struct {
	ClaimantID        string
	ClaimantName      string
	ClaimantSSNLast4  string
	SeparationReason  string
	FilingDate        time.Time
	EmploymentRecords []EmploymentRecord
	IdempotencyKey    string
}

// Service files claims and serves reads. Status changes go through the workflow package.
type Service struct {
	store        Store
	notifier     Notifier
	tx           db.Transactor
	log          logrus.FieldLogger
	idGenerator  func() string
	now          func() time.Time
	sourceSystem string
}

func NewService(store Store, notifier Notifier, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:        store,
		notifier:     notifier,
		tx:           db.NewMemoryTransactor(),
		log:          log,
		idGenerator:  NewReferenceID,
		now:          time.Now,
		sourceSystem: "claimflow",
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// WithTransactor sets how a filing and its announcement are committed together.
func (s *Service) WithTransactor(t db.Transactor) *Service {
	s.tx = t
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithSourceSystem(name string) *Service {
	s.sourceSystem = name
	return s
}

// NewReferenceID returns "CL-" followed by ten upper-case hex characters.
func NewReferenceID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CL-" + strings.ToUpper(raw[:10])
}

// File validates params and stores a new claim in the received status.
// Replaying an idempotency key returns the claim created by the first call.
func (s *Service) File(ctx context.Context, params FileParams) (Claim, error) {
	if err := validateFiling(params); err != nil {
		return Claim{}, err
	}

	if params.IdempotencyKey != "" {
		existing, err := s.store.FindByIdempotencyKey(ctx, params.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Claim{}, err
		}
	}

	now := s.now().UTC()
	filing := params.FilingDate
	if filing.IsZero() {
		filing = now
	}

	c := Claim{
		ReferenceID:      s.idGenerator(),
		ClaimantID:       strings.TrimSpace(params.ClaimantID),
		ClaimantName:     strings.TrimSpace(params.ClaimantName),
		ClaimantSSNLast4: params.ClaimantSSNLast4,
		FilingDate:       filing,
		Status:           StatusReceived,
		SeparationReason: strings.TrimSpace(params.SeparationReason),
		History: []HistoryEntry{{
			Seq:    1,
			Status: StatusReceived,
			Reason: InitialReason,
			Actor:  SystemActor,
			At:     now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, rec := range params.EmploymentRecords {
		rec.CreatedAt = now
		c.EmploymentRecords = append(c.EmploymentRecords, rec)
	}

	var created Claim
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if created, err = s.store.Create(ctx, c, params.IdempotencyKey); err != nil {
			return err
		}
		return s.announce(ctx, created)
	})
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		return s.store.FindByIdempotencyKey(ctx, params.IdempotencyKey)
	}
	if err != nil {
		return Claim{}, err
	}

	s.log.WithFields(logrus.Fields{"claim_ref": created.ReferenceID, "claimant_id": created.ClaimantID}).Info("claim filed")
	return created, nil
}

func (s *Service) Get(ctx context.Context, referenceID string) (Claim, error) {
	return s.store.Get(ctx, referenceID)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Claim, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperr.Validation(fmt.Sprintf("claim: unknown status %q", filter.Status))
	}
	return s.store.List(ctx, filter)
}

// History returns the status history newest first.
func (s *Service) History(ctx context.Context, referenceID string) ([]HistoryEntry, error) {
	entries, err := s.store.History(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// AddEmploymentRecord attaches rec to a claim that is still in received.
func (s *Service) AddEmploymentRecord(ctx context.Context, referenceID string, rec EmploymentRecord) (EmploymentRecord, error) {
	if err := validateRecord(rec); err != nil {
		return EmploymentRecord{}, err
	}
	rec.CreatedAt = s.now().UTC()
	return s.store.AddEmploymentRecord(ctx, referenceID, rec)
}

func (s *Service) announce(ctx context.Context, c Claim) error {
	if s.notifier == nil {
		return nil
	}
	event := StatusEvent{
		EventType:        EventClaimReceived,
		ClaimReferenceID: c.ReferenceID,
		NewStatus:        string(c.Status),
		UpdatedBy:        SystemActor,
		SourceSystem:     s.sourceSystem,
		Timestamp:        c.CreatedAt,
		Notes:            InitialReason,
	}
	if err := s.notifier.Enqueue(ctx, outbox.TopicClaimStatusChanged, event); err != nil {
		return fmt.Errorf("claim: enqueue received event: %w", err)
	}
	return nil
}

func validateFiling(params FileParams) error {
	if strings.TrimSpace(params.ClaimantID) == "" {
		return apperr.Validation("claim: claimant id required")
	}
	if strings.TrimSpace(params.SeparationReason) == "" {
		return apperr.Validation("claim: separation reason required")
	}
	if params.ClaimantSSNLast4 != "" && !isDigits(params.ClaimantSSNLast4, 4) {
		return apperr.Validation("claim: ssn last4 must be four digits")
	}
	for _, rec := range params.EmploymentRecords {
		if err := validateRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func validateRecord(rec EmploymentRecord) error {
	if strings.TrimSpace(rec.EmployerName) == "" {
		return apperr.Validation("claim: employer name required")
	}
	if rec.StartDate.IsZero() || rec.EndDate.IsZero() {
		return apperr.Validation("claim: employment period required")
	}
	if rec.EndDate.Before(rec.StartDate) {
		return apperr.Validation("claim: employment ends before it starts")
	}
	if rec.Wages.IsNegative() {
		return apperr.Validation("claim: wages must not be negative")
	}
	if !rec.Wages.Equal(rec.Wages.Truncate(2)) {
		return apperr.Validation("claim: wages must have at most two decimal places")
	}
	if rec.Wages.GreaterThanOrEqual(maxWages) {
		return apperr.Validation("claim: wages out of range")
	}
	return nil
}

// maxWages is the first amount a NUMERIC(14,2) column cannot hold.
var maxWages = decimal.New(1, 12)

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
