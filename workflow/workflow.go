// Package workflow owns every status change of a claim. Mutations of one claim
// are serialized by an in-process lock and a compare-and-swap in the store.
// Each WithClaim call is one unit of work: the status change, the writes of the
// callback and the outbox messages announcing them commit together. Subscribers
// run only after the unit commits and the lock is released.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"claimflow/apperr"
	"claimflow/claim"
	"claimflow/db"
	"claimflow/outbox"
)

// Event describes one committed status change.
type Event struct {
	ClaimRef string
	Previous claim.Status
	Next     claim.Status
	Reason   string
	Actor    string
	At       time.Time
}

// Subscriber reacts to committed status changes. It runs outside the claim lock.
type Subscriber func(ctx context.Context, ev Event)

type TransitionParams struct {
	ClaimRef string
	Next     claim.Status
	Reason   string
	Actor    string
}

type Workflow struct {
	store        claim.Store
	notifier     claim.Notifier
	tx           db.Transactor
	log          logrus.FieldLogger
	locks        *keyedMutex
	now          func() time.Time
	sourceSystem string

	mu          sync.RWMutex
	subscribers []Subscriber
}

func New(store claim.Store, notifier claim.Notifier, log logrus.FieldLogger) *Workflow {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Workflow{
		store:        store,
		notifier:     notifier,
		tx:           db.NewMemoryTransactor(),
		log:          log,
		locks:        newKeyedMutex(),
		now:          time.Now,
		sourceSystem: "claimflow",
	}
}

func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// WithTransactor sets how units of work are run. The default only covers the memory stores.
func (w *Workflow) WithTransactor(t db.Transactor) *Workflow {
	w.tx = t
	return w
}

func (w *Workflow) WithSourceSystem(name string) *Workflow {
	w.sourceSystem = name
	return w
}

// Subscribe registers fn for every later status change.
func (w *Workflow) Subscribe(fn Subscriber) {
	w.mu.Lock()
	w.subscribers = append(w.subscribers, fn)
	w.mu.Unlock()
}

// Transition moves a claim to p.Next and records the history entry.
func (w *Workflow) Transition(ctx context.Context, p TransitionParams) (claim.Claim, error) {
	var out claim.Claim
	err := w.WithClaim(ctx, p.ClaimRef, func(ctx context.Context, tx *Tx) error {
		updated, err := tx.Transition(ctx, p.Next, p.Reason, p.Actor)
		out = updated
		return err
	})
	return out, err
}

// WithClaim runs fn while holding the claim's lock, as one unit of work. If fn
// fails every write made through ctx is rolled back, transitions included.
// Events of a committed unit are published after the lock is released.
func (w *Workflow) WithClaim(ctx context.Context, referenceID string, fn func(ctx context.Context, tx *Tx) error) error {
	events, err := w.locked(ctx, referenceID, fn)
	if err != nil {
		return err
	}
	w.publish(ctx, events)
	return nil
}

func (w *Workflow) locked(ctx context.Context, referenceID string, fn func(ctx context.Context, tx *Tx) error) ([]Event, error) {
	if strings.TrimSpace(referenceID) == "" {
		return nil, apperr.Validation("workflow: claim reference required")
	}

	unlock := w.locks.Lock(referenceID)
	defer unlock()

	var events []Event
	err := w.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := w.store.Get(ctx, referenceID)
		if err != nil {
			return fmt.Errorf("workflow: load claim: %w", err)
		}
		tx := &Tx{w: w, claim: c}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		events = tx.events
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (w *Workflow) publish(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}

	w.mu.RLock()
	subs := append([]Subscriber(nil), w.subscribers...)
	w.mu.RUnlock()

	for _, ev := range events {
		for _, sub := range subs {
			sub(ctx, ev)
		}
	}
}

// announce queues the status event in the running unit of work.
func (w *Workflow) announce(ctx context.Context, ev Event) error {
	if w.notifier == nil {
		return nil
	}
	previous := string(ev.Previous)
	payload := claim.StatusEvent{
		EventType:        claim.EventClaimStatusChanged,
		ClaimReferenceID: ev.ClaimRef,
		PreviousStatus:   &previous,
		NewStatus:        string(ev.Next),
		UpdatedBy:        ev.Actor,
		SourceSystem:     w.sourceSystem,
		Timestamp:        ev.At,
		Notes:            ev.Reason,
	}
	if err := w.notifier.Enqueue(ctx, outbox.TopicClaimStatusChanged, payload); err != nil {
		return fmt.Errorf("workflow: enqueue status event: %w", err)
	}
	return nil
}

// Tx is the handle passed to WithClaim callbacks. It is only valid inside the callback.
type Tx struct {
	w      *Workflow
	claim  claim.Claim
	events []Event
}

// Claim returns the claim as of the last staged transition.
func (tx *Tx) Claim() claim.Claim {
	return tx.claim
}

// Transition validates next against the transition table and stores it.
func (tx *Tx) Transition(ctx context.Context, next claim.Status, reason, actor string) (claim.Claim, error) {
	if !next.Valid() {
		return tx.claim, apperr.Validation(fmt.Sprintf("workflow: unknown status %q", next))
	}
	current := tx.claim.Status
	if !claim.CanTransition(current, next) {
		return tx.claim, &claim.InvalidTransitionError{From: current, To: next}
	}
	if strings.TrimSpace(actor) == "" {
		actor = claim.SystemActor
	}

	entry := claim.HistoryEntry{
		Status: next,
		Reason: strings.TrimSpace(reason),
		Actor:  actor,
		At:     tx.w.now().UTC(),
	}
	updated, err := tx.w.store.UpdateStatus(ctx, tx.claim.ReferenceID, current, entry)
	if err != nil {
		return tx.claim, fmt.Errorf("workflow: update status: %w", err)
	}
	ev := Event{
		ClaimRef: updated.ReferenceID,
		Previous: current,
		Next:     next,
		Reason:   entry.Reason,
		Actor:    actor,
		At:       entry.At,
	}
	if err := tx.w.announce(ctx, ev); err != nil {
		return tx.claim, err
	}
	tx.claim = updated
	tx.events = append(tx.events, ev)

	tx.w.log.WithFields(logrus.Fields{
		"claim_ref": updated.ReferenceID,
		"from":      current,
		"to":        next,
		"actor":     actor,
	}).Info("claim status changed")
	return updated, nil
}
