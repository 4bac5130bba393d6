package claim

import (
	"fmt"
	"strings"

	"claimflow/apperr"
)

// Status is the lifecycle state of a claim.
type Status string

const (
	StatusReceived           Status = "received"
	StatusProcessing         Status = "processing"
	StatusWaitingForEmployer Status = "waiting_for_employer"
	StatusVerified           Status = "verified"
	StatusTaxCalculated      Status = "tax_calculated"
	StatusFinalized          Status = "finalized"
	StatusRejected           Status = "rejected"
)

// transitions lists the forward edges. Rejection is handled separately.
var transitions = map[Status][]Status{
	StatusReceived:           {StatusProcessing},
	StatusProcessing:         {StatusWaitingForEmployer, StatusVerified},
	StatusWaitingForEmployer: {StatusVerified},
	StatusVerified:           {StatusTaxCalculated},
	StatusTaxCalculated:      {StatusFinalized},
}

// rank orders the main path so callers can ask whether a claim got at least as far as a status.
var rank = map[Status]int{
	StatusReceived:           1,
	StatusProcessing:         2,
	StatusWaitingForEmployer: 3,
	StatusVerified:           4,
	StatusTaxCalculated:      5,
	StatusFinalized:          6,
}

// ParseStatus normalizes s and rejects unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st.Valid() {
		return st, nil
	}
	return "", apperr.Validation(fmt.Sprintf("claim: unknown status %q", s))
}

func (s Status) Valid() bool {
	if s == StatusRejected {
		return true
	}
	_, ok := rank[s]
	return ok
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusFinalized || s == StatusRejected
}

// Reached reports whether s is target or a later state on the main path.
func (s Status) Reached(target Status) bool {
	r, ok := rank[s]
	if !ok {
		return false
	}
	return r >= rank[target]
}

// CanTransition reports whether next is reachable from s in one step.
// Re-entering the current status is never allowed.
func CanTransition(from, next Status) bool {
	if from == next || from.Terminal() || !next.Valid() {
		return false
	}
	if next == StatusRejected {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Next lists the statuses reachable from s.
func Next(s Status) []Status {
	if s.Terminal() {
		return nil
	}
	out := append([]Status(nil), transitions[s]...)
	return append(out, StatusRejected)
}

// InvalidTransitionError reports a move the transition table does not allow.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("claim: invalid transition %s -> %s", e.From, e.To)
}

// Is matches apperr.ErrConflict.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == apperr.ErrConflict
}
