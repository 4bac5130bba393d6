package claim

import (
	"errors"
	"testing"

	"claimflow/apperr"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusReceived, StatusProcessing, true},
		{StatusProcessing, StatusWaitingForEmployer, true},
		{StatusProcessing, StatusVerified, true},
		{StatusWaitingForEmployer, StatusVerified, true},
		{StatusVerified, StatusTaxCalculated, true},
		{StatusTaxCalculated, StatusFinalized, true},
		{StatusReceived, StatusRejected, true},
		{StatusTaxCalculated, StatusRejected, true},

		{StatusReceived, StatusReceived, false},
		{StatusReceived, StatusVerified, false},
		{StatusWaitingForEmployer, StatusProcessing, false},
		{StatusVerified, StatusFinalized, false},
		{StatusFinalized, StatusRejected, false},
		{StatusRejected, StatusProcessing, false},
		{StatusRejected, StatusRejected, false},
		{StatusProcessing, Status("archived"), false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" Waiting_For_Employer ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != StatusWaitingForEmployer {
		t.Fatalf("expected waiting_for_employer, got %s", got)
	}

	if _, err := ParseStatus("pending"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReachedAndNext(t *testing.T) {
	if !StatusTaxCalculated.Reached(StatusVerified) {
		t.Errorf("tax_calculated should count as verified or later")
	}
	if StatusWaitingForEmployer.Reached(StatusVerified) {
		t.Errorf("waiting_for_employer is before verified")
	}
	if StatusRejected.Reached(StatusVerified) {
		t.Errorf("rejected is off the main path")
	}

	next := Next(StatusProcessing)
	if len(next) != 3 || next[len(next)-1] != StatusRejected {
		t.Fatalf("unexpected next statuses %v", next)
	}
	if Next(StatusFinalized) != nil {
		t.Fatalf("terminal status has no successors")
	}
}

func TestInvalidTransitionErrorIsConflict(t *testing.T) {
	err := error(&InvalidTransitionError{From: StatusReceived, To: StatusFinalized})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict kind")
	}
	if err.Error() != "claim: invalid transition received -> finalized" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
