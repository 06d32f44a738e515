package domain_test

import (
	"errors"
	"testing"

	"github.com/msomdec/gymtrack/internal/domain"
)

func TestSetUpdate_Assignments(t *testing.T) {
	reps := 8
	done := true
	u := domain.SetUpdate{Reps: &reps, Completed: &done}

	clause, args := domain.SetClause(u.Assignments())
	if clause != "reps = ?, completed = ?" {
		t.Fatalf("unexpected clause %q", clause)
	}
	if len(args) != 2 || args[0] != 8 || args[1] != true {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestSetUpdate_ValidateRejectsEmpty(t *testing.T) {
	err := domain.SetUpdate{}.Validate()
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSessionUpdate_ValidateStatus(t *testing.T) {
	bad := domain.SessionStatus("paused")
	if err := (domain.SessionUpdate{Status: &bad}).Validate(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	ok := domain.SessionCompleted
	if err := (domain.SessionUpdate{Status: &ok}).Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestPushResult_Rejected(t *testing.T) {
	res := domain.PushResult{Conflicts: []domain.Conflict{{Type: domain.RecordSet, ID: 4}}}
	if !res.Rejected(domain.RecordSet, 4) {
		t.Fatal("expected set 4 to be rejected")
	}
	if res.Rejected(domain.RecordSession, 4) {
		t.Fatal("session 4 was not rejected")
	}
}
