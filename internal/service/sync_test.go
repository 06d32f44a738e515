package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/msomdec/gymtrack/internal/domain"
)

func TestSyncService_PullRejectsMalformedSince(t *testing.T) {
	svc := newTestServices(t)

	if _, err := svc.sync.Pull(context.Background(), "not-a-time"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSyncService_PullTimestampNeverBeforeSince(t *testing.T) {
	svc := newTestServices(t)

	future := "2999-01-01T00:00:00.000Z"
	changes, err := svc.sync.Pull(context.Background(), future)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if changes.Timestamp != domain.Timestamp(future) {
		t.Fatalf("expected timestamp to stay at since, got %s", changes.Timestamp)
	}
}

func TestSyncService_PullServesRowStampedAtWatermark(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	first, err := svc.sync.Pull(ctx, "")
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	session, err := svc.workouts.CreateSession(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	second, err := svc.sync.Pull(ctx, string(first.Timestamp))
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(second.Sessions) != 1 || second.Sessions[0].ID != session.ID {
		t.Fatalf("expected the new session after the first watermark, got %+v", second.Sessions)
	}
}

func TestSyncService_PushIsolatesFailures(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	session, err := svc.workouts.CreateSession(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	batch := domain.PushBatch{Sets: []domain.Set{
		{ID: 100, SessionID: session.ID, ExerciseID: 1, SetNumber: 1},
		{ID: 101, SessionID: session.ID, ExerciseID: 1, SetNumber: 2},
		// Same natural key as set 100.
		{ID: 102, SessionID: session.ID, ExerciseID: 1, SetNumber: 1},
	}}

	res := svc.sync.Push(ctx, batch, "test-client")
	if res.Synced != 2 || res.Failed != 1 {
		t.Fatalf("expected 2 synced and 1 failed, got %d/%d", res.Synced, res.Failed)
	}
	if !res.Rejected(domain.RecordSet, 102) {
		t.Fatalf("expected set 102 to be rejected, got %+v", res.Conflicts)
	}
	if res.Timestamp == "" {
		t.Fatal("expected a server timestamp")
	}

	sets, err := svc.db.Sets().ListBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("expected 2 stored sets, got %d", len(sets))
	}
}

func TestSyncService_PushValidatesRecords(t *testing.T) {
	svc := newTestServices(t)

	res := svc.sync.Push(context.Background(), domain.PushBatch{
		Sessions: []domain.Session{{ID: 0, SessionDate: "2024-01-01", Status: domain.SessionInProgress}},
		SessionExercises: []domain.SessionExercise{
			{ID: 5, SessionID: 1, DayNumber: 1, SelectionOrder: 3},
		},
	}, "")
	if res.Synced != 0 || res.Failed != 2 {
		t.Fatalf("expected both records to fail, got %d/%d", res.Synced, res.Failed)
	}
}
