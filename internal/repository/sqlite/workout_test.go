package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/msomdec/gymtrack/internal/domain"
)

func TestSession_CreateAndDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.Sessions().Create(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == 0 || s.Status != domain.SessionInProgress || s.StartedAt == nil {
		t.Fatalf("unexpected created session %+v", s)
	}
	if s.SyncVersion != 0 {
		t.Fatalf("expected version 0, got %d", s.SyncVersion)
	}

	if _, err := db.Sessions().Create(ctx, "2024-03-01"); !errors.Is(err, domain.ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}
}

func TestSession_UpdateBumpsVersionAndStampsCompletion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.Sessions().Create(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	status := domain.SessionCompleted
	notes := "felt strong"
	updated, err := db.Sessions().Update(ctx, s.ID, domain.SessionUpdate{Status: &status, Notes: &notes})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.SyncVersion != 1 {
		t.Fatalf("expected version 1, got %d", updated.SyncVersion)
	}
	if updated.CompletedAt == nil {
		t.Fatal("expected completed_at to be stamped")
	}
	if updated.Notes == nil || *updated.Notes != notes {
		t.Fatalf("expected notes %q, got %v", notes, updated.Notes)
	}
	if updated.UpdatedAt < s.UpdatedAt {
		t.Fatalf("updated_at went backwards: %s < %s", updated.UpdatedAt, s.UpdatedAt)
	}

	n, err := db.Sessions().CountCompleted(ctx)
	if err != nil {
		t.Fatalf("CountCompleted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 completed session, got %d", n)
	}
}

func TestSession_UpdateMissing(t *testing.T) {
	db := newTestDB(t)
	notes := "x"
	_, err := db.Sessions().Update(context.Background(), 99, domain.SessionUpdate{Notes: &notes})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSet_CreateDuplicateAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.Sessions().Create(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	reps := 10
	set := domain.Set{SessionID: s.ID, ExerciseID: 1, SetNumber: 1, Reps: &reps}
	if err := db.Sets().Create(ctx, &set); err != nil {
		t.Fatalf("Create set: %v", err)
	}
	if set.ID == 0 || set.Reps == nil || *set.Reps != 10 {
		t.Fatalf("unexpected set %+v", set)
	}

	dup := domain.Set{SessionID: s.ID, ExerciseID: 1, SetNumber: 1}
	if err := db.Sets().Create(ctx, &dup); !errors.Is(err, domain.ErrDuplicateSet) {
		t.Fatalf("expected ErrDuplicateSet, got %v", err)
	}

	if err := db.Sets().Delete(ctx, set.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := db.Sets().Delete(ctx, set.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	var tombstones int
	if err := db.SqlDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sync_tombstones WHERE table_name = 'workout_sets' AND record_id = ?", set.ID,
	).Scan(&tombstones); err != nil {
		t.Fatalf("count tombstones: %v", err)
	}
	if tombstones != 1 {
		t.Fatalf("expected 1 tombstone, got %d", tombstones)
	}
}

func TestSet_CreateUnknownExercise(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.Sessions().Create(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}
	set := domain.Set{SessionID: s.ID, ExerciseID: 999, SetNumber: 1}
	if err := db.Sets().Create(ctx, &set); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionDay_ToggleRemovesSelections(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.Sessions().Create(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	active, err := db.SessionDays().Toggle(ctx, s.ID, 1, 1)
	if err != nil {
		t.Fatalf("Toggle on: %v", err)
	}
	if !active {
		t.Fatal("expected day to become active")
	}

	selected, err := db.SessionExercises().ReplaceDay(ctx, s.ID, 1, []domain.SessionExercise{
		{MuscleGroup: "Back", ExerciseID: 1, SelectionOrder: 1},
		{MuscleGroup: "Biceps", ExerciseID: 2, SelectionOrder: 2},
	})
	if err != nil {
		t.Fatalf("ReplaceDay: %v", err)
	}
	if len(selected) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(selected))
	}

	active, err = db.SessionDays().Toggle(ctx, s.ID, 1, 1)
	if err != nil {
		t.Fatalf("Toggle off: %v", err)
	}
	if active {
		t.Fatal("expected day to become inactive")
	}

	remaining, err := db.SessionExercises().ListBySession(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected selections to be removed, got %d", len(remaining))
	}

	var tombstones int
	if err := db.SqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_tombstones").Scan(&tombstones); err != nil {
		t.Fatalf("count tombstones: %v", err)
	}
	if tombstones != 3 {
		t.Fatalf("expected 3 tombstones (day + 2 selections), got %d", tombstones)
	}
}
