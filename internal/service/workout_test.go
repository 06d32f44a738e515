package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/repository/sqlite"
	"github.com/msomdec/gymtrack/internal/service"
)

type testServices struct {
	db       *sqlite.DB
	catalog  *service.CatalogService
	workouts *service.WorkoutService
	sync     *service.SyncService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	catalog := service.NewCatalogService(db.Catalog(), db.Config())
	if err := catalog.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	if err := catalog.SetCycleStart(ctx, "2024-01-01"); err != nil {
		t.Fatalf("SetCycleStart: %v", err)
	}

	return &testServices{
		db:      db,
		catalog: catalog,
		workouts: service.NewWorkoutService(db.Sessions(), db.Sets(), db.SessionDays(),
			db.SessionExercises(), db.Catalog(), db.Config()),
		sync: service.NewSyncService(db.Sync(), nil),
	}
}

func TestWorkoutService_TodayWithoutSession(t *testing.T) {
	svc := newTestServices(t)

	today, err := svc.workouts.Today(context.Background(), "2024-01-02")
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if today.DayNumber != 2 {
		t.Fatalf("expected day 2, got %d", today.DayNumber)
	}
	if today.ExerciseGroup == nil || today.ExerciseGroup.ID != 2 {
		t.Fatalf("expected group 2, got %+v", today.ExerciseGroup)
	}
	if len(today.ExerciseGroup.MuscleGroups) != 2 || len(today.ExerciseGroup.MuscleGroups[0].Exercises) == 0 {
		t.Fatalf("expected candidate exercises for both muscle groups, got %+v", today.ExerciseGroup.MuscleGroups)
	}
	if today.Session != nil {
		t.Fatal("expected no session yet")
	}
}

func TestWorkoutService_FullFlow(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	session, err := svc.workouts.CreateSession(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	active, err := svc.workouts.ToggleDay(ctx, session.ID, 1, 1)
	if err != nil || !active {
		t.Fatalf("ToggleDay: active=%v err=%v", active, err)
	}

	selected, err := svc.workouts.SelectExercises(ctx, session.ID, 1, 1, 4)
	if err != nil {
		t.Fatalf("SelectExercises: %v", err)
	}
	if len(selected) != 2 || selected[0].SelectionOrder != 1 || selected[1].ExerciseID != 4 {
		t.Fatalf("unexpected selections %+v", selected)
	}

	reps := 8
	set, err := svc.workouts.CreateSet(ctx, domain.NewSet{SessionID: session.ID, ExerciseID: 1, SetNumber: 1, Reps: &reps})
	if err != nil {
		t.Fatalf("CreateSet: %v", err)
	}
	if !set.Completed {
		t.Fatal("expected sets to be logged completed by default")
	}

	today, err := svc.workouts.Today(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if today.Session == nil || today.Session.ID != session.ID {
		t.Fatalf("expected session %d in today view", session.ID)
	}
	if len(today.ActiveDays) != 1 || len(today.SelectedExercises) != 2 || len(today.Sets) != 1 {
		t.Fatalf("unexpected today view: %d days, %d selections, %d sets",
			len(today.ActiveDays), len(today.SelectedExercises), len(today.Sets))
	}

	status := domain.SessionCompleted
	if _, err := svc.workouts.UpdateSession(ctx, session.ID, domain.SessionUpdate{Status: &status}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	history, err := svc.workouts.History(ctx, 10, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if history.Total != 1 || history.HasMore {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestWorkoutService_SelectExercisesValidatesMuscleGroups(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	session, err := svc.workouts.CreateSession(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := svc.workouts.SelectExercises(ctx, session.ID, 1, 1, 4); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for an inactive day, got %v", err)
	}

	if _, err := svc.workouts.ToggleDay(ctx, session.ID, 1, 1); err != nil {
		t.Fatalf("ToggleDay: %v", err)
	}
	// Exercise 6 is a chest exercise; group 1 trains back and biceps.
	if _, err := svc.workouts.SelectExercises(ctx, session.ID, 1, 6, 4); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a mismatched muscle group, got %v", err)
	}
	if _, err := svc.workouts.SelectExercises(ctx, session.ID, 1, 999, 4); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown exercise, got %v", err)
	}
}

func TestWorkoutService_ToggleDayValidates(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	if _, err := svc.workouts.ToggleDay(ctx, 1, 11, 1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.workouts.ToggleDay(ctx, 42, 1, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing session, got %v", err)
	}
}

func TestCatalogService_CycleStart(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	start, day, err := svc.catalog.CycleStart(ctx)
	if err != nil {
		t.Fatalf("CycleStart: %v", err)
	}
	if start != "2024-01-01" || !domain.ValidDayNumber(day) {
		t.Fatalf("unexpected cycle start %s day %d", start, day)
	}

	if err := svc.catalog.SetCycleStart(ctx, "tomorrow"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParseCatalog_RejectsUnknownGroup(t *testing.T) {
	data := []byte(`
exercise_groups:
  - {id: 1, name: A, muscle_group1: X, muscle_group2: Y}
schedule:
  - {day: 1, workout_id: 7}
`)
	if _, _, err := service.ParseCatalog(data); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
