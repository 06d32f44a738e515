package localstore

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSeeder struct {
	catalog *domain.Catalog
	err     error
	calls   int
}

func (f *fakeSeeder) StaticData(ctx context.Context) (*domain.Catalog, error) {
	f.calls++
	return f.catalog, f.err
}

func testCatalog() *domain.Catalog {
	c := &domain.Catalog{
		ExerciseGroups: []domain.ExerciseGroup{
			{ID: 1, Name: "Back & Biceps", MuscleGroup1: "Back", MuscleGroup2: "Biceps"},
			{ID: 2, Name: "Chest & Triceps", MuscleGroup1: "Chest", MuscleGroup2: "Triceps"},
		},
		Exercises: []domain.Exercise{
			{ID: 1, Name: "Pull-up", MuscleGroup: "Back", Type: domain.ExercisePull},
			{ID: 2, Name: "Row", MuscleGroup: "Back", Type: domain.ExercisePull, EquipmentLevel: 1},
			{ID: 3, Name: "Bench Press", MuscleGroup: "Chest", Type: domain.ExercisePush},
			{ID: 4, Name: "Barbell Curl", MuscleGroup: "Biceps", Type: domain.ExercisePull},
		},
	}
	for day := 1; day <= domain.CycleLength; day++ {
		c.Schedule = append(c.Schedule, domain.ScheduleDay{DayNumber: day, WorkoutID: int64((day-1)%2 + 1)})
	}
	return c
}

type fixture struct {
	slots *SQLiteSlots
	path  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slots.db")
	slots, err := OpenSlots(path)
	require.NoError(t, err)
	t.Cleanup(func() { slots.Close() })
	return &fixture{slots: slots, path: path}
}

func (f *fixture) open(t *testing.T, p Persister, seeder Seeder, opts ...Option) (*Store, InitResult) {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	s := New(f.slots, p, opts...)
	res, err := s.Initialize(context.Background(), seeder)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, res
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	f := newFixture(t)
	s, res := f.open(t, NewSnapshotPersister(f.slots, ""), &fakeSeeder{catalog: testCatalog()})
	require.True(t, res.Seeded)
	return s
}

// seedSession mirrors a server session as if it had been pulled.
func seedSession(t *testing.T, s *Store, id int64, date string, version int64) {
	t.Helper()
	ts := domain.Timestamp("2024-01-01T10:00:00.000Z")
	err := s.Batch(context.Background(), func(tx *Tx) error {
		_, err := tx.MergeSession(domain.Session{
			ID: id, SessionDate: date, Status: domain.SessionInProgress,
			CreatedAt: ts, UpdatedAt: ts, SyncVersion: version,
		})
		return err
	})
	require.NoError(t, err)
}

func TestStore_LifecycleErrors(t *testing.T) {
	f := newFixture(t)
	s := New(f.slots, NewSnapshotPersister(f.slots, ""))
	ctx := context.Background()

	_, err := s.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, StateUninitialized, s.State())

	_, err = s.Initialize(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, StateReady, s.State())

	require.NoError(t, s.Close())
	_, err = s.Run(ctx, "DELETE FROM sync_meta")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Initialize(ctx, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStore_InitializeSeedsReferenceData(t *testing.T) {
	f := newFixture(t)
	seeder := &fakeSeeder{catalog: testCatalog()}
	s, res := f.open(t, NewSnapshotPersister(f.slots, ""), seeder)
	ctx := context.Background()

	assert.False(t, res.Restored)
	assert.True(t, res.Seeded)

	counts, err := s.CatalogCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, CatalogCounts{Exercises: 4, ExerciseGroups: 2, Schedule: 10}, counts)

	start, ok, err := s.Config(ctx, domain.ConfigCycleStartDate)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = domain.ParseDate(start)
	assert.NoError(t, err)

	id, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	seeded, err := s.Reseed(ctx, seeder)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, 1, seeder.calls, "an already seeded mirror must not refetch")
}

func TestStore_SeedFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	s, res := f.open(t, NewSnapshotPersister(f.slots, ""), &fakeSeeder{err: domain.ErrOffline})
	ctx := context.Background()

	assert.False(t, res.Seeded)
	assert.ErrorIs(t, res.SeedErr, domain.ErrOffline)

	rows, err := s.Query(ctx, "SELECT * FROM exercises")
	require.NoError(t, err)
	assert.Empty(t, rows)

	seeded, err := s.Reseed(ctx, &fakeSeeder{catalog: testCatalog()})
	require.NoError(t, err)
	assert.True(t, seeded)
}

func TestStore_QueryMaterializesRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows, err := s.Query(ctx, "SELECT id, name FROM exercises WHERE muscle_group = ? ORDER BY id", "Back")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "Pull-up", rows[0]["name"])

	row, err := s.Get(ctx, "SELECT id FROM exercises WHERE id = ?", 999)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestStore_BatchRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Batch(ctx, func(tx *Tx) error {
		if err := tx.SetMeta("k", "v"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok, err := s.Meta(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SessionDateIsUnique(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, 1, "2024-01-01", 1)

	_, err := s.Run(context.Background(),
		`INSERT INTO workout_sessions (session_date, status, created_at, updated_at) VALUES (?, 'in_progress', ?, ?)`,
		"2024-01-01", domain.Now(), domain.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE")
}

func TestStore_CreateAndUpdateSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSession(t, s, 1, "2024-01-01", 1)

	reps := 8
	set, err := s.CreateSet(ctx, domain.NewSet{SessionID: 1, ExerciseID: 1, SetNumber: 1, Reps: &reps})
	require.NoError(t, err)
	assert.Equal(t, int64(0), set.SyncVersion)
	assert.Nil(t, set.LastSyncedAt)
	assert.True(t, set.Completed)

	_, err = s.CreateSet(ctx, domain.NewSet{SessionID: 1, ExerciseID: 1, SetNumber: 1})
	assert.ErrorIs(t, err, domain.ErrDuplicateSet)

	_, err = s.CreateSet(ctx, domain.NewSet{SessionID: 42, ExerciseID: 1, SetNumber: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	more := 10
	updated, err := s.UpdateSet(ctx, set.ID, domain.SetUpdate{Reps: &more})
	require.NoError(t, err)
	assert.Equal(t, 10, *updated.Reps)
	assert.Greater(t, string(updated.UpdatedAt), string(set.UpdatedAt))

	_, err = s.UpdateSet(ctx, 999, domain.SetUpdate{Reps: &more})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_UpdateSessionStampsLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSession(t, s, 1, "2024-01-01", 1)

	status := domain.SessionCompleted
	session, err := s.UpdateSession(ctx, 1, domain.SessionUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, session.Status)
	require.NotNil(t, session.CompletedAt)

	history, err := s.History(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, history.Total)
}

func TestStore_TodayProjection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetConfig(ctx, domain.ConfigCycleStartDate, "2024-01-01"))

	today, err := s.Today(ctx, "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, 2, today.DayNumber)
	require.NotNil(t, today.ExerciseGroup)
	assert.Equal(t, int64(2), today.ExerciseGroup.ID)
	assert.Nil(t, today.Session)

	seedSession(t, s, 5, "2024-01-02", 1)
	_, err = s.CreateSet(ctx, domain.NewSet{SessionID: 5, ExerciseID: 3, SetNumber: 1})
	require.NoError(t, err)

	today, err = s.Today(ctx, "2024-01-02")
	require.NoError(t, err)
	require.NotNil(t, today.Session)
	assert.Len(t, today.Sets, 1)
}

func TestStore_TickIsStrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(nil, nil, WithClock(func() time.Time { return fixed }))

	a, b := s.tick(), s.tick()
	assert.Less(t, string(a), string(b))
}
