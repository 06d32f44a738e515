package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/msomdec/gymtrack/internal/connectivity"
	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/localstore"
	"github.com/msomdec/gymtrack/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

// fakeRemote serves a fixed catalog and empty change sets. Pull blocks
// while gate is non-nil and open.
type fakeRemote struct {
	mu       sync.Mutex
	up       atomic.Bool
	seedErr  error
	gate     chan struct{}
	pulls    atomic.Int64
	pushes   atomic.Int64
	clientID string
}

func (f *fakeRemote) Probe(ctx context.Context) error {
	if !f.up.Load() {
		return fmt.Errorf("%w: connection refused", domain.ErrOffline)
	}
	return nil
}

func (f *fakeRemote) StaticData(ctx context.Context) (*domain.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seedErr != nil {
		return nil, f.seedErr
	}
	c := &domain.Catalog{
		ExerciseGroups: []domain.ExerciseGroup{{ID: 1, Name: "Legs & Core", MuscleGroup1: "Legs", MuscleGroup2: "Core"}},
		Exercises:      []domain.Exercise{{ID: 1, Name: "Squat", MuscleGroup: "Legs", Type: domain.ExerciseLegs}},
	}
	for d := 1; d <= domain.CycleLength; d++ {
		c.Schedule = append(c.Schedule, domain.ScheduleDay{DayNumber: d, WorkoutID: 1})
	}
	return c, nil
}

func (f *fakeRemote) CycleStart(ctx context.Context) (*remote.CycleStart, error) {
	return &remote.CycleStart{StartDate: "2024-01-01", CurrentDay: 1}, nil
}

func (f *fakeRemote) Pull(ctx context.Context, since domain.Timestamp) (*domain.Changes, error) {
	f.pulls.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &domain.Changes{Timestamp: domain.MaxTimestamp(since, domain.Now())}, nil
}

func (f *fakeRemote) Push(ctx context.Context, batch *domain.PushBatch) (*domain.PushResult, error) {
	f.pushes.Add(1)
	return &domain.PushResult{Synced: batch.Len(), Conflicts: []domain.Conflict{}, Timestamp: domain.Now()}, nil
}

func (f *fakeRemote) SetClientID(id string) {
	f.mu.Lock()
	f.clientID = id
	f.mu.Unlock()
}

func newStore(t *testing.T) *localstore.Store {
	t.Helper()
	slots, err := localstore.OpenSlots(filepath.Join(t.TempDir(), "slots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { slots.Close() })
	store := localstore.New(slots, localstore.NewSnapshotPersister(slots, ""), localstore.WithLogger(discard))
	t.Cleanup(func() { store.Close() })
	return store
}

func newFakeEngine(t *testing.T, f *fakeRemote) (*Engine, *connectivity.Monitor) {
	t.Helper()
	monitor := connectivity.New(f, connectivity.Config{Interval: 10 * time.Millisecond, Logger: discard})
	e := New(newStore(t), f, monitor, Config{PullInterval: time.Hour, Logger: discard})
	require.NoError(t, e.Start(context.Background()))
	return e, monitor
}

func TestEngine_StartSeedsAndSetsClientID(t *testing.T) {
	f := &fakeRemote{}
	e, _ := newFakeEngine(t, f)

	assert.Equal(t, StateReady, e.State())
	id, err := e.Store().DeviceID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, f.clientID)

	start, _, err := e.Store().Config(context.Background(), domain.ConfigCycleStartDate)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", start)

	assert.Error(t, e.Start(context.Background()), "second start")
}

func TestEngine_NotReadyUntilSeeded(t *testing.T) {
	f := &fakeRemote{seedErr: fmt.Errorf("%w: no route", domain.ErrOffline)}
	e, _ := newFakeEngine(t, f)
	ctx := context.Background()

	assert.Equal(t, StateInitializing, e.State())
	_, err := e.Pull(ctx)
	assert.ErrorIs(t, err, localstore.ErrNotReady)
	assert.Zero(t, f.pulls.Load())

	st := e.Status(ctx)
	assert.True(t, st.DBReady)
	assert.Equal(t, "initializing", st.State)

	f.mu.Lock()
	f.seedErr = nil
	f.mu.Unlock()

	_, err = e.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateReady, e.State())
	assert.Equal(t, int64(1), f.pulls.Load())
}

func TestEngine_PushWithNothingDirtySendsNothing(t *testing.T) {
	f := &fakeRemote{}
	e, _ := newFakeEngine(t, f)

	res, err := e.Push(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Synced)
	assert.Zero(t, f.pushes.Load())
}

func TestEngine_ScheduledPullsJoinInFlightPull(t *testing.T) {
	f := &fakeRemote{gate: make(chan struct{})}
	e, _ := newFakeEngine(t, f)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.scheduledPull(ctx)
		}()
	}

	require.Eventually(t, func() bool { return f.pulls.Load() == 1 }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return e.Status(ctx).Syncing }, 2*time.Second, time.Millisecond)
	// Let the other callers reach the group before the pull finishes.
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int64(1), f.pulls.Load())
	assert.False(t, e.Status(ctx).Syncing)
}

func TestEngine_ComingOnlineTriggersPull(t *testing.T) {
	f := &fakeRemote{}
	monitor := connectivity.New(f, connectivity.Config{Interval: 10 * time.Millisecond, Logger: discard})
	e := New(newStore(t), f, monitor, Config{PullInterval: 10 * time.Millisecond, Logger: discard})

	// Seeding needs the server, so start while it is reachable, then drop.
	f.up.Store(true)
	require.NoError(t, e.Start(context.Background()))
	f.up.Store(false)
	require.False(t, monitor.Check(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, f.pulls.Load(), "no scheduled pulls while offline")

	f.up.Store(true)
	require.Eventually(t, func() bool { return f.pulls.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, e.Status(context.Background()).Online)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestEngine_NotifyMutationPushes(t *testing.T) {
	f := &fakeRemote{}
	f.up.Store(true)
	e, monitor := newFakeEngine(t, f)
	ctx := context.Background()
	monitor.ReportSuccess()

	err := e.Store().Batch(ctx, func(tx *localstore.Tx) error {
		_, err := tx.MergeSession(domain.Session{
			ID: 1, SessionDate: "2024-01-01", Status: domain.SessionInProgress,
			CreatedAt: tx.Now(), UpdatedAt: tx.Now(), SyncVersion: 1,
		})
		return err
	})
	require.NoError(t, err)
	_, err = e.Store().CreateSet(ctx, domain.NewSet{SessionID: 1, ExerciseID: 1, SetNumber: 1})
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- e.Run(runCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	e.NotifyMutation()
	e.NotifyMutation()
	require.Eventually(t, func() bool { return f.pushes.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return e.Status(ctx).Dirty.Total() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestEngine_SetPullInterval(t *testing.T) {
	e := New(nil, &fakeRemote{}, nil, Config{})
	assert.Equal(t, DefaultPullInterval, e.PullInterval())

	e.SetPullInterval(5 * time.Second)
	assert.Equal(t, 5*time.Second, e.PullInterval())

	e.SetPullInterval(0)
	assert.Equal(t, 5*time.Second, e.PullInterval())
}
