package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldReplace(t *testing.T) {
	v := func(n int64) *int64 { return &n }

	tests := []struct {
		name     string
		local    *int64
		incoming int64
		want     bool
	}{
		{"absent locally", nil, 0, true},
		{"newer", v(1), 2, true},
		{"same version", v(2), 2, false},
		{"older", v(3), 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldReplace(tt.local, tt.incoming))
		})
	}
}

func TestMergeSet_OnlyNewerVersionsApply(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSession(t, s, 1, "2024-01-01", 1)

	merge := func(version int64, reps int) bool {
		var applied bool
		err := s.Batch(ctx, func(tx *Tx) error {
			var err error
			applied, err = tx.MergeSet(domain.Set{
				ID: 10, SessionID: 1, ExerciseID: 1, SetNumber: 1, Reps: &reps,
				CreatedAt: "2024-01-01T10:00:00.000Z", UpdatedAt: "2024-01-01T10:00:00.000Z",
				SyncVersion: version,
			})
			return err
		})
		require.NoError(t, err)
		return applied
	}

	assert.True(t, merge(2, 5))
	assert.False(t, merge(2, 6), "equal version must not replace")
	assert.False(t, merge(1, 7), "older version must not replace")

	set, err := s.Set(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, *set.Reps)
	assert.Equal(t, int64(2), set.SyncVersion)
	require.NotNil(t, set.LastSyncedAt)
	assert.GreaterOrEqual(t, string(*set.LastSyncedAt), string(set.UpdatedAt))

	assert.True(t, merge(3, 8))
	set, err = s.Set(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 8, *set.Reps)

	counts, err := s.DirtyCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Total(), "merged rows are clean")
}

func TestUnsyncedAndMarkSynced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSession(t, s, 1, "2024-01-01", 1)

	var ids []int64
	for n := 1; n <= 3; n++ {
		set, err := s.CreateSet(ctx, domain.NewSet{SessionID: 1, ExerciseID: 1, SetNumber: n})
		require.NoError(t, err)
		ids = append(ids, set.ID)
	}

	batch, err := s.Unsynced(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch.Sessions)
	require.Len(t, batch.Sets, 3)

	res := &domain.PushResult{
		Synced:    2,
		Failed:    1,
		Conflicts: []domain.Conflict{{Type: domain.RecordSet, ID: ids[1], Error: "conflict"}},
		Timestamp: domain.Now(),
	}
	marked, err := s.MarkSynced(ctx, batch, res)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	after, err := s.Unsynced(ctx)
	require.NoError(t, err)
	require.Len(t, after.Sets, 1)
	assert.Equal(t, ids[1], after.Sets[0].ID, "the rejected set stays dirty")
}

func TestMarkSynced_RacingWriteStaysDirty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSession(t, s, 1, "2024-01-01", 1)

	set, err := s.CreateSet(ctx, domain.NewSet{SessionID: 1, ExerciseID: 1, SetNumber: 1})
	require.NoError(t, err)

	batch, err := s.Unsynced(ctx)
	require.NoError(t, err)

	// Edited after selection, before the push response arrives.
	reps := 12
	_, err = s.UpdateSet(ctx, set.ID, domain.SetUpdate{Reps: &reps})
	require.NoError(t, err)

	marked, err := s.MarkSynced(ctx, batch, &domain.PushResult{Synced: 1, Timestamp: domain.Now()})
	require.NoError(t, err)
	assert.Zero(t, marked)

	counts, err := s.DirtyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Sets)
}

func TestLocalEditsStayDirtyWithClockBehindServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Server stamps below are 10:00; this device thinks it is 09:00.
	behind := WithClock(func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) })
	s, _ := f.open(t, NewSnapshotPersister(f.slots, ""), &fakeSeeder{catalog: testCatalog()}, behind)
	seedSession(t, s, 1, "2024-01-01", 1)

	notes := "first edit"
	_, err := s.UpdateSession(ctx, 1, domain.SessionUpdate{Notes: &notes})
	require.NoError(t, err)
	counts, err := s.DirtyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Sessions, "edit after a pull from a faster clock")

	batch, err := s.Unsynced(ctx)
	require.NoError(t, err)
	marked, err := s.MarkSynced(ctx, batch, &domain.PushResult{
		Synced: 1, Timestamp: "2024-01-01T12:00:00.000Z",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	notes = "second edit"
	_, err = s.UpdateSession(ctx, 1, domain.SessionUpdate{Notes: &notes})
	require.NoError(t, err)
	counts, err = s.DirtyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Sessions, "edit after a push acknowledged by a faster clock")
	require.NoError(t, s.Close())

	reopened, _ := f.open(t, NewSnapshotPersister(f.slots, ""), nil, behind)
	batch, err = reopened.Unsynced(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Sessions, 1)
	_, err = reopened.MarkSynced(ctx, batch, &domain.PushResult{Synced: 1})
	require.NoError(t, err)

	notes = "after restart"
	_, err = reopened.UpdateSession(ctx, 1, domain.SessionUpdate{Notes: &notes})
	require.NoError(t, err)
	counts, err = reopened.DirtyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Sessions, "edit after a restart")
}

func TestSessionUpdateMakesSessionDirty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSession(t, s, 1, "2024-01-01", 1)

	counts, err := s.DirtyCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Sessions)

	notes := "felt strong"
	_, err = s.UpdateSession(ctx, 1, domain.SessionUpdate{Notes: &notes})
	require.NoError(t, err)

	batch, err := s.Unsynced(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Sessions, 1)
	assert.Equal(t, "felt strong", *batch.Sessions[0].Notes)
}

func TestApplyTombstone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSession(t, s, 1, "2024-01-01", 1)
	set, err := s.CreateSet(ctx, domain.NewSet{SessionID: 1, ExerciseID: 1, SetNumber: 1})
	require.NoError(t, err)

	err = s.Batch(ctx, func(tx *Tx) error {
		removed, err := tx.ApplyTombstone(domain.Tombstone{TableName: domain.TableSets, RecordID: set.ID})
		assert.True(t, removed)
		return err
	})
	require.NoError(t, err)

	_, err = s.Set(ctx, set.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = s.Batch(ctx, func(tx *Tx) error {
		_, err := tx.ApplyTombstone(domain.Tombstone{TableName: "sync_meta", RecordID: 1})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
