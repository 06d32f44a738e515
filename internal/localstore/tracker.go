package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/msomdec/gymtrack/internal/domain"
)

// A row is dirty when it changed after it was last synced, or was never
// synced. Append-only junction rows have no updated_at and compare against
// created_at.
const (
	dirtyPredicate         = "(last_synced_at IS NULL OR last_synced_at < updated_at)"
	junctionDirtyPredicate = "(last_synced_at IS NULL OR last_synced_at < created_at)"
)

// ShouldReplace is the pull merge rule: an incoming record replaces the
// local one iff its version is strictly greater. A record with no local
// copy is always taken.
func ShouldReplace(local *int64, incoming int64) bool {
	return local == nil || incoming > *local
}

func mirrorTable(table string) bool {
	switch table {
	case domain.TableSessions, domain.TableSessionDays, domain.TableSessionExercises, domain.TableSets:
		return true
	}
	return false
}

func (t *Tx) localVersion(table string, id int64) (*int64, error) {
	var v int64
	err := t.tx.QueryRowContext(t.ctx, "SELECT sync_version FROM "+table+" WHERE id = ?", id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local version: %w", err)
	}
	return &v, nil
}

// MergeSession applies a pulled session under the merge rule and reports
// whether it replaced the local copy. last_synced_at is stamped from the
// local clock, never the server's, so the dirty comparison only ever sees
// local stamps. A local row holding the same date under another id is
// replaced.
func (t *Tx) MergeSession(s domain.Session) (bool, error) {
	local, err := t.localVersion(domain.TableSessions, s.ID)
	if err != nil || !ShouldReplace(local, s.SyncVersion) {
		return false, err
	}
	_, err = t.Exec(
		`INSERT OR REPLACE INTO workout_sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.SessionDate, string(s.Status), s.Notes, s.StartedAt, s.CompletedAt,
		s.CreatedAt, s.UpdatedAt, s.SyncVersion, t.syncStamp(s.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("merge session %d: %w", s.ID, err)
	}
	return true, nil
}

// MergeSet applies a pulled set under the merge rule.
func (t *Tx) MergeSet(s domain.Set) (bool, error) {
	local, err := t.localVersion(domain.TableSets, s.ID)
	if err != nil || !ShouldReplace(local, s.SyncVersion) {
		return false, err
	}
	_, err = t.Exec(
		`INSERT OR REPLACE INTO workout_sets (`+setColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.SessionID, s.ExerciseID, s.SetNumber, s.Reps, s.Weight, s.DurationSeconds,
		s.Notes, s.Completed, s.CreatedAt, s.UpdatedAt, s.SyncVersion,
		t.syncStamp(s.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("merge set %d: %w", s.ID, err)
	}
	return true, nil
}

// MergeSessionDay applies a pulled session day under the merge rule.
func (t *Tx) MergeSessionDay(d domain.SessionDay) (bool, error) {
	local, err := t.localVersion(domain.TableSessionDays, d.ID)
	if err != nil || !ShouldReplace(local, d.SyncVersion) {
		return false, err
	}
	_, err = t.Exec(
		`INSERT OR REPLACE INTO session_days (`+dayColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.SessionID, d.DayNumber, d.ExerciseGroupID, d.CreatedAt, d.SyncVersion,
		t.syncStamp(d.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("merge session day %d: %w", d.ID, err)
	}
	return true, nil
}

// MergeSessionExercise applies a pulled exercise selection under the merge
// rule.
func (t *Tx) MergeSessionExercise(e domain.SessionExercise) (bool, error) {
	local, err := t.localVersion(domain.TableSessionExercises, e.ID)
	if err != nil || !ShouldReplace(local, e.SyncVersion) {
		return false, err
	}
	_, err = t.Exec(
		`INSERT OR REPLACE INTO session_exercises (`+exerciseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.DayNumber, e.MuscleGroup, e.ExerciseID, e.SelectionOrder,
		e.CreatedAt, e.SyncVersion, t.syncStamp(e.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("merge session exercise %d: %w", e.ID, err)
	}
	return true, nil
}

// ApplyTombstone deletes the row a server tombstone names and reports
// whether it was present.
func (t *Tx) ApplyTombstone(ts domain.Tombstone) (bool, error) {
	if !mirrorTable(ts.TableName) {
		return false, fmt.Errorf("%w: tombstone for unknown table %q", domain.ErrInvalidInput, ts.TableName)
	}
	res, err := t.Exec("DELETE FROM "+ts.TableName+" WHERE id = ?", ts.RecordID)
	if err != nil {
		return false, fmt.Errorf("apply tombstone %s/%d: %w", ts.TableName, ts.RecordID, err)
	}
	return res.RowsAffected > 0, nil
}

// Unsynced selects every dirty row, ordered by id within each table.
func (s *Store) Unsynced(ctx context.Context) (*domain.PushBatch, error) {
	b := &domain.PushBatch{}
	err := s.read(ctx, func(q queryer) error {
		var err error
		b.Sessions, err = collect(ctx, q, scanSession,
			"SELECT "+sessionColumns+" FROM workout_sessions WHERE "+dirtyPredicate+" ORDER BY id")
		if err != nil {
			return fmt.Errorf("unsynced sessions: %w", err)
		}
		b.SessionDays, err = collect(ctx, q, scanSessionDay,
			"SELECT "+dayColumns+" FROM session_days WHERE "+junctionDirtyPredicate+" ORDER BY id")
		if err != nil {
			return fmt.Errorf("unsynced session days: %w", err)
		}
		b.SessionExercises, err = collect(ctx, q, scanSessionExercise,
			"SELECT "+exerciseColumns+" FROM session_exercises WHERE "+junctionDirtyPredicate+" ORDER BY id")
		if err != nil {
			return fmt.Errorf("unsynced session exercises: %w", err)
		}
		b.Sets, err = collect(ctx, q, scanSet,
			"SELECT "+setColumns+" FROM workout_sets WHERE "+dirtyPredicate+" ORDER BY id")
		if err != nil {
			return fmt.Errorf("unsynced sets: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// MarkSynced stamps last_synced_at on every pushed record the server did
// not reject. A row is only stamped if it still carries the timestamp it
// was pushed with, so a write that raced the push stays dirty. It returns
// the number of rows stamped.
func (s *Store) MarkSynced(ctx context.Context, pushed *domain.PushBatch, res *domain.PushResult) (int, error) {
	marked := 0
	err := s.Batch(ctx, func(tx *Tx) error {
		mark := func(table, stampCol string, id int64, stamp domain.Timestamp) error {
			r, err := tx.Exec(
				"UPDATE "+table+" SET last_synced_at = MAX(?, "+stampCol+") WHERE id = ? AND "+stampCol+" = ?",
				tx.now, id, stamp)
			if err != nil {
				return fmt.Errorf("mark %s %d synced: %w", table, id, err)
			}
			marked += int(r.RowsAffected)
			return nil
		}

		for _, r := range pushed.Sessions {
			if !res.Rejected(domain.RecordSession, r.ID) {
				if err := mark(domain.TableSessions, "updated_at", r.ID, r.UpdatedAt); err != nil {
					return err
				}
			}
		}
		for _, r := range pushed.SessionDays {
			if !res.Rejected(domain.RecordSessionDay, r.ID) {
				if err := mark(domain.TableSessionDays, "created_at", r.ID, r.CreatedAt); err != nil {
					return err
				}
			}
		}
		for _, r := range pushed.SessionExercises {
			if !res.Rejected(domain.RecordSessionExercise, r.ID) {
				if err := mark(domain.TableSessionExercises, "created_at", r.ID, r.CreatedAt); err != nil {
					return err
				}
			}
		}
		for _, r := range pushed.Sets {
			if !res.Rejected(domain.RecordSet, r.ID) {
				if err := mark(domain.TableSets, "updated_at", r.ID, r.UpdatedAt); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return marked, err
}

// DirtyCounts is the number of dirty rows per synchronized table.
type DirtyCounts struct {
	Sessions         int `json:"sessions"`
	SessionDays      int `json:"sessionDays"`
	SessionExercises int `json:"sessionExercises"`
	Sets             int `json:"sets"`
}

// Total sums the counts.
func (c DirtyCounts) Total() int {
	return c.Sessions + c.SessionDays + c.SessionExercises + c.Sets
}

// DirtyCounts counts dirty rows without materializing them.
func (s *Store) DirtyCounts(ctx context.Context) (DirtyCounts, error) {
	var c DirtyCounts
	err := s.read(ctx, func(q queryer) error {
		return q.QueryRowContext(ctx, `SELECT
			(SELECT COUNT(*) FROM workout_sessions WHERE `+dirtyPredicate+`),
			(SELECT COUNT(*) FROM session_days WHERE `+junctionDirtyPredicate+`),
			(SELECT COUNT(*) FROM session_exercises WHERE `+junctionDirtyPredicate+`),
			(SELECT COUNT(*) FROM workout_sets WHERE `+dirtyPredicate+`)`).
			Scan(&c.Sessions, &c.SessionDays, &c.SessionExercises, &c.Sets)
	})
	if err != nil {
		return c, fmt.Errorf("count dirty rows: %w", err)
	}
	return c, nil
}
